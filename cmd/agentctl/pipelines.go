package main

import (
	"fmt"

	"github.com/KamdynS/agentflows/agent/crew"
	"github.com/KamdynS/agentflows/agent/handoff"
	"github.com/KamdynS/agentflows/console"
	"github.com/KamdynS/agentflows/pipelines"
	"github.com/spf13/cobra"
)

func newResearchCmd(a *app) *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Research, write and review a report with three hand-off agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(rt *pipelines.Runtime) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				wf, err := pipelines.NewResearch(rt)
				if err != nil {
					return err
				}
				printer := console.NewEventPrinter(out)
				res, err := wf.Run(ctx, topic, handoff.WithEvents(printer.Sink()))
				if res != nil {
					pipelines.WriteReportSummary(ctx, out, res.State)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", pipelines.ResearchTopic, "what to research")
	return cmd
}

func newBlogCmd(a *app) *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "blog",
		Short: "Run the researcher and writer crew on a topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(rt *pipelines.Runtime) error {
				c, err := pipelines.NewBlogCrew(rt)
				if err != nil {
					return err
				}
				out, err := kickoff(cmd, c, map[string]string{"topic": topic})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out.Raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", pipelines.DefaultBlogTopic, "blog topic")
	return cmd
}

func newSupportCmd(a *app) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "support",
		Short: "Analyse support data and write a report for the COO",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(rt *pipelines.Runtime) error {
				w := cmd.OutOrStdout()
				c, err := pipelines.NewSupportCrew(rt, func(q string) {
					fmt.Fprintf(w, "--- Fetching data for query: %s ---\n", q)
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "--- Starting Customer Support Analysis Crew ---")
				out, err := kickoff(cmd, c, map[string]string{"data_query": query})
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "--- Crew Execution Finished ---")
				fmt.Fprintln(w, "--- Final Report for COO ---")
				fmt.Fprintln(w, out.Raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&query, "query", pipelines.DefaultSupportQuery, "what support data to analyse")
	return cmd
}

// kickoff runs c, printing task progress and agent events.
func kickoff(cmd *cobra.Command, c *crew.Crew, inputs map[string]string) (*crew.CrewOutput, error) {
	printer := console.NewEventPrinter(cmd.OutOrStdout())
	return c.Kickoff(cmd.Context(), inputs,
		crew.WithEvents(printer.Sink()),
		crew.WithStepEvents(printer.Step))
}
