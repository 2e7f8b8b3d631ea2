package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/KamdynS/agentflows/console"
	"github.com/KamdynS/agentflows/pipelines"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newChatCmd(a *app) *cobra.Command {
	var (
		opts      pipelines.AssistantOptions
		stateFile string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the web search assistant",
		Long: "Chat with the web search assistant. Type quit, exit or bye to leave.\n" +
			"With --memory the conversation is restored from and saved to the state file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(rt *pipelines.Runtime) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				log := rt.Telemetry.Logger
				if verbose {
					opts.Events = console.NewEventPrinter(out).Sink()
				}
				if stateFile == "" && rt.Config != nil {
					stateFile = rt.Config.StateFile
				}

				assistant, err := pipelines.NewAssistant(rt, opts)
				if err != nil {
					return err
				}
				if opts.Memory {
					n, err := assistant.RestoreState(ctx, stateFile)
					switch {
					case errors.Is(err, fs.ErrNotExist):
					case err != nil:
						log.Warn("could not restore state", zap.String("path", stateFile), zap.Error(err))
					case n > 0:
						log.Info("restored conversation", zap.String("path", stateFile), zap.Int("messages", n))
					}
				}

				repl := &console.REPL{Agent: assistant, Logger: log}
				runErr := repl.Run(ctx, cmd.InOrStdin(), out)

				if opts.Memory {
					if err := assistant.SaveState(context.WithoutCancel(ctx), stateFile); err != nil {
						fmt.Fprintf(out, "Error saving state: %v\n", err)
					} else {
						fmt.Fprintf(out, "Agent state saved to %s\n", stateFile)
					}
				}
				if errors.Is(runErr, context.Canceled) {
					return nil
				}
				return runErr
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.Memory, "memory", false, "remember the conversation across turns and runs")
	f.StringVar(&stateFile, "state-file", "", "state file for --memory (default AGENT_STATE_FILE)")
	f.StringVar(&opts.SessionID, "session", "", "resume a stored session id")
	f.IntVar(&opts.HistoryTokens, "history-tokens", 0, "trim remembered history to this many tokens (0 keeps all)")
	f.BoolVar(&opts.Browse, "browse", false, "let the assistant read result pages")
	f.BoolVarP(&verbose, "verbose", "v", false, "print agent events")
	return cmd
}
