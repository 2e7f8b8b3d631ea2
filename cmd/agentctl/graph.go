package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/KamdynS/agentflows/pipelines"
	"github.com/KamdynS/agentflows/workflow"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	var (
		name  string
		host  string
		dir   string
		conds bool
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print a pipeline as a Mermaid flowchart",
		Long: "Print a pipeline as a Mermaid flowchart. Without --host the built-in\n" +
			"pipelines are drawn locally; with --host the diagram comes from a running server.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				out string
				err error
			)
			if host != "" {
				out, err = remoteMermaid(host, name, dir, conds)
			} else {
				out, err = localMermaid(name, dir, conds)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "workflow name (research, blog, support)")
	f.StringVar(&host, "host", "", "host:port of a running server")
	f.StringVar(&dir, "dir", "", "Mermaid direction (TD, LR, BT, RL)")
	f.BoolVar(&conds, "conds", false, "show generic condition indicators on edges")
	cmd.MarkFlagRequired("name")
	return cmd
}

func localMermaid(name, dir string, conds bool) (string, error) {
	reg := workflow.NewRegistry()
	if err := pipelines.RegisterDiagrams(reg); err != nil {
		return "", err
	}
	var opts []workflow.MermaidOption
	if dir != "" {
		opts = append(opts, workflow.WithDirection(dir))
	}
	if conds {
		opts = append(opts, workflow.WithConditionIndicators(true))
	}
	return reg.Mermaid(name, opts...)
}

func remoteMermaid(host, name, dir string, conds bool) (string, error) {
	q := url.Values{"name": {name}}
	if dir != "" {
		q.Set("dir", dir)
	}
	if conds {
		q.Set("conds", "true")
	}
	u := url.URL{Scheme: "http", Host: host, Path: "/debug/workflows/mermaid", RawQuery: q.Encode()}
	resp, err := http.Get(u.String())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, b)
	}
	return string(b), nil
}
