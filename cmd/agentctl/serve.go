package main

import (
	"time"

	"github.com/KamdynS/agentflows/agent/core"
	"github.com/KamdynS/agentflows/observability/prom"
	"github.com/KamdynS/agentflows/pipelines"
	agenthttp "github.com/KamdynS/agentflows/server/http"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve chat, pipeline runs, metrics and workflow diagrams over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(rt *pipelines.Runtime) error {
				srv := newServer(rt, port, timeout)
				return srv.ListenAndServe(cmd.Context())
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default HTTP_PORT)")
	cmd.Flags().DurationVar(&timeout, "write-timeout", 5*time.Minute, "response write timeout; pipeline runs are slow")
	return cmd
}

// newServer wires rt into the HTTP server. Chat requests with a session id
// get an assistant that remembers the session.
func newServer(rt *pipelines.Runtime, port int, timeout time.Duration) *agenthttp.Server {
	if port == 0 && rt.Config != nil {
		port = rt.Config.HTTPPort
	}
	sessions := func(id string, events core.EventSink) (core.Agent, error) {
		return pipelines.NewAssistant(rt, pipelines.AssistantOptions{
			Memory:    id != "",
			SessionID: id,
			Events:    events,
		})
	}
	opts := []agenthttp.Option{
		agenthttp.WithTelemetry(rt.Telemetry),
		agenthttp.WithSessions(sessions),
		agenthttp.WithPipelines(rt),
		agenthttp.WithWorkflows(rt.Workflows),
	}
	if rt.Metrics != nil {
		opts = append(opts, agenthttp.WithMetrics(prom.Handler(rt.Metrics)))
	}
	return agenthttp.NewServer(nil, agenthttp.Config{Port: port, WriteTimeout: timeout}, opts...)
}
