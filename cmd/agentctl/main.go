// Command agentctl runs the agentflows pipelines from the terminal and
// serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KamdynS/agentflows/config"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/pipelines"
	"github.com/spf13/cobra"
)

const version = "v0.2.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds the global flags and how commands obtain a Runtime.
type app struct {
	logLevel string
	dev      bool

	// newRuntime is replaced in tests.
	newRuntime func(ctx context.Context) (*pipelines.Runtime, error)
}

func (a *app) runtime(ctx context.Context) (*pipelines.Runtime, error) {
	if a.newRuntime != nil {
		return a.newRuntime(ctx)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger, err := obs.NewLogger(level, a.dev)
	if err != nil {
		return nil, err
	}
	return pipelines.NewRuntime(ctx, cfg, logger)
}

// withRuntime runs fn with a Runtime and closes it afterwards.
func (a *app) withRuntime(cmd *cobra.Command, fn func(rt *pipelines.Runtime) error) error {
	rt, err := a.runtime(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(context.Background()); cerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close: %v\n", cerr)
		}
	}()
	return fn(rt)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "agentctl",
		Short:        "Run agent pipelines: search chat, research hand-off, blog and support crews",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&a.dev, "dev", false, "human-readable development logs")

	root.AddCommand(
		newChatCmd(a),
		newResearchCmd(a),
		newBlogCmd(a),
		newSupportCmd(a),
		newServeCmd(a),
		newGraphCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentctl version %s\n", version)
		},
	}
}
