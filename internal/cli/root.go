// Package cli implements hajjctl, the operator command line: ask the
// assistant from a terminal, print registry statistics and maintain the
// activity registry.
package cli

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"hajj-assistant/internal/app"
	"hajj-assistant/internal/common/config"
	"hajj-assistant/internal/common/logger"
)

// Execute runs the root command; Ctrl-C cancels the running turn.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRoot().ExecuteContext(ctx)
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func NewRoot() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "hajjctl",
		Short:         "Hajj agency verification assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default configs/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(
		AskCmd(opts),
		ReplCmd(opts),
		StatsCmd(opts),
		RegistryCmd(),
	)
	return root
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromFile(o.configPath)
	}
	return config.Load()
}

func (o *rootOptions) logger() logger.Logger {
	return logger.NewZapAdapter(logger.NewWithOptions(logger.Options{
		Level:  o.logLevel,
		Format: "console",
		Output: "stderr",
	}))
}

// build wires the assistant with a single connection attempt; a CLI
// should fail fast.
func (o *rootOptions) build(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, nil, o.logger(), app.Options{ConnectAttempts: 1, ConnectDelay: time.Second})
}
