package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/matchboard/internal/app"
	"github.com/kjstillabower/matchboard/internal/config"
	"github.com/kjstillabower/matchboard/internal/observability"
)

type rootOptions struct {
	root string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "matchboard",
		Short: "Upcoming football matches for São Paulo clubs and the Seleção",
		Long: `matchboard lists upcoming fixtures found by a search-grounded generative
model. Results are cached for six hours; when the provider is unavailable the
last saved schedule (or a set of example matches) is shown with a warning.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.root, "root", ".", "project root containing .env and config/")

	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newCacheCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// env is the per-invocation wiring. Close must be called when done.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	app    *app.App
}

func (o *rootOptions) open(ctx context.Context) (*env, error) {
	logger, err := observability.NewConsoleLogger()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	cfg, err := config.LoadFrom(o.root)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, app: a}, nil
}

func (e *env) Close() {
	if err := e.app.Close(); err != nil {
		e.logger.Warn("cache store close", zap.Error(err))
	}
	_ = observability.FlushTelemetry(context.Background(), e.logger)
}
