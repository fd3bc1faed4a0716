// Package cli implements questctl, the operator command line for the quest engine.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/internal/bootstrap"
	"github.com/fastygo/dailyquest/internal/config"
	"github.com/fastygo/dailyquest/pkg/logger"
	"github.com/fastygo/dailyquest/repository"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	Driver   string

	loadConfig func() (*config.Config, error)
	openStore  func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, bootstrap.CloseFunc, error)
}

// NewRootCommand creates the questctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		loadConfig: config.Load,
		openStore:  bootstrap.OpenStore,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questctl",
		Short: "Operate the daily quest engine",
		Long: `questctl runs maintenance tasks against the configured quest store:
schema migrations, catalog seeding and settlement sweeps.

Connection settings are read from the environment (and .env) like the server.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "store", "", "override STORE_DRIVER (memory|postgres|mongo)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))

	return cmd
}

// env loads configuration and a console logger honoring the global flags.
func (o *RootOptions) env() (*config.Config, *zap.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if o.Driver != "" {
		cfg.Store.Driver = o.Driver
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	log, err := logger.New(logger.Config{Level: o.LogLevel, Encoding: "console", Service: "questctl"})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// withStore opens the configured store for the duration of fn.
func (o *RootOptions) withStore(ctx context.Context, fn func(*config.Config, repository.Store, *zap.Logger) error) error {
	cfg, log, err := o.env()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, closeStore, err := o.openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		if err := closeStore(context.Background()); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}()
	return fn(cfg, store, log)
}
