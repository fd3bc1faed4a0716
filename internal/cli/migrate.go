package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fastygo/dailyquest/internal/config"
	pgInfra "github.com/fastygo/dailyquest/internal/infrastructure/postgres"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back the store schema",
		Long: `Apply (up, the default) or roll back (down) the Postgres schema migrations.
With the mongo driver this creates the collection indexes instead.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(pgInfra.Up), string(pgInfra.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := pgInfra.Up
			if len(args) == 1 {
				direction = pgInfra.Direction(args[0])
			}
			if direction != pgInfra.Up && direction != pgInfra.Down {
				return fmt.Errorf("unknown direction %q: must be up or down", args[0])
			}

			cfg, log, err := rootOpts.env()
			if err != nil {
				return err
			}
			defer log.Sync()

			if path == "" {
				path = cfg.Migrations.Path
			}

			switch cfg.Store.Driver {
			case config.StorePostgres:
				if err := pgInfra.Migrate(cfg.Database, path, direction, log); err != nil {
					return err
				}
			case config.StoreMongo:
				if direction == pgInfra.Down {
					return fmt.Errorf("mongo indexes cannot be rolled back")
				}
				// opening the mongo store ensures its indexes
				cfg.Migrations.Enabled = false
				_, closeStore, err := rootOpts.openStore(cmd.Context(), cfg, log)
				if err != nil {
					return err
				}
				defer closeStore(cmd.Context())
			default:
				return fmt.Errorf("store driver %q has no schema", cfg.Store.Driver)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s migrations %s: ok\n", cfg.Store.Driver, direction)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "migrations directory (default MIGRATIONS_PATH)")
	return cmd
}
