package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/config"
	redisInfra "github.com/fastygo/dailyquest/internal/infrastructure/redis"
	"github.com/fastygo/dailyquest/internal/services/notify"
	"github.com/fastygo/dailyquest/repository"
	settlementUC "github.com/fastygo/dailyquest/usecase/settlement"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Settle attempts that reached the threshold but were never credited",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd.Context(), func(cfg *config.Config, store repository.Store, log *zap.Logger) error {
				var publisher notify.Publisher = notify.NewLogPublisher(log)
				if publish && cfg.Notify.Enabled {
					client, err := redisInfra.NewClient(cmd.Context(), cfg.Redis, log)
					if err != nil {
						return fmt.Errorf("redis: %w", err)
					}
					defer client.Close()
					publisher = notify.NewRedisPublisher(client, cfg.Notify.Channel)
				}

				settlement := settlementUC.New(
					store.Users(),
					store.Attempts(),
					notify.NewDirect(publisher, log),
					nil,
					domain.SystemClock{Location: cfg.Rules.Location},
					cfg.Rules.Domain(),
					log,
				)
				settled, err := settlement.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d attempts settled\n", settled)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", true, "publish resulting events to the notification channel")
	return cmd
}
