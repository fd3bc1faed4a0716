package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper is the reconciliation step run on a schedule.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SettlementSweeper periodically settles attempts whose deciding vote could not settle them.
type SettlementSweeper struct {
	sweeper Sweeper
	logger  *zap.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewSettlementSweeper schedules sweeps with a standard five-field cron expression such as "*/5 * * * *".
func NewSettlementSweeper(sweeper Sweeper, schedule string, timeout time.Duration, logger *zap.Logger) (*SettlementSweeper, error) {
	if schedule == "" {
		schedule = "*/5 * * * *"
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SettlementSweeper{
		sweeper: sweeper,
		logger:  logger,
		cron:    cron.New(),
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SettlementSweeper) Start() {
	s.cron.Start()
	s.logger.Info("settlement sweeper started")
}

func (s *SettlementSweeper) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("settlement sweeper stopped")
}

func (s *SettlementSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	settled, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("settlement sweep failed", zap.Error(err))
		return
	}
	if settled > 0 {
		s.logger.Info("settlement sweep recovered attempts", zap.Int("settled", settled))
	}
}
