package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/internal/infrastructure/outbox"
	"github.com/fastygo/dailyquest/internal/services/notify"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the outbox is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// OutboxProcessor redelivers parked events once the transport is reachable again.
type OutboxProcessor struct {
	store     *outbox.Store
	monitor   ConnectionHealth
	publisher notify.Publisher
	observer  notify.Observer
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       ProcessorConfig
}

func NewOutboxProcessor(
	store *outbox.Store,
	monitor ConnectionHealth,
	publisher notify.Publisher,
	observer notify.Observer,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *OutboxProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	op := &OutboxProcessor{
		store:     store,
		monitor:   monitor,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = op.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := op.Drain(ctx); err != nil {
			op.logger.Error("outbox drain failed", zap.Error(err))
		}
	})
	_, _ = op.cron.AddFunc("@hourly", func() {
		pruned, err := op.store.Prune(time.Now().Add(-op.cfg.Retention))
		if err != nil {
			op.logger.Error("outbox prune failed", zap.Error(err))
			return
		}
		if pruned > 0 {
			op.logger.Warn("expired events pruned from outbox", zap.Int("count", pruned))
		}
	})

	return op
}

// Start launches the cron scheduler.
func (op *OutboxProcessor) Start() {
	if op == nil || op.cron == nil {
		return
	}
	op.cron.Start()
	op.logger.Info("outbox processor started")
}

// Stop gracefully stops the scheduler.
func (op *OutboxProcessor) Stop(ctx context.Context) {
	if op == nil || op.cron == nil {
		return
	}
	stopCtx := op.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	op.logger.Info("outbox processor stopped")
}

// Drain publishes one batch of parked events synchronously.
func (op *OutboxProcessor) Drain(ctx context.Context) error {
	if op == nil || op.store == nil {
		return nil
	}
	if op.monitor != nil && !op.monitor.IsOnline() {
		op.logger.Debug("skipping outbox drain (offline)")
		return nil
	}

	entries, err := op.store.Batch(op.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := op.publisher.Publish(ctx, entry.Event); err != nil {
			op.logger.Warn("parked event publish failed",
				zap.String("event_id", entry.Event.ID),
				zap.String("event", entry.Event.Name),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err))

			if entry.Attempts+1 >= op.cfg.MaxRetries {
				op.logger.Warn("dropping parked event (max retries reached)", zap.String("event_id", entry.Event.ID))
				if err := op.store.Ack(entry); err != nil {
					op.logger.Warn("failed to remove parked event", zap.Error(err))
				}
				op.observe(entry.Event.Name, notify.ResultDropped)
				continue
			}
			if err := op.store.Retry(entry, err); err != nil {
				op.logger.Error("failed to requeue parked event", zap.Error(err))
			}
			continue
		}

		if err := op.store.Ack(entry); err != nil {
			op.logger.Warn("failed to purge delivered event", zap.Error(err))
		}
		op.observe(entry.Event.Name, notify.ResultPublished)
	}
	return nil
}

// Size returns the number of parked events.
func (op *OutboxProcessor) Size() int {
	if op == nil || op.store == nil {
		return 0
	}
	size, err := op.store.Len()
	if err != nil {
		return 0
	}
	return size
}

func (op *OutboxProcessor) observe(name, result string) {
	if op.observer != nil {
		op.observer.EventDelivered(name, result)
	}
}
