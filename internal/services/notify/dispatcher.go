// Package notify carries engine events to the push transport without blocking the request
// that produced them.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/infrastructure/outbox"
	"github.com/fastygo/dailyquest/usecase"
)

// Parker keeps events the transport refused so they can be retried later.
type Parker interface {
	Put(entry outbox.Entry) error
}

// Observer counts delivery outcomes.
type Observer interface {
	EventDelivered(name, result string)
}

const (
	ResultPublished = "published"
	ResultParked    = "parked"
	ResultDropped   = "dropped"
)

type Config struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

// Dispatcher queues events in memory and publishes them from a fixed worker pool. Events that
// overflow the queue or fail to publish are parked in the outbox.
type Dispatcher struct {
	publisher Publisher
	parker    Parker
	observer  Observer
	logger    *zap.Logger
	cfg       Config

	queue   chan domain.Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool
}

func NewDispatcher(publisher Publisher, parker Parker, observer Observer, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		publisher: publisher,
		parker:    parker,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
		queue:     make(chan domain.Event, cfg.QueueSize),
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.logger.Info("event dispatcher started", zap.Int("workers", d.cfg.Workers))
}

// Emit enqueues an event; it never blocks on the transport.
func (d *Dispatcher) Emit(_ context.Context, event domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.park(event, errors.New("dispatcher stopped"))
		return
	}
	select {
	case d.queue <- event:
	default:
		d.park(event, errors.New("dispatch queue full"))
	}
}

// Stop drains the queue, waiting for in-flight deliveries until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for event := range d.queue {
			d.park(event, errors.New("dispatcher stopped"))
		}
		return
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("event dispatcher stopped before draining")
	}
	d.logger.Info("event dispatcher stopped")
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn("event publish failed",
			zap.String("event_id", event.ID),
			zap.String("event", event.Name),
			zap.Error(err))
		d.park(event, err)
		return
	}
	d.observe(event.Name, ResultPublished)
}

func (d *Dispatcher) park(event domain.Event, cause error) {
	if d.parker == nil {
		d.logger.Warn("event dropped", zap.String("event", event.Name), zap.Error(cause))
		d.observe(event.Name, ResultDropped)
		return
	}
	if err := d.parker.Put(outbox.NewEntry(event, cause)); err != nil {
		d.logger.Error("event dropped, outbox unavailable",
			zap.String("event_id", event.ID),
			zap.String("event", event.Name),
			zap.Error(err))
		d.observe(event.Name, ResultDropped)
		return
	}
	d.observe(event.Name, ResultParked)
}

func (d *Dispatcher) observe(name, result string) {
	if d.observer != nil {
		d.observer.EventDelivered(name, result)
	}
}

var _ usecase.Notifier = (*Dispatcher)(nil)
