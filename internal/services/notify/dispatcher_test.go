package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/infrastructure/outbox"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
	block  chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.Event) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

type memoryParker struct {
	mu      sync.Mutex
	entries []outbox.Entry
	err     error
}

func (p *memoryParker) Put(entry outbox.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.entries = append(p.entries, entry)
	return nil
}

func (p *memoryParker) parked() []outbox.Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]outbox.Entry(nil), p.entries...)
}

type results struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *results) EventDelivered(_, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[result]++
}

func (r *results) get(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[result]
}

func TestDispatcherPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	obs := &results{}
	d := NewDispatcher(pub, &memoryParker{}, obs, Config{Workers: 2}, nil)
	d.Start()

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), domain.PointsUpdatedEvent("u1", i))
	}
	d.Stop(context.Background())

	assert.Len(t, pub.published(), 5)
	assert.Equal(t, 5, obs.get(ResultPublished))
}

func TestDispatcherParksFailedDeliveries(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis: connection refused")}
	parker := &memoryParker{}
	obs := &results{}
	d := NewDispatcher(pub, parker, obs, Config{Workers: 1}, nil)
	d.Start()

	event := domain.PointsUpdatedEvent("u1", 3)
	d.Emit(context.Background(), event)
	d.Stop(context.Background())

	parked := parker.parked()
	require.Len(t, parked, 1)
	assert.Equal(t, event.ID, parked[0].Event.ID)
	assert.Equal(t, "redis: connection refused", parked[0].LastErr)
	assert.Equal(t, 1, obs.get(ResultParked))
}

func TestDispatcherParksOverflow(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	parker := &memoryParker{}
	d := NewDispatcher(pub, parker, nil, Config{QueueSize: 1, Workers: 1, PublishTimeout: time.Second}, nil)

	// not started: the queue holds one event, the rest overflow
	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), domain.PointsUpdatedEvent("u1", i))
	}
	assert.Len(t, parker.parked(), 2)
	for _, entry := range parker.parked() {
		assert.Equal(t, "dispatch queue full", entry.LastErr)
	}

	d.Stop(context.Background())
	assert.Len(t, parker.parked(), 3, "queued events are parked when the dispatcher never ran")
	assert.Empty(t, pub.published())
}

func TestDispatcherAfterStop(t *testing.T) {
	parker := &memoryParker{}
	d := NewDispatcher(&recordingPublisher{}, parker, nil, Config{}, nil)
	d.Start()
	d.Stop(context.Background())
	d.Stop(context.Background())

	d.Emit(context.Background(), domain.PointsUpdatedEvent("u1", 1))
	require.Len(t, parker.parked(), 1)
	assert.Equal(t, "dispatcher stopped", parker.parked()[0].LastErr)
}

func TestDispatcherDropsWhenOutboxUnavailable(t *testing.T) {
	obs := &results{}
	parker := &memoryParker{err: outbox.ErrFull}
	d := NewDispatcher(&recordingPublisher{err: errors.New("down")}, parker, obs, Config{Workers: 1}, nil)
	d.Start()
	d.Emit(context.Background(), domain.PointsUpdatedEvent("u1", 1))
	d.Stop(context.Background())

	assert.Equal(t, 1, obs.get(ResultDropped))
}

func TestDirectEmitsSynchronously(t *testing.T) {
	pub := &recordingPublisher{}
	NewDirect(pub, nil).Emit(context.Background(), domain.PointsUpdatedEvent("u1", 2))
	assert.Len(t, pub.published(), 1)

	failing := &recordingPublisher{err: errors.New("down")}
	NewDirect(failing, nil).Emit(context.Background(), domain.PointsUpdatedEvent("u1", 2))
	assert.Empty(t, failing.published())
}

func TestLogPublisherNeverFails(t *testing.T) {
	assert.NoError(t, NewLogPublisher(nil).Publish(context.Background(), domain.PointsUpdatedEvent("u1", 2)))
}
