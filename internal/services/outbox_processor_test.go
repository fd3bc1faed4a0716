package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/infrastructure/outbox"
)

type health bool

func (h health) IsOnline() bool { return bool(h) }

type flakyPublisher struct {
	mu        sync.Mutex
	err       error
	delivered []string
}

func (p *flakyPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.delivered = append(p.delivered, event.ID)
	return nil
}

func parkedStore(t *testing.T, n int) *outbox.Store {
	t.Helper()
	store, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "events", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	for i := 0; i < n; i++ {
		require.NoError(t, store.Put(outbox.NewEntry(domain.PointsUpdatedEvent("u1", i), errors.New("offline"))))
	}
	return store
}

func TestDrainDeliversParkedEvents(t *testing.T) {
	store := parkedStore(t, 3)
	pub := &flakyPublisher{}
	op := NewOutboxProcessor(store, health(true), pub, nil, nil, ProcessorConfig{BatchSize: 10})

	require.NoError(t, op.Drain(context.Background()))
	assert.Len(t, pub.delivered, 3)
	assert.Zero(t, op.Size())
}

func TestDrainSkipsWhileOffline(t *testing.T) {
	store := parkedStore(t, 2)
	pub := &flakyPublisher{}
	op := NewOutboxProcessor(store, health(false), pub, nil, nil, ProcessorConfig{})

	require.NoError(t, op.Drain(context.Background()))
	assert.Empty(t, pub.delivered)
	assert.Equal(t, 2, op.Size())
}

func TestDrainRetriesThenDrops(t *testing.T) {
	store := parkedStore(t, 1)
	pub := &flakyPublisher{err: errors.New("still down")}
	op := NewOutboxProcessor(store, nil, pub, nil, nil, ProcessorConfig{MaxRetries: 2})
	ctx := context.Background()

	require.NoError(t, op.Drain(ctx))
	entries, err := store.Batch(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Equal(t, "still down", entries[0].LastErr)

	require.NoError(t, op.Drain(ctx))
	assert.Zero(t, op.Size(), "dropped after max retries")
}

func TestProcessorStartStop(t *testing.T) {
	op := NewOutboxProcessor(parkedStore(t, 0), nil, &flakyPublisher{}, nil, nil, ProcessorConfig{Interval: time.Second})
	op.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	op.Stop(ctx)

	var nilProcessor *OutboxProcessor
	assert.NoError(t, nilProcessor.Drain(ctx))
	assert.Zero(t, nilProcessor.Size())
}
