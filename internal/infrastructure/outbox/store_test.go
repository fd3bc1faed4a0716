package outbox

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dailyquest/domain"
)

func openTemp(t *testing.T, maxSize int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "outbox.db"), "events", maxSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutOrdersByPriority(t *testing.T) {
	store := openTemp(t, 0)

	validated := domain.QuestValidatedEvent(&domain.Attempt{ID: "a1", Status: domain.StatusSubmitted}, "v1")
	points := domain.PointsUpdatedEvent("u1", 10)

	require.NoError(t, store.Put(NewEntry(validated, errors.New("redis down"))))
	require.NoError(t, store.Put(NewEntry(points, nil)))

	entries, err := store.Batch(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EventPointsUpdated, entries[0].Event.Name)
	assert.Equal(t, PriorityHigh, entries[0].Priority)
	assert.Equal(t, domain.EventQuestValidated, entries[1].Event.Name)
	assert.Equal(t, "redis down", entries[1].LastErr)
	assert.JSONEq(t, string(validated.Payload), string(entries[1].Event.Payload))
}

func TestAckAndRetry(t *testing.T) {
	store := openTemp(t, 0)
	require.NoError(t, store.Put(NewEntry(domain.PointsUpdatedEvent("u1", 1), nil)))
	require.NoError(t, store.Put(NewEntry(domain.PointsUpdatedEvent("u2", 2), nil)))

	entries, err := store.Batch(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, store.Retry(entries[0], errors.New("timeout")))
	size, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, size, "retry replaces the entry")

	entries, err = store.Batch(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].Attempts)
	assert.Equal(t, 1, entries[1].Attempts, "retried entry moves to the back of its band")
	assert.Equal(t, "timeout", entries[1].LastErr)

	require.NoError(t, store.Ack(entries[0]))
	require.NoError(t, store.Ack(entries[1]))
	size, err = store.Len()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestPutRespectsMaxSize(t *testing.T) {
	store := openTemp(t, 1)
	require.NoError(t, store.Put(NewEntry(domain.PointsUpdatedEvent("u1", 1), nil)))
	err := store.Put(NewEntry(domain.PointsUpdatedEvent("u2", 2), nil))
	assert.ErrorIs(t, err, ErrFull)
}

func TestPrune(t *testing.T) {
	store := openTemp(t, 0)

	old := NewEntry(domain.PointsUpdatedEvent("u1", 1), nil)
	old.ParkedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.Put(old))
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Put(NewEntry(domain.PointsUpdatedEvent("u2", i), nil)))
	}

	pruned, err := store.Prune(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	size, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")
	store, err := Open(path, "", 0)
	require.NoError(t, err)
	require.NoError(t, store.Put(NewEntry(domain.PointsUpdatedEvent("u1", 1), nil)))
	require.NoError(t, store.Close())

	store, err = Open(path, "", 0)
	require.NoError(t, err)
	defer store.Close()
	size, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestNilStore(t *testing.T) {
	var store *Store
	_, err := store.Len()
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
