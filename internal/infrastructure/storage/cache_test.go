package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dailyquest/usecase"
)

type countingStore struct {
	calls    int
	released []string
}

func (s *countingStore) Save(context.Context, string, usecase.Proof) (string, error) {
	return "ref", nil
}

func (s *countingStore) Release(_ context.Context, ref string) error {
	s.released = append(s.released, ref)
	return nil
}

func (s *countingStore) URL(_ context.Context, ref string) (string, error) {
	s.calls++
	return fmt.Sprintf("https://signed/%s?v=%d", ref, s.calls), nil
}

func TestURLCacheExpires(t *testing.T) {
	inner := &countingStore{}
	cache, err := NewURLCache(inner, 8, time.Minute)
	require.NoError(t, err)
	now := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := cache.URL(ctx, "a")
	require.NoError(t, err)
	second, err := cache.URL(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	now = now.Add(2 * time.Minute)
	third, err := cache.URL(ctx, "a")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, 2, inner.calls)
}

func TestURLCacheReleaseEvicts(t *testing.T) {
	inner := &countingStore{}
	cache, err := NewURLCache(inner, 8, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cache.URL(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, cache.Release(ctx, "a"))
	assert.Equal(t, []string{"a"}, inner.released)
	assert.Zero(t, cache.Len())
}

func TestURLCacheIsBounded(t *testing.T) {
	cache, err := NewURLCache(&countingStore{}, 2, time.Hour)
	require.NoError(t, err)
	for _, ref := range []string{"a", "b", "c"} {
		_, err := cache.URL(context.Background(), ref)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
}
