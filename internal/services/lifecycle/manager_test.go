package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	for _, name := range []string{"store", "outbox", "http"} {
		name := name
		m.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "outbox", "store"}, order)

	require.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
	assert.Len(t, order, 3)
}

func TestShutdownJoinsErrors(t *testing.T) {
	m := New(time.Second, nil)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := false
	m.Register("a", func(context.Context) error { return errA })
	m.Register("ok", func(context.Context) error { ran = true; return nil })
	m.Register("b", func(context.Context) error { return errB })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, ran, "a failing hook does not stop the others")
}

func TestShutdownAppliesTimeout(t *testing.T) {
	m := New(20*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegisterAfterShutdownIgnored(t *testing.T) {
	m := New(time.Second, nil)
	require.NoError(t, m.Shutdown(context.Background()))

	called := false
	m.Register("late", func(context.Context) error { called = true; return nil })
	m.Register("nil", nil)
	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, called)
}
