// Package testutil holds fixtures shared by the engine's tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

// Clock is a settable domain.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Noon is a fixed mid-day instant in UTC.
func Noon() time.Time {
	return time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)
}

// SeedQuests stores n active quests q1..qn worth points each.
func SeedQuests(t testing.TB, quests repository.QuestRepository, n, points int) []domain.Quest {
	t.Helper()
	out := make([]domain.Quest, 0, n)
	for i := 1; i <= n; i++ {
		q := domain.Quest{
			ID:       fmt.Sprintf("q%d", i),
			Title:    fmt.Sprintf("Quest %d", i),
			Points:   points,
			IsActive: true,
		}
		require.NoError(t, quests.Create(context.Background(), &q))
		out = append(out, q)
	}
	return out
}

// SubmittedAttempt stores an attempt of ownerID already in submitted state.
func SubmittedAttempt(t testing.TB, attempts repository.AttemptRepository, ownerID string, quest domain.Quest, now time.Time) *domain.Attempt {
	t.Helper()
	a := domain.NewAttempt(ownerID, quest, domain.DayOf(now), 0, now)
	a.Status = domain.StatusSubmitted
	a.ProofImage = ownerID + "/proof.jpg"
	end := now
	a.EndDate = &end
	require.NoError(t, attempts.Create(context.Background(), a))
	return a
}

// Events records emitted events.
type Events struct {
	mu     sync.Mutex
	events []domain.Event
}

func (e *Events) Emit(_ context.Context, event domain.Event) {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
}

func (e *Events) All() []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Event(nil), e.events...)
}

// Named returns the emitted events with the given name.
func (e *Events) Named(name string) []domain.Event {
	var out []domain.Event
	for _, ev := range e.All() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
