// Package storetest holds the behavior every repository.Store backend must share. Backends
// call Run from their own tests with a constructor that yields an empty store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/testutil"
	"github.com/fastygo/dailyquest/repository"
)

// Opener returns an empty store; it registers its own cleanup on t.
type Opener func(t *testing.T) repository.Store

// Run exercises the conditional writes of a backend.
func Run(t *testing.T, open Opener) {
	cases := []struct {
		name string
		run  func(t *testing.T, store repository.Store)
	}{
		{"AddValidationGuards", addValidationGuards},
		{"AddValidationPromotesAtThreshold", addValidationPromotesAtThreshold},
		{"ConcurrentVotesStopAtThreshold", concurrentVotesStopAtThreshold},
		{"MarkValidatedHasOneWinner", markValidatedHasOneWinner},
		{"MarkSettledOnce", markSettledOnce},
		{"SettlementBacklog", settlementBacklog},
		{"DeleteStaleHonorsDay", deleteStaleHonorsDay},
		{"ClaimVoteCapBonusAndRollover", claimVoteCapBonusAndRollover},
		{"ConcurrentClaimsStopAtLimit", concurrentClaimsStopAtLimit},
		{"SettleOncePerAttempt", settleOncePerAttempt},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.run(t, open(t))
		})
	}
}

func ensureUsers(t *testing.T, store repository.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.Users().Ensure(context.Background(), &domain.User{ID: id}))
	}
}

// submitted stores a submitted attempt for each owner, creating owners and one quest first.
func submitted(t *testing.T, store repository.Store, owners ...string) []*domain.Attempt {
	t.Helper()
	ensureUsers(t, store, owners...)
	quest := testutil.SeedQuests(t, store.Quests(), 1, 3)[0]
	out := make([]*domain.Attempt, 0, len(owners))
	for _, owner := range owners {
		out = append(out, testutil.SubmittedAttempt(t, store.Attempts(), owner, quest, testutil.Noon()))
	}
	return out
}

// seededQuest returns the quest stored by submitted.
func seededQuest(t *testing.T, store repository.Store) domain.Quest {
	t.Helper()
	q, err := store.Quests().GetByID(context.Background(), "q1")
	require.NoError(t, err)
	return *q
}

func vote(t *testing.T, store repository.Store, id string, threshold int, voters ...string) *domain.Attempt {
	t.Helper()
	var last *domain.Attempt
	for _, v := range voters {
		updated, err := store.Attempts().AddValidation(context.Background(), id, v, threshold, testutil.Noon())
		require.NoError(t, err)
		last = updated
	}
	return last
}

func addValidationGuards(t *testing.T, store repository.Store) {
	ctx := context.Background()
	attempts := store.Attempts()
	now := testutil.Noon()
	a := submitted(t, store, "owner")[0]

	_, err := attempts.AddValidation(ctx, a.ID, "owner", 5, now)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed, "self vote")

	updated, err := attempts.AddValidation(ctx, a.ID, "v1", 5, now)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ValidationCount)
	assert.Equal(t, []string{"v1"}, updated.ValidatedBy)
	assert.Equal(t, domain.StatusSubmitted, updated.Status)

	_, err = attempts.AddValidation(ctx, a.ID, "v1", 5, now)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed, "duplicate vote")

	_, err = attempts.AddValidation(ctx, "missing", "v1", 5, now)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)

	ensureUsers(t, store, "u2")
	open := domain.NewAttempt("u2", seededQuest(t, store), domain.DayOf(now), 0, now)
	require.NoError(t, attempts.Create(ctx, open))
	_, err = attempts.AddValidation(ctx, open.ID, "v1", 5, now)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed, "not submitted")

	stored, err := attempts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ValidationCount)
	assert.Len(t, stored.ValidatedBy, stored.ValidationCount)
}

func addValidationPromotesAtThreshold(t *testing.T, store repository.Store) {
	ctx := context.Background()
	a := submitted(t, store, "owner")[0]

	below := vote(t, store, a.ID, 3, "v1", "v2")
	assert.Equal(t, domain.StatusSubmitted, below.Status)

	deciding := vote(t, store, a.ID, 3, "v3")
	assert.Equal(t, domain.StatusValidated, deciding.Status)
	assert.Equal(t, 3, deciding.ValidationCount)
	assert.False(t, deciding.Settled())

	_, err := store.Attempts().AddValidation(ctx, a.ID, "v4", 3, testutil.Noon())
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed, "closed once validated")

	stored, err := store.Attempts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ValidationCount)
	assert.Equal(t, []string{"v1", "v2", "v3"}, stored.ValidatedBy)
}

func concurrentVotesStopAtThreshold(t *testing.T, store repository.Store) {
	ctx := context.Background()
	a := submitted(t, store, "owner")[0]
	const threshold = 5

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		deciding int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			updated, err := store.Attempts().AddValidation(ctx, a.ID, voter, threshold, testutil.Noon())
			if err != nil {
				assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			accepted++
			if updated.Status == domain.StatusValidated {
				deciding++
			}
		}(fmt.Sprintf("v%d", i))
	}
	wg.Wait()

	assert.Equal(t, threshold, accepted)
	assert.Equal(t, 1, deciding)

	stored, err := store.Attempts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidated, stored.Status)
	assert.Equal(t, threshold, stored.ValidationCount)
	assert.Len(t, stored.ValidatedBy, threshold)
}

func markValidatedHasOneWinner(t *testing.T, store repository.Store) {
	ctx := context.Background()
	attempts := store.Attempts()
	now := testutil.Noon()
	a := submitted(t, store, "owner")[0]

	_, err := attempts.MarkValidated(ctx, a.ID, 2, now)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed, "below threshold")

	// votes recorded under a higher threshold leave the attempt submitted
	vote(t, store, a.ID, 10, "v1", "v2")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := attempts.MarkValidated(ctx, a.ID, 2, now); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func markSettledOnce(t *testing.T, store repository.Store) {
	ctx := context.Background()
	attempts := store.Attempts()
	now := testutil.Noon()
	a := submitted(t, store, "owner")[0]

	_, err := attempts.MarkSettled(ctx, a.ID, now)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed, "not validated yet")

	vote(t, store, a.ID, 1, "v1")

	settled, err := attempts.MarkSettled(ctx, a.ID, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, settled.Settled())
	assert.WithinDuration(t, now.Add(time.Minute), *settled.SettledAt, time.Second)

	_, err = attempts.MarkSettled(ctx, a.ID, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
}

func settlementBacklog(t *testing.T, store repository.Store) {
	ctx := context.Background()
	attempts := store.Attempts()
	list := submitted(t, store, "o1", "o2", "o3", "o4")
	enough, unsettled, settled, short := list[0], list[1], list[2], list[3]

	vote(t, store, enough.ID, 10, "v1", "v2")
	vote(t, store, unsettled.ID, 1, "v1")
	vote(t, store, settled.ID, 1, "v1")
	_, err := attempts.MarkSettled(ctx, settled.ID, testutil.Noon())
	require.NoError(t, err)
	vote(t, store, short.ID, 10, "v1")

	backlog, err := attempts.ListSettlementBacklog(ctx, 2, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(backlog))
	for _, a := range backlog {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{enough.ID, unsettled.ID}, ids)
}

func deleteStaleHonorsDay(t *testing.T, store repository.Store) {
	ctx := context.Background()
	attempts := store.Attempts()
	now := testutil.Noon()
	yesterday := now.Add(-24 * time.Hour)
	today := domain.DayOf(now)
	ensureUsers(t, store, "u1")
	quests := testutil.SeedQuests(t, store.Quests(), 1, 1)

	create := func(at time.Time, slot int) *domain.Attempt {
		a := domain.NewAttempt("u1", quests[0], domain.DayOf(at), slot, at)
		require.NoError(t, attempts.Create(ctx, a))
		return a
	}
	old := create(yesterday, 0)
	restarted := create(yesterday, 1)
	current := create(now, 0)
	finished := create(yesterday, 2)

	_, err := attempts.MarkStarted(ctx, restarted.ID, "u1", now)
	require.NoError(t, err)
	_, err = attempts.MarkStarted(ctx, finished.ID, "u1", yesterday)
	require.NoError(t, err)
	_, err = attempts.MarkSubmitted(ctx, finished.ID, "u1", "u1/p.jpg", yesterday)
	require.NoError(t, err)

	for _, a := range []*domain.Attempt{restarted, current, finished} {
		deleted, err := attempts.DeleteStale(ctx, a.ID, today)
		require.NoError(t, err)
		assert.False(t, deleted, a.ID)
	}

	deleted, err := attempts.DeleteStale(ctx, old.ID, today)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = attempts.GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)

	deleted, err = attempts.DeleteStale(ctx, old.ID, today)
	require.NoError(t, err)
	assert.False(t, deleted, "already gone")
}

func claimVoteCapBonusAndRollover(t *testing.T, store repository.Store) {
	ctx := context.Background()
	users := store.Users()
	ensureUsers(t, store, "v")
	now := testutil.Noon()
	day := domain.DayOf(now)

	var last domain.VoteGrant
	for i := 1; i <= 3; i++ {
		grant, err := users.ClaimVote(ctx, "v", day, now, 3, 1)
		require.NoError(t, err)
		assert.Equal(t, i, grant.DailyCount)
		assert.Equal(t, i == 3, grant.Bonus)
		last = grant
	}
	assert.Equal(t, 1, last.Points)

	_, err := users.ClaimVote(ctx, "v", day, now, 3, 1)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)

	_, err = users.ClaimVote(ctx, "ghost", day, now, 3, 1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	tomorrow := now.Add(24 * time.Hour)
	grant, err := users.ClaimVote(ctx, "v", domain.DayOf(tomorrow), tomorrow, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, grant.DailyCount, "counter resets on a new day")
	assert.False(t, grant.Bonus)
	assert.Equal(t, 1, grant.Points)
}

func concurrentClaimsStopAtLimit(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ensureUsers(t, store, "v")
	now := testutil.Noon()
	day := domain.DayOf(now)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		bonuses int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			grant, err := store.Users().ClaimVote(ctx, "v", day, now, 3, 2)
			if err != nil {
				assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			granted++
			if grant.Bonus {
				bonuses++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
	assert.Equal(t, 1, bonuses)
	u, err := store.Users().GetByID(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, 3, u.VotesCast(day))
	assert.Equal(t, 2, u.Points)
}

func settleOncePerAttempt(t *testing.T, store repository.Store) {
	ctx := context.Background()
	users := store.Users()
	list := submitted(t, store, "owner", "other")
	first := list[0]
	second := testutil.SubmittedAttempt(t, store.Attempts(), "owner", seededQuest(t, store), testutil.Noon().Add(-24*time.Hour))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := users.Settle(ctx, "owner", first.ID, 4)
			if err != nil {
				assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
				return
			}
			mu.Lock()
			credited++
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, credited)

	balance, err := users.Settle(ctx, "owner", second.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, balance)

	_, err = users.Settle(ctx, "ghost", list[1].ID, 1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	owner, err := users.GetByID(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 7, owner.Points)
	assert.Equal(t, 2, owner.SuccessfulQuests)

	require.NoError(t, users.Ensure(ctx, &domain.User{ID: "owner", Username: "alice"}))
	owner, err = users.GetByID(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 7, owner.Points, "ensure keeps counters")
	assert.Equal(t, "alice", owner.Username)
}
