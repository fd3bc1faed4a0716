package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/testutil"
	"github.com/fastygo/dailyquest/repository"
	"github.com/fastygo/dailyquest/repository/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) repository.Store { return New() })
}

func TestCreateRejectsTakenSlot(t *testing.T) {
	ctx := context.Background()
	store := New()
	quests := testutil.SeedQuests(t, store.Quests(), 2, 1)
	now := testutil.Noon()

	first := domain.NewAttempt("u1", quests[0], domain.DayOf(now), 0, now)
	require.NoError(t, store.Attempts().Create(ctx, first))
	assert.NotEmpty(t, first.ID)

	dup := domain.NewAttempt("u1", quests[1], domain.DayOf(now), 0, now)
	assert.ErrorIs(t, store.Attempts().Create(ctx, dup), domain.ErrDuplicateSlot)

	other := domain.NewAttempt("u2", quests[1], domain.DayOf(now), 0, now)
	assert.NoError(t, store.Attempts().Create(ctx, other))
}

func TestConditionalTransitions(t *testing.T) {
	ctx := context.Background()
	store := New()
	attempts := store.Attempts()
	q := testutil.SeedQuests(t, store.Quests(), 1, 2)[0]
	now := testutil.Noon()

	a := domain.NewAttempt("u1", q, domain.DayOf(now), 0, now)
	require.NoError(t, attempts.Create(ctx, a))

	_, err := attempts.MarkSubmitted(ctx, a.ID, "u1", "p", now)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)

	_, err = attempts.MarkStarted(ctx, a.ID, "u2", now)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)

	later := now.Add(time.Hour)
	started, err := attempts.MarkStarted(ctx, a.ID, "u1", later)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, started.Status)
	assert.Equal(t, later, started.StartDate)

	_, err = attempts.MarkStarted(ctx, a.ID, "u1", later)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)

	submitted, err := attempts.MarkSubmitted(ctx, a.ID, "u1", "u1/p.jpg", later)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, submitted.Status)
	assert.Equal(t, "u1/p.jpg", submitted.ProofImage)
	require.NotNil(t, submitted.EndDate)

	_, err = attempts.MarkStarted(ctx, "missing", "u1", now)
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
}

func TestListsAndPaging(t *testing.T) {
	ctx := context.Background()
	store := New()
	attempts := store.Attempts()
	quests := testutil.SeedQuests(t, store.Quests(), 3, 1)
	now := testutil.Noon()

	for i, q := range quests {
		at := now.Add(time.Duration(i) * time.Minute)
		a := domain.NewAttempt("u1", q, domain.DayOf(at), i, at)
		require.NoError(t, attempts.Create(ctx, a))
	}
	testutil.SubmittedAttempt(t, attempts, "u2", quests[0], now)

	mine, err := attempts.List(ctx, repository.AttemptFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "q3", mine[0].QuestID, "newest first")

	paged, err := attempts.List(ctx, repository.AttemptFilter{UserID: "u1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "q1", paged[0].QuestID)

	empty, err := attempts.List(ctx, repository.AttemptFilter{UserID: "u1", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	validatable, err := attempts.ListValidatable(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, validatable, 1)

	own, err := attempts.ListValidatable(ctx, "u2", 10)
	require.NoError(t, err)
	assert.Empty(t, own)

	today, err := attempts.ListStartedOn(ctx, "u1", domain.DayOf(now))
	require.NoError(t, err)
	require.Len(t, today, 3)
	assert.Equal(t, 0, today[0].Slot)
}

func TestRefundVoteUndoesBonus(t *testing.T) {
	ctx := context.Background()
	users := New().Users()
	require.NoError(t, users.Ensure(ctx, &domain.User{ID: "v"}))
	now := testutil.Noon()
	day := domain.DayOf(now)

	_, err := users.ClaimVote(ctx, "v", day, now, 1, 2)
	require.NoError(t, err)
	grant := domain.VoteGrant{DailyCount: 1, Bonus: true}

	require.NoError(t, users.RefundVote(ctx, "v", day, grant, 2))
	u, err := users.GetByID(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, 0, u.VotesCast(day))
	assert.Equal(t, 0, u.Points)
}

func TestSwapClaim(t *testing.T) {
	ctx := context.Background()
	users := New().Users()
	require.NoError(t, users.Ensure(ctx, &domain.User{ID: "u"}))
	now := testutil.Noon()
	day := domain.DayOf(now)

	require.NoError(t, users.ClaimSwap(ctx, "u", day, now))
	assert.ErrorIs(t, users.ClaimSwap(ctx, "u", day, now), repository.ErrPreconditionFailed)

	require.NoError(t, users.ReleaseSwap(ctx, "u", day))
	require.NoError(t, users.ClaimSwap(ctx, "u", day, now))

	assert.ErrorIs(t, users.ClaimSwap(ctx, "ghost", day, now), domain.ErrUserNotFound)
}

func TestSampleExcludesAndStaysDistinct(t *testing.T) {
	ctx := context.Background()
	store := New()
	testutil.SeedQuests(t, store.Quests(), 5, 1)

	inactive := domain.Quest{ID: "off", Title: "Retired", Points: 1}
	require.NoError(t, store.Quests().Create(ctx, &inactive))

	picks, err := store.Quests().Sample(ctx, 10, []string{"q1", "q2"})
	require.NoError(t, err)
	require.Len(t, picks, 3)

	seen := map[string]bool{}
	for _, q := range picks {
		assert.NotContains(t, []string{"q1", "q2", "off"}, q.ID)
		assert.False(t, seen[q.ID])
		seen[q.ID] = true
	}

	none, err := store.Quests().Sample(ctx, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
