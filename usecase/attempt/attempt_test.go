package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/testutil"
	"github.com/fastygo/dailyquest/repository"
	"github.com/fastygo/dailyquest/repository/memory"
	"github.com/fastygo/dailyquest/usecase"
)

type fakeProofs struct {
	mu       sync.Mutex
	saved    []string
	released []string
	saveErr  error
}

func (p *fakeProofs) Save(_ context.Context, ownerID string, proof usecase.Proof) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return "", p.saveErr
	}
	ref := fmt.Sprintf("%s/%d-%s", ownerID, len(p.saved), proof.Filename)
	p.saved = append(p.saved, ref)
	return ref, nil
}

func (p *fakeProofs) Release(_ context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, ref)
	return nil
}

func (p *fakeProofs) URL(_ context.Context, ref string) (string, error) {
	return "http://proofs.local/" + ref, nil
}

// racingAttempts lets another request submit the attempt right before ours is applied.
type racingAttempts struct {
	repository.AttemptRepository
}

func (r racingAttempts) MarkSubmitted(ctx context.Context, id, userID, proof string, at time.Time) (*domain.Attempt, error) {
	if _, err := r.AttemptRepository.MarkSubmitted(ctx, id, userID, "winner.jpg", at); err != nil {
		return nil, err
	}
	return r.AttemptRepository.MarkSubmitted(ctx, id, userID, proof, at)
}

func setup(t *testing.T) (*memory.Store, *testutil.Clock, *domain.Attempt) {
	t.Helper()
	store := memory.New()
	clock := testutil.NewClock(testutil.Noon())
	quests := testutil.SeedQuests(t, store.Quests(), 1, 3)
	a := domain.NewAttempt("u1", quests[0], domain.DayOf(clock.Now()), 0, clock.Now().Add(-time.Hour))
	require.NoError(t, store.Attempts().Create(context.Background(), a))
	return store, clock, a
}

func proofFile() usecase.Proof {
	return usecase.Proof{Filename: "proof.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
}

func TestStartRestartsClock(t *testing.T) {
	store, clock, a := setup(t)
	uc := New(store.Attempts(), &fakeProofs{}, clock, nil)

	started, err := uc.Start(context.Background(), "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, started.Status)
	assert.True(t, started.StartDate.Equal(clock.Now()))

	_, err = uc.Start(context.Background(), "u1", a.ID)
	assert.ErrorIs(t, err, domain.ErrNotInitial)
}

func TestStartRejectsOtherUsers(t *testing.T) {
	store, clock, a := setup(t)
	uc := New(store.Attempts(), &fakeProofs{}, clock, nil)

	_, err := uc.Start(context.Background(), "u2", a.ID)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = uc.Start(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
}

func TestSubmitProof(t *testing.T) {
	store, clock, a := setup(t)
	proofs := &fakeProofs{}
	uc := New(store.Attempts(), proofs, clock, nil)
	ctx := context.Background()

	_, err := uc.SubmitProof(ctx, "u1", a.ID, proofFile())
	assert.ErrorIs(t, err, domain.ErrNotInProgress, "state is checked before the file")

	_, err = uc.Start(ctx, "u1", a.ID)
	require.NoError(t, err)

	_, err = uc.SubmitProof(ctx, "u1", a.ID, usecase.Proof{})
	assert.ErrorIs(t, err, domain.ErrMissingProof)

	clock.Advance(30 * time.Minute)
	submitted, err := uc.SubmitProof(ctx, "u1", a.ID, proofFile())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.EndDate)
	assert.True(t, submitted.EndDate.Equal(clock.Now()))
	assert.Equal(t, proofs.saved[0], submitted.ProofImage)
	assert.Empty(t, proofs.released)

	_, err = uc.SubmitProof(ctx, "u1", a.ID, proofFile())
	assert.ErrorIs(t, err, domain.ErrNotInProgress)
}

func TestSubmitProofStorageFailure(t *testing.T) {
	store, clock, a := setup(t)
	proofs := &fakeProofs{saveErr: errors.New("disk full")}
	uc := New(store.Attempts(), proofs, clock, nil)
	ctx := context.Background()

	_, err := uc.Start(ctx, "u1", a.ID)
	require.NoError(t, err)

	_, err = uc.SubmitProof(ctx, "u1", a.ID, proofFile())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInternal))

	current, err := store.Attempts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, current.Status)
}

func TestSubmitProofReleasesFileOnLostRace(t *testing.T) {
	store, clock, a := setup(t)
	proofs := &fakeProofs{}
	uc := New(racingAttempts{store.Attempts()}, proofs, clock, nil)
	ctx := context.Background()

	_, err := uc.Start(ctx, "u1", a.ID)
	require.NoError(t, err)

	_, err = uc.SubmitProof(ctx, "u1", a.ID, proofFile())
	assert.ErrorIs(t, err, domain.ErrNotInProgress)
	assert.Equal(t, proofs.saved, proofs.released)

	current, err := store.Attempts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "winner.jpg", current.ProofImage)
}

func TestListings(t *testing.T) {
	store, clock, a := setup(t)
	uc := New(store.Attempts(), &fakeProofs{}, clock, nil)
	ctx := context.Background()

	mine, err := uc.ListMine(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	_, err = uc.ListMine(ctx, "", 10, 0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	quest, err := store.Quests().GetByID(ctx, "q1")
	require.NoError(t, err)
	done := testutil.SubmittedAttempt(t, store.Attempts(), "u2", *quest, clock.Now())
	_, err = store.Attempts().MarkValidated(ctx, done.ID, 0, clock.Now())
	require.NoError(t, err)

	validated, err := uc.ListValidated(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, validated, 1)
	assert.Equal(t, done.ID, validated[0].ID)
}
