package repository

import (
	"context"
	"time"

	"github.com/fastygo/dailyquest/domain"
)

type AttemptFilter struct {
	UserID string
	Status domain.AttemptStatus
	Limit  int
	Offset int
}

// AttemptRepository stores quest attempts. Every mutating method is a single conditional
// document update: it either applies atomically or returns ErrPreconditionFailed.
type AttemptRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Attempt, error)
	List(ctx context.Context, filter AttemptFilter) ([]domain.Attempt, error)
	ListStartedOn(ctx context.Context, userID string, day domain.Day) ([]domain.Attempt, error)
	ListValidatable(ctx context.Context, voterID string, limit int) ([]domain.Attempt, error)
	// ListSettlementBacklog returns submitted attempts holding at least threshold votes and
	// validated attempts whose settlement was never recorded, oldest first.
	ListSettlementBacklog(ctx context.Context, threshold, limit int) ([]domain.Attempt, error)
	HasChangedOn(ctx context.Context, userID string, day domain.Day) (bool, error)

	// Create inserts a new attempt; a taken (user, allocation day, slot) yields domain.ErrDuplicateSlot.
	Create(ctx context.Context, attempt *domain.Attempt) error
	// DeleteStale removes the attempt only while it is initial or in_progress and its start
	// date lies outside day. A restart into day keeps it.
	DeleteStale(ctx context.Context, id string, day domain.Day) (bool, error)

	MarkStarted(ctx context.Context, id, userID string, at time.Time) (*domain.Attempt, error)
	MarkSubmitted(ctx context.Context, id, userID, proof string, at time.Time) (*domain.Attempt, error)
	ApplySwap(ctx context.Context, id, userID string, quest domain.Quest, at time.Time) (*domain.Attempt, error)
	// AddValidation records the vote and, in the same write, moves the attempt to validated when
	// the count reaches threshold. Only one vote can observe that transition.
	AddValidation(ctx context.Context, id, voterID string, threshold int, at time.Time) (*domain.Attempt, error)
	// MarkValidated promotes a submitted attempt that already holds threshold votes.
	MarkValidated(ctx context.Context, id string, threshold int, at time.Time) (*domain.Attempt, error)
	// MarkSettled records that the owner was credited for a validated attempt.
	MarkSettled(ctx context.Context, id string, at time.Time) (*domain.Attempt, error)
}
