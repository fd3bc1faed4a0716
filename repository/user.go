package repository

import (
	"context"
	"time"

	"github.com/fastygo/dailyquest/domain"
)

// UserRepository exposes the counters of the user aggregate as atomic increments.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// Ensure creates the user record when it does not exist yet; counters of an existing user are left alone.
	Ensure(ctx context.Context, user *domain.User) error

	IncrementFailed(ctx context.Context, id string, n int) error
	// Settle credits points and one success for attemptID and returns the new balance. It is
	// idempotent per attempt: a second call for the same attempt returns ErrPreconditionFailed.
	Settle(ctx context.Context, id, attemptID string, points int) (int, error)

	// ClaimVote consumes one unit of the daily validation budget, resetting it on day rollover
	// and crediting bonus points on the call that reaches limit. ErrPreconditionFailed means the budget is spent.
	ClaimVote(ctx context.Context, id string, day domain.Day, now time.Time, limit, bonus int) (domain.VoteGrant, error)
	RefundVote(ctx context.Context, id string, day domain.Day, grant domain.VoteGrant, bonus int) error

	ClaimSwap(ctx context.Context, id string, day domain.Day, now time.Time) error
	ReleaseSwap(ctx context.Context, id string, day domain.Day) error
}
