package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
		SELECT id, username, points, successful_quests, failed_quests, daily_validations,
			last_validation_date, last_swap_date, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Points,
		&user.SuccessfulQuests,
		&user.FailedQuests,
		&user.DailyValidations,
		&user.LastValidationDate,
		&user.LastSwapDate,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Ensure(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO users (id, username, created_at, updated_at)
	VALUES ($1, $2, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE
	SET username = CASE WHEN users.username = '' THEN EXCLUDED.username ELSE users.username END
	`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Username)
	return err
}

func (r *userRepository) IncrementFailed(ctx context.Context, id string, n int) error {
	const query = `
	UPDATE users
	SET failed_quests = failed_quests + $2, updated_at = NOW()
	WHERE id = $1
	`
	return r.exec(ctx, query, id, n)
}

// Settle writes the settlement ledger row and the credit in one transaction; the ledger's
// primary key on attempt_id makes a repeated settlement a no-op.
func (r *userRepository) Settle(ctx context.Context, id, attemptID string, points int) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const ledger = `
	INSERT INTO settlements (attempt_id, user_id, points, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (attempt_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, ledger, attemptID, id, points)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, repository.ErrPreconditionFailed
	}

	const credit = `
	UPDATE users
	SET points = points + $2, successful_quests = successful_quests + 1, updated_at = NOW()
	WHERE id = $1
	RETURNING points
	`
	var balance int
	if err := tx.QueryRow(ctx, credit, id, points).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// ClaimVote evaluates every CASE against the pre-update row, so the rollover reset,
// the increment and the bonus are decided from one consistent snapshot.
func (r *userRepository) ClaimVote(ctx context.Context, id string, day domain.Day, now time.Time, limit, bonus int) (domain.VoteGrant, error) {
	const query = `
	UPDATE users
	SET daily_validations = CASE
			WHEN last_validation_date >= $2 AND last_validation_date < $3 THEN daily_validations + 1
			ELSE 1
		END,
		points = points + CASE
			WHEN (CASE
				WHEN last_validation_date >= $2 AND last_validation_date < $3 THEN daily_validations + 1
				ELSE 1
			END) = $5 THEN $6
			ELSE 0
		END,
		last_validation_date = $4,
		updated_at = NOW()
	WHERE id = $1
	  AND (last_validation_date IS NULL
		OR last_validation_date < $2
		OR last_validation_date >= $3
		OR daily_validations < $5)
	RETURNING daily_validations, points
	`

	var grant domain.VoteGrant
	err := r.pool.QueryRow(ctx, query, id, day.Start, day.End, now, limit, bonus).Scan(&grant.DailyCount, &grant.Points)
	if errors.Is(err, pgx.ErrNoRows) {
		return grant, r.missingOrSpent(ctx, id)
	}
	if err != nil {
		return grant, err
	}
	grant.Bonus = grant.DailyCount == limit && bonus > 0
	return grant, nil
}

func (r *userRepository) RefundVote(ctx context.Context, id string, day domain.Day, grant domain.VoteGrant, bonus int) error {
	const query = `
	UPDATE users
	SET daily_validations = daily_validations - 1,
		points = points - $4,
		updated_at = NOW()
	WHERE id = $1
	  AND last_validation_date >= $2 AND last_validation_date < $3
	  AND daily_validations > 0
	`
	refund := 0
	if grant.Bonus {
		refund = bonus
	}
	return r.exec(ctx, query, id, day.Start, day.End, refund)
}

func (r *userRepository) ClaimSwap(ctx context.Context, id string, day domain.Day, now time.Time) error {
	const query = `
	UPDATE users
	SET last_swap_date = $4, updated_at = NOW()
	WHERE id = $1
	  AND (last_swap_date IS NULL OR last_swap_date < $2 OR last_swap_date >= $3)
	`
	tag, err := r.pool.Exec(ctx, query, id, day.Start, day.End, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrSpent(ctx, id)
	}
	return nil
}

func (r *userRepository) ReleaseSwap(ctx context.Context, id string, day domain.Day) error {
	const query = `
	UPDATE users
	SET last_swap_date = NULL, updated_at = NOW()
	WHERE id = $1 AND last_swap_date >= $2 AND last_swap_date < $3
	`
	return r.exec(ctx, query, id, day.Start, day.End)
}

func (r *userRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrSpent(ctx, args[0].(string))
	}
	return nil
}

func (r *userRepository) missingOrSpent(ctx context.Context, id string) error {
	found, err := exists(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrUserNotFound
	}
	return repository.ErrPreconditionFailed
}
