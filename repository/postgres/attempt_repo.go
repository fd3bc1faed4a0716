package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

const attemptColumns = `id, user_id, quest_id, quest_title, quest_description, quest_points, status,
	start_date, end_date, proof_image, changed, validation_count, validated_by,
	settled_at, allocation_day, slot, created_at, updated_at`

type attemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository returns a Postgres-backed implementation of AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) repository.AttemptRepository {
	return &attemptRepository{pool: pool}
}

func (r *attemptRepository) GetByID(ctx context.Context, id string) (*domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM user_quests WHERE id = $1`
	attempt, err := scanAttempt(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt, err
}

func (r *attemptRepository) List(ctx context.Context, filter repository.AttemptFilter) ([]domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM user_quests
	WHERE ($1 = '' OR user_id = $1)
	  AND ($2 = '' OR status = $2)
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4`
	return r.query(ctx, query, filter.UserID, string(filter.Status), clampLimit(filter.Limit), filter.Offset)
}

func (r *attemptRepository) ListStartedOn(ctx context.Context, userID string, day domain.Day) ([]domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM user_quests
	WHERE user_id = $1 AND start_date >= $2 AND start_date < $3
	ORDER BY slot ASC, created_at ASC`
	return r.query(ctx, query, userID, day.Start, day.End)
}

func (r *attemptRepository) ListValidatable(ctx context.Context, voterID string, limit int) ([]domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM user_quests
	WHERE status = 'submitted'
	  AND user_id <> $1
	  AND NOT ($1 = ANY(validated_by))
	ORDER BY updated_at DESC
	LIMIT $2`
	return r.query(ctx, query, voterID, clampLimit(limit))
}

func (r *attemptRepository) ListSettlementBacklog(ctx context.Context, threshold, limit int) ([]domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM user_quests
	WHERE (status = 'submitted' AND validation_count >= $1)
	   OR (status = 'validated' AND settled_at IS NULL)
	ORDER BY updated_at ASC
	LIMIT $2`
	return r.query(ctx, query, threshold, clampLimit(limit))
}

func (r *attemptRepository) HasChangedOn(ctx context.Context, userID string, day domain.Day) (bool, error) {
	const query = `
	SELECT EXISTS (
		SELECT 1 FROM user_quests
		WHERE user_id = $1 AND changed AND start_date >= $2 AND start_date < $3
	)`
	return exists(ctx, r.pool, query, userID, day.Start, day.End)
}

func (r *attemptRepository) Create(ctx context.Context, attempt *domain.Attempt) error {
	if attempt == nil {
		return domain.ErrInvalidPayload
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.ValidatedBy == nil {
		attempt.ValidatedBy = []string{}
	}

	const query = `
	INSERT INTO user_quests (id, user_id, quest_id, quest_title, quest_description, quest_points, status,
		start_date, changed, validation_count, validated_by, allocation_day, slot, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, COALESCE($14, NOW()), COALESCE($14, NOW()))
	ON CONFLICT (user_id, allocation_day, slot) DO NOTHING
	RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		attempt.ID,
		attempt.UserID,
		attempt.QuestID,
		attempt.QuestTitle,
		attempt.QuestDescription,
		attempt.QuestPoints,
		string(attempt.Status),
		attempt.StartDate,
		attempt.Changed,
		attempt.ValidationCount,
		attempt.ValidatedBy,
		attempt.AllocationDay,
		attempt.Slot,
		nullTime(attempt.CreatedAt),
	).Scan(&attempt.CreatedAt, &attempt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrDuplicateSlot
	}
	return err
}

func (r *attemptRepository) DeleteStale(ctx context.Context, id string, day domain.Day) (bool, error) {
	const query = `
	DELETE FROM user_quests
	WHERE id = $1
	  AND status IN ('initial', 'in_progress')
	  AND (start_date < $2 OR start_date >= $3)
	`
	tag, err := r.pool.Exec(ctx, query, id, day.Start, day.End)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *attemptRepository) MarkStarted(ctx context.Context, id, userID string, at time.Time) (*domain.Attempt, error) {
	query := `
	UPDATE user_quests
	SET status = 'in_progress', start_date = $3, updated_at = $3
	WHERE id = $1 AND user_id = $2 AND status = 'initial'
	RETURNING ` + attemptColumns
	return r.conditional(ctx, query, id, userID, at)
}

func (r *attemptRepository) MarkSubmitted(ctx context.Context, id, userID, proof string, at time.Time) (*domain.Attempt, error) {
	query := `
	UPDATE user_quests
	SET status = 'submitted', proof_image = $3, end_date = $4, updated_at = $4
	WHERE id = $1 AND user_id = $2 AND status = 'in_progress'
	RETURNING ` + attemptColumns
	return r.conditional(ctx, query, id, userID, proof, at)
}

func (r *attemptRepository) ApplySwap(ctx context.Context, id, userID string, quest domain.Quest, at time.Time) (*domain.Attempt, error) {
	query := `
	UPDATE user_quests
	SET quest_id = $3, quest_title = $4, quest_description = $5, quest_points = $6,
		changed = TRUE, updated_at = $7
	WHERE id = $1 AND user_id = $2 AND status = 'initial' AND NOT changed
	RETURNING ` + attemptColumns
	return r.conditional(ctx, query, id, userID, quest.ID, quest.Title, quest.Description, quest.Points, at)
}

// AddValidation evaluates the SET list against the pre-update row, so the promotion sees the
// count this vote produces.
func (r *attemptRepository) AddValidation(ctx context.Context, id, voterID string, threshold int, at time.Time) (*domain.Attempt, error) {
	query := `
	UPDATE user_quests
	SET validated_by = array_append(validated_by, $2),
		validation_count = validation_count + 1,
		status = CASE WHEN validation_count + 1 >= $3 THEN 'validated' ELSE status END,
		updated_at = $4
	WHERE id = $1
	  AND status = 'submitted'
	  AND user_id <> $2
	  AND NOT ($2 = ANY(validated_by))
	RETURNING ` + attemptColumns
	return r.conditional(ctx, query, id, voterID, threshold, at)
}

func (r *attemptRepository) MarkValidated(ctx context.Context, id string, threshold int, at time.Time) (*domain.Attempt, error) {
	query := `
	UPDATE user_quests
	SET status = 'validated', updated_at = $3
	WHERE id = $1 AND status = 'submitted' AND validation_count >= $2
	RETURNING ` + attemptColumns
	return r.conditional(ctx, query, id, threshold, at)
}

func (r *attemptRepository) MarkSettled(ctx context.Context, id string, at time.Time) (*domain.Attempt, error) {
	query := `
	UPDATE user_quests
	SET settled_at = $2, updated_at = $2
	WHERE id = $1 AND status = 'validated' AND settled_at IS NULL
	RETURNING ` + attemptColumns
	return r.conditional(ctx, query, id, at)
}

func (r *attemptRepository) conditional(ctx context.Context, query string, args ...interface{}) (*domain.Attempt, error) {
	attempt, err := scanAttempt(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrPreconditionFailed
	}
	return attempt, err
}

func (r *attemptRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Attempt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *attempt)
	}
	return attempts, rows.Err()
}

func scanAttempt(row rowScanner) (*domain.Attempt, error) {
	var attempt domain.Attempt
	var (
		status string
		end    *time.Time
	)

	if err := row.Scan(
		&attempt.ID,
		&attempt.UserID,
		&attempt.QuestID,
		&attempt.QuestTitle,
		&attempt.QuestDescription,
		&attempt.QuestPoints,
		&status,
		&attempt.StartDate,
		&end,
		&attempt.ProofImage,
		&attempt.Changed,
		&attempt.ValidationCount,
		&attempt.ValidatedBy,
		&attempt.SettledAt,
		&attempt.AllocationDay,
		&attempt.Slot,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	); err != nil {
		return nil, err
	}

	attempt.Status = domain.AttemptStatus(status)
	attempt.EndDate = end
	if attempt.ValidatedBy == nil {
		attempt.ValidatedBy = []string{}
	}
	return &attempt, nil
}
