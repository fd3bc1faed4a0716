package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

type questRepository struct {
	pool *pgxpool.Pool
}

// NewQuestRepository returns a Postgres-backed quest catalog.
func NewQuestRepository(pool *pgxpool.Pool) repository.QuestRepository {
	return &questRepository{pool: pool}
}

func (r *questRepository) GetByID(ctx context.Context, id string) (*domain.Quest, error) {
	const query = `
	SELECT id, title, description, points, is_active, created_at, updated_at
	FROM quests
	WHERE id = $1
	`
	quest, err := scanQuest(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestNotFound
	}
	return quest, err
}

func (r *questRepository) ListActive(ctx context.Context) ([]domain.Quest, error) {
	const query = `
	SELECT id, title, description, points, is_active, created_at, updated_at
	FROM quests
	WHERE is_active
	ORDER BY created_at ASC
	`
	return r.query(ctx, query)
}

func (r *questRepository) Sample(ctx context.Context, n int, excluding []string) ([]domain.Quest, error) {
	if n <= 0 {
		return nil, nil
	}
	if excluding == nil {
		excluding = []string{}
	}
	const query = `
	SELECT id, title, description, points, is_active, created_at, updated_at
	FROM quests
	WHERE is_active AND NOT (id = ANY($1))
	ORDER BY random()
	LIMIT $2
	`
	return r.query(ctx, query, excluding, n)
}

func (r *questRepository) Create(ctx context.Context, quest *domain.Quest) error {
	if err := quest.Validate(); err != nil {
		return err
	}
	if quest.ID == "" {
		quest.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO quests (id, title, description, points, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()), NOW())
	ON CONFLICT (id) DO UPDATE
	SET title = EXCLUDED.title,
		description = EXCLUDED.description,
		points = EXCLUDED.points,
		is_active = EXCLUDED.is_active,
		updated_at = NOW()
	RETURNING created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		quest.ID,
		quest.Title,
		quest.Description,
		quest.Points,
		quest.IsActive,
		nullTime(quest.CreatedAt),
	).Scan(&quest.CreatedAt, &quest.UpdatedAt)
}

func (r *questRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Quest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quests []domain.Quest
	for rows.Next() {
		quest, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		quests = append(quests, *quest)
	}
	return quests, rows.Err()
}

func scanQuest(row rowScanner) (*domain.Quest, error) {
	var quest domain.Quest
	if err := row.Scan(
		&quest.ID,
		&quest.Title,
		&quest.Description,
		&quest.Points,
		&quest.IsActive,
		&quest.CreatedAt,
		&quest.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &quest, nil
}
