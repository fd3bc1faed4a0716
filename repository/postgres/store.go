package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/dailyquest/repository"
)

// Store groups the Postgres repositories that share one pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Users() repository.UserRepository       { return NewUserRepository(s.pool) }
func (s *Store) Quests() repository.QuestRepository     { return NewQuestRepository(s.pool) }
func (s *Store) Attempts() repository.AttemptRepository { return NewAttemptRepository(s.pool) }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
