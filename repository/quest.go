package repository

import (
	"context"

	"github.com/fastygo/dailyquest/domain"
)

type QuestRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Quest, error)
	ListActive(ctx context.Context) ([]domain.Quest, error)
	// Sample draws up to n distinct active quests uniformly at random, skipping the excluded ids.
	Sample(ctx context.Context, n int, excluding []string) ([]domain.Quest, error)
	Create(ctx context.Context, quest *domain.Quest) error
}
