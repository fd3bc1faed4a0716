// Package catalog maintains the quest templates attempts are drawn from.
package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

type UseCase struct {
	quests repository.QuestRepository
	logger *zap.Logger
}

func New(quests repository.QuestRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{quests: quests, logger: logger}
}

// Import upserts quest templates by id. Every template is validated before anything is written.
func (uc *UseCase) Import(ctx context.Context, quests []domain.Quest) (int, error) {
	for i := range quests {
		if err := quests[i].Validate(); err != nil {
			return 0, domain.WrapError(domain.ErrCodeInvalid, fmt.Sprintf("quest #%d", i+1), err)
		}
	}

	for i := range quests {
		if err := uc.quests.Create(ctx, &quests[i]); err != nil {
			return i, domain.Internal("store quest", err)
		}
		uc.logger.Debug("quest imported", zap.String("quest_id", quests[i].ID), zap.String("title", quests[i].Title))
	}
	return len(quests), nil
}

func (uc *UseCase) Active(ctx context.Context) ([]domain.Quest, error) {
	quests, err := uc.quests.ListActive(ctx)
	if err != nil {
		return nil, domain.Internal("list quests", err)
	}
	return quests, nil
}
