package usecase

import (
	"context"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

// ExplainConflict reloads an attempt after a lost conditional write and reports which guard
// the stored state now violates.
func ExplainConflict(ctx context.Context, attempts repository.AttemptRepository, id string, check func(*domain.Attempt) error) error {
	current, err := attempts.GetByID(ctx, id)
	if err != nil {
		return domain.Internal("reload quest attempt", err)
	}
	if err := check(current); err != nil {
		return err
	}
	return domain.ErrConcurrentWrite
}

// QuestIDs returns the template ids of attempts, in order.
func QuestIDs(attempts []domain.Attempt) []string {
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.QuestID)
	}
	return ids
}
