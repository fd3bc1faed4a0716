// Package settlement credits attempt owners once their attempt crosses the validation threshold.
package settlement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
	"github.com/fastygo/dailyquest/usecase"
)

const sweepBatch = 50

type UseCase struct {
	users     repository.UserRepository
	attempts  repository.AttemptRepository
	notifier  usecase.Notifier
	recorder  usecase.Recorder
	clock     domain.Clock
	threshold int
	logger    *zap.Logger
}

func New(
	users repository.UserRepository,
	attempts repository.AttemptRepository,
	notifier usecase.Notifier,
	recorder usecase.Recorder,
	clock domain.Clock,
	rules domain.Rules,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = usecase.NopNotifier{}
	}
	if recorder == nil {
		recorder = usecase.NopRecorder{}
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &UseCase{
		users:     users,
		attempts:  attempts,
		notifier:  notifier,
		recorder:  recorder,
		clock:     clock,
		threshold: rules.Normalize().ValidationThreshold,
		logger:    logger,
	}
}

// Settle credits reward points and one success to the owner for attemptID and returns the
// new balance. A repeated call for the same attempt yields repository.ErrPreconditionFailed.
func (uc *UseCase) Settle(ctx context.Context, ownerID, attemptID string, reward int) (int, error) {
	balance, err := uc.users.Settle(ctx, ownerID, attemptID, reward)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return 0, err
		}
		return 0, domain.Internal("settle points", err)
	}
	return balance, nil
}

// Finalize brings a validated attempt to its settled state: the owner is credited once through
// the per-attempt ledger, then the attempt records the settlement. A submitted attempt that
// already holds enough votes is promoted first. It returns the attempt only when this call
// credited the owner; nil without error means there was nothing left to credit.
func (uc *UseCase) Finalize(ctx context.Context, attemptID string) (*domain.Attempt, error) {
	attempt, err := uc.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, domain.Internal("load quest attempt", err)
	}

	if attempt.Status == domain.StatusSubmitted {
		attempt, err = uc.attempts.MarkValidated(ctx, attemptID, uc.threshold, uc.clock.Now())
		if err != nil {
			if errors.Is(err, repository.ErrPreconditionFailed) {
				return nil, nil
			}
			return nil, domain.Internal("mark quest validated", err)
		}
	}
	if attempt.Status != domain.StatusValidated || attempt.Settled() {
		return nil, nil
	}

	balance, err := uc.Settle(ctx, attempt.UserID, attempt.ID, attempt.QuestPoints)
	switch {
	case errors.Is(err, repository.ErrPreconditionFailed):
		// credited earlier; only the bookkeeping is missing
		uc.markSettled(ctx, attempt)
		return nil, nil
	case err != nil:
		uc.recorder.Settlement(false)
		return nil, err
	}

	uc.recorder.Settlement(true)
	uc.logger.Info("quest validated",
		zap.String("attempt_id", attemptID),
		zap.String("user_id", attempt.UserID),
		zap.Int("points", attempt.QuestPoints),
		zap.Int("balance", balance))
	uc.notifier.Emit(ctx, domain.PointsUpdatedEvent(attempt.UserID, balance))

	if settled := uc.markSettled(ctx, attempt); settled != nil {
		return settled, nil
	}
	return attempt, nil
}

// markSettled records the settlement on the attempt. A failure leaves the attempt in the
// sweep backlog, where the ledger turns the retry into bookkeeping only.
func (uc *UseCase) markSettled(ctx context.Context, attempt *domain.Attempt) *domain.Attempt {
	settled, err := uc.attempts.MarkSettled(ctx, attempt.ID, uc.clock.Now())
	if err != nil {
		if !errors.Is(err, repository.ErrPreconditionFailed) {
			uc.logger.Warn("settlement bookkeeping deferred to sweep",
				zap.String("attempt_id", attempt.ID),
				zap.Error(err))
		}
		return nil
	}
	return settled
}

// Sweep finishes settlements interrupted after the deciding vote: validated attempts that were
// never settled and submitted attempts that already hold enough votes.
func (uc *UseCase) Sweep(ctx context.Context) (int, error) {
	backlog, err := uc.attempts.ListSettlementBacklog(ctx, uc.threshold, sweepBatch)
	if err != nil {
		return 0, domain.Internal("list settlement backlog", err)
	}

	settled := 0
	for _, a := range backlog {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		validated, err := uc.Finalize(ctx, a.ID)
		if err != nil {
			uc.logger.Warn("sweep settlement failed", zap.String("attempt_id", a.ID), zap.Error(err))
			continue
		}
		if validated == nil {
			continue
		}
		settled++
		uc.notifier.Emit(ctx, domain.QuestValidatedEvent(validated, ""))
	}
	return settled, nil
}
