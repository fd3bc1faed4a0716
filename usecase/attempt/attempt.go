package attempt

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
	"github.com/fastygo/dailyquest/usecase"
)

type UseCase struct {
	attempts repository.AttemptRepository
	proofs   usecase.ProofStorage
	clock    domain.Clock
	logger   *zap.Logger
}

func New(attempts repository.AttemptRepository, proofs usecase.ProofStorage, clock domain.Clock, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &UseCase{
		attempts: attempts,
		proofs:   proofs,
		clock:    clock,
		logger:   logger,
	}
}

// Start moves an attempt from initial to in_progress and restarts its clock.
func (uc *UseCase) Start(ctx context.Context, userID, attemptID string) (*domain.Attempt, error) {
	current, err := uc.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, domain.Internal("load quest attempt", err)
	}
	if err := current.CheckStart(userID); err != nil {
		return nil, err
	}

	started, err := uc.attempts.MarkStarted(ctx, attemptID, userID, uc.clock.Now())
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, usecase.ExplainConflict(ctx, uc.attempts, attemptID, func(a *domain.Attempt) error {
				return a.CheckStart(userID)
			})
		}
		return nil, domain.Internal("start quest", err)
	}
	return started, nil
}

// SubmitProof stores the proof file and moves the attempt to submitted. The stored file is
// released again when the transition loses to a concurrent request.
func (uc *UseCase) SubmitProof(ctx context.Context, userID, attemptID string, proof usecase.Proof) (*domain.Attempt, error) {
	current, err := uc.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, domain.Internal("load quest attempt", err)
	}
	if err := current.CheckSubmit(userID); err != nil {
		return nil, err
	}
	if len(proof.Data) == 0 {
		return nil, domain.ErrMissingProof
	}
	if uc.proofs == nil {
		return nil, domain.Internal("store proof", errors.New("proof storage not configured"))
	}

	ref, err := uc.proofs.Save(ctx, userID, proof)
	if err != nil {
		return nil, domain.Internal("store proof", err)
	}

	submitted, err := uc.attempts.MarkSubmitted(ctx, attemptID, userID, ref, uc.clock.Now())
	if err == nil {
		return submitted, nil
	}

	if relErr := uc.proofs.Release(ctx, ref); relErr != nil {
		uc.logger.Warn("orphaned proof release failed", zap.String("proof", ref), zap.Error(relErr))
	}
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return nil, usecase.ExplainConflict(ctx, uc.attempts, attemptID, func(a *domain.Attempt) error {
			return a.CheckSubmit(userID)
		})
	}
	return nil, domain.Internal("submit quest", err)
}

// ListMine returns every attempt the user holds, newest first.
func (uc *UseCase) ListMine(ctx context.Context, userID string, limit, offset int) ([]domain.Attempt, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	attempts, err := uc.attempts.List(ctx, repository.AttemptFilter{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, domain.Internal("list user quests", err)
	}
	return attempts, nil
}

func (uc *UseCase) ListValidated(ctx context.Context, limit, offset int) ([]domain.Attempt, error) {
	attempts, err := uc.attempts.List(ctx, repository.AttemptFilter{
		Status: domain.StatusValidated,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, domain.Internal("list validated quests", err)
	}
	return attempts, nil
}
