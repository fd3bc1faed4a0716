// Package validation runs community voting on submitted quest attempts.
package validation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
	"github.com/fastygo/dailyquest/usecase"
)

const voteAccepted = "accepted"

// Finalizer performs the guarded validated transition and the owner's settlement.
type Finalizer interface {
	Finalize(ctx context.Context, attemptID string) (*domain.Attempt, error)
}

type Deps struct {
	Users      repository.UserRepository
	Attempts   repository.AttemptRepository
	Settlement Finalizer
	Proofs     usecase.ProofStorage
	Notifier   usecase.Notifier
	Recorder   usecase.Recorder
	Clock      domain.Clock
	Rules      domain.Rules
}

// Budget is what is left of a voter's daily validation allowance.
type Budget struct {
	Limit     int `json:"limit"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// Item is a validatable attempt together with its owner's display name and a displayable
// proof URL.
type Item struct {
	domain.Attempt
	OwnerUsername string `json:"owner_username,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
}

type UseCase struct {
	users      repository.UserRepository
	attempts   repository.AttemptRepository
	settlement Finalizer
	proofs     usecase.ProofStorage
	notifier   usecase.Notifier
	recorder   usecase.Recorder
	clock      domain.Clock
	rules      domain.Rules
	logger     *zap.Logger
}

func New(deps Deps, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = usecase.NopNotifier{}
	}
	if deps.Recorder == nil {
		deps.Recorder = usecase.NopRecorder{}
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	return &UseCase{
		users:      deps.Users,
		attempts:   deps.Attempts,
		settlement: deps.Settlement,
		proofs:     deps.Proofs,
		notifier:   deps.Notifier,
		recorder:   deps.Recorder,
		clock:      deps.Clock,
		rules:      deps.Rules.Normalize(),
		logger:     logger,
	}
}

// Budget reports the voter's remaining validations for today.
func (uc *UseCase) Budget(ctx context.Context, voterID string) (Budget, error) {
	voter, err := uc.voter(ctx, voterID)
	if err != nil {
		return Budget{}, err
	}
	return uc.budgetOf(voter), nil
}

// ListValidatable returns submitted attempts of other users the voter has not voted on yet,
// newest first, together with the voter's remaining budget.
func (uc *UseCase) ListValidatable(ctx context.Context, voterID string, limit int) ([]Item, Budget, error) {
	voter, err := uc.voter(ctx, voterID)
	if err != nil {
		return nil, Budget{}, err
	}

	attempts, err := uc.attempts.ListValidatable(ctx, voterID, limit)
	if err != nil {
		return nil, Budget{}, domain.Internal("list submitted quests", err)
	}

	names := make(map[string]string)
	items := make([]Item, 0, len(attempts))
	for _, a := range attempts {
		items = append(items, Item{
			Attempt:       a,
			OwnerUsername: uc.ownerName(ctx, a.UserID, names),
			ImageURL:      uc.imageURL(ctx, a.ProofImage),
		})
	}
	return items, uc.budgetOf(voter), nil
}

// Vote records voterID's vote on an attempt. The vote that brings the attempt to the
// threshold promotes it to validated in the same write and triggers settlement; votes
// arriving after that fail with ErrNotSubmitted.
func (uc *UseCase) Vote(ctx context.Context, voterID, attemptID string) (*domain.Attempt, error) {
	attempt, err := uc.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, domain.Internal("load quest attempt", err)
	}
	if err := attempt.CheckVote(voterID); err != nil {
		uc.reject(err)
		return nil, err
	}

	voter, err := uc.voter(ctx, voterID)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	day := domain.DayOf(now)

	if voter.VotesCast(day) >= uc.rules.DailyValidationCap {
		uc.reject(domain.ErrDailyLimit)
		return nil, domain.ErrDailyLimit
	}

	grant, err := uc.users.ClaimVote(ctx, voterID, day, now, uc.rules.DailyValidationCap, uc.rules.CapBonusPoints)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			uc.reject(domain.ErrDailyLimit)
			return nil, domain.ErrDailyLimit
		}
		return nil, domain.Internal("claim validation budget", err)
	}

	updated, err := uc.attempts.AddValidation(ctx, attemptID, voterID, uc.rules.ValidationThreshold, now)
	if err != nil {
		if refErr := uc.users.RefundVote(ctx, voterID, day, grant, uc.rules.CapBonusPoints); refErr != nil {
			uc.logger.Error("validation budget refund failed", zap.String("user_id", voterID), zap.Error(refErr))
		}
		if errors.Is(err, repository.ErrPreconditionFailed) {
			err = usecase.ExplainConflict(ctx, uc.attempts, attemptID, func(a *domain.Attempt) error {
				return a.CheckVote(voterID)
			})
			uc.reject(err)
			return nil, err
		}
		return nil, domain.Internal("record validation", err)
	}
	uc.recorder.VoteCast(voteAccepted)

	result := updated
	if updated.Status == domain.StatusValidated && uc.settlement != nil {
		settled, err := uc.settlement.Finalize(ctx, attemptID)
		switch {
		case err != nil:
			uc.logger.Warn("settlement deferred to sweep", zap.String("attempt_id", attemptID), zap.Error(err))
		case settled != nil:
			result = settled
		}
	}

	uc.notifier.Emit(ctx, domain.QuestValidatedEvent(result, voterID))
	if grant.Bonus {
		uc.logger.Info("daily validation cap reached",
			zap.String("user_id", voterID),
			zap.Int("bonus", uc.rules.CapBonusPoints))
		uc.notifier.Emit(ctx, domain.PointsUpdatedEvent(voterID, grant.Points))
	}
	return result, nil
}

func (uc *UseCase) voter(ctx context.Context, voterID string) (*domain.User, error) {
	if voterID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := uc.users.Ensure(ctx, &domain.User{ID: voterID}); err != nil {
		return nil, domain.Internal("ensure user", err)
	}
	voter, err := uc.users.GetByID(ctx, voterID)
	if err != nil {
		return nil, domain.Internal("load user", err)
	}
	return voter, nil
}

// ownerName resolves the username of ownerID, caching lookups in names for one listing.
func (uc *UseCase) ownerName(ctx context.Context, ownerID string, names map[string]string) string {
	if name, ok := names[ownerID]; ok {
		return name
	}
	name := ""
	owner, err := uc.users.GetByID(ctx, ownerID)
	if err != nil {
		uc.logger.Warn("owner lookup failed", zap.String("user_id", ownerID), zap.Error(err))
	} else {
		name = owner.Username
	}
	names[ownerID] = name
	return name
}

func (uc *UseCase) budgetOf(voter *domain.User) Budget {
	used := voter.VotesCast(domain.DayOf(uc.clock.Now()))
	remaining := uc.rules.DailyValidationCap - used
	if remaining < 0 {
		remaining = 0
	}
	return Budget{Limit: uc.rules.DailyValidationCap, Used: used, Remaining: remaining}
}

func (uc *UseCase) imageURL(ctx context.Context, ref string) string {
	if ref == "" || uc.proofs == nil {
		return ""
	}
	url, err := uc.proofs.URL(ctx, ref)
	if err != nil {
		uc.logger.Warn("proof url resolution failed", zap.String("proof", ref), zap.Error(err))
		return ""
	}
	return url
}

func (uc *UseCase) reject(err error) {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		uc.recorder.VoteCast(string(dErr.Code))
	}
}
