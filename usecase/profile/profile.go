package profile

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

// Stats is the caller's quest scoreboard.
type Stats struct {
	UserID               string `json:"userId"`
	Username             string `json:"username"`
	Points               int    `json:"points"`
	SuccessfulQuests     int    `json:"successfulQuests"`
	FailedQuests         int    `json:"failedQuests"`
	DailyValidations     int    `json:"dailyValidations"`
	RemainingValidations int    `json:"remainingValidations"`
}

type UseCase struct {
	users  repository.UserRepository
	clock  domain.Clock
	rules  domain.Rules
	logger *zap.Logger
}

func New(users repository.UserRepository, clock domain.Clock, rules domain.Rules, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &UseCase{
		users:  users,
		clock:  clock,
		rules:  rules.Normalize(),
		logger: logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID, username string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := uc.users.Ensure(ctx, &domain.User{ID: userID, Username: username}); err != nil {
		return nil, domain.Internal("ensure user", err)
	}
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.Internal("load user", err)
	}
	return user, nil
}

// Stats reports counters with the validation budget evaluated for today.
func (uc *UseCase) Stats(ctx context.Context, userID, username string) (*Stats, error) {
	user, err := uc.GetProfile(ctx, userID, username)
	if err != nil {
		return nil, err
	}

	used := user.VotesCast(domain.DayOf(uc.clock.Now()))
	remaining := uc.rules.DailyValidationCap - used
	if remaining < 0 {
		remaining = 0
	}
	return &Stats{
		UserID:               user.ID,
		Username:             user.Username,
		Points:               user.Points,
		SuccessfulQuests:     user.SuccessfulQuests,
		FailedQuests:         user.FailedQuests,
		DailyValidations:     used,
		RemainingValidations: remaining,
	}, nil
}
