// Package allocator hands every user their daily quota of quest attempts and manages the
// once-a-day template swap.
package allocator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
	"github.com/fastygo/dailyquest/usecase"
)

const releaseConcurrency = 4

type Deps struct {
	Users    repository.UserRepository
	Quests   repository.QuestRepository
	Attempts repository.AttemptRepository
	Proofs   usecase.ProofStorage
	Clock    domain.Clock
	Recorder usecase.Recorder
	Rules    domain.Rules
}

type UseCase struct {
	users    repository.UserRepository
	quests   repository.QuestRepository
	attempts repository.AttemptRepository
	proofs   usecase.ProofStorage
	clock    domain.Clock
	recorder usecase.Recorder
	rules    domain.Rules
	logger   *zap.Logger
}

func New(deps Deps, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.Recorder == nil {
		deps.Recorder = usecase.NopRecorder{}
	}
	return &UseCase{
		users:    deps.Users,
		quests:   deps.Quests,
		attempts: deps.Attempts,
		proofs:   deps.Proofs,
		clock:    deps.Clock,
		recorder: deps.Recorder,
		rules:    deps.Rules.Normalize(),
		logger:   logger,
	}
}

// EnsureToday retires the user's stale attempts and tops today's set up to the daily quota.
// It returns today's attempts ordered by slot; an exhausted template pool yields fewer.
func (uc *UseCase) EnsureToday(ctx context.Context, userID string) ([]domain.Attempt, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := uc.users.Ensure(ctx, &domain.User{ID: userID}); err != nil {
		return nil, domain.Internal("ensure user", err)
	}

	now := uc.clock.Now()
	day := domain.DayOf(now)

	if err := uc.retireStale(ctx, userID, day); err != nil {
		return nil, err
	}

	today, err := uc.attempts.ListStartedOn(ctx, userID, day)
	if err != nil {
		return nil, domain.Internal("list today's quests", err)
	}
	if len(today) >= uc.rules.DailyQuota {
		return today, nil
	}

	created, err := uc.fill(ctx, userID, day, now, today)
	if err != nil {
		return nil, err
	}
	if created == 0 {
		return today, nil
	}

	today, err = uc.attempts.ListStartedOn(ctx, userID, day)
	if err != nil {
		return nil, domain.Internal("list today's quests", err)
	}
	return today, nil
}

func (uc *UseCase) retireStale(ctx context.Context, userID string, day domain.Day) error {
	var stale []domain.Attempt
	for offset := 0; ; {
		page, err := uc.attempts.List(ctx, repository.AttemptFilter{UserID: userID, Limit: 100, Offset: offset})
		if err != nil {
			return domain.Internal("list user quests", err)
		}
		for _, a := range page {
			if a.Stale(day) {
				stale = append(stale, a)
			}
		}
		if len(page) < 100 {
			break
		}
		offset += len(page)
	}
	if len(stale) == 0 {
		return nil
	}

	var (
		retired int
		proofs  []string
	)
	for _, a := range stale {
		deleted, err := uc.attempts.DeleteStale(ctx, a.ID, day)
		if err != nil {
			uc.logger.Warn("stale quest cleanup failed", zap.String("attempt_id", a.ID), zap.Error(err))
			continue
		}
		if !deleted {
			continue
		}
		retired++
		if a.ProofImage != "" {
			proofs = append(proofs, a.ProofImage)
		}
	}

	uc.releaseProofs(ctx, proofs)

	if retired == 0 {
		return nil
	}
	if err := uc.users.IncrementFailed(ctx, userID, retired); err != nil {
		return domain.Internal("record failed quests", err)
	}
	uc.recorder.AttemptsFailed(retired)
	uc.logger.Info("stale quests retired", zap.String("user_id", userID), zap.Int("count", retired))
	return nil
}

// releaseProofs never fails the caller; a leaked file is logged and left behind.
func (uc *UseCase) releaseProofs(ctx context.Context, refs []string) {
	if uc.proofs == nil || len(refs) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(releaseConcurrency)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if err := uc.proofs.Release(gctx, ref); err != nil {
				uc.logger.Warn("proof release failed", zap.String("proof", ref), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (uc *UseCase) fill(ctx context.Context, userID string, day domain.Day, now time.Time, today []domain.Attempt) (int, error) {
	needed := uc.rules.DailyQuota - len(today)

	picks, err := uc.quests.Sample(ctx, needed, usecase.QuestIDs(today))
	if err != nil {
		return 0, domain.Internal("sample quests", err)
	}
	if len(picks) < needed {
		more, err := uc.quests.Sample(ctx, needed-len(picks), questIDs(picks))
		if err != nil {
			return 0, domain.Internal("sample quests", err)
		}
		picks = append(picks, more...)
	}
	if len(picks) == 0 {
		uc.logger.Warn("no active quests to allocate", zap.String("user_id", userID))
		return 0, nil
	}

	used := make(map[int]bool, len(today))
	for _, a := range today {
		if a.AllocationDay == day.Key() {
			used[a.Slot] = true
		}
	}

	created := 0
	for slot := 0; slot < uc.rules.DailyQuota && len(picks) > 0 && created < needed; slot++ {
		if used[slot] {
			continue
		}
		quest := picks[0]
		picks = picks[1:]

		attempt := domain.NewAttempt(userID, quest, day, slot, now)
		if err := uc.attempts.Create(ctx, attempt); err != nil {
			if errors.Is(err, domain.ErrDuplicateSlot) {
				continue
			}
			return created, domain.Internal("create quest attempt", err)
		}
		created++
	}

	uc.recorder.AttemptsAllocated(created)
	return created, nil
}

// Swap replaces the template of an unstarted attempt, at most once per user per day.
func (uc *UseCase) Swap(ctx context.Context, userID, attemptID string) (*domain.Attempt, error) {
	attempt, err := uc.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, domain.Internal("load quest attempt", err)
	}
	if err := attempt.CheckSwap(userID); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	day := domain.DayOf(now)

	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.Internal("load user", err)
	}
	if user.SwappedOn(day) {
		return nil, domain.ErrAlreadyChanged
	}
	changed, err := uc.attempts.HasChangedOn(ctx, userID, day)
	if err != nil {
		return nil, domain.Internal("check daily swap", err)
	}
	if changed {
		return nil, domain.ErrAlreadyChanged
	}

	replacement, err := uc.pickReplacement(ctx, userID, attempt, day)
	if err != nil {
		return nil, err
	}

	if err := uc.users.ClaimSwap(ctx, userID, day, now); err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, domain.ErrAlreadyChanged
		}
		return nil, domain.Internal("claim daily swap", err)
	}

	updated, err := uc.attempts.ApplySwap(ctx, attemptID, userID, *replacement, now)
	if err == nil {
		uc.logger.Info("quest swapped",
			zap.String("attempt_id", attemptID),
			zap.String("from", attempt.QuestID),
			zap.String("to", replacement.ID))
		return updated, nil
	}

	if relErr := uc.users.ReleaseSwap(ctx, userID, day); relErr != nil {
		uc.logger.Error("daily swap release failed", zap.String("user_id", userID), zap.Error(relErr))
	}
	if errors.Is(err, repository.ErrPreconditionFailed) {
		return nil, usecase.ExplainConflict(ctx, uc.attempts, attemptID, func(a *domain.Attempt) error {
			return a.CheckSwap(userID)
		})
	}
	return nil, domain.Internal("swap quest", err)
}

func (uc *UseCase) pickReplacement(ctx context.Context, userID string, attempt *domain.Attempt, day domain.Day) (*domain.Quest, error) {
	today, err := uc.attempts.ListStartedOn(ctx, userID, day)
	if err != nil {
		return nil, domain.Internal("list today's quests", err)
	}
	exclude := append(usecase.QuestIDs(today), attempt.QuestID)

	picks, err := uc.quests.Sample(ctx, 1, exclude)
	if err != nil {
		return nil, domain.Internal("sample quests", err)
	}
	if len(picks) == 0 {
		picks, err = uc.quests.Sample(ctx, 1, []string{attempt.QuestID})
		if err != nil {
			return nil, domain.Internal("sample quests", err)
		}
	}
	if len(picks) == 0 {
		return nil, domain.ErrNoAlternative
	}
	return &picks[0], nil
}

func questIDs(quests []domain.Quest) []string {
	ids := make([]string, 0, len(quests))
	for _, q := range quests {
		ids = append(ids, q.ID)
	}
	return ids
}
