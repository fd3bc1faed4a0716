// Package memory keeps users, quests and attempts in process memory. Each conditional
// write runs under one mutex, mirroring the single-document atomicity of the real stores.
package memory

import (
	"context"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	quests   map[string]*domain.Quest
	attempts map[string]*domain.Attempt
	// settled maps attempt ids to the user credited for them.
	settled map[string]string
}

func New() *Store {
	return &Store{
		users:    make(map[string]*domain.User),
		quests:   make(map[string]*domain.Quest),
		attempts: make(map[string]*domain.Attempt),
		settled:  make(map[string]string),
	}
}

func (s *Store) Users() repository.UserRepository       { return &userRepository{s} }
func (s *Store) Quests() repository.QuestRepository     { return &questRepository{s} }
func (s *Store) Attempts() repository.AttemptRepository { return &attemptRepository{s} }

// Ping always succeeds; it lets the store stand in for a database in health checks.
func (s *Store) Ping(context.Context) error { return nil }

func cloneAttempt(a *domain.Attempt) domain.Attempt {
	out := *a
	out.ValidatedBy = slices.Clone(a.ValidatedBy)
	if out.ValidatedBy == nil {
		out.ValidatedBy = []string{}
	}
	if a.EndDate != nil {
		end := *a.EndDate
		out.EndDate = &end
	}
	if a.SettledAt != nil {
		settled := *a.SettledAt
		out.SettledAt = &settled
	}
	return out
}

func cloneUser(u *domain.User) domain.User {
	out := *u
	if u.LastValidationDate != nil {
		t := *u.LastValidationDate
		out.LastValidationDate = &t
	}
	if u.LastSwapDate != nil {
		t := *u.LastSwapDate
		out.LastSwapDate = &t
	}
	return out
}

type attemptRepository struct{ s *Store }

func (r *attemptRepository) GetByID(_ context.Context, id string) (*domain.Attempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attempts[id]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	out := cloneAttempt(a)
	return &out, nil
}

func (r *attemptRepository) List(_ context.Context, filter repository.AttemptFilter) ([]domain.Attempt, error) {
	out := r.collect(func(a *domain.Attempt) bool {
		return (filter.UserID == "" || a.UserID == filter.UserID) &&
			(filter.Status == "" || a.Status == filter.Status)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Offset, filter.Limit), nil
}

func (r *attemptRepository) ListStartedOn(_ context.Context, userID string, day domain.Day) ([]domain.Attempt, error) {
	out := r.collect(func(a *domain.Attempt) bool {
		return a.UserID == userID && day.Contains(a.StartDate)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (r *attemptRepository) ListValidatable(_ context.Context, voterID string, limit int) ([]domain.Attempt, error) {
	out := r.collect(func(a *domain.Attempt) bool {
		return a.Status == domain.StatusSubmitted && a.UserID != voterID && !a.HasVoter(voterID)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return page(out, 0, limit), nil
}

func (r *attemptRepository) ListSettlementBacklog(_ context.Context, threshold, limit int) ([]domain.Attempt, error) {
	out := r.collect(func(a *domain.Attempt) bool {
		return (a.Status == domain.StatusSubmitted && a.ValidationCount >= threshold) ||
			(a.Status == domain.StatusValidated && !a.Settled())
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return page(out, 0, limit), nil
}

func (r *attemptRepository) HasChangedOn(_ context.Context, userID string, day domain.Day) (bool, error) {
	found := r.collect(func(a *domain.Attempt) bool {
		return a.UserID == userID && a.Changed && day.Contains(a.StartDate)
	})
	return len(found) > 0, nil
}

func (r *attemptRepository) Create(_ context.Context, attempt *domain.Attempt) error {
	if attempt == nil {
		return domain.ErrInvalidPayload
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.attempts {
		if existing.UserID == attempt.UserID && existing.AllocationDay == attempt.AllocationDay && existing.Slot == attempt.Slot {
			return domain.ErrDuplicateSlot
		}
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.ValidatedBy == nil {
		attempt.ValidatedBy = []string{}
	}
	stored := cloneAttempt(attempt)
	r.s.attempts[attempt.ID] = &stored
	return nil
}

func (r *attemptRepository) DeleteStale(_ context.Context, id string, day domain.Day) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attempts[id]
	if !ok || !a.Stale(day) {
		return false, nil
	}
	delete(r.s.attempts, id)
	return true, nil
}

func (r *attemptRepository) MarkStarted(_ context.Context, id, userID string, at time.Time) (*domain.Attempt, error) {
	return r.update(id, func(a *domain.Attempt) bool {
		if a.UserID != userID || a.Status != domain.StatusInitial {
			return false
		}
		a.Status = domain.StatusInProgress
		a.StartDate = at
		a.UpdatedAt = at
		return true
	})
}

func (r *attemptRepository) MarkSubmitted(_ context.Context, id, userID, proof string, at time.Time) (*domain.Attempt, error) {
	return r.update(id, func(a *domain.Attempt) bool {
		if a.UserID != userID || a.Status != domain.StatusInProgress {
			return false
		}
		end := at
		a.Status = domain.StatusSubmitted
		a.ProofImage = proof
		a.EndDate = &end
		a.UpdatedAt = at
		return true
	})
}

func (r *attemptRepository) ApplySwap(_ context.Context, id, userID string, quest domain.Quest, at time.Time) (*domain.Attempt, error) {
	return r.update(id, func(a *domain.Attempt) bool {
		if a.UserID != userID || a.Status != domain.StatusInitial || a.Changed {
			return false
		}
		a.ApplySnapshot(quest)
		a.Changed = true
		a.UpdatedAt = at
		return true
	})
}

func (r *attemptRepository) AddValidation(_ context.Context, id, voterID string, threshold int, at time.Time) (*domain.Attempt, error) {
	return r.update(id, func(a *domain.Attempt) bool {
		if a.CheckVote(voterID) != nil {
			return false
		}
		a.ApplyVote(voterID, threshold, at)
		return true
	})
}

func (r *attemptRepository) MarkValidated(_ context.Context, id string, threshold int, at time.Time) (*domain.Attempt, error) {
	return r.update(id, func(a *domain.Attempt) bool {
		if a.Status != domain.StatusSubmitted || a.ValidationCount < threshold {
			return false
		}
		a.Status = domain.StatusValidated
		a.UpdatedAt = at
		return true
	})
}

func (r *attemptRepository) MarkSettled(_ context.Context, id string, at time.Time) (*domain.Attempt, error) {
	return r.update(id, func(a *domain.Attempt) bool {
		if a.Status != domain.StatusValidated || a.Settled() {
			return false
		}
		settled := at
		a.SettledAt = &settled
		a.UpdatedAt = at
		return true
	})
}

func (r *attemptRepository) update(id string, apply func(a *domain.Attempt) bool) (*domain.Attempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attempts[id]
	if !ok {
		return nil, repository.ErrPreconditionFailed
	}
	next := cloneAttempt(a)
	if !apply(&next) {
		return nil, repository.ErrPreconditionFailed
	}
	r.s.attempts[id] = &next
	out := cloneAttempt(&next)
	return &out, nil
}

func (r *attemptRepository) collect(match func(a *domain.Attempt) bool) []domain.Attempt {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Attempt
	for _, a := range r.s.attempts {
		if match(a) {
			out = append(out, cloneAttempt(a))
		}
	}
	return out
}

func page(items []domain.Attempt, offset, limit int) []domain.Attempt {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type userRepository struct{ s *Store }

func (r *userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (r *userRepository) Ensure(_ context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.users[user.ID]; ok {
		if existing.Username == "" && user.Username != "" {
			existing.Username = user.Username
		}
		return nil
	}
	now := time.Now()
	stored := domain.User{ID: user.ID, Username: user.Username, CreatedAt: now, UpdatedAt: now}
	r.s.users[user.ID] = &stored
	return nil
}

func (r *userRepository) IncrementFailed(_ context.Context, id string, n int) error {
	return r.mutate(id, func(u *domain.User) bool {
		u.FailedQuests += n
		return true
	})
}

func (r *userRepository) Settle(_ context.Context, id, attemptID string, points int) (int, error) {
	var balance int
	err := r.mutate(id, func(u *domain.User) bool {
		if _, done := r.s.settled[attemptID]; done {
			return false
		}
		r.s.settled[attemptID] = id
		u.Points += points
		u.SuccessfulQuests++
		balance = u.Points
		return true
	})
	return balance, err
}

func (r *userRepository) ClaimVote(_ context.Context, id string, day domain.Day, now time.Time, limit, bonus int) (domain.VoteGrant, error) {
	var grant domain.VoteGrant
	err := r.mutate(id, func(u *domain.User) bool {
		count := u.VotesCast(day)
		if count >= limit {
			return false
		}
		count++
		u.DailyValidations = count
		last := now
		u.LastValidationDate = &last
		grant = domain.VoteGrant{DailyCount: count}
		if count == limit && bonus > 0 {
			u.Points += bonus
			grant.Bonus = true
		}
		grant.Points = u.Points
		return true
	})
	return grant, err
}

func (r *userRepository) RefundVote(_ context.Context, id string, day domain.Day, grant domain.VoteGrant, bonus int) error {
	return r.mutate(id, func(u *domain.User) bool {
		if u.VotesCast(day) == 0 {
			return false
		}
		u.DailyValidations--
		if grant.Bonus {
			u.Points -= bonus
		}
		return true
	})
}

func (r *userRepository) ClaimSwap(_ context.Context, id string, day domain.Day, now time.Time) error {
	return r.mutate(id, func(u *domain.User) bool {
		if u.SwappedOn(day) {
			return false
		}
		at := now
		u.LastSwapDate = &at
		return true
	})
}

func (r *userRepository) ReleaseSwap(_ context.Context, id string, day domain.Day) error {
	return r.mutate(id, func(u *domain.User) bool {
		if !u.SwappedOn(day) {
			return false
		}
		u.LastSwapDate = nil
		return true
	})
}

func (r *userRepository) mutate(id string, apply func(u *domain.User) bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	next := cloneUser(u)
	if !apply(&next) {
		return repository.ErrPreconditionFailed
	}
	next.UpdatedAt = time.Now()
	r.s.users[id] = &next
	return nil
}

type questRepository struct{ s *Store }

func (r *questRepository) GetByID(_ context.Context, id string) (*domain.Quest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quests[id]
	if !ok {
		return nil, domain.ErrQuestNotFound
	}
	out := *q
	return &out, nil
}

func (r *questRepository) ListActive(_ context.Context) ([]domain.Quest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Quest
	for _, q := range r.s.quests {
		if q.IsActive {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *questRepository) Sample(ctx context.Context, n int, excluding []string) ([]domain.Quest, error) {
	if n <= 0 {
		return nil, nil
	}
	active, err := r.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	pool := active[:0]
	for _, q := range active {
		if !slices.Contains(excluding, q.ID) {
			pool = append(pool, q)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n < len(pool) {
		pool = pool[:n]
	}
	return pool, nil
}

func (r *questRepository) Create(_ context.Context, quest *domain.Quest) error {
	if err := quest.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if quest.ID == "" {
		quest.ID = uuid.NewString()
	}
	now := time.Now()
	if quest.CreatedAt.IsZero() {
		quest.CreatedAt = now
	}
	quest.UpdatedAt = now
	stored := *quest
	r.s.quests[quest.ID] = &stored
	return nil
}
