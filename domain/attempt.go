package domain

import (
	"slices"
	"time"
)

// AttemptStatus is the lifecycle state of a quest attempt.
type AttemptStatus string

const (
	StatusInitial    AttemptStatus = "initial"
	StatusInProgress AttemptStatus = "in_progress"
	StatusSubmitted  AttemptStatus = "submitted"
	StatusValidated  AttemptStatus = "validated"
	StatusFailed     AttemptStatus = "failed"
)

var transitions = map[AttemptStatus][]AttemptStatus{
	StatusInitial:    {StatusInProgress},
	StatusInProgress: {StatusSubmitted},
	StatusSubmitted:  {StatusValidated, StatusFailed},
}

// CanTransitionTo reports whether next is a legal forward step from s.
func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	return slices.Contains(transitions[s], next)
}

func (s AttemptStatus) Valid() bool {
	switch s {
	case StatusInitial, StatusInProgress, StatusSubmitted, StatusValidated, StatusFailed:
		return true
	}
	return false
}

// Attempt is one user's daily instance of a quest template.
type Attempt struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user"`
	QuestID          string        `json:"quest"`
	QuestTitle       string        `json:"quest_title"`
	QuestDescription string        `json:"quest_description,omitempty"`
	QuestPoints      int           `json:"quest_points"`
	Status           AttemptStatus `json:"status"`
	StartDate        time.Time     `json:"start_date"`
	EndDate          *time.Time    `json:"end_date,omitempty"`
	ProofImage       string        `json:"proof_image,omitempty"`
	Changed          bool          `json:"changed"`
	ValidationCount  int           `json:"validation_count"`
	ValidatedBy      []string      `json:"validated_by"`
	SettledAt        *time.Time    `json:"settled_at,omitempty"`
	AllocationDay    string        `json:"allocation_day"`
	Slot             int           `json:"slot"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewAttempt assigns quest to userID in the given allocation slot.
func NewAttempt(userID string, quest Quest, day Day, slot int, now time.Time) *Attempt {
	a := &Attempt{
		UserID:        userID,
		Status:        StatusInitial,
		StartDate:     now,
		ValidatedBy:   []string{},
		AllocationDay: day.Key(),
		Slot:          slot,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	a.ApplySnapshot(quest)
	return a
}

// ApplySnapshot copies the template fields the attempt keeps for its whole life.
func (a *Attempt) ApplySnapshot(quest Quest) {
	a.QuestID = quest.ID
	a.QuestTitle = quest.Title
	a.QuestDescription = quest.Description
	a.QuestPoints = quest.Points
}

func (a *Attempt) OwnedBy(userID string) bool {
	return a != nil && a.UserID == userID
}

func (a *Attempt) HasVoter(userID string) bool {
	return a != nil && slices.Contains(a.ValidatedBy, userID)
}

// Settled reports whether the owner's reward for this attempt has been recorded.
func (a *Attempt) Settled() bool {
	return a != nil && a.SettledAt != nil
}

// ApplyVote records voterID and promotes the attempt to validated once the count reaches
// threshold. It reports whether this vote performed the promotion.
func (a *Attempt) ApplyVote(voterID string, threshold int, at time.Time) bool {
	a.ValidatedBy = append(a.ValidatedBy, voterID)
	a.ValidationCount++
	a.UpdatedAt = at
	if a.Status == StatusSubmitted && a.ValidationCount >= threshold {
		a.Status = StatusValidated
		return true
	}
	return false
}

// Stale reports whether cleanup on day must retire the attempt: it was never submitted and
// did not start within day.
func (a *Attempt) Stale(day Day) bool {
	if a == nil || day.Contains(a.StartDate) {
		return false
	}
	return a.Status == StatusInitial || a.Status == StatusInProgress
}

// CheckStart validates the initial -> in_progress transition for userID.
func (a *Attempt) CheckStart(userID string) error {
	if !a.OwnedBy(userID) {
		return ErrNotOwner
	}
	if a.Status != StatusInitial {
		return ErrNotInitial
	}
	return nil
}

// CheckSubmit validates the in_progress -> submitted transition for userID.
func (a *Attempt) CheckSubmit(userID string) error {
	if !a.OwnedBy(userID) {
		return ErrNotOwner
	}
	if a.Status != StatusInProgress {
		return ErrNotInProgress
	}
	return nil
}

// CheckSwap validates a template swap requested by userID.
func (a *Attempt) CheckSwap(userID string) error {
	if !a.OwnedBy(userID) {
		return ErrNotOwner
	}
	if a.Status != StatusInitial {
		return ErrAlreadyStarted
	}
	if a.Changed {
		return ErrAlreadyChanged
	}
	return nil
}

// CheckVote validates a peer vote by voterID.
func (a *Attempt) CheckVote(voterID string) error {
	if a.Status != StatusSubmitted {
		return ErrNotSubmitted
	}
	if a.OwnedBy(voterID) {
		return ErrSelfValidation
	}
	if a.HasVoter(voterID) {
		return ErrAlreadyVoted
	}
	return nil
}
