package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventQuestValidated = "questValidated"
	EventPointsUpdated  = "pointsUpdated"
)

// Event is an outbound notification describing a change clients may want pushed to them.
type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type QuestValidatedPayload struct {
	AttemptID       string        `json:"attemptId"`
	ValidationCount int           `json:"validationCount"`
	Status          AttemptStatus `json:"status"`
	VoterID         string        `json:"voterId"`
}

type PointsUpdatedPayload struct {
	UserID string `json:"userId"`
	Points int    `json:"points"`
}

// NewEvent encodes payload into a named event.
func NewEvent(name string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// The typed payloads below hold only strings and ints, so encoding them cannot fail.

func QuestValidatedEvent(a *Attempt, voterID string) Event {
	event, _ := NewEvent(EventQuestValidated, QuestValidatedPayload{
		AttemptID:       a.ID,
		ValidationCount: a.ValidationCount,
		Status:          a.Status,
		VoterID:         voterID,
	})
	return event
}

func PointsUpdatedEvent(userID string, points int) Event {
	event, _ := NewEvent(EventPointsUpdated, PointsUpdatedPayload{UserID: userID, Points: points})
	return event
}
