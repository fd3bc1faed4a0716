package outbox

import (
	"time"

	"github.com/fastygo/dailyquest/domain"
)

const (
	PriorityHigh   = 1
	PriorityNormal = 3
	PriorityLow    = 5
)

// Entry is an event parked until the notification transport accepts it.
type Entry struct {
	Event    domain.Event `json:"event"`
	Priority int          `json:"priority"`
	Attempts int          `json:"attempts"`
	ParkedAt time.Time    `json:"parked_at"`
	LastErr  string       `json:"last_error,omitempty"`

	key []byte
}

// NewEntry parks event with a priority derived from its name: balance changes go first.
func NewEntry(event domain.Event, cause error) Entry {
	e := Entry{Event: event, Priority: PriorityNormal}
	if event.Name == domain.EventPointsUpdated {
		e.Priority = PriorityHigh
	}
	if cause != nil {
		e.LastErr = cause.Error()
	}
	return e
}

func (e *Entry) normalize() {
	if e.Priority < PriorityHigh || e.Priority > PriorityLow {
		e.Priority = PriorityNormal
	}
	if e.ParkedAt.IsZero() {
		e.ParkedAt = time.Now()
	}
}
