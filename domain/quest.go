package domain

import "time"

// Quest is a catalog template attempts are drawn from.
type Quest struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Points      int       `json:"points"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (q *Quest) Validate() error {
	if q == nil || q.Title == "" {
		return NewError(ErrCodeInvalid, "quest title is required")
	}
	if q.Points < 1 {
		return NewError(ErrCodeInvalid, "quest must be worth at least 1 point")
	}
	return nil
}
