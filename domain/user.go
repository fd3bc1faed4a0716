package domain

import "time"

// User is the quest-facing view of an authenticated identity: balances and counters only.
type User struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	Points             int        `json:"points"`
	SuccessfulQuests   int        `json:"successful_quests"`
	FailedQuests       int        `json:"failed_quests"`
	DailyValidations   int        `json:"daily_validations"`
	LastValidationDate *time.Time `json:"last_validation_date,omitempty"`
	LastSwapDate       *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// VotesCast returns the number of validations the user cast during day.
// A stored counter from an earlier day counts as zero.
func (u *User) VotesCast(day Day) int {
	if u == nil || u.LastValidationDate == nil || !day.Contains(*u.LastValidationDate) {
		return 0
	}
	return u.DailyValidations
}

// SwappedOn reports whether the daily swap was already used during day.
func (u *User) SwappedOn(day Day) bool {
	return u != nil && u.LastSwapDate != nil && day.Contains(*u.LastSwapDate)
}

// VoteGrant is the outcome of claiming one unit of a validator's daily budget.
type VoteGrant struct {
	DailyCount int
	Bonus      bool
	Points     int
}
