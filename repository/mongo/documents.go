package mongo

import (
	"time"

	"github.com/fastygo/dailyquest/domain"
)

const (
	usersCollection    = "users"
	questsCollection   = "quests"
	attemptsCollection = "userquests"
)

type userDocument struct {
	ID                 string     `bson:"_id"`
	Username           string     `bson:"username"`
	Points             int        `bson:"points"`
	SuccessfulQuests   int        `bson:"successful_quests"`
	FailedQuests       int        `bson:"failed_quests"`
	DailyValidations   int        `bson:"daily_validations"`
	LastValidationDate *time.Time `bson:"last_validation_date,omitempty"`
	LastSwapDate       *time.Time `bson:"last_swap_date,omitempty"`
	SettledAttempts    []string   `bson:"settled_attempts,omitempty"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

func (d userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:                 d.ID,
		Username:           d.Username,
		Points:             d.Points,
		SuccessfulQuests:   d.SuccessfulQuests,
		FailedQuests:       d.FailedQuests,
		DailyValidations:   d.DailyValidations,
		LastValidationDate: d.LastValidationDate,
		LastSwapDate:       d.LastSwapDate,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type questDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Points      int       `bson:"points"`
	IsActive    bool      `bson:"is_active"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func newQuestDocument(q *domain.Quest) questDocument {
	return questDocument{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Points:      q.Points,
		IsActive:    q.IsActive,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
}

func (d questDocument) toDomain() domain.Quest {
	return domain.Quest{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Points:      d.Points,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type attemptDocument struct {
	ID               string     `bson:"_id"`
	UserID           string     `bson:"user_id"`
	QuestID          string     `bson:"quest_id"`
	QuestTitle       string     `bson:"quest_title"`
	QuestDescription string     `bson:"quest_description"`
	QuestPoints      int        `bson:"quest_points"`
	Status           string     `bson:"status"`
	StartDate        time.Time  `bson:"start_date"`
	EndDate          *time.Time `bson:"end_date,omitempty"`
	ProofImage       string     `bson:"proof_image"`
	Changed          bool       `bson:"changed"`
	ValidationCount  int        `bson:"validation_count"`
	ValidatedBy      []string   `bson:"validated_by"`
	SettledAt        *time.Time `bson:"settled_at,omitempty"`
	AllocationDay    string     `bson:"allocation_day"`
	Slot             int        `bson:"slot"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func newAttemptDocument(a *domain.Attempt) attemptDocument {
	validatedBy := a.ValidatedBy
	if validatedBy == nil {
		validatedBy = []string{}
	}
	return attemptDocument{
		ID:               a.ID,
		UserID:           a.UserID,
		QuestID:          a.QuestID,
		QuestTitle:       a.QuestTitle,
		QuestDescription: a.QuestDescription,
		QuestPoints:      a.QuestPoints,
		Status:           string(a.Status),
		StartDate:        a.StartDate,
		EndDate:          a.EndDate,
		ProofImage:       a.ProofImage,
		Changed:          a.Changed,
		ValidationCount:  a.ValidationCount,
		ValidatedBy:      validatedBy,
		SettledAt:        a.SettledAt,
		AllocationDay:    a.AllocationDay,
		Slot:             a.Slot,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func (d attemptDocument) toDomain() domain.Attempt {
	validatedBy := d.ValidatedBy
	if validatedBy == nil {
		validatedBy = []string{}
	}
	return domain.Attempt{
		ID:               d.ID,
		UserID:           d.UserID,
		QuestID:          d.QuestID,
		QuestTitle:       d.QuestTitle,
		QuestDescription: d.QuestDescription,
		QuestPoints:      d.QuestPoints,
		Status:           domain.AttemptStatus(d.Status),
		StartDate:        d.StartDate,
		EndDate:          d.EndDate,
		ProofImage:       d.ProofImage,
		Changed:          d.Changed,
		ValidationCount:  d.ValidationCount,
		ValidatedBy:      validatedBy,
		SettledAt:        d.SettledAt,
		AllocationDay:    d.AllocationDay,
		Slot:             d.Slot,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}
