package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)

func testQuest() Quest {
	return Quest{ID: "q1", Title: "Walk 5 km", Description: "outside", Points: 3, IsActive: true}
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusInitial.CanTransitionTo(StatusInProgress))
	assert.True(t, StatusInProgress.CanTransitionTo(StatusSubmitted))
	assert.True(t, StatusSubmitted.CanTransitionTo(StatusValidated))
	assert.True(t, StatusSubmitted.CanTransitionTo(StatusFailed))

	assert.False(t, StatusInitial.CanTransitionTo(StatusSubmitted))
	assert.False(t, StatusInProgress.CanTransitionTo(StatusInitial))
	assert.False(t, StatusValidated.CanTransitionTo(StatusSubmitted))
	assert.False(t, StatusFailed.CanTransitionTo(StatusInitial))

	assert.True(t, StatusFailed.Valid())
	assert.False(t, AttemptStatus("done").Valid())
}

func TestNewAttemptSnapshotsQuest(t *testing.T) {
	a := NewAttempt("u1", testQuest(), DayOf(noon), 2, noon)

	assert.Equal(t, StatusInitial, a.Status)
	assert.Equal(t, "q1", a.QuestID)
	assert.Equal(t, "Walk 5 km", a.QuestTitle)
	assert.Equal(t, 3, a.QuestPoints)
	assert.Equal(t, "2024-03-14", a.AllocationDay)
	assert.Equal(t, 2, a.Slot)
	assert.NotNil(t, a.ValidatedBy)
	assert.Zero(t, a.ValidationCount)
	assert.False(t, a.Changed)
}

func TestCheckStart(t *testing.T) {
	a := NewAttempt("u1", testQuest(), DayOf(noon), 0, noon)

	assert.ErrorIs(t, a.CheckStart("u2"), ErrNotOwner)
	assert.NoError(t, a.CheckStart("u1"))

	a.Status = StatusInProgress
	assert.ErrorIs(t, a.CheckStart("u1"), ErrNotInitial)
}

func TestCheckSubmit(t *testing.T) {
	a := NewAttempt("u1", testQuest(), DayOf(noon), 0, noon)

	assert.ErrorIs(t, a.CheckSubmit("u1"), ErrNotInProgress)
	a.Status = StatusInProgress
	assert.ErrorIs(t, a.CheckSubmit("u2"), ErrNotOwner)
	assert.NoError(t, a.CheckSubmit("u1"))
}

func TestCheckSwap(t *testing.T) {
	a := NewAttempt("u1", testQuest(), DayOf(noon), 0, noon)
	assert.NoError(t, a.CheckSwap("u1"))
	assert.ErrorIs(t, a.CheckSwap("u2"), ErrNotOwner)

	a.Changed = true
	assert.ErrorIs(t, a.CheckSwap("u1"), ErrAlreadyChanged)

	a.Changed = false
	a.Status = StatusInProgress
	assert.ErrorIs(t, a.CheckSwap("u1"), ErrAlreadyStarted)
}

func TestCheckVote(t *testing.T) {
	a := NewAttempt("owner", testQuest(), DayOf(noon), 0, noon)
	assert.ErrorIs(t, a.CheckVote("v1"), ErrNotSubmitted)

	a.Status = StatusSubmitted
	assert.ErrorIs(t, a.CheckVote("owner"), ErrSelfValidation)
	assert.NoError(t, a.CheckVote("v1"))

	a.ValidatedBy = append(a.ValidatedBy, "v1")
	a.ValidationCount = 1
	assert.ErrorIs(t, a.CheckVote("v1"), ErrAlreadyVoted)
	assert.NoError(t, a.CheckVote("v2"))

	a.Status = StatusValidated
	assert.ErrorIs(t, a.CheckVote("v2"), ErrNotSubmitted)
}

func TestStale(t *testing.T) {
	today := DayOf(noon)
	yesterday := noon.Add(-24 * time.Hour)

	cases := []struct {
		name   string
		status AttemptStatus
		start  time.Time
		want   bool
	}{
		{"initial today", StatusInitial, noon, false},
		{"initial yesterday", StatusInitial, yesterday, true},
		{"in progress yesterday", StatusInProgress, yesterday, true},
		{"submitted yesterday", StatusSubmitted, yesterday, false},
		{"validated yesterday", StatusValidated, yesterday, false},
		{"initial just before midnight", StatusInitial, today.Start.Add(-time.Nanosecond), true},
		{"initial at midnight", StatusInitial, today.Start, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAttempt("u1", testQuest(), DayOf(tc.start), 0, tc.start)
			a.Status = tc.status
			assert.Equal(t, tc.want, a.Stale(today))
		})
	}
}

func TestDayWindow(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	late := time.Date(2024, time.March, 14, 23, 30, 0, 0, paris)
	day := DayOf(late)

	assert.Equal(t, "2024-03-14", day.Key())
	assert.True(t, day.Contains(late))
	assert.True(t, day.Contains(day.Start))
	assert.False(t, day.Contains(day.End))
	assert.Equal(t, 24*time.Hour, day.End.Sub(day.Start))

	// 23:30 UTC on the 14th is already the 15th in Paris
	assert.False(t, day.Contains(time.Date(2024, time.March, 14, 23, 30, 0, 0, time.UTC)))
}

func TestVotesCastResetsAcrossDays(t *testing.T) {
	yesterday := noon.Add(-24 * time.Hour)
	u := &User{ID: "u1", DailyValidations: 7, LastValidationDate: &yesterday}

	assert.Equal(t, 0, u.VotesCast(DayOf(noon)))
	assert.Equal(t, 7, u.VotesCast(DayOf(yesterday)))

	u.LastValidationDate = nil
	assert.Equal(t, 0, u.VotesCast(DayOf(noon)))
}

func TestSwappedOn(t *testing.T) {
	u := &User{ID: "u1"}
	assert.False(t, u.SwappedOn(DayOf(noon)))

	at := noon.Add(-time.Hour)
	u.LastSwapDate = &at
	assert.True(t, u.SwappedOn(DayOf(noon)))
	assert.False(t, u.SwappedOn(DayOf(noon.Add(24*time.Hour))))
}

func TestRulesNormalize(t *testing.T) {
	r := Rules{DailyQuota: 0, ValidationThreshold: -1, DailyValidationCap: 0, CapBonusPoints: -3}.Normalize()
	assert.Equal(t, DefaultRules().DailyQuota, r.DailyQuota)
	assert.Equal(t, 5, r.ValidationThreshold)
	assert.Equal(t, 10, r.DailyValidationCap)
	assert.Equal(t, 0, r.CapBonusPoints)

	custom := Rules{DailyQuota: 4, ValidationThreshold: 2, DailyValidationCap: 3, CapBonusPoints: 2}
	assert.Equal(t, custom, custom.Normalize())
}

func TestQuestValidate(t *testing.T) {
	q := testQuest()
	assert.NoError(t, q.Validate())

	q.Points = 0
	assert.True(t, IsDomainError(q.Validate(), ErrCodeInvalid))

	q = testQuest()
	q.Title = ""
	assert.True(t, IsDomainError(q.Validate(), ErrCodeInvalid))
}

func TestEventPayloads(t *testing.T) {
	a := NewAttempt("owner", testQuest(), DayOf(noon), 0, noon)
	a.ID = "a1"
	a.Status = StatusValidated
	a.ValidationCount = 5

	ev := QuestValidatedEvent(a, "v5")
	assert.Equal(t, EventQuestValidated, ev.Name)
	assert.NotEmpty(t, ev.ID)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "a1", payload["attemptId"])
	assert.EqualValues(t, 5, payload["validationCount"])
	assert.Equal(t, "validated", payload["status"])
	assert.Equal(t, "v5", payload["voterId"])

	pts := PointsUpdatedEvent("owner", 13)
	var points PointsUpdatedPayload
	require.NoError(t, json.Unmarshal(pts.Payload, &points))
	assert.Equal(t, PointsUpdatedPayload{UserID: "owner", Points: 13}, points)
}

func TestErrorClassification(t *testing.T) {
	wrapped := Internal("load", assert.AnError)
	assert.True(t, IsDomainError(wrapped, ErrCodeInternal))
	assert.ErrorIs(t, wrapped, assert.AnError)

	assert.Same(t, ErrDailyLimit, Internal("ignored", ErrDailyLimit))
	assert.Nil(t, Internal("nothing", nil))

	assert.True(t, ErrSelfValidation.ClientError())
	var dErr *Error
	require.ErrorAs(t, wrapped, &dErr)
	assert.False(t, dErr.ClientError())
}
