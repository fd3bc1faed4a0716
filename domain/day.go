package domain

import "time"

const dayKeyLayout = "2006-01-02"

// Day is the half-open window [Start, End) of one calendar day in a fixed location.
type Day struct {
	Start time.Time
	End   time.Time
}

// DayOf returns the calendar day containing t, in t's location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return Day{Start: start, End: start.AddDate(0, 0, 1)}
}

func (d Day) Contains(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

// Key identifies the day in allocation slots.
func (d Day) Key() string {
	return d.Start.Format(dayKeyLayout)
}

// Clock is the source of "now" for the engine.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a configured location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}
