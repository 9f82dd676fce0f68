package calendar

import (
	"time"

	"daycal/internal/model"
)

// Calendar is a read-only, named list of events in one display zone.
type Calendar struct {
	ID       string
	Name     string
	Location *time.Location
	Events   []*Event
}

// DaySummary holds the occurrences of a single day and their total hours.
type DaySummary struct {
	Date        time.Time
	Occurrences []Occurrence
	Hours       float64
}

// NewCalendar builds events from records in source order. Records that
// fail validation are left out of the calendar and returned as
// RecordErrors so the caller can report them.
func NewCalendar(id, name string, records []model.Record, loc *time.Location) (*Calendar, []*RecordError) {
	if loc == nil {
		loc = time.Local
	}
	cal := &Calendar{
		ID:       id,
		Name:     name,
		Location: loc,
		Events:   make([]*Event, 0, len(records)),
	}

	var errs []*RecordError
	for i, rec := range records {
		ev, err := NewEvent(rec, loc)
		if err != nil {
			errs = append(errs, &RecordError{Index: i, UID: rec.UID, Summary: rec.Summary, Err: err})
			continue
		}
		cal.Events = append(cal.Events, ev)
	}
	return cal, errs
}

// EventsOnDay returns the calendar's occurrences on the date of day, read
// in the calendar's zone.
func (c *Calendar) EventsOnDay(day time.Time) []Occurrence {
	return EventsOnDay(c.Events, dateIn(day, c.Location))
}

// Day summarizes a single date.
func (c *Calendar) Day(day time.Time) DaySummary {
	d := dateIn(day, c.Location)
	occs := EventsOnDay(c.Events, d)
	return DaySummary{Date: d, Occurrences: occs, Hours: TotalHours(occs)}
}

// DaysInMonth summarizes every day of the month containing month.
func (c *Calendar) DaysInMonth(month time.Time) []DaySummary {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, c.Location)
	out := make([]DaySummary, 0, 31)
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		out = append(out, c.Day(d))
	}
	return out
}

// RecurringCount returns how many of the calendar's events repeat.
func (c *Calendar) RecurringCount() int {
	n := 0
	for _, ev := range c.Events {
		if ev.IsRecurring() {
			n++
		}
	}
	return n
}
