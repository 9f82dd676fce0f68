package model

import "time"

// Record is one raw calendar entry as delivered by a data source, before
// any validation. internal/calendar turns it into an Event.
type Record struct {
	SourceID string // calendar source ID (e.g., config calendar ID)
	UID      string // iCalendar UID, if the source has one

	Summary string

	// Start / End are absolute timestamps; they are read as wall-clock
	// values in the viewer's zone.
	Start time.Time
	End   time.Time

	// RRule is the serialized recurrence rule, empty for one-time entries.
	RRule string

	// ExDates are canceled occurrence start times.
	ExDates []time.Time
}

// Recurring reports whether the record carries a recurrence rule.
func (r Record) Recurring() bool {
	return r.RRule != ""
}
