package calendar

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRule is returned for malformed RRULE strings and for rule
	// parts this package does not evaluate.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrUnsupportedFrequency is returned when FREQ is anything other than
	// DAILY or WEEKLY. It matches ErrInvalidRule with errors.Is.
	ErrUnsupportedFrequency = fmt.Errorf("%w: unsupported frequency", ErrInvalidRule)

	// ErrUnsupportedOvernightEvent is returned when a recurring event spans
	// past midnight of its start day.
	ErrUnsupportedOvernightEvent = errors.New("overnight recurring event is not supported")

	// ErrNotRecurrent is returned by recurrence-only operations on a
	// one-time event.
	ErrNotRecurrent = errors.New("event is not recurrent")

	// ErrInvalidEvent is returned when a record has no usable time span.
	ErrInvalidEvent = errors.New("invalid event")
)

// RecordError describes a source record that could not be turned into an
// Event. Index is the position of the record in its source sequence.
type RecordError struct {
	Index   int
	UID     string
	Summary string
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (uid=%q summary=%q): %v", e.Index, e.UID, e.Summary, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
