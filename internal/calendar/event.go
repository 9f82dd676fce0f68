package calendar

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"daycal/internal/model"
)

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Event is a validated, immutable calendar entry. A recurring Event owns
// its Rule exclusively.
type Event struct {
	sourceID string
	uid      string
	summary  string

	start time.Time
	end   time.Time
	loc   *time.Location

	rule     *Rule
	excluded map[int64]struct{}
	exDates  []time.Time
}

// NewEvent validates rec and builds an Event whose timestamps are read in
// loc (time.Local when nil). Recurring events must stay within a single
// day: they end on their start date or exactly at the following midnight.
func NewEvent(rec model.Record, loc *time.Location) (*Event, error) {
	if loc == nil {
		loc = time.Local
	}
	if rec.Start.IsZero() || rec.End.IsZero() {
		return nil, fmt.Errorf("%w: missing start or end", ErrInvalidEvent)
	}
	if !rec.End.After(rec.Start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s",
			ErrInvalidEvent, rec.End.Format(time.RFC3339), rec.Start.Format(time.RFC3339))
	}

	e := &Event{
		sourceID: rec.SourceID,
		uid:      rec.UID,
		summary:  rec.Summary,
		start:    rec.Start.In(loc),
		end:      rec.End.In(loc),
		loc:      loc,
	}

	if len(rec.ExDates) > 0 {
		e.excluded = make(map[int64]struct{}, len(rec.ExDates))
		e.exDates = make([]time.Time, 0, len(rec.ExDates))
		for _, ex := range rec.ExDates {
			e.excluded[ex.UnixNano()] = struct{}{}
			e.exDates = append(e.exDates, ex.In(loc))
		}
		slices.SortFunc(e.exDates, func(a, b time.Time) int { return a.Compare(b) })
	}

	if raw := strings.TrimSpace(rec.RRule); raw != "" {
		rule, err := ParseRule(raw, loc)
		if err != nil {
			return nil, err
		}
		e.rule = rule
		if e.overnight() {
			return nil, fmt.Errorf("%w: %s - %s", ErrUnsupportedOvernightEvent,
				e.start.Format(time.RFC3339), e.end.Format(time.RFC3339))
		}
	}

	return e, nil
}

func (e *Event) overnight() bool {
	if civilDay(e.start) == civilDay(e.end) {
		return false
	}
	return !e.end.Equal(nextMidnight(e.start))
}

func (e *Event) SourceID() string { return e.sourceID }
func (e *Event) UID() string      { return e.uid }
func (e *Event) Summary() string  { return e.summary }
func (e *Event) Start() time.Time { return e.start }
func (e *Event) End() time.Time   { return e.end }

// ExcludedDates returns the canceled occurrence starts in ascending order.
func (e *Event) ExcludedDates() []time.Time {
	return slices.Clone(e.exDates)
}

func (e *Event) IsRecurring() bool {
	return e.rule != nil
}

// Rule returns a copy of the event's recurrence rule.
func (e *Event) Rule() (Rule, error) {
	if e.rule == nil {
		return Rule{}, ErrNotRecurrent
	}
	return e.rule.clone(), nil
}

// Duration is the length of every occurrence of the event.
func (e *Event) Duration() time.Duration {
	return e.end.Sub(e.start)
}

func (e *Event) DurationHours() float64 {
	return e.Duration().Hours()
}

// StartTimeOfDay and EndTimeOfDay format the event's own start and end
// as HH:MM.
func (e *Event) StartTimeOfDay() string { return e.start.Format(clockLayout) }
func (e *Event) EndTimeOfDay() string   { return e.end.Format(clockLayout) }

// Excluded reports whether t is one of the event's canceled occurrences.
func (e *Event) Excluded(t time.Time) bool {
	_, ok := e.excluded[t.UnixNano()]
	return ok
}

// OccurrenceRangeOnDay returns the interval a recurring event occupies on
// the calendar date of day, and false when it has no occurrence that day.
// Only the year, month and day of day are used. It fails with
// ErrNotRecurrent on one-time events.
func (e *Event) OccurrenceRangeOnDay(day time.Time) (Range, bool, error) {
	if e.rule == nil {
		return Range{}, false, ErrNotRecurrent
	}

	d := dateIn(day, e.loc)
	startDate := midnight(e.start)

	if !e.rule.inRange(d, startDate) {
		return Range{}, false, nil
	}
	if !e.rule.matches(d, e.start) {
		return Range{}, false, nil
	}

	rangeStart := d.Add(e.start.Sub(startDate))
	if e.Excluded(rangeStart) {
		return Range{}, false, nil
	}
	return Range{Start: rangeStart, End: rangeStart.Add(e.Duration())}, true, nil
}

// OccursOn reports whether the event has an occurrence on day, recurring
// or not.
func (e *Event) OccursOn(day time.Time) bool {
	if e.rule == nil {
		_, ok := e.oneTimeRangeOnDay(day)
		return ok
	}
	_, ok, _ := e.OccurrenceRangeOnDay(day)
	return ok
}

// oneTimeRangeOnDay returns the event's own span when it lies entirely on
// the date of day.
func (e *Event) oneTimeRangeOnDay(day time.Time) (Range, bool) {
	d := dateIn(day, e.loc)
	next := nextMidnight(d)
	if e.start.Before(d) || !e.end.Before(next) {
		return Range{}, false
	}
	return Range{Start: e.start, End: e.end}, true
}

func (e *Event) String() string {
	kind := "once"
	if e.rule != nil {
		kind = e.rule.String()
	}
	return fmt.Sprintf("%s [%s - %s] %s", e.summary,
		e.start.Format("2006-01-02 15:04"), e.end.Format("15:04"), kind)
}
