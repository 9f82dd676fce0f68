package calendar

import (
	"slices"
	"time"
)

const clockLayout = "15:04"

// Occurrence is one event resolved onto one calendar day.
type Occurrence struct {
	Event *Event
	Range
}

func (o Occurrence) Summary() string {
	return o.Event.Summary()
}

func (o Occurrence) StartTimeOfDay() string {
	return o.Start.Format(clockLayout)
}

func (o Occurrence) EndTimeOfDay() string {
	return o.End.Format(clockLayout)
}

func (o Occurrence) DurationHours() float64 {
	return o.Duration().Hours()
}

// EventsOnDay returns the occurrences of events on the calendar date of
// day, ordered by start time. One-time events count when their whole span
// lies within the day; recurring events go through OccurrenceRangeOnDay.
// Every returned range lies within [midnight(day), midnight(day+1)].
func EventsOnDay(events []*Event, day time.Time) []Occurrence {
	dayStart := midnight(day)
	dayEnd := nextMidnight(day)

	out := make([]Occurrence, 0)
	for _, ev := range events {
		if ev == nil {
			continue
		}

		if !ev.IsRecurring() {
			if r, ok := ev.oneTimeRangeOnDay(dayStart); ok {
				out = append(out, Occurrence{Event: ev, Range: r})
			}
			continue
		}

		// A recurring event cannot occur before its first day.
		if !ev.start.Before(dayEnd) {
			continue
		}
		r, ok, err := ev.OccurrenceRangeOnDay(dayStart)
		if err != nil || !ok {
			continue
		}
		if r.Start.Before(dayStart) || r.End.After(dayEnd) {
			continue
		}
		out = append(out, Occurrence{Event: ev, Range: r})
	}

	slices.SortStableFunc(out, func(a, b Occurrence) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// TotalHours sums the durations of occs in hours.
func TotalHours(occs []Occurrence) float64 {
	var total time.Duration
	for _, o := range occs {
		total += o.Duration()
	}
	return total.Hours()
}
