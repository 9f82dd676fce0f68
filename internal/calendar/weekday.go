package calendar

import (
	"fmt"
	"strings"
	"time"
)

var weekdayTokens = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// ParseWeekday converts an iCalendar weekday token (SU, MO, ...) into a
// time.Weekday. Ordinal forms such as "2MO" or "-1FR" are rejected.
func ParseWeekday(tok string) (time.Weekday, error) {
	t := strings.ToUpper(strings.TrimSpace(tok))
	for i, name := range weekdayTokens {
		if t == name {
			return time.Weekday(i), nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, tok)
}

// WeekdayToken returns the two-letter iCalendar token for d.
func WeekdayToken(d time.Weekday) string {
	return weekdayTokens[int(d)%7]
}

// WeekdaySet is a set of weekdays stored as a bitmask.
type WeekdaySet uint8

// NewWeekdaySet returns a set holding days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool {
	return s == 0
}

// Days lists the members in Sunday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s WeekdaySet) String() string {
	days := s.Days()
	toks := make([]string, len(days))
	for i, d := range days {
		toks[i] = WeekdayToken(d)
	}
	return strings.Join(toks, ",")
}

// civilDay returns the number of days between 1970-01-01 and the calendar
// date of t, as read in t's own location. DST transitions do not affect it.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// WeekIndex returns the number of the week bucket holding the calendar date
// of t, where every bucket begins on weekStart. Two dates share a bucket
// exactly when they fall into the same weekStart-anchored week, and the
// difference of two indexes is the number of whole weeks between them.
func WeekIndex(t time.Time, weekStart time.Weekday) int {
	offset := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return floorDiv(civilDay(t)-offset, 7)
}

// floorDiv and floorMod round toward negative infinity so that dates before
// the epoch or before an event start land in the right bucket.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

// midnight returns 00:00 of t's calendar date in t's location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dateIn re-reads the calendar date of t as midnight in loc.
func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// nextMidnight returns 00:00 of the day after t's calendar date.
func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
