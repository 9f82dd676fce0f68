package calendar

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency is the repetition period of a Rule.
type Frequency int

const (
	Daily Frequency = iota + 1
	Weekly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	default:
		return "Frequency(" + strconv.Itoa(int(f)) + ")"
	}
}

// unsupportedParts are RFC 5545 rule parts that change which days match.
// Ignoring them would report occurrences that do not exist, so a rule
// carrying any of them is refused.
var unsupportedParts = map[string]bool{
	"COUNT":      true,
	"BYSETPOS":   true,
	"BYMONTH":    true,
	"BYMONTHDAY": true,
	"BYYEARDAY":  true,
	"BYWEEKNO":   true,
	"BYHOUR":     true,
	"BYMINUTE":   true,
	"BYSECOND":   true,
	"BYEASTER":   true,
}

// Rule is a parsed DAILY or WEEKLY recurrence rule.
type Rule struct {
	Frequency Frequency
	// Interval is "every Interval-th day/week"; always >= 1.
	Interval int
	// ByWeekday restricts a WEEKLY rule to the given days. Empty means the
	// weekday of the event start.
	ByWeekday WeekdaySet
	// WeekStart anchors the week buckets used by the WEEKLY interval check.
	WeekStart time.Weekday
	// Until is the last date (midnight, inclusive) an occurrence may fall
	// on. The zero value means unbounded.
	Until time.Time
	// Extra keeps rule parts that do not affect evaluation, verbatim.
	Extra map[string]string

	raw string
}

// ParseRule parses a serialized rule such as
// "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,TU,TH;WKST=MO;UNTIL=20130905T145959Z".
// UNTIL is converted to loc and only its date is kept.
func ParseRule(s string, loc *time.Location) (*Rule, error) {
	if loc == nil {
		loc = time.Local
	}
	raw := strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")
	if raw == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrInvalidRule)
	}

	r := &Rule{
		Interval:  1,
		WeekStart: time.Monday,
		raw:       raw,
	}
	seen := make(map[string]bool)
	freqSet := false

	for _, comp := range strings.Split(raw, ";") {
		if comp == "" {
			continue
		}
		key, value, ok := strings.Cut(comp, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: malformed component %q", ErrInvalidRule, comp)
		}
		if value == "" {
			return nil, fmt.Errorf("%w: %s has no value", ErrInvalidRule, key)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate %s", ErrInvalidRule, key)
		}
		seen[key] = true

		if unsupportedParts[key] {
			return nil, fmt.Errorf("%w: %s is not supported", ErrInvalidRule, key)
		}

		switch key {
		case "FREQ":
			f, err := parseFrequency(value)
			if err != nil {
				return nil, err
			}
			r.Frequency = f
			freqSet = true
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: INTERVAL must be a positive integer, got %q", ErrInvalidRule, value)
			}
			r.Interval = n
		case "BYDAY":
			set, err := parseWeekdayList(value)
			if err != nil {
				return nil, err
			}
			r.ByWeekday = set
		case "WKST":
			d, err := ParseWeekday(value)
			if err != nil {
				return nil, fmt.Errorf("WKST: %w", err)
			}
			r.WeekStart = d
		case "UNTIL":
			t, err := rrule.StrToDtStart(value, loc)
			if err != nil {
				return nil, fmt.Errorf("%w: UNTIL %q: %v", ErrInvalidRule, value, err)
			}
			r.Until = midnight(t.In(loc))
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]string)
			}
			r.Extra[key] = value
		}
	}

	if !freqSet {
		return nil, fmt.Errorf("%w: FREQ is required", ErrInvalidRule)
	}
	if r.Frequency == Daily && !r.ByWeekday.Empty() {
		return nil, fmt.Errorf("%w: BYDAY is only supported with FREQ=WEEKLY", ErrInvalidRule)
	}
	return r, nil
}

// parseFrequency accepts DAILY and WEEKLY. Other RFC 5545 frequencies are
// reported as unsupported, anything else as malformed.
func parseFrequency(value string) (Frequency, error) {
	f, err := rrule.StrToFreq(strings.ToUpper(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	switch f {
	case rrule.DAILY:
		return Daily, nil
	case rrule.WEEKLY:
		return Weekly, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFrequency, f)
	}
}

func parseWeekdayList(value string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, tok := range strings.Split(value, ",") {
		d, err := ParseWeekday(tok)
		if err != nil {
			return 0, fmt.Errorf("BYDAY: %w", err)
		}
		set |= NewWeekdaySet(d)
	}
	return set, nil
}

// HasUntil reports whether the rule ends on a fixed date.
func (r Rule) HasUntil() bool {
	return !r.Until.IsZero()
}

// String returns the rule text the Rule was parsed from.
func (r Rule) String() string {
	return r.raw
}

// clone returns a copy that shares no mutable state with r.
func (r *Rule) clone() Rule {
	c := *r
	c.Extra = maps.Clone(r.Extra)
	return c
}

// inRange is the start/UNTIL bound check. day and startDate are midnights
// in the same location.
func (r *Rule) inRange(day, startDate time.Time) bool {
	if day.Before(startDate) {
		return false
	}
	if r.HasUntil() && civilDay(day) > civilDay(r.Until) {
		return false
	}
	return true
}

// matches is the frequency specific membership check of day against an
// event starting at start.
func (r *Rule) matches(day, start time.Time) bool {
	switch r.Frequency {
	case Weekly:
		return r.matchesWeekInterval(day, start) && r.matchesWeekday(day, start)
	case Daily:
		return r.matchesDayInterval(day, start)
	default:
		return false
	}
}

// matchesWeekInterval counts whole weekStart-anchored weeks between the
// buckets of start and day. The modulo is floored so the check is
// symmetric for days before start.
func (r *Rule) matchesWeekInterval(day, start time.Time) bool {
	if r.Interval <= 1 {
		return true
	}
	diff := WeekIndex(day, r.WeekStart) - WeekIndex(start, r.WeekStart)
	return floorMod(diff, r.Interval) == 0
}

func (r *Rule) matchesWeekday(day, start time.Time) bool {
	if !r.ByWeekday.Empty() {
		return r.ByWeekday.Has(day.Weekday())
	}
	return day.Weekday() == start.Weekday()
}

func (r *Rule) matchesDayInterval(day, start time.Time) bool {
	if r.Interval <= 1 {
		return true
	}
	return floorMod(civilDay(day)-civilDay(start), r.Interval) == 0
}
