package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaries(occs []Occurrence) []string {
	out := make([]string, len(occs))
	for i, o := range occs {
		out[i] = o.Summary()
	}
	return out
}

func TestEventsOnDayOneTimeExactness(t *testing.T) {
	ev := newEvent(t, "", at(2013, 9, 4, 9, 0), at(2013, 9, 4, 12, 0))
	events := []*Event{ev}

	occs := EventsOnDay(events, day(2013, 9, 4))
	require.Len(t, occs, 1)
	assert.Equal(t, "09:00", occs[0].StartTimeOfDay())
	assert.Equal(t, "12:00", occs[0].EndTimeOfDay())
	assert.InDelta(t, 3.0, occs[0].DurationHours(), 1e-9)

	for d := day(2013, 8, 1); d.Before(day(2013, 11, 1)); d = d.AddDate(0, 0, 1) {
		if d.Equal(day(2013, 9, 4)) {
			continue
		}
		assert.Empty(t, EventsOnDay(events, d), d.Format(time.DateOnly))
	}
}

func TestEventsOnDayOneTimeMustFitTheDay(t *testing.T) {
	overnight := newEvent(t, "", at(2013, 9, 4, 22, 0), at(2013, 9, 5, 2, 0))
	toMidnight := newEvent(t, "", at(2013, 9, 4, 22, 0), day(2013, 9, 5))

	assert.Empty(t, EventsOnDay([]*Event{overnight}, day(2013, 9, 4)))
	assert.Empty(t, EventsOnDay([]*Event{overnight}, day(2013, 9, 5)))
	assert.Empty(t, EventsOnDay([]*Event{toMidnight}, day(2013, 9, 4)))
}

func TestEventsOnDayMixesAndSorts(t *testing.T) {
	lunch := newEvent(t, "", at(2013, 9, 11, 12, 0), at(2013, 9, 11, 13, 0))
	lunch.summary = "Lunch"
	standup := newEvent(t, "FREQ=WEEKLY", at(2013, 9, 4, 9, 0), at(2013, 9, 4, 9, 30))
	standup.summary = "Standup"
	gym := newEvent(t, "FREQ=DAILY;INTERVAL=7", at(2013, 9, 4, 18, 0), at(2013, 9, 4, 19, 30))
	gym.summary = "Gym"
	early := newEvent(t, "FREQ=WEEKLY;BYDAY=WE", at(2013, 9, 2, 7, 0), at(2013, 9, 2, 8, 0))
	early.summary = "Early"

	occs := EventsOnDay([]*Event{gym, lunch, standup, nil, early}, day(2013, 9, 11))
	assert.Equal(t, []string{"Early", "Standup", "Lunch", "Gym"}, summaries(occs))
	assert.InDelta(t, 1+0.5+1+1.5, TotalHours(occs), 1e-9)
}

func TestEventsOnDayRecurringFirstOccurrence(t *testing.T) {
	ev := newEvent(t, "FREQ=WEEKLY", at(2013, 9, 4, 9, 0), at(2013, 9, 4, 12, 0))

	occs := EventsOnDay([]*Event{ev}, day(2013, 9, 4))
	require.Len(t, occs, 1, "the start day is listed exactly once")
	assert.True(t, occs[0].Start.Equal(at(2013, 9, 4, 9, 0)))
	assert.Empty(t, EventsOnDay([]*Event{ev}, day(2013, 8, 28)))
}

func TestEventsOnDayExcludedFirstOccurrence(t *testing.T) {
	ev := newEvent(t, "FREQ=WEEKLY", at(2013, 9, 4, 9, 0), at(2013, 9, 4, 12, 0), at(2013, 9, 4, 9, 0))

	assert.Empty(t, EventsOnDay([]*Event{ev}, day(2013, 9, 4)))
	assert.Len(t, EventsOnDay([]*Event{ev}, day(2013, 9, 11)), 1)
}

func TestEventsOnDayContainment(t *testing.T) {
	events := []*Event{
		newEvent(t, "FREQ=DAILY", at(2013, 9, 4, 22, 0), day(2013, 9, 5)),
		newEvent(t, "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", at(2013, 9, 2, 0, 0), at(2013, 9, 2, 23, 59)),
		newEvent(t, "FREQ=DAILY;INTERVAL=2", at(2013, 9, 1, 6, 0), at(2013, 9, 1, 7, 0)),
		newEvent(t, "", at(2013, 9, 10, 10, 0), at(2013, 9, 10, 11, 0)),
	}

	for d := day(2013, 9, 1); d.Before(day(2013, 12, 31)); d = d.AddDate(0, 0, 1) {
		lo, hi := d, d.AddDate(0, 0, 1)
		for _, o := range EventsOnDay(events, d) {
			assert.False(t, o.Start.Before(lo), "%s starts before %s", o.Event, d)
			assert.False(t, o.End.After(hi), "%s ends after %s", o.Event, d)
		}
	}
}

func TestTotalHoursEmpty(t *testing.T) {
	assert.Zero(t, TotalHours(nil))
}
