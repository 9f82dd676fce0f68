package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/calendar"
	"daycal/internal/config"
	"daycal/internal/ics"
)

func writeICS(t *testing.T, path string, lines ...string) {
	t.Helper()
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//daycal//test//EN", "X-WR-CALNAME:From Feed"}, lines...)
	all = append(all, "END:VCALENDAR")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(all, "\r\n")+"\r\n"), 0o600))
}

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()

	writeICS(t, filepath.Join(dir, "work.ics"),
		"BEGIN:VEVENT",
		"UID:standup",
		"SUMMARY:Standup",
		"DTSTART:20130904T090000",
		"DTEND:20130904T093000",
		"RRULE:FREQ=WEEKLY;BYDAY=MO,WE",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:monthly",
		"SUMMARY:Monthly review",
		"DTSTART:20130904T100000",
		"DTEND:20130904T110000",
		"RRULE:FREQ=MONTHLY",
		"END:VEVENT",
	)
	writeICS(t, filepath.Join(dir, "home.ics"),
		"BEGIN:VEVENT",
		"UID:dentist",
		"SUMMARY:Dentist",
		"DTSTART:20130905T150000",
		"DTEND:20130905T160000",
		"END:VEVENT",
	)

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Calendars = []config.CalendarConfig{
		{ID: "work", Name: "Work", Path: filepath.Join(dir, "work.ics")},
		{ID: "home", Path: filepath.Join(dir, "home.ics")},
		{ID: "gone", Path: filepath.Join(dir, "gone.ics")},
	}

	s, err := New(cfg, ics.NewFetcher(filepath.Join(dir, "cache"), nil))
	require.NoError(t, err)
	return s, dir
}

func TestRefresh(t *testing.T) {
	s, _ := newStore(t)

	err := s.Refresh(context.Background())
	require.Error(t, err, "the missing file is reported")
	assert.Contains(t, err.Error(), "calendar gone")

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "work", entries[0].Calendar.ID)
	assert.Equal(t, "home", entries[1].Calendar.ID)

	work, ok := s.Entry("work")
	require.True(t, ok)
	assert.Equal(t, "Work", work.Calendar.Name)
	assert.Len(t, work.Calendar.Events, 1)
	require.Len(t, work.Rejected, 1)
	assert.Equal(t, "Monthly review", work.Rejected[0].Summary)
	assert.ErrorIs(t, work.Rejected[0], calendar.ErrUnsupportedFrequency)

	home, ok := s.Entry("home")
	require.True(t, ok)
	assert.Equal(t, "From Feed", home.Calendar.Name)

	def, ok := s.Default()
	require.True(t, ok)
	assert.Same(t, work, def)

	st := s.Status()
	assert.False(t, st.LastRefresh.IsZero())
	require.Len(t, st.Errors, 1)

	occs := work.Calendar.EventsOnDay(time.Date(2013, 9, 9, 0, 0, 0, 0, time.UTC))
	require.Len(t, occs, 1)
	assert.Equal(t, "09:00", occs[0].StartTimeOfDay())
}

func TestRefreshKeepsPreviousEntryOnFailure(t *testing.T) {
	s, dir := newStore(t)
	_ = s.Refresh(context.Background())

	before, ok := s.Entry("home")
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, "home.ics")))
	_ = s.Refresh(context.Background())

	after, ok := s.Entry("home")
	require.True(t, ok)
	assert.Same(t, before, after)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s, _ := newStore(t)
	assert.Error(t, s.Start(context.Background(), "every minute"))
}

func TestStartStop(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, "*/5 * * * *"))
	s.Stop()
	s.Stop()
}

func TestNewRejectsBadTimezone(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "Nowhere/Special"
	_, err := New(cfg, ics.NewFetcher(t.TempDir(), nil))
	assert.Error(t, err)
}
