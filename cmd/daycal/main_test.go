package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/config"
	"daycal/internal/web"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//daycal//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup\r\n" +
	"SUMMARY:Standup\r\n" +
	"DTSTART:20130902T090000\r\n" +
	"DTEND:20130902T093000\r\n" +
	"RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=MO\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:review\r\n" +
	"SUMMARY:Review\r\n" +
	"DTSTART:20130902T140000\r\n" +
	"DTEND:20130902T160000\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "work.ics")
	require.NoError(t, os.WriteFile(path, []byte(sampleICS), 0o600))
	return path
}

func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flags, err := parseFlags(args)
	require.NoError(t, err)
	var out bytes.Buffer
	err = run(context.Background(), flags, &out)
	return out.String(), err
}

func TestParseFlagsConflicts(t *testing.T) {
	_, err := parseFlags([]string{"-date", "2013-09-02", "-month", "2013-09"})
	assert.Error(t, err)
	_, err = parseFlags([]string{"-png", "out.png", "-date", "2013-09-02"})
	assert.Error(t, err)
	_, err = parseFlags([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestRunDayText(t *testing.T) {
	ics := writeSample(t)
	cfgPath := filepath.Join(t.TempDir(), "missing.yaml")

	out, err := runArgs(t, "-config", cfgPath, "-ics", ics, "-timezone", "UTC", "-date", "2013-09-02")
	require.NoError(t, err)
	assert.Equal(t, "2013-09-02: 2.5 hours\n  09:00 - 09:30: Standup\n  14:00 - 16:00: Review\n", out)

	_, statErr := os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(statErr), "-ics does not write a config")

	out, err = runArgs(t, "-config", cfgPath, "-ics", ics, "-timezone", "UTC", "-date", "2013-09-09")
	require.NoError(t, err)
	assert.Equal(t, "2013-09-09: 0 hours\n", out, "every other Monday")
}

func TestRunMonthCSVFromConfig(t *testing.T) {
	ics := writeSample(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	conf := config.DefaultConfig()
	conf.Timezone = "UTC"
	conf.Format = config.FormatCSV
	conf.CacheDir = t.TempDir()
	conf.Calendars = []config.CalendarConfig{{ID: "work", Path: ics}}
	require.NoError(t, conf.Save(cfgPath))

	out, err := runArgs(t, "-config", cfgPath, "-calendar", "work", "-month", "2013-09")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "date,start,end,hours,summary", lines[0])
	assert.Contains(t, lines, "2013-09-02,09:00,09:30,0.5,Standup")
	assert.Contains(t, lines, "2013-09-16,09:00,09:30,0.5,Standup")
	assert.Contains(t, lines, "2013-09-30,09:00,09:30,0.5,Standup")
	assert.NotContains(t, lines, "2013-09-09,09:00,09:30,0.5,Standup")
	assert.Contains(t, lines, "2013-09-02,,,2.5,TOTAL")
	// header, 30 totals, three standups, one review
	assert.Len(t, lines, 1+30+3+1)

	_, err = runArgs(t, "-config", cfgPath, "-calendar", "home", "-month", "2013-09")
	assert.ErrorContains(t, err, `calendar "home"`)

	_, err = runArgs(t, "-config", cfgPath, "-month", "Sept")
	assert.Error(t, err)
}

func TestRunRejectsBadOverrides(t *testing.T) {
	ics := writeSample(t)
	cfgPath := filepath.Join(t.TempDir(), "c.yaml")

	_, err := runArgs(t, "-config", cfgPath, "-ics", ics, "-format", "xml")
	assert.Error(t, err)
	_, err = runArgs(t, "-config", cfgPath, "-ics", ics, "-timezone", "Nowhere/Special")
	assert.Error(t, err)
	_, err = runArgs(t, "-config", cfgPath, "-ics", ics, "-palette", "sepia")
	assert.Error(t, err)
}

func TestRunWithoutCalendars(t *testing.T) {
	_, err := runArgs(t, "-config", filepath.Join(t.TempDir(), "new.yaml"))
	assert.ErrorContains(t, err, "no calendars configured")
}

func stdinFile(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestHashPasswordPrints(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runHashPassword(nil, stdinFile(t, "secret\nsecret\n"), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	hash := lines[len(lines)-1]
	hash = hash[strings.Index(hash, "$argon2id$"):]
	ok, err := web.VerifyPassword("secret", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordStoresInConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, runHashPassword([]string{"-config", cfgPath, "-user", "me"}, stdinFile(t, "secret\nsecret"), io.Discard))

	conf, err := config.Load(cfgPath)
	require.NoError(t, err)
	require.NotNil(t, conf.BasicAuth)
	assert.Equal(t, "me", conf.BasicAuth.Username)
	assert.True(t, web.IsHashed(conf.BasicAuth.Password))
}

func TestHashPasswordErrors(t *testing.T) {
	assert.ErrorContains(t, runHashPassword(nil, stdinFile(t, "a\nb\n"), io.Discard), "do not match")
	assert.ErrorContains(t, runHashPassword(nil, stdinFile(t, "\n\n"), io.Discard), "empty")
	assert.ErrorContains(t, runHashPassword([]string{"-config", "x.yaml"}, stdinFile(t, ""), io.Discard), "-user")
}
