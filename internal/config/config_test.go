package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
timezone: UTC
format: xml
log_level: chatty
calendars:
  - name: Work
    url: https://example.com/work.ics
  - id: home
    path: ./home.ics
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "*/30 * * * *", cfg.RefreshCron)
	require.Len(t, cfg.Calendars, 2)
	assert.Equal(t, "calendar-1", cfg.Calendars[0].ID)
	assert.Equal(t, "home", cfg.Calendars[1].ID)
	assert.NoError(t, cfg.Validate())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	cc, ok := cfg.Calendar("home")
	require.True(t, ok)
	assert.Equal(t, "./home.ics", cc.Path)
	_, ok = cfg.Calendar("missing")
	assert.False(t, ok)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calendars: [\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	cfg.Calendars = []CalendarConfig{
		{ID: "a", URL: "https://example.com/a.ics"},
		{ID: "a", Path: "a.ics"},
		{ID: "b"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mars/Olympus_Mons")
	assert.Contains(t, err.Error(), `calendar "a": duplicate id`)
	assert.Contains(t, err.Error(), `calendar "b": url or path is required`)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "Asia/Tokyo"
	cfg.Calendars = []CalendarConfig{{ID: "work", Name: "Work", Path: "/tmp/work.ics"}}
	cfg.BasicAuth = &BasicAuthConfig{Username: "me", Password: "secret"}

	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSaveErrors(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
	_, err := Load("")
	assert.Error(t, err)
}
