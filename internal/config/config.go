package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "daycal/internal/log"
)

const (
	defaultListen   = "127.0.0.1:8080"
	defaultRefresh  = "*/30 * * * *"
	defaultCacheDir = "./var/ics-cache"
	defaultLogLevel = "info"

	FormatText = "text"
	FormatCSV  = "csv"
)

// CalendarConfig describes one calendar source. Exactly one of URL or
// Path is expected; URL wins when both are set.
type CalendarConfig struct {
	// ID is used on the command line and in API queries.
	ID string `yaml:"id" json:"id"`
	// Name is the display title; the ICS X-WR-CALNAME is used when empty.
	Name string `yaml:"name" json:"name"`
	// URL is an ICS subscription endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Path is a local .ics file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web server.
// Password may be plain text or an argon2id hash produced by
// `daycal hash-password`.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for -serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone every event is read in (e.g. "Asia/Tokyo").
	// Empty means the system zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a standard 5-field cron spec for re-reading
	// calendars in -serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds the HTTP cache of remote ICS feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Format is the default CLI report format: text or csv.
	Format string `yaml:"format" json:"format"`

	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    "",
		LogLevel:    defaultLogLevel,
		RefreshCron: defaultRefresh,
		CacheDir:    defaultCacheDir,
		Format:      FormatText,
		Calendars:   []CalendarConfig{},
	}
}

// Normalize fills in missing values and repairs unknown ones so that
// partially-filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(c.RefreshCron) == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	switch c.Format {
	case FormatText, FormatCSV:
	default:
		c.Format = FormatText
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		cc := &c.Calendars[i]
		if cc.ID == "" {
			cc.ID = fmt.Sprintf("calendar-%d", i+1)
		}
	}
}

// Validate reports configuration errors Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(c.Calendars))
	for _, cc := range c.Calendars {
		if seen[cc.ID] {
			errs = append(errs, fmt.Errorf("calendar %q: duplicate id", cc.ID))
		}
		seen[cc.ID] = true
		if cc.URL == "" && cc.Path == "" {
			errs = append(errs, fmt.Errorf("calendar %q: url or path is required", cc.ID))
		}
	}
	return errors.Join(errs...)
}

// Location resolves Timezone; empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Calendar returns the calendar with the given ID.
func (c *Config) Calendar(id string) (CalendarConfig, bool) {
	for _, cc := range c.Calendars {
		if cc.ID == id {
			return cc, true
		}
	}
	return CalendarConfig{}, false
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read, unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".daycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
