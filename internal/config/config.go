package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"termcal/internal/timeutil"
)

// CalendarSource describes one academic-calendar data source for a term.
// Exactly one of URL (normalized JSON) or ICSURL (an ICS feed of
// institutional events) is typically set; both may be.
type CalendarSource struct {
	// TermID is the term this source covers (e.g. "202509").
	TermID string `yaml:"term_id" json:"term_id"`
	// Term selects which key of the JSON payload's "terms" object holds
	// this term's class dates ("fall", "spring", "summer").
	Term string `yaml:"term" json:"term"`
	// URL is the normalized academic-calendar JSON endpoint or file path.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// ICSURL is an optional ICS feed of institutional events.
	ICSURL string `yaml:"ics_url,omitempty" json:"ics_url,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the campus IANA timezone; every date-only comparison in
	// the engine happens at start-of-day in this zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataDir is where persisted state and fetch caches live.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// CatalogPath points at the bundled course catalog JSON.
	CatalogPath string `yaml:"catalog_path" json:"catalog_path"`

	// Calendars lists academic-calendar sources keyed by term.
	Calendars []CalendarSource `yaml:"calendars" json:"calendars"`

	// RefreshCron is a cron expression for periodic re-fetch of
	// institutional events (e.g. "0 5 * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ReminderCron fires the next-day reminder materialization.
	ReminderCron string `yaml:"reminder" json:"reminder"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     timeutil.DefaultZone,
		DataDir:      "./var",
		CatalogPath:  "",
		Calendars:    []CalendarSource{},
		RefreshCron:  "0 5 * * *",
		ReminderCron: "0 18 * * *",
		LogLevel:     "info",
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with defaults so partially
// filled configs from older versions still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = timeutil.DefaultZone
	}
	if c.DataDir == "" {
		c.DataDir = "./var"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 5 * * *"
	}
	if c.ReminderCron == "" {
		c.ReminderCron = "0 18 * * *"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarSource{}
	}
}

// Load loads configuration from the given YAML path. A missing file is
// treated as first run: a default config is written (0600) and returned.
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
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, 0600).
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

	tmp, err := os.CreateTemp(dir, ".termcal-config-*.tmp")
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
