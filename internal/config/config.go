package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"repaircal/internal/holiday"
)

// Environment variables that override values from the YAML file.
const (
	EnvAPIBaseURL = "REPAIRCAL_API_BASE_URL"
	EnvListen     = "REPAIRCAL_LISTEN"
	EnvLogLevel   = "REPAIRCAL_LOG_LEVEL"
	EnvTimezone   = "REPAIRCAL_TIMEZONE"

	EnvAdminUser     = "REPAIRCAL_ADMIN_USER"
	EnvAdminPassword = "REPAIRCAL_ADMIN_PASSWORD"
	EnvUserName      = "REPAIRCAL_USER_NAME"
	EnvUserPassword  = "REPAIRCAL_USER_PASSWORD"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Asia/Tokyo"
	defaultAPIBaseURL  = "http://localhost:8000"
	defaultAPITimeout  = 15
	defaultLogLevel    = "info"
	defaultCaptureW    = 1280
	defaultCaptureH    = 960
	defaultCaptureSecs = 30
	defaultRatePerMin  = 300
	defaultRateBurst   = 60
)

// APIConfig points at the appointment persistence service.
type APIConfig struct {
	// BaseURL is the service root, e.g. "http://localhost:8000".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// TimeoutSeconds bounds every request to the service.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// HolidayConfig holds the per-year holiday tables.
type HolidayConfig struct {
	// DefaultYear selects the table used for years without their own entry.
	DefaultYear int               `yaml:"default_year" json:"default_year"`
	Years       []holiday.RuleSet `yaml:"years" json:"years"`
}

// BasicAuthConfig holds one HTTP Basic Auth credential for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Complete reports whether both username and password are set.
func (b *BasicAuthConfig) Complete() bool {
	return b != nil && b.Username != "" && b.Password != ""
}

// CaptureConfig controls the headless browser snapshot of the board.
type CaptureConfig struct {
	Width          int    `yaml:"width" json:"width"`
	Height         int    `yaml:"height" json:"height"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	Output         string `yaml:"output" json:"output"`
}

// RateLimitConfig throttles /api/ requests per client IP. A negative
// PerMinute disables throttling.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute" json:"per_minute"`
	Burst     int `yaml:"burst" json:"burst"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone in which "today" and visit dates are read.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of "debug", "info" or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	API      APIConfig     `yaml:"api" json:"api"`
	Holidays HolidayConfig `yaml:"holidays" json:"holidays"`
	Capture  CaptureConfig `yaml:"capture" json:"capture"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health. It is the administrator credential.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// UserAuth is an optional second credential for regular staff. It can
	// view, create and edit appointments but not delete them.
	UserAuth *BasicAuthConfig `yaml:"user_auth,omitempty" json:"user_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	def := holiday.DefaultRuleSet()
	return &Config{
		Listen:   defaultListen,
		Timezone: defaultTimezone,
		LogLevel: defaultLogLevel,
		API: APIConfig{
			BaseURL:        defaultAPIBaseURL,
			TimeoutSeconds: defaultAPITimeout,
		},
		Holidays: HolidayConfig{
			DefaultYear: def.Year,
			Years:       []holiday.RuleSet{def},
		},
		Capture: CaptureConfig{
			Width:          defaultCaptureW,
			Height:         defaultCaptureH,
			TimeoutSeconds: defaultCaptureSecs,
		},
		RateLimit: RateLimitConfig{
			PerMinute: defaultRatePerMin,
			Burst:     defaultRateBurst,
		},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultAPITimeout
	}
	if len(c.Holidays.Years) == 0 {
		def := holiday.DefaultRuleSet()
		c.Holidays.Years = []holiday.RuleSet{def}
		c.Holidays.DefaultYear = def.Year
	}
	if c.Holidays.DefaultYear == 0 {
		c.Holidays.DefaultYear = c.Holidays.Years[0].Year
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = defaultCaptureW
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = defaultCaptureH
	}
	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = defaultCaptureSecs
	}
	if c.RateLimit.PerMinute == 0 {
		c.RateLimit.PerMinute = defaultRatePerMin
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateBurst
	}
}

// Location resolves Timezone, falling back to time.Local when the zone
// database does not know it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Determiner builds the holiday determiner from the configured tables.
func (c *Config) Determiner() (*holiday.Determiner, error) {
	d, err := holiday.NewDeterminer(c.Holidays.DefaultYear, c.Holidays.Years...)
	if err != nil {
		return nil, fmt.Errorf("config: holidays: %w", err)
	}
	return d, nil
}

// LoadEnv reads KEY=VALUE pairs from the given dotenv files into the
// process environment. Missing files are ignored and variables that are
// already set are left alone.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from REPAIRCAL_* environment variables. A
// credential is only taken from the environment when both of its
// variables are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if u, p := os.Getenv(EnvAdminUser), os.Getenv(EnvAdminPassword); u != "" && p != "" {
		c.BasicAuth = &BasicAuthConfig{Username: u, Password: p}
	}
	if u, p := os.Getenv(EnvUserName), os.Getenv(EnvUserPassword); u != "" && p != "" {
		c.UserAuth = &BasicAuthConfig{Username: u, Password: p}
	}
	c.Normalize()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate the holiday tables
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
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	if _, err := cfg.Determiner(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file in the same directory, then rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".repaircal-config-*.tmp")
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

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
