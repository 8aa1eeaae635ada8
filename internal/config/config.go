package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "./config/config.yaml"

// Config represents the application configuration
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Human    HumanConfig    `yaml:"human"`
	Timing   TimingConfig   `yaml:"timing"`
	Login    LoginConfig    `yaml:"login"`
	Markers  Markers        `yaml:"markers"`
	Session  SessionConfig  `yaml:"session"`
	Batch    BatchConfig    `yaml:"batch"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BrowserConfig controls the launched browser process and its page
type BrowserConfig struct {
	Headless             bool   `yaml:"headless"`
	BinPath              string `yaml:"bin_path"`
	NoSandbox            bool   `yaml:"no_sandbox"`
	ViewportWidth        int    `yaml:"viewport_width"`
	ViewportHeight       int    `yaml:"viewport_height"`
	NavigationTimeoutSec int    `yaml:"navigation_timeout_sec"`
	WaitTimeoutSec       int    `yaml:"wait_timeout_sec"`
	Reuse                bool   `yaml:"reuse"`
	AcceptLanguage       string `yaml:"accept_language"`
}

// HumanConfig tunes the behavior emulator
type HumanConfig struct {
	Personality string   `yaml:"personality"`
	TypoRate    float64  `yaml:"typo_rate"`
	ReadProfile bool     `yaml:"read_profile"`
	Sections    []string `yaml:"sections"`
}

// TimingConfig holds the pacing and timeout windows of one automation run
type TimingConfig struct {
	PostLoadMinMs   int `yaml:"post_load_min_ms"`
	PostLoadMaxMs   int `yaml:"post_load_max_ms"`
	DialogTimeoutMs int `yaml:"dialog_timeout_ms"`
	SettleMinMs     int `yaml:"settle_min_ms"`
	SettleMaxMs     int `yaml:"settle_max_ms"`
	RunTimeoutSec   int `yaml:"run_timeout_sec"`
}

// LoginConfig lists the signals used to decide whether a session is authenticated
type LoginConfig struct {
	LandingURL      string   `yaml:"landing_url"`
	LoginPatterns   []string `yaml:"login_patterns"`
	AvatarSelectors []string `yaml:"avatar_selectors"`
	NavSelectors    []string `yaml:"nav_selectors"`
	TextMarkers     []string `yaml:"text_markers"`
	FormSelectors   []string `yaml:"form_selectors"`
}

// VerbMarkers describes how one kind of control is recognized on the page.
// Include and Exclude are matched against visible text and aria-label of controls
// under Root (the whole page when empty); Selectors are the structural fallback.
type VerbMarkers struct {
	Root      string   `yaml:"root"`
	Include   []string `yaml:"include"`
	Exclude   []string `yaml:"exclude"`
	Selectors []string `yaml:"selectors"`
}

// Markers maps every control the executor looks for to its recognition rules
type Markers struct {
	Connect   VerbMarkers `yaml:"connect"`
	Follow    VerbMarkers `yaml:"follow"`
	Send      VerbMarkers `yaml:"send"`
	AddNote   VerbMarkers `yaml:"add_note"`
	More      VerbMarkers `yaml:"more"`
	Message   VerbMarkers `yaml:"message"`
	Pending   VerbMarkers `yaml:"pending"`
	Following VerbMarkers `yaml:"following"`
	Dialog    []string    `yaml:"dialog"`
	NoteField []string    `yaml:"note_field"`
}

// SessionConfig is where the CLI finds session material
type SessionConfig struct {
	PrimaryToken string `yaml:"primary_token"`
	CookiesFile  string `yaml:"cookies_file"`
	UserAgent    string `yaml:"user_agent"`
}

// BatchConfig controls caller-side pacing across invocations
type BatchConfig struct {
	MinDelaySeconds    int `yaml:"min_delay_seconds"`
	MaxDelaySeconds    int `yaml:"max_delay_seconds"`
	MinIntervalSeconds int `yaml:"min_interval_seconds"`
	DailyLimit         int `yaml:"daily_limit"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level"`
	ToFile     bool   `yaml:"to_file"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads configuration from path (or CONFIG_PATH, or DefaultPath) on top of Default.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore errors if not present)
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := Parse(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Parse expands environment variables in data and decodes it over cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive")
	}
	if c.Browser.NavigationTimeoutSec <= 0 || c.Browser.WaitTimeoutSec <= 0 {
		return fmt.Errorf("browser timeouts must be positive")
	}

	switch c.Human.Personality {
	case "careful", "normal", "fast":
	default:
		return fmt.Errorf("invalid personality: %s (must be careful, normal, or fast)", c.Human.Personality)
	}
	if c.Human.TypoRate < 0 || c.Human.TypoRate > 0.2 {
		return fmt.Errorf("typo_rate must be between 0 and 0.2")
	}

	if c.Timing.PostLoadMaxMs < c.Timing.PostLoadMinMs {
		return fmt.Errorf("post_load_max_ms must be >= post_load_min_ms")
	}
	if c.Timing.SettleMaxMs < c.Timing.SettleMinMs {
		return fmt.Errorf("settle_max_ms must be >= settle_min_ms")
	}
	if c.Timing.DialogTimeoutMs <= 0 {
		return fmt.Errorf("dialog_timeout_ms must be positive")
	}
	if c.Timing.RunTimeoutSec <= 0 {
		return fmt.Errorf("run_timeout_sec must be positive")
	}

	if c.Login.LandingURL == "" {
		return fmt.Errorf("login landing_url is required")
	}

	if c.Batch.MinDelaySeconds < 0 {
		return fmt.Errorf("min_delay_seconds must be non-negative")
	}
	if c.Batch.MaxDelaySeconds < c.Batch.MinDelaySeconds {
		return fmt.Errorf("max_delay_seconds must be >= min_delay_seconds")
	}
	if c.Batch.DailyLimit <= 0 {
		return fmt.Errorf("daily_limit must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// NavigationTimeout bounds every page navigation
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Browser.NavigationTimeoutSec) * time.Second
}

// WaitTimeout bounds DOM waits and script evaluation
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Browser.WaitTimeoutSec) * time.Second
}

// RunTimeout bounds one whole automation invocation
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Timing.RunTimeoutSec) * time.Second
}

// GetMinDelay returns the minimum delay between batch tasks
func (c *Config) GetMinDelay() time.Duration {
	return time.Duration(c.Batch.MinDelaySeconds) * time.Second
}

// GetMaxDelay returns the maximum delay between batch tasks
func (c *Config) GetMaxDelay() time.Duration {
	return time.Duration(c.Batch.MaxDelaySeconds) * time.Second
}

// GetMinInterval returns the hard lower bound between batch task starts
func (c *Config) GetMinInterval() time.Duration {
	return time.Duration(c.Batch.MinIntervalSeconds) * time.Second
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// PostLoadDelay returns the randomized pause window after a profile loads
func (t TimingConfig) PostLoadDelay() (time.Duration, time.Duration) {
	return ms(t.PostLoadMinMs), ms(t.PostLoadMaxMs)
}

// SettleDelay returns the pause window before re-inspecting the page after an action
func (t TimingConfig) SettleDelay() (time.Duration, time.Duration) {
	return ms(t.SettleMinMs), ms(t.SettleMaxMs)
}

// DialogTimeout is how long to wait for the invitation dialog
func (t TimingConfig) DialogTimeout() time.Duration {
	return ms(t.DialogTimeoutMs)
}
