package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DateLayout is the operator-facing date format (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// Config holds all configuration options for a scrape run
type Config struct {
	Portal    PortalConfig    `yaml:"portal" json:"portal"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Workers   WorkersConfig   `yaml:"workers" json:"workers"`
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// PortalConfig selects the county portal profile
type PortalConfig struct {
	County string `yaml:"county" json:"county"`
	// Location is the "select a location" option on pre-2017 landing pages
	Location string `yaml:"location" json:"location"`
	// ProfilesFile optionally overrides the built-in county registry
	ProfilesFile string `yaml:"profiles_file" json:"profiles_file"`
}

// SearchConfig describes the officer x date matrix
type SearchConfig struct {
	StartDate    string   `yaml:"start_date" json:"start_date"`
	EndDate      string   `yaml:"end_date" json:"end_date"`
	LookbackDays int      `yaml:"lookback_days" json:"lookback_days"`
	Officers     []string `yaml:"officers" json:"officers"`
	Overwrite    bool     `yaml:"overwrite" json:"overwrite"`
	// RecordCap is the portal's per-query row limit; 0 means unknown
	RecordCap int `yaml:"record_cap" json:"record_cap"`
}

// RateLimitConfig holds the global request pacing
type RateLimitConfig struct {
	MinDelay      time.Duration `yaml:"min_delay" json:"min_delay"`
	RespectRobots bool          `yaml:"respect_robots" json:"respect_robots"`
}

// RetryConfig holds retry policy shared by transport and verification
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Strategy    string        `yaml:"strategy" json:"strategy"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// WorkersConfig sizes the two worker pools
type WorkersConfig struct {
	Sessions int `yaml:"sessions" json:"sessions"`
	Cases    int `yaml:"cases" json:"cases"`
}

// HTTPConfig holds client settings
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// StorageConfig selects where structured cases are persisted
type StorageConfig struct {
	Backend     string        `yaml:"backend" json:"backend"`
	Directory   string        `yaml:"directory" json:"directory"`
	ArchiveHTML bool          `yaml:"archive_html" json:"archive_html"`
	CacheTTL    time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format is "console", "json" or empty for terminal detection
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config with the stock run defaults
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			County:   "hays",
			Location: "All Courts",
		},
		Search: SearchConfig{
			LookbackDays: 30,
		},
		RateLimit: RateLimitConfig{
			MinDelay:      200 * time.Millisecond,
			RespectRobots: true,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Strategy:    "exponential",
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		Workers: WorkersConfig{
			Sessions: 2,
			Cases:    4,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Storage: StorageConfig{
			Backend:     "json",
			Directory:   "./data",
			ArchiveHTML: true,
			CacheTTL:    10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DateRange resolves the configured start and end dates against now.
// Missing dates default to a LookbackDays window ending today.
func (c *Config) DateRange(now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	end := today
	if c.Search.EndDate != "" {
		parsed, err := time.Parse(DateLayout, c.Search.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", c.Search.EndDate, err)
		}
		end = parsed
	}

	start := today.AddDate(0, 0, -c.Search.LookbackDays)
	if c.Search.StartDate != "" {
		parsed, err := time.Parse(DateLayout, c.Search.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", c.Search.StartDate, err)
		}
		start = parsed
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", end.Format(DateLayout), start.Format(DateLayout))
	}
	return start, end, nil
}

// LoadFromEnv applies ODYSSEY_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("ODYSSEY_COUNTY"); v != "" {
		c.Portal.County = v
	}
	if v := os.Getenv("ODYSSEY_LOCATION"); v != "" {
		c.Portal.Location = v
	}
	if v := os.Getenv("ODYSSEY_START_DATE"); v != "" {
		c.Search.StartDate = v
	}
	if v := os.Getenv("ODYSSEY_END_DATE"); v != "" {
		c.Search.EndDate = v
	}
	// Officer names contain commas, so the list is semicolon separated.
	if v := os.Getenv("ODYSSEY_OFFICERS"); v != "" {
		c.Search.Officers = splitList(v, ";")
	}
	if v := os.Getenv("ODYSSEY_OVERWRITE"); v != "" {
		c.Search.Overwrite = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("ODYSSEY_MIN_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ODYSSEY_MIN_DELAY_MS: %w", err))
		} else {
			c.RateLimit.MinDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ODYSSEY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ODYSSEY_MAX_ATTEMPTS: %w", err))
		} else {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("ODYSSEY_SESSION_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ODYSSEY_SESSION_WORKERS: %w", err))
		} else {
			c.Workers.Sessions = n
		}
	}
	if v := os.Getenv("ODYSSEY_CASE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ODYSSEY_CASE_WORKERS: %w", err))
		} else {
			c.Workers.Cases = n
		}
	}
	if v := os.Getenv("ODYSSEY_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("ODYSSEY_OUTPUT_DIR"); v != "" {
		c.Storage.Directory = v
	}
	if v := os.Getenv("ODYSSEY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".odysseyscraper.yaml",
		".odysseyscraper.yml",
		filepath.Join(home, ".config", "odysseyscraper", "config.yaml"),
		filepath.Join(home, ".odysseyscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Portal.County) == "" {
		errs = append(errs, errors.New("county is required"))
	}

	if c.Search.LookbackDays < 0 {
		errs = append(errs, errors.New("lookback days cannot be negative"))
	}
	if _, _, err := c.DateRange(time.Now()); err != nil {
		errs = append(errs, err)
	}
	if c.Search.RecordCap < 0 {
		errs = append(errs, errors.New("record cap cannot be negative"))
	}

	if c.RateLimit.MinDelay < 0 {
		errs = append(errs, errors.New("minimum delay cannot be negative"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	switch strings.ToLower(c.Retry.Strategy) {
	case "exponential", "constant":
	default:
		errs = append(errs, fmt.Errorf("unknown retry strategy %q", c.Retry.Strategy))
	}

	if c.Workers.Sessions < 1 || c.Workers.Sessions > 16 {
		errs = append(errs, errors.New("session workers must be between 1 and 16"))
	}
	if c.Workers.Cases < 1 || c.Workers.Cases > 32 {
		errs = append(errs, errors.New("case workers must be between 1 and 32"))
	}

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "json", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Storage.Directory == "" {
		errs = append(errs, errors.New("storage directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges CLI flag values into the configuration.
// Only keys present in flags are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["county"].(string); ok && v != "" {
		c.Portal.County = v
	}
	if v, ok := flags["location"].(string); ok && v != "" {
		c.Portal.Location = v
	}
	if v, ok := flags["profiles"].(string); ok && v != "" {
		c.Portal.ProfilesFile = v
	}
	if v, ok := flags["start"].(string); ok && v != "" {
		c.Search.StartDate = v
	}
	if v, ok := flags["end"].(string); ok && v != "" {
		c.Search.EndDate = v
	}
	if v, ok := flags["officers"].([]string); ok && len(v) > 0 {
		c.Search.Officers = v
	}
	if v, ok := flags["overwrite"].(bool); ok {
		c.Search.Overwrite = v
	}
	if v, ok := flags["record-cap"].(int); ok {
		c.Search.RecordCap = v
	}
	if v, ok := flags["wait"].(int); ok {
		c.RateLimit.MinDelay = time.Duration(v) * time.Millisecond
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Workers.Sessions = v
	}
	if v, ok := flags["case-workers"].(int); ok && v > 0 {
		c.Workers.Cases = v
	}
	if v, ok := flags["store"].(string); ok && v != "" {
		c.Storage.Backend = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Storage.Directory = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > environment (.env included) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".odysseyscraper.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
