// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	PortalToken         string
	PortalBaseURL       string
	DatabasePath        string
	PatternsPath        string
	PollInterval        time.Duration
	AlertCooldown       time.Duration
	LowThreshold        uint
	CriticalThreshold   uint
	RetentionDays       int
	EnableNotifications bool
	NotifyOnChange      bool
	EnableBrowser       bool
}

// Default values
const (
	defaultPortalBaseURL     = "https://portal.withorb.com"
	defaultPollInterval      = time.Minute
	defaultAlertCooldown     = 5 * time.Minute
	defaultLowThreshold      = 500
	defaultCriticalThreshold = 100
	defaultRetentionDays     = 30

	minPollInterval = 30 * time.Second
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		PortalToken:         getEnvString("ORBWATCH_TOKEN", ""),
		PortalBaseURL:       getEnvString("ORBWATCH_PORTAL_URL", defaultPortalBaseURL),
		DatabasePath:        getEnvString("ORBWATCH_DATABASE_PATH", getDefaultDatabasePath()),
		PatternsPath:        getEnvString("ORBWATCH_PATTERNS_PATH", getDefaultPatternsPath()),
		PollInterval:        getEnvDuration("ORBWATCH_POLL_INTERVAL", defaultPollInterval),
		AlertCooldown:       getEnvDuration("ORBWATCH_ALERT_COOLDOWN", defaultAlertCooldown),
		LowThreshold:        getEnvUint("ORBWATCH_LOW_THRESHOLD", defaultLowThreshold),
		CriticalThreshold:   getEnvUint("ORBWATCH_CRITICAL_THRESHOLD", defaultCriticalThreshold),
		RetentionDays:       getEnvInt("ORBWATCH_RETENTION_DAYS", defaultRetentionDays),
		EnableNotifications: getEnvBool("ORBWATCH_NOTIFICATIONS", true),
		NotifyOnChange:      getEnvBool("ORBWATCH_NOTIFY_ON_CHANGE", false),
		EnableBrowser:       getEnvBool("ORBWATCH_BROWSER", true),
	}

	if cfg.PortalToken == "" {
		return nil, fmt.Errorf("ORBWATCH_TOKEN is required (portal link token, set via env or .env)")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants before use.
func (c *Config) Validate() error {
	if c.PollInterval < minPollInterval {
		return fmt.Errorf("poll interval %s is below the minimum of %s", c.PollInterval, minPollInterval)
	}
	if c.CriticalThreshold >= c.LowThreshold {
		return fmt.Errorf("critical threshold (%d) must be below low threshold (%d)",
			c.CriticalThreshold, c.LowThreshold)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention must be at least 1 day, got %d", c.RetentionDays)
	}
	return nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "orbwatch", ".env"),
			filepath.Join(home, ".orbwatch", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "balance.db"
	}
	return filepath.Join(home, ".config", "orbwatch", "balance.db")
}

// getDefaultPatternsPath returns the default path for the extraction pattern file.
func getDefaultPatternsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "patterns.json"
	}
	return filepath.Join(home, ".config", "orbwatch", "patterns.json")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvUint retrieves an unsigned integer environment variable or returns the default.
func getEnvUint(key string, defaultValue uint) uint {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseUint(value, 10, 32); err == nil {
			return uint(n)
		}
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
