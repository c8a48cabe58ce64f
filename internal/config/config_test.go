package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvString(t *testing.T) {
	key := "TEST_ENV_STRING"
	val := "test_value"
	os.Setenv(key, val)
	defer os.Unsetenv(key)

	if got := getEnvString(key, "default"); got != val {
		t.Errorf("getEnvString() = %q, want %q", got, val)
	}

	if got := getEnvString("NON_EXISTENT", "default"); got != "default" {
		t.Errorf("getEnvString() = %q, want %q", got, "default")
	}
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_ENV_DURATION"

	tests := []struct {
		name       string
		envVal     string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"ValidDuration", "1m", time.Second, time.Minute},
		{"ValidSeconds", "60", time.Second, 60 * time.Second},
		{"Invalid", "invalid", time.Second, time.Second},
		{"Empty", "", time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envVal != "" {
				os.Setenv(key, tt.envVal)
				defer os.Unsetenv(key)
			} else {
				os.Unsetenv(key)
			}

			if got := getEnvDuration(key, tt.defaultVal); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvUint(t *testing.T) {
	key := "TEST_ENV_UINT"

	tests := []struct {
		name       string
		envVal     string
		defaultVal uint
		want       uint
	}{
		{"Valid", "250", 10, 250},
		{"Negative", "-5", 10, 10},
		{"Invalid", "abc", 10, 10},
		{"Empty", "", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envVal != "" {
				os.Setenv(key, tt.envVal)
				defer os.Unsetenv(key)
			} else {
				os.Unsetenv(key)
			}

			if got := getEnvUint(key, tt.defaultVal); got != tt.want {
				t.Errorf("getEnvUint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_ENV_BOOL"

	tests := []struct {
		name       string
		envVal     string
		defaultVal bool
		want       bool
	}{
		{"True", "true", false, true},
		{"False", "false", true, false},
		{"One", "1", false, true},
		{"Invalid", "yep", true, true},
		{"Empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envVal != "" {
				os.Setenv(key, tt.envVal)
				defer os.Unsetenv(key)
			} else {
				os.Unsetenv(key)
			}

			if got := getEnvBool(key, tt.defaultVal); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir")

	if err := ensureDir(path); err != nil {
		t.Fatalf("ensureDir() failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("directory was not created")
	}

	if err := ensureDir(""); err != nil {
		t.Error("ensureDir(\"\") should not error")
	}
}

func TestGetDefaultPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Skipping test because user home dir cannot be found")
	}

	dbPath := getDefaultDatabasePath()
	expectedDb := filepath.Join(home, ".config", "orbwatch", "balance.db")
	if dbPath != expectedDb {
		t.Errorf("getDefaultDatabasePath() = %q, want %q", dbPath, expectedDb)
	}

	patPath := getDefaultPatternsPath()
	expectedPat := filepath.Join(home, ".config", "orbwatch", "patterns.json")
	if patPath != expectedPat {
		t.Errorf("getDefaultPatternsPath() = %q, want %q", patPath, expectedPat)
	}
}

func TestGetEnvPaths(t *testing.T) {
	paths := getEnvPaths()
	if len(paths) == 0 {
		t.Error("getEnvPaths() returned empty list")
	}

	// Basic check that it contains current directory
	cwd, _ := os.Getwd()
	found := false
	for _, p := range paths {
		if p == filepath.Join(cwd, ".env") {
			found = true
			break
		}
	}
	if !found {
		t.Error("getEnvPaths() missing current directory .env")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		PollInterval:      time.Minute,
		LowThreshold:      500,
		CriticalThreshold: 100,
		RetentionDays:     30,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"MinimumInterval", func(c *Config) { c.PollInterval = 30 * time.Second }, false},
		{"IntervalTooShort", func(c *Config) { c.PollInterval = 10 * time.Second }, true},
		{"CriticalEqualsLow", func(c *Config) { c.CriticalThreshold = c.LowThreshold }, true},
		{"CriticalAboveLow", func(c *Config) { c.CriticalThreshold = c.LowThreshold + 1 }, true},
		{"ZeroRetention", func(c *Config) { c.RetentionDays = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("ORBWATCH_TOKEN", "")

	// Keep Load away from any real .env in the tree
	t.Chdir(t.TempDir())

	if _, err := Load(); err == nil {
		t.Error("expected error when ORBWATCH_TOKEN is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ORBWATCH_TOKEN", "tok-123")
	t.Setenv("ORBWATCH_DATABASE_PATH", filepath.Join(dir, "balance.db"))
	t.Setenv("ORBWATCH_PATTERNS_PATH", filepath.Join(dir, "patterns.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.PortalToken != "tok-123" {
		t.Errorf("PortalToken = %q, want %q", cfg.PortalToken, "tok-123")
	}
	if cfg.PortalBaseURL != defaultPortalBaseURL {
		t.Errorf("PortalBaseURL = %q, want %q", cfg.PortalBaseURL, defaultPortalBaseURL)
	}
	if cfg.PollInterval != defaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, defaultPollInterval)
	}
	if cfg.LowThreshold != defaultLowThreshold {
		t.Errorf("LowThreshold = %d, want %d", cfg.LowThreshold, defaultLowThreshold)
	}
	if cfg.CriticalThreshold != defaultCriticalThreshold {
		t.Errorf("CriticalThreshold = %d, want %d", cfg.CriticalThreshold, defaultCriticalThreshold)
	}
	if cfg.RetentionDays != defaultRetentionDays {
		t.Errorf("RetentionDays = %d, want %d", cfg.RetentionDays, defaultRetentionDays)
	}
	if !cfg.EnableNotifications {
		t.Error("EnableNotifications should default to true")
	}
	if cfg.NotifyOnChange {
		t.Error("NotifyOnChange should default to false")
	}
}
