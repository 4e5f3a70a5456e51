package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.RateLimit.RequestsPerMinute != 60 {
		t.Errorf("Expected default requests per minute to be 60, got %d", config.RateLimit.RequestsPerMinute)
	}

	if config.Download.FeedPosts != 200 {
		t.Errorf("Expected default feed posts to be 200, got %d", config.Download.FeedPosts)
	}

	if !config.Download.FastUpdate || !config.Download.Highlights || !config.Download.ProfilePic {
		t.Error("Expected profile bundle options to be enabled by default")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestPaths(t *testing.T) {
	config := DefaultConfig()
	config.Archive.Directory = "/srv/archive"

	paths := config.Paths()

	expected := Paths{
		Root:           "/srv/archive",
		Data:           "/srv/archive/data",
		UsernameFile:   "/srv/archive/username",
		WatchlistFile:  "/srv/archive/tracking.txt",
		CheckpointFile: "/srv/archive/.checkpoint.json",
	}
	if paths != expected {
		t.Errorf("Expected paths %+v, got %+v", expected, paths)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("INSTARCHIVE_ARCHIVE_DIR", "/tmp/test-archive")
	t.Setenv("INSTARCHIVE_SESSION_ID", "test-session-id")
	t.Setenv("INSTARCHIVE_CSRF_TOKEN", "test-csrf-token")
	t.Setenv("INSTARCHIVE_REQUESTS_PER_MINUTE", "30")
	t.Setenv("INSTARCHIVE_FEED_POSTS", "50")
	t.Setenv("INSTARCHIVE_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Archive.Directory != "/tmp/test-archive" {
		t.Errorf("Expected archive directory to be /tmp/test-archive, got %s", config.Archive.Directory)
	}

	if config.Instagram.SessionID != "test-session-id" {
		t.Errorf("Expected session ID to be test-session-id, got %s", config.Instagram.SessionID)
	}

	if config.Instagram.CSRFToken != "test-csrf-token" {
		t.Errorf("Expected CSRF token to be test-csrf-token, got %s", config.Instagram.CSRFToken)
	}

	if config.RateLimit.RequestsPerMinute != 30 {
		t.Errorf("Expected requests per minute to be 30, got %d", config.RateLimit.RequestsPerMinute)
	}

	if config.Download.FeedPosts != 50 {
		t.Errorf("Expected feed posts to be 50, got %d", config.Download.FeedPosts)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("INSTARCHIVE_FEED_POSTS", "lots")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected an error for a non-numeric feed post count")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "missing archive directory",
			modify:    func(c *Config) { c.Archive.Directory = "" },
			wantError: true,
		},
		{
			name:      "feed posts below range",
			modify:    func(c *Config) { c.Download.FeedPosts = 0 },
			wantError: true,
		},
		{
			name:      "feed posts above range",
			modify:    func(c *Config) { c.Download.FeedPosts = 1001 },
			wantError: true,
		},
		{
			name:      "too many concurrent downloads",
			modify:    func(c *Config) { c.Download.ConcurrentDownloads = 11 },
			wantError: true,
		},
		{
			name:      "retry delays inverted",
			modify:    func(c *Config) { c.Retry.MaxDelay = time.Millisecond },
			wantError: true,
		},
		{
			name:      "invalid log level",
			modify:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Archive.Directory = "/srv/archive"
			tt.modify(config)

			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"archive-dir": "/flag/archive",
		"num-posts":   25,
		"log-level":   "error",
	}

	config.MergeCommandLineFlags(flags)

	if config.Archive.Directory != "/flag/archive" {
		t.Errorf("Expected archive directory to be /flag/archive, got %s", config.Archive.Directory)
	}

	if config.Download.FeedPosts != 25 {
		t.Errorf("Expected feed posts to be 25, got %d", config.Download.FeedPosts)
	}

	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	config := DefaultConfig()
	config.Archive.Directory = "/saved/archive"
	config.Download.FeedPosts = 80
	config.Download.Highlights = false

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loadedConfig := DefaultConfig()
	if err := loadedConfig.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedConfig.Archive.Directory != "/saved/archive" {
		t.Errorf("Expected loaded archive directory to be /saved/archive, got %s", loadedConfig.Archive.Directory)
	}

	if loadedConfig.Download.FeedPosts != 80 {
		t.Errorf("Expected loaded feed posts to be 80, got %d", loadedConfig.Download.FeedPosts)
	}

	if loadedConfig.Download.Highlights {
		t.Error("Expected highlights to stay disabled after reload")
	}
}

func TestLoadFromFileParsesDurations(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `archive:
  directory: /yaml/archive
download:
  timeout: 45s
retry:
  max_attempts: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Download.Timeout != 45*time.Second {
		t.Errorf("Expected timeout to be 45s, got %v", config.Download.Timeout)
	}

	if config.Retry.MaxAttempts != 5 {
		t.Errorf("Expected max attempts to be 5, got %d", config.Retry.MaxAttempts)
	}

	// Untouched keys keep their defaults
	if config.Download.FeedPosts != 200 {
		t.Errorf("Expected feed posts default to survive, got %d", config.Download.FeedPosts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected an error for an explicit missing config file")
	}
}
