package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for instarchive
type Config struct {
	// Archive location
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Session cookies and client identity
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry configuration for transient API failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ArchiveConfig holds the archive root location
type ArchiveConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	SessionID string `yaml:"session_id" json:"session_id"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	AppID     string `yaml:"app_id" json:"app_id"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	FeedPosts           int           `yaml:"feed_posts" json:"feed_posts"`
	Comments            bool          `yaml:"comments" json:"comments"`
	ProfilePic          bool          `yaml:"profile_pic" json:"profile_pic"`
	Posts               bool          `yaml:"posts" json:"posts"`
	Highlights          bool          `yaml:"highlights" json:"highlights"`
	Stories             bool          `yaml:"stories" json:"stories"`
	FastUpdate          bool          `yaml:"fast_update" json:"fast_update"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Paths is the on-disk layout of an archive root
type Paths struct {
	Root           string
	Data           string
	UsernameFile   string
	WatchlistFile  string
	CheckpointFile string
}

const (
	// MinFeedPosts and MaxFeedPosts bound the feed command's post count
	MinFeedPosts = 1
	MaxFeedPosts = 1000
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			Directory: filepath.Join(os.Getenv("HOME"), "instarchive"),
		},
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			AppID:     "936619743392459",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    time.Minute,
		},
		Download: DownloadConfig{
			Timeout:             30 * time.Second,
			ConcurrentDownloads: 3,
			FeedPosts:           200,
			Comments:            true,
			ProfilePic:          true,
			Posts:               true,
			Highlights:          true,
			Stories:             true,
			FastUpdate:          true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Paths returns the archive layout rooted at Archive.Directory
func (c *Config) Paths() Paths {
	root := c.Archive.Directory
	return Paths{
		Root:           root,
		Data:           filepath.Join(root, "data"),
		UsernameFile:   filepath.Join(root, "username"),
		WatchlistFile:  filepath.Join(root, "tracking.txt"),
		CheckpointFile: filepath.Join(root, ".checkpoint.json"),
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if dir := os.Getenv("INSTARCHIVE_ARCHIVE_DIR"); dir != "" {
		c.Archive.Directory = dir
	}
	if sessionID := os.Getenv("INSTARCHIVE_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken := os.Getenv("INSTARCHIVE_CSRF_TOKEN"); csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if userAgent := os.Getenv("INSTARCHIVE_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}

	if rpm := os.Getenv("INSTARCHIVE_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		if _, err := fmt.Sscanf(rpm, "%d", &val); err != nil {
			return fmt.Errorf("invalid INSTARCHIVE_REQUESTS_PER_MINUTE %q: %w", rpm, err)
		}
		c.RateLimit.RequestsPerMinute = val
	}

	if posts := os.Getenv("INSTARCHIVE_FEED_POSTS"); posts != "" {
		var val int
		if _, err := fmt.Sscanf(posts, "%d", &val); err != nil {
			return fmt.Errorf("invalid INSTARCHIVE_FEED_POSTS %q: %w", posts, err)
		}
		c.Download.FeedPosts = val
	}

	if n := os.Getenv("INSTARCHIVE_CONCURRENT_DOWNLOADS"); n != "" {
		var val int
		if _, err := fmt.Sscanf(n, "%d", &val); err != nil {
			return fmt.Errorf("invalid INSTARCHIVE_CONCURRENT_DOWNLOADS %q: %w", n, err)
		}
		c.Download.ConcurrentDownloads = val
	}

	if logLevel := os.Getenv("INSTARCHIVE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
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

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".instarchive.yaml",
		".instarchive.yml",
		filepath.Join(home, ".config", "instarchive", "config.yaml"),
		filepath.Join(home, ".config", "instarchive", "config.yml"),
		filepath.Join(home, ".instarchive.yaml"),
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

	if c.Archive.Directory == "" {
		errs = append(errs, errors.New("archive directory is required"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry delays must satisfy 0 <= base_delay <= max_delay"))
	}

	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.ConcurrentDownloads < 1 || c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads must be between 1 and 10"))
	}
	if c.Download.FeedPosts < MinFeedPosts || c.Download.FeedPosts > MaxFeedPosts {
		errs = append(errs, fmt.Errorf("feed posts must be between %d and %d", MinFeedPosts, MaxFeedPosts))
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

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["archive-dir"].(string); ok && dir != "" {
		c.Archive.Directory = dir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
	if posts, ok := flags["num-posts"].(int); ok && posts != 0 {
		c.Download.FeedPosts = posts
	}
	if n, ok := flags["concurrent-downloads"].(int); ok && n > 0 {
		c.Download.ConcurrentDownloads = n
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".instarchive.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
