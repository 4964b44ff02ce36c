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

// DuplicateMode decides what a duplicate classification means for the
// session: Finish assumes a strictly prepend-only feed and stops at the
// first duplicate; Skip resyncs at the boundary and continues.
type DuplicateMode string

const (
	ModeFinish DuplicateMode = "finish"
	ModeSkip   DuplicateMode = "skip"
)

// Config holds all configuration options for the gallery crawler
type Config struct {
	Gallery  GalleryConfig  `yaml:"gallery" json:"gallery"`
	Session  SessionConfig  `yaml:"session" json:"session"`
	Scroll   ScrollConfig   `yaml:"scroll" json:"scroll"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Pacing   PacingConfig   `yaml:"pacing" json:"pacing"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// GalleryConfig holds the selectors of the target gallery UI. The defaults
// match a generation gallery that renders items as cards with a
// "Creation Time" label and a prompt body.
type GalleryConfig struct {
	URL                   string `yaml:"url" json:"url"`
	ItemSelector          string `yaml:"item_selector" json:"item_selector"`
	ActiveItemSelector    string `yaml:"active_item_selector" json:"active_item_selector"`
	DetailSelector        string `yaml:"detail_selector" json:"detail_selector"`
	TimestampLabel        string `yaml:"timestamp_label" json:"timestamp_label"`
	PromptSelector        string `yaml:"prompt_selector" json:"prompt_selector"`
	StatusPendingSelector string `yaml:"status_pending_selector" json:"status_pending_selector"`
	CloseSelector         string `yaml:"close_selector" json:"close_selector"`
	DownloadSelector      string `yaml:"download_selector" json:"download_selector"`
	ScrollContainer       string `yaml:"scroll_container" json:"scroll_container"`
}

// SessionConfig holds per-session crawl budgets and policy
type SessionConfig struct {
	MaxDownloads           int           `yaml:"max_downloads" json:"max_downloads"`
	DuplicateMode          DuplicateMode `yaml:"duplicate_mode" json:"duplicate_mode"`
	StartFrom              string        `yaml:"start_from" json:"start_from"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" json:"max_consecutive_failures"`
}

// ScrollConfig bounds the multi-strategy scroll search
type ScrollConfig struct {
	AmountPx           int           `yaml:"amount_px" json:"amount_px"`
	Wait               time.Duration `yaml:"wait" json:"wait"`
	MaxAttempts        int           `yaml:"max_attempts" json:"max_attempts"`
	DetectionThreshold int           `yaml:"detection_threshold" json:"detection_threshold"`
}

// DownloadConfig holds download completion settings
type DownloadConfig struct {
	Timeout              time.Duration `yaml:"timeout" json:"timeout"`
	CompletionPollEvery  time.Duration `yaml:"completion_poll_every" json:"completion_poll_every"`
	DownloadsFolder      string        `yaml:"downloads_folder" json:"downloads_folder"`
	FileNamePattern      string        `yaml:"file_name_pattern" json:"file_name_pattern"`
}

// LogConfig holds the chronological download log settings
type LogConfig struct {
	LogsFolder string `yaml:"logs_folder" json:"logs_folder"`
	StartID    int    `yaml:"start_id" json:"start_id"`
}

// BrowserConfig holds Chrome launch settings
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	ProfileDir        string        `yaml:"profile_dir" json:"profile_dir"`
	ExecPath          string        `yaml:"exec_path" json:"exec_path"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	RemoteURL         string        `yaml:"remote_url" json:"remote_url"`
}

// PacingConfig throttles browser operations so the crawl does not hammer
// the UI faster than it can re-render
type PacingConfig struct {
	OperationsPerMinute int `yaml:"operations_per_minute" json:"operations_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Gallery: GalleryConfig{
			ItemSelector:          `[data-testid="gallery-item"], .gallery-item`,
			ActiveItemSelector:    `[data-active="true"], .gallery-item--active`,
			DetailSelector:        `[data-testid="generation-detail"], .generation-detail`,
			TimestampLabel:        "Creation Time",
			PromptSelector:        `[data-testid="prompt-text"], .prompt-text`,
			StatusPendingSelector: `.status-pending, .status-processing, .status-failed`,
			CloseSelector:         `[aria-label="Close"], .detail-close`,
			DownloadSelector:      `[aria-label="Download"], .detail-download`,
			ScrollContainer:       `[role="main"], .gallery-scroll`,
		},
		Session: SessionConfig{
			MaxDownloads:           0, // 0 means no limit
			DuplicateMode:          ModeFinish,
			MaxConsecutiveFailures: 5,
		},
		Scroll: ScrollConfig{
			AmountPx:           800,
			Wait:               700 * time.Millisecond,
			MaxAttempts:        8,
			DetectionThreshold: 1,
		},
		Download: DownloadConfig{
			Timeout:             30 * time.Second,
			CompletionPollEvery: 250 * time.Millisecond,
			DownloadsFolder:     "./downloads",
			FileNamePattern:     "{id}_{date}",
		},
		Log: LogConfig{
			LogsFolder: "./logs",
			StartID:    1,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
		},
		Pacing: PacingConfig{
			OperationsPerMinute: 120,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if url := os.Getenv("GALLERYDL_URL"); url != "" {
		c.Gallery.URL = url
	}
	if mode := os.Getenv("GALLERYDL_DUPLICATE_MODE"); mode != "" {
		c.Session.DuplicateMode = DuplicateMode(strings.ToLower(mode))
	}
	if max := os.Getenv("GALLERYDL_MAX_DOWNLOADS"); max != "" {
		if val, err := strconv.Atoi(max); err == nil && val >= 0 {
			c.Session.MaxDownloads = val
		}
	}
	if dir := os.Getenv("GALLERYDL_DOWNLOADS_FOLDER"); dir != "" {
		c.Download.DownloadsFolder = dir
	}
	if dir := os.Getenv("GALLERYDL_LOGS_FOLDER"); dir != "" {
		c.Log.LogsFolder = dir
	}
	if dir := os.Getenv("GALLERYDL_PROFILE_DIR"); dir != "" {
		c.Browser.ProfileDir = dir
	}
	if headless := os.Getenv("GALLERYDL_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) == "true"
	}
	if level := os.Getenv("GALLERYDL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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
	locations := []string{
		".gallerydl.yaml",
		".gallerydl.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "gallerydl", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "gallerydl", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".gallerydl.yaml"),
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

	if c.Gallery.URL == "" {
		errs = append(errs, errors.New("gallery URL is required"))
	}
	if c.Gallery.ItemSelector == "" {
		errs = append(errs, errors.New("gallery item selector is required"))
	}
	if c.Session.DuplicateMode != ModeFinish && c.Session.DuplicateMode != ModeSkip {
		errs = append(errs, fmt.Errorf("duplicate mode must be %q or %q", ModeFinish, ModeSkip))
	}
	if c.Session.MaxDownloads < 0 {
		errs = append(errs, errors.New("max downloads cannot be negative"))
	}
	if c.Session.MaxConsecutiveFailures <= 0 {
		errs = append(errs, errors.New("max consecutive failures must be positive"))
	}
	if c.Scroll.AmountPx <= 0 {
		errs = append(errs, errors.New("scroll amount must be positive"))
	}
	if c.Scroll.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max scroll attempts must be positive"))
	}
	if c.Scroll.DetectionThreshold <= 0 {
		errs = append(errs, errors.New("scroll detection threshold must be positive"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.CompletionPollEvery <= 0 {
		errs = append(errs, errors.New("completion poll interval must be positive"))
	}
	if c.Download.DownloadsFolder == "" {
		errs = append(errs, errors.New("downloads folder is required"))
	}
	if c.Log.LogsFolder == "" {
		errs = append(errs, errors.New("logs folder is required"))
	}
	if c.Log.StartID <= 0 {
		errs = append(errs, errors.New("log start id must be positive"))
	}
	if c.Pacing.OperationsPerMinute <= 0 {
		errs = append(errs, errors.New("operations per minute must be positive"))
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
	if url, ok := flags["url"].(string); ok && url != "" {
		c.Gallery.URL = url
	}
	if mode, ok := flags["mode"].(string); ok && mode != "" {
		c.Session.DuplicateMode = DuplicateMode(strings.ToLower(mode))
	}
	if max, ok := flags["max-downloads"].(int); ok && max > 0 {
		c.Session.MaxDownloads = max
	}
	if from, ok := flags["start-from"].(string); ok && from != "" {
		c.Session.StartFrom = from
	}
	if dir, ok := flags["downloads"].(string); ok && dir != "" {
		c.Download.DownloadsFolder = dir
	}
	if dir, ok := flags["logs"].(string); ok && dir != "" {
		c.Log.LogsFolder = dir
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if u, ok := flags["remote-url"].(string); ok && u != "" {
		c.Browser.RemoteURL = u
	}
	if dir, ok := flags["profile-dir"].(string); ok && dir != "" {
		c.Browser.ProfileDir = dir
	}
	if bin, ok := flags["exec-path"].(string); ok && bin != "" {
		c.Browser.ExecPath = bin
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".gallerydl.env"))

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
