package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Remote     RemoteConfig     `yaml:"remote"`
	Cache      CacheConfig      `yaml:"cache"`
	Limits     LimitsConfig     `yaml:"limits"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Storage    StorageConfig    `yaml:"storage"`
	Alerts     AlertsConfig     `yaml:"alerts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RemoteConfig holds settings for the drive API client.
type RemoteConfig struct {
	BaseURL        string  `yaml:"base_url"`
	MaxRetries     int     `yaml:"max_retries"`     // total attempts per request (default: 3)
	BaseDelayMS    int     `yaml:"base_delay_ms"`   // first backoff delay (default: 1000)
	MaxDelayMS     int     `yaml:"max_delay_ms"`    // backoff ceiling (default: 30000)
	BackoffFactor  float64 `yaml:"backoff_factor"`  // delay multiplier per attempt (default: 2.0)
	ChunkSizeMiB   int     `yaml:"chunk_size_mib"`  // upload chunk size (default: 10)
	MaxPages       int     `yaml:"max_pages"`       // pagination safety bound (default: 100)
	TimeoutSeconds int     `yaml:"timeout_seconds"` // per-request HTTP timeout (default: 60)
}

// CacheConfig holds content cache settings.
type CacheConfig struct {
	Enabled           bool     `yaml:"enabled"`
	TTLSeconds        int      `yaml:"ttl_seconds"`         // default: 300
	MaxEntries        int      `yaml:"max_entries"`         // default: 1000
	SweepSeconds      int      `yaml:"sweep_seconds"`       // background expiry sweep (default: 60)
	WarmupSchedule    string   `yaml:"warmup_schedule"`     // cron spec, empty disables warm-up
	WarmupDrives      []string `yaml:"warmup_drives"`       // drive IDs whose root content gets preloaded
	WarmupFolderLimit int      `yaml:"warmup_folder_limit"` // items preloaded per drive per run (default: 5)
}

// LimitsConfig holds file acceptance limits.
type LimitsConfig struct {
	MaxFileSizeMiB int      `yaml:"max_file_size_mib"` // hard upload ceiling (default: 250)
	AllowedMIMEs   []string `yaml:"allowed_mimes"`     // empty means all supported types
}

// ExtractionConfig holds text extraction settings.
type ExtractionConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StorageConfig holds original-document storage settings.
type StorageConfig struct {
	Dir string `yaml:"dir"` // empty disables asset storage
}

// AlertsConfig holds transports for high-risk ingestion alerts.
type AlertsConfig struct {
	Slack    SlackAlertConfig    `yaml:"slack"`
	Telegram TelegramAlertConfig `yaml:"telegram"`
	SMTP     SMTPAlertConfig     `yaml:"smtp"`
}

type SlackAlertConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

type TelegramAlertConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type SMTPAlertConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Password string `yaml:"password"`
	To       string `yaml:"to"`
	Subject  string `yaml:"subject"`
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{},
		Remote: RemoteConfig{
			MaxRetries:     3,
			BaseDelayMS:    1000,
			MaxDelayMS:     30000,
			BackoffFactor:  2.0,
			ChunkSizeMiB:   10,
			MaxPages:       100,
			TimeoutSeconds: 60,
		},
		Cache: CacheConfig{
			Enabled:           true,
			TTLSeconds:        300,
			MaxEntries:        1000,
			SweepSeconds:      60,
			WarmupFolderLimit: 5,
		},
		Limits: LimitsConfig{
			MaxFileSizeMiB: 250,
		},
		Extraction: ExtractionConfig{
			Enabled: true,
		},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
// Environment variables prefixed DOCBRIDGE_ override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyEnv(cfg)

	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns sensible defaults.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = defaults()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers DOCBRIDGE_* environment overrides on top of cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DOCBRIDGE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DOCBRIDGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DOCBRIDGE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DOCBRIDGE_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("DOCBRIDGE_CACHE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = enabled
		}
	}
	if v := os.Getenv("DOCBRIDGE_MAX_FILE_SIZE_MIB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Limits.MaxFileSizeMiB = n
		}
	}
}
