package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Logging       LogConfig           `yaml:"logging" toml:"logging"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit" toml:"rateLimit"`
	Download      DownloadConfig      `yaml:"download" toml:"download"`
	Lifecycle     LifecycleConfig     `yaml:"lifecycle" toml:"lifecycle"`
	Collaborators CollaboratorsConfig `yaml:"collaborators" toml:"collaborators"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" yaml:"host" toml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requestsPerSecond" toml:"requestsPerSecond"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// DownloadConfig holds download manager configuration.
type DownloadConfig struct {
	Dir           string `envconfig:"DOWNLOAD_DIR" yaml:"dir" toml:"dir"`
	IDSeed        uint64 `envconfig:"DOWNLOAD_ID_SEED" yaml:"idSeed" toml:"idSeed"`
	QuotaKB       uint64 `envconfig:"DOWNLOAD_QUOTA_KB" yaml:"quotaKB" toml:"quotaKB"`
	BackoffUnitMS int    `envconfig:"DOWNLOAD_BACKOFF_UNIT_MS" yaml:"backoffUnitMS" toml:"backoffUnitMS"`
}

// LifecycleConfig holds lifecycle coordinator configuration.
type LifecycleConfig struct {
	// RuntimeAppPortal is stripped from container ids reported by the
	// runtime manager to recover the appInstanceId.
	RuntimeAppPortal string `envconfig:"RUNTIME_APP_PORTAL" yaml:"runtimeAppPortal" toml:"runtimeAppPortal"`
	// LoadingTimeoutMS bounds how long SpawnApp waits for the loading state.
	// Zero waits until the caller's context is done.
	LoadingTimeoutMS int `envconfig:"LOADING_TIMEOUT_MS" yaml:"loadingTimeoutMS" toml:"loadingTimeoutMS"`
	// CloseTimeoutMS bounds how long CloseApp waits for the kill to finish.
	CloseTimeoutMS int `envconfig:"CLOSE_TIMEOUT_MS" yaml:"closeTimeoutMS" toml:"closeTimeoutMS"`
	// DispatchWorkers sizes the event dispatch pool. Events of one app stay
	// on one worker, so notifications keep their order at any size.
	DispatchWorkers int `envconfig:"DISPATCH_WORKERS" yaml:"dispatchWorkers" toml:"dispatchWorkers"`
}

// CollaboratorsConfig holds the endpoints of the runtime and window managers.
type CollaboratorsConfig struct {
	RuntimeManagerURL string `envconfig:"RUNTIME_MANAGER_URL" yaml:"runtimeManagerURL" toml:"runtimeManagerURL"`
	WindowManagerURL  string `envconfig:"WINDOW_MANAGER_URL" yaml:"windowManagerURL" toml:"windowManagerURL"`
	RequestTimeoutMS  int    `envconfig:"COLLABORATOR_TIMEOUT_MS" yaml:"requestTimeoutMS" toml:"requestTimeoutMS"`
}

// BackoffUnit returns the download retry backoff unit.
func (d DownloadConfig) BackoffUnit() time.Duration {
	return time.Duration(d.BackoffUnitMS) * time.Millisecond
}

// LoadingTimeout returns the SpawnApp loading wait bound (0 = unbounded).
func (l LifecycleConfig) LoadingTimeout() time.Duration {
	return time.Duration(l.LoadingTimeoutMS) * time.Millisecond
}

// CloseTimeout returns the CloseApp kill wait bound (0 = unbounded).
func (l LifecycleConfig) CloseTimeout() time.Duration {
	return time.Duration(l.CloseTimeoutMS) * time.Millisecond
}

// RequestTimeout returns the per-call timeout for collaborator requests.
func (c CollaboratorsConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Load loads configuration from environment variables on top of defaults.
// Fields carry no envconfig defaults so values from Default (or a config
// file) survive when the variable is unset.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a YAML or TOML file, then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Download: DownloadConfig{
			Dir:           "/opt/CDL",
			IDSeed:        2000,
			QuotaKB:       1024 * 1024,
			BackoffUnitMS: 1000,
		},
		Lifecycle: LifecycleConfig{
			RuntimeAppPortal: "com.sky.as.apps",
			LoadingTimeoutMS: 0,
			CloseTimeoutMS:   0,
			DispatchWorkers:  1,
		},
		Collaborators: CollaboratorsConfig{
			RequestTimeoutMS: 5000,
		},
	}
}
