// Package config provides configuration types and defaults for pipeboard.
package config

import "time"

// Config holds all configuration for pipeboard.
type Config struct {
	API         APIConfig         `yaml:"api" mapstructure:"api"`
	Stream      StreamConfig      `yaml:"stream" mapstructure:"stream"`
	Project     ProjectConfig     `yaml:"project" mapstructure:"project"`
	Auth        AuthConfig        `yaml:"auth" mapstructure:"auth"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Notify      NotifyConfig      `yaml:"notify" mapstructure:"notify"`
	Export      ExportConfig      `yaml:"export" mapstructure:"export"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	Devtools    bool              `yaml:"devtools" mapstructure:"devtools"` // Show the cache inspector in the dashboard
}

// APIConfig holds backend REST settings.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StreamConfig holds live-event stream settings.
// An empty BaseURL disables the stream.
type StreamConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Reconnect         bool          `yaml:"reconnect" mapstructure:"reconnect"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay" mapstructure:"max_reconnect_delay"`
	Multiplier        float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ProjectConfig holds project selection settings.
type ProjectConfig struct {
	DefaultID string `yaml:"default_id" mapstructure:"default_id"`
}

// Token sources understood by AuthConfig.Source.
const (
	TokenSourceKeyring = "keyring"
	TokenSourceFile    = "file"
	TokenSourceNone    = "none"
)

// AuthConfig holds bearer token storage settings.
type AuthConfig struct {
	Source         string `yaml:"source" mapstructure:"source"`         // keyring, file, or none
	TokenFile      string `yaml:"token_file" mapstructure:"token_file"` // Used when source is "file"
	KeyringService string `yaml:"keyring_service" mapstructure:"keyring_service"`
	KeyringUser    string `yaml:"keyring_user" mapstructure:"keyring_user"`
}

// CacheConfig holds server-state cache settings.
type CacheConfig struct {
	IdleEntries  int           `yaml:"idle_entries" mapstructure:"idle_entries"`   // Unreferenced entries kept before eviction
	FetchTimeout time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"` // Upper bound for a shared fetch (0 = none)
}

// NotifyConfig holds toast throttling settings.
type NotifyConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
	History       int     `yaml:"history" mapstructure:"history"`
}

// ExportConfig holds settings for exported and downloaded files.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// PathsConfig holds file paths for logs and the token file.
type PathsConfig struct {
	Log string `yaml:"log" mapstructure:"log"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the dashboard debug log (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// Default returns a Config pointing at a backend on localhost.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api/v1",
			Timeout: 30 * time.Second,
		},
		Stream: StreamConfig{
			BaseURL:           "http://localhost:8000/sse",
			Reconnect:         true,
			ReconnectDelay:    time.Second,
			MaxReconnectDelay: 30 * time.Second,
			Multiplier:        2.0,
		},
		Auth: AuthConfig{
			Source:         TokenSourceKeyring,
			TokenFile:      ".pipeboard/token",
			KeyringService: "pipeboard",
			KeyringUser:    "auth_token",
		},
		Cache: CacheConfig{
			IdleEntries:  64,
			FetchTimeout: time.Minute,
		},
		Notify: NotifyConfig{
			RatePerSecond: 2,
			Burst:         5,
			History:       50,
		},
		Export: ExportConfig{
			Dir: ".",
		},
		Paths: PathsConfig{
			Log: ".pipeboard/pipeboard.log",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}
