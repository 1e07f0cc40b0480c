package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ConfigPaths defines the search locations for config files.
const (
	// GlobalConfigDir is the XDG config directory name
	GlobalConfigDir = "pipeboard"
	// GlobalConfigFile is the global config file name
	GlobalConfigFile = "config.yaml"
	// ProjectConfigDir is the working-directory config directory
	ProjectConfigDir = ".pipeboard"
	// ProjectConfigFile is the working-directory config file name
	ProjectConfigFile = "config.yaml"
)

// LoadConfig loads configuration from files and viper settings.
// Precedence (later overrides earlier):
//  1. Default() values
//  2. ~/.config/pipeboard/config.yaml (global)
//  3. .pipeboard/config.yaml (working directory)
//  4. --config file
//  5. Environment variables (PIPEBOARD_*)
//  6. CLI flags (already bound to viper)
//
// Missing config files are silently ignored, except an explicit --config.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := Default()

	defaultMap, err := structToMap(cfg)
	if err != nil {
		return nil, err
	}
	if err := v.MergeConfigMap(defaultMap); err != nil {
		return nil, err
	}

	if globalPath := globalConfigPath(); globalPath != "" {
		if err := loadConfigFile(v, globalPath); err != nil {
			return nil, err
		}
	}

	if projectPath := projectConfigPath(); projectPath != "" {
		if err := loadConfigFile(v, projectPath); err != nil {
			return nil, err
		}
	}

	if explicitPath := v.GetString("config"); explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, err
		}
		if err := loadConfigFile(v, explicitPath); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg, viperDecodeHook()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work at runtime.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if c.Stream.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Stream.BaseURL); err != nil {
			return fmt.Errorf("stream.base_url: %w", err)
		}
	}
	if c.Stream.Multiplier < 1 {
		return fmt.Errorf("stream.multiplier must be >= 1, got %v", c.Stream.Multiplier)
	}
	switch c.Auth.Source {
	case TokenSourceKeyring, TokenSourceFile, TokenSourceNone:
	default:
		return fmt.Errorf("auth.source must be one of keyring, file, none; got %q", c.Auth.Source)
	}
	if c.Cache.IdleEntries < 1 {
		return fmt.Errorf("cache.idle_entries must be positive, got %d", c.Cache.IdleEntries)
	}
	return nil
}

// globalConfigPath returns the global config file path if it exists.
func globalConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}

	path := filepath.Join(configDir, GlobalConfigDir, GlobalConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// projectConfigPath returns the working-directory config file path if it exists.
func projectConfigPath() string {
	path := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// loadConfigFile merges the YAML file at path into v. A file that does not
// exist is skipped.
func loadConfigFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	layer := viper.New()
	layer.SetConfigType("yaml")
	if err := layer.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return v.MergeConfigMap(layer.AllSettings())
}

// viperDecodeHook lets config files spell durations as "30s" and lists as
// comma-separated strings.
func viperDecodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// structToMap flattens cfg into the nested map viper merges as the lowest
// precedence layer. Durations become strings so they round-trip through the
// decode hook above.
func structToMap(cfg *Config) (map[string]any, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "mapstructure",
		Result:     &out,
		DecodeHook: mapstructure.DecodeHookFuncType(durationToString),
	})
	if err != nil {
		return nil, fmt.Errorf("build defaults decoder: %w", err)
	}
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	return out, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func durationToString(from, _ reflect.Type, data any) (any, error) {
	if from != durationType {
		return data, nil
	}
	return data.(time.Duration).String(), nil
}
