// Package config loads ttsdesk settings from a TOML or YAML file.
// Environment variables in the form ${VAR_NAME} are expanded and duration
// strings are parsed into time.Duration values.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "TTSDESK_CONFIG"

// Config is the complete ttsdesk configuration.
type Config struct {
	API      APIConfig      `toml:"api" yaml:"api"`
	Defaults DefaultsConfig `toml:"defaults" yaml:"defaults"`
	Query    QueryConfig    `toml:"query" yaml:"query"`
	Player   PlayerConfig   `toml:"player" yaml:"player"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
}

// APIConfig locates the backend.
type APIConfig struct {
	BaseURL     string `toml:"base_url" yaml:"base_url"`
	Prefix      string `toml:"prefix" yaml:"prefix"`
	OutputsPath string `toml:"outputs_path" yaml:"outputs_path"`

	Timeout    time.Duration `toml:"-" yaml:"-"`
	TimeoutRaw string        `toml:"timeout" yaml:"timeout"`
}

// DefaultsConfig preselects the form choices.
type DefaultsConfig struct {
	Model      string   `toml:"model" yaml:"model"`
	Specialist string   `toml:"specialist" yaml:"specialist"`
	Lang       string   `toml:"lang" yaml:"lang"`
	Langs      []string `toml:"langs" yaml:"langs"`
}

// QueryConfig tunes the query throttle.
type QueryConfig struct {
	Throttle    time.Duration `toml:"-" yaml:"-"`
	ThrottleRaw string        `toml:"throttle" yaml:"throttle"`
}

// PlayerConfig selects the external audio player.
type PlayerConfig struct {
	// Command is parsed with shell quoting; "{file}" marks the audio path.
	Command string `toml:"command" yaml:"command"`
}

// DatabaseConfig holds the history database location.
type DatabaseConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
	File  string `toml:"file" yaml:"file"`
	JSON  bool   `toml:"json" yaml:"json"`
}

// Choices offered by the backend.
var (
	Models      = []string{"fast", "reasoning"}
	Specialists = []string{"grammar", "daily"}
	Languages   = []string{"pt", "en", "es"}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "http://localhost:8000",
			Prefix:      "/api/v1",
			OutputsPath: "/outputs",
		},
		Defaults: DefaultsConfig{
			Model:      "fast",
			Specialist: "grammar",
			Lang:       "en",
			Langs:      []string{"en"},
		},
		Query: QueryConfig{
			Throttle: 600 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(DefaultDir(), "history.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(DefaultDir(), "ttsdesk.log"),
		},
	}
}

// DefaultDir is $XDG_CONFIG_HOME/ttsdesk, falling back to ~/.config/ttsdesk.
func DefaultDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "ttsdesk")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "ttsdesk")
	}
	return "ttsdesk"
}

// DefaultPath returns $TTSDESK_CONFIG or DefaultDir()/config.toml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(DefaultDir(), "config.toml")
}

// Load reads the config file at path over the defaults. An empty path
// means DefaultPath, and a missing default file yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := Parse(path, data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data into cfg. The format follows the file extension:
// .yaml and .yml are YAML, anything else TOML.
func Parse(path string, data []byte, cfg *Config) error {
	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

var envVar = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or "" if unset.
func expandEnvVars(s string) string {
	return envVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVar.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	var err error

	if cfg.API.TimeoutRaw != "" {
		cfg.API.Timeout, err = time.ParseDuration(cfg.API.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing api.timeout %q: %w", cfg.API.TimeoutRaw, err)
		}
	}

	if cfg.Query.ThrottleRaw != "" {
		cfg.Query.Throttle, err = time.ParseDuration(cfg.Query.ThrottleRaw)
		if err != nil {
			return fmt.Errorf("parsing query.throttle %q: %w", cfg.Query.ThrottleRaw, err)
		}
	}

	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q must be an absolute URL", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme must be http or https, got %q", u.Scheme)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.Query.Throttle < 0 {
		return fmt.Errorf("query.throttle must not be negative")
	}

	if !oneOf(c.Defaults.Model, Models) {
		return fmt.Errorf("defaults.model must be one of %v, got %q", Models, c.Defaults.Model)
	}
	if !oneOf(c.Defaults.Specialist, Specialists) {
		return fmt.Errorf("defaults.specialist must be one of %v, got %q", Specialists, c.Defaults.Specialist)
	}
	if !oneOf(c.Defaults.Lang, Languages) {
		return fmt.Errorf("defaults.lang must be one of %v, got %q", Languages, c.Defaults.Lang)
	}
	for _, l := range c.Defaults.Langs {
		if !oneOf(l, Languages) {
			return fmt.Errorf("defaults.langs: unknown language %q", l)
		}
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

func oneOf(s string, list []string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
