// Package config loads process configuration: built-in defaults, then an
// optional YAML file, then CHECKIN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Rules    RulesConfig    `yaml:"rules"`
	Log      LogConfig      `yaml:"log"`
	Location LocationConfig `yaml:"location"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RolloverCheck  time.Duration `yaml:"rollover_check"`
}

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	BackendMemory = "memory"
)

type StorageConfig struct {
	Backend  string        `yaml:"backend"`
	Path     string        `yaml:"path"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type RulesConfig struct {
	Path string `yaml:"path"` // empty means built-in rules
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type LocationConfig struct {
	Enabled bool    `yaml:"enabled"`
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RolloverCheck:  time.Minute,
		},
		Storage: StorageConfig{
			Backend:  BackendSQLite,
			Path:     "checkin.db",
			Watch:    true,
			Debounce: 200 * time.Millisecond,
		},
		Catalog: CatalogConfig{
			Path: "shops.yaml",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Default returns the built-in configuration.
func Default() Config { return defaults() }

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations that cannot start.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendJSON:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for backend %q", c.Storage.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Server.RolloverCheck <= 0 {
		return errors.New("server.rollover_check must be positive")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

type envSpec struct {
	env   string
	apply func(cfg *Config, raw string) error
}

var specs = []envSpec{
	{"CHECKIN_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"CHECKIN_ALLOWED_ORIGINS", func(c *Config, v string) error {
		c.Server.AllowedOrigins = splitList(v)
		return nil
	}},
	{"CHECKIN_ROLLOVER_CHECK", durationInto(func(c *Config) *time.Duration { return &c.Server.RolloverCheck })},
	{"CHECKIN_STORE", func(c *Config, v string) error { c.Storage.Backend = strings.ToLower(v); return nil }},
	{"CHECKIN_STORE_PATH", func(c *Config, v string) error { c.Storage.Path = v; return nil }},
	{"CHECKIN_WATCH", boolInto(func(c *Config) *bool { return &c.Storage.Watch })},
	{"CHECKIN_WATCH_DEBOUNCE", durationInto(func(c *Config) *time.Duration { return &c.Storage.Debounce })},
	{"CHECKIN_CATALOG", func(c *Config, v string) error { c.Catalog.Path = v; return nil }},
	{"CHECKIN_RULES", func(c *Config, v string) error { c.Rules.Path = v; return nil }},
	{"CHECKIN_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"CHECKIN_LOCATION", func(c *Config, v string) error {
		lat, lng, err := parseLatLng(v)
		if err != nil {
			return err
		}
		c.Location = LocationConfig{Enabled: true, Lat: lat, Lng: lng}
		return nil
	}},
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	for _, s := range specs {
		raw, ok := lookup(s.env)
		if !ok || raw == "" {
			continue
		}
		if err := s.apply(cfg, raw); err != nil {
			return fmt.Errorf("env %s=%q: %w", s.env, raw, err)
		}
	}
	return nil
}

func durationInto(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, raw string) error {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func boolInto(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// parseLatLng reads "lat,lng".
func parseLatLng(raw string) (float64, float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, errors.New("want lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
