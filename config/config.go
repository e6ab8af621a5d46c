package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Encode-failure policies for the history journal. Degrade keeps the
// mutation and stores an empty snapshot; Fail aborts the whole mutation.
const (
	EncodeDegrade = "degrade"
	EncodeFail    = "fail"
)

// Config is the top-level application configuration, corresponding to
// planning.yml with PLANNING_* environment overrides.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	CORS     CORSConfig     `koanf:"cors"`
	History  HistoryConfig  `koanf:"history"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `koanf:"port"`
	UseHTTPS bool `koanf:"use_https"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// AuthConfig holds the OpenID Connect provider settings.
type AuthConfig struct {
	Domain       string `koanf:"domain"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	CallbackURL  string `koanf:"callback_url"`
}

// CORSConfig holds the allowed origins for the SPA frontend.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// HistoryConfig tunes the audit history journals shared by the event and
// release modules.
type HistoryConfig struct {
	// Limit is the retention cap K: the maximum entries kept per journal.
	Limit int `koanf:"limit"`
	// ArchiveIntervalMinutes is the period of the background compaction
	// task that trims journals off the request path.
	ArchiveIntervalMinutes int `koanf:"archive_interval_minutes"`
	// OnEncodeFailure selects what happens when a snapshot cannot be
	// encoded at append time: "degrade" or "fail".
	OnEncodeFailure string `koanf:"on_encode_failure"`
	// RestoreChildrenFromSnapshot controls whether a delete-rollback
	// rebuilds a release's squads from the snapshot instead of defaults.
	RestoreChildrenFromSnapshot bool `koanf:"restore_children_from_snapshot"`
}

// ArchiveInterval returns the compaction period as a duration.
func (h HistoryConfig) ArchiveInterval() time.Duration {
	return time.Duration(h.ArchiveIntervalMinutes) * time.Minute
}

// Default returns the built-in configuration values.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "planning.db"},
		CORS:     CORSConfig{AllowedOrigins: []string{"http://localhost:4200"}},
		History: HistoryConfig{
			Limit:                  30,
			ArchiveIntervalMinutes: 60,
			OnEncodeFailure:        EncodeDegrade,
		},
	}
}

// Load reads configuration from the given YAML file if it exists, then
// overlays environment variable overrides (PLANNING_*). Nested keys use
// underscores doubled, e.g. PLANNING_SERVER__PORT -> server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("PLANNING_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "PLANNING_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be positive")
	}
	if c.History.ArchiveIntervalMinutes <= 0 {
		return fmt.Errorf("history.archive_interval_minutes must be positive")
	}
	switch c.History.OnEncodeFailure {
	case EncodeDegrade, EncodeFail:
	default:
		return fmt.Errorf("history.on_encode_failure %q: must be %q or %q",
			c.History.OnEncodeFailure, EncodeDegrade, EncodeFail)
	}
	return nil
}
