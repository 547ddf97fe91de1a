// Package config handles configuration loading and validation for
// taskmirror. The config file carries connection details and defaults;
// runtime-mutable settings (interval, direction, list selection) live in
// the database and are only seeded from here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"taskmirror/internal/item"
)

// Config holds the complete service configuration.
type Config struct {
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string `toml:"listen_addr"`

	// Database is the path to the SQLite database file.
	Database string `toml:"database"`

	// LogFile, when set, routes the process log to a rotating file
	// instead of stderr.
	LogFile string `toml:"log_file"`

	Sync   SyncConfig    `toml:"sync"`
	Remote ServiceConfig `toml:"remote"`
	Local  ServiceConfig `toml:"local"`
}

// SyncConfig holds reconciliation defaults. The settings table overrides
// these once the user has changed them through the API.
type SyncConfig struct {
	// IntervalMinutes is the default scheduler cadence.
	IntervalMinutes int `toml:"interval_minutes"`

	// Direction is the default sync direction.
	Direction string `toml:"direction"`

	// RemoteListID is the default remote task list.
	RemoteListID string `toml:"remote_list_id"`

	// LocalListID is the default local reminder list. Empty means not
	// configured; syncs fail until a list is selected.
	LocalListID string `toml:"local_list_id"`
}

// ServiceConfig holds connection details for one of the two stores.
type ServiceConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".taskmirror")

	return &Config{
		ListenAddr: "127.0.0.1:8080",
		Database:   filepath.Join(dataDir, "taskmirror.db"),
		Sync: SyncConfig{
			IntervalMinutes: 15,
			Direction:       string(item.Bidirectional),
			RemoteListID:    "@default",
		},
		Local: ServiceConfig{
			BaseURL: "http://127.0.0.1:7766",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".taskmirror", "config.toml")
}

// Load reads the config file at path, layered over the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks field values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("database must not be empty")
	}
	if c.Sync.IntervalMinutes <= 0 {
		return fmt.Errorf("sync.interval_minutes must be positive (got %d)", c.Sync.IntervalMinutes)
	}
	if !item.Direction(c.Sync.Direction).Valid() {
		return fmt.Errorf("sync.direction must be one of remote_to_local, local_to_remote, bidirectional (got %q)", c.Sync.Direction)
	}
	return nil
}
