// Package config loads the vncd server configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level vncd configuration file (component C9).
type Config struct {
	// ListenAddr is the plain-RFB TCP listen address, e.g. "0.0.0.0:5900".
	ListenAddr string `yaml:"listen_addr"`

	// WebSocketListenAddr, if set, starts the optional WebSocket binary
	// upgrade transport alongside the plain TCP one (spec §6).
	WebSocketListenAddr string `yaml:"websocket_listen_addr,omitempty"`

	// MigrationStatePath, if set, is where the device's migration payload
	// (spec §4.3 Export/Import) is written on export and read on import
	// when vncd is asked to save/restore device state across a restart.
	MigrationStatePath string `yaml:"migration_state_path,omitempty"`

	// LogLevel is one of "debug", "info", "warn", "error". Defaults to
	// "info" when empty.
	LogLevel string `yaml:"log_level,omitempty"`

	// LogFormat is "text" or "json". Defaults to "text" when empty.
	LogFormat string `yaml:"log_format,omitempty"`
}

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Load reads and parses the configuration file at path, applying defaults
// for any omitted optional field.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if c.ListenAddr == "" {
		return Config{}, fmt.Errorf("config: %s: listen_addr is required", path)
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}

	return c, nil
}
