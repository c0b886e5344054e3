// Package config loads, validates, and saves the driver configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/commatea/Radiance-Link/pkg/logger"
)

// DefaultConfigPath is used when no path is given on the command line.
const DefaultConfigPath = "configs/radiance.yaml"

var validate = validator.New()

// ConnectionConfig describes how to reach the device.
type ConnectionConfig struct {
	// Type selects the transport: "serial" or "ip".
	Type string `yaml:"type" validate:"required,oneof=serial ip"`

	// Serial parameters.
	Port     string `yaml:"port"`
	Baudrate int    `yaml:"baudrate" validate:"omitempty,gt=0"`

	// IP parameters.
	Host    string `yaml:"host"`
	TCPPort int    `yaml:"tcp_port" validate:"omitempty,gt=0,lte=65535"`

	// Reconnect enables automatic reconnection after connection loss.
	Reconnect bool `yaml:"reconnect"`
}

// MQTTConfig configures the optional state publisher.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker" validate:"required_if=Enabled true"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// APIConfig configures the optional HTTP status surface.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// JournalConfig configures the failed-command journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// Config is the root configuration.
type Config struct {
	Connection ConnectionConfig `yaml:"connection" validate:"required"`
	Log        logger.Config    `yaml:"log"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	Journal    JournalConfig    `yaml:"journal"`
}

// DefaultConfig returns a configuration with sensible defaults for an IP
// connection.
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Type:      "ip",
			Baudrate:  9600,
			TCPPort:   4999,
			Reconnect: true,
		},
		Log: logger.Config{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			ClientID: "radiance-link",
			Topic:    "radiance/state",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8080",
		},
		Journal: JournalConfig{
			Path: "radiance-journal.db",
		},
	}
}

// Load reads and validates the configuration at path. Missing optional
// fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	switch c.Connection.Type {
	case "serial":
		if c.Connection.Port == "" {
			return fmt.Errorf("validate config: serial connection requires port")
		}
	case "ip":
		if c.Connection.Host == "" {
			return fmt.Errorf("validate config: ip connection requires host")
		}
	}
	return nil
}

// Save writes the configuration to path, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
