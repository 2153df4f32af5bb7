// Package config handles workspace client configuration loading and
// validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level client configuration.
type Config struct {
	Hub       HubConfig       `json:"hub"`
	Workspace WorkspaceConfig `json:"workspace"`
}

// HubConfig defines how the client reaches the hub.
type HubConfig struct {
	URL                  string   `json:"url"`
	TLSSkipVerify        bool     `json:"tls_skip_verify,omitempty"` // dev only
	ReconnectBase        Duration `json:"reconnect_base,omitempty"`
	MaxReconnectWait     Duration `json:"max_reconnect_wait,omitempty"`
	MaxReconnectAttempts int      `json:"max_reconnect_attempts,omitempty"`
}

// WorkspaceConfig defines which project the client opens and local
// behavior.
type WorkspaceConfig struct {
	ProjectID string `json:"project_id"`
	LogLevel  string `json:"log_level,omitempty"`
}

// Load reads and validates a configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Hub.ReconnectBase.Duration == 0 {
		c.Hub.ReconnectBase = Duration{time.Second}
	}
	if c.Hub.MaxReconnectWait.Duration == 0 {
		c.Hub.MaxReconnectWait = Duration{30 * time.Second}
	}
	if c.Hub.MaxReconnectAttempts == 0 {
		c.Hub.MaxReconnectAttempts = 10
	}
	if c.Workspace.LogLevel == "" {
		c.Workspace.LogLevel = "info"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Hub.URL == "" {
		return fmt.Errorf("hub.url is required")
	}
	if c.Hub.ReconnectBase.Duration < 0 {
		return fmt.Errorf("hub.reconnect_base must be positive")
	}
	if c.Hub.MaxReconnectAttempts < 0 {
		return fmt.Errorf("hub.max_reconnect_attempts must be positive")
	}
	switch c.Workspace.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Workspace.LogLevel)
	}
	return nil
}

// Duration wraps time.Duration so configs can say "5s" or a number of
// seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		dur, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = dur
	case float64:
		d.Duration = time.Duration(val) * time.Second
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
