package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crewloop.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"hub": {"url": "https://hub.example.com"},
		"workspace": {"project_id": "p1"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Hub.ReconnectBase.Duration != time.Second {
		t.Errorf("reconnect_base = %v, want 1s", cfg.Hub.ReconnectBase.Duration)
	}
	if cfg.Hub.MaxReconnectWait.Duration != 30*time.Second {
		t.Errorf("max_reconnect_wait = %v, want 30s", cfg.Hub.MaxReconnectWait.Duration)
	}
	if cfg.Hub.MaxReconnectAttempts != 10 {
		t.Errorf("max_reconnect_attempts = %d, want 10", cfg.Hub.MaxReconnectAttempts)
	}
	if cfg.Workspace.LogLevel != "info" {
		t.Errorf("log_level = %q, want info", cfg.Workspace.LogLevel)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"hub": {
			"url": "http://localhost:8787",
			"reconnect_base": "250ms",
			"max_reconnect_wait": 10,
			"max_reconnect_attempts": 5
		},
		"workspace": {"project_id": "demo", "log_level": "debug"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Hub.ReconnectBase.Duration != 250*time.Millisecond {
		t.Errorf("reconnect_base = %v, want 250ms", cfg.Hub.ReconnectBase.Duration)
	}
	// Bare numbers are seconds.
	if cfg.Hub.MaxReconnectWait.Duration != 10*time.Second {
		t.Errorf("max_reconnect_wait = %v, want 10s", cfg.Hub.MaxReconnectWait.Duration)
	}
	if cfg.Hub.MaxReconnectAttempts != 5 {
		t.Errorf("max_reconnect_attempts = %d, want 5", cfg.Hub.MaxReconnectAttempts)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing url", content: `{"workspace": {"project_id": "p1"}}`},
		{name: "bad log level", content: `{"hub": {"url": "http://h"}, "workspace": {"log_level": "loud"}}`},
		{name: "bad duration", content: `{"hub": {"url": "http://h", "reconnect_base": "fast"}}`},
		{name: "not json", content: `hub:`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
