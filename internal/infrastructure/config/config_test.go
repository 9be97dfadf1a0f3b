package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
platform:
  link: "websocket"
  url: "wss://example.test/client"
  request_timeout: 10
session:
  username: "owner@example.test"
  place_id: "place-1"
  load_timeout: 15
api:
  port: 9000
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.URL != "wss://example.test/client" {
		t.Errorf("Platform.URL = %q, want %q", cfg.Platform.URL, "wss://example.test/client")
	}
	if cfg.Session.PlaceID != "place-1" {
		t.Errorf("Session.PlaceID = %q, want %q", cfg.Session.PlaceID, "place-1")
	}
	if cfg.GetLoadTimeout() != 15*time.Second {
		t.Errorf("GetLoadTimeout() = %v, want 15s", cfg.GetLoadTimeout())
	}
	// Defaults survive for sections the file does not mention
	if cfg.Security.CountdownInterval != 1000 {
		t.Errorf("Security.CountdownInterval = %d, want 1000", cfg.Security.CountdownInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
platform:
  link: "carrier-pigeon"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for unknown link, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			modify:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "mqtt link with client id",
			modify: func(c *Config) {
				c.Platform.Link = LinkMQTT
				c.Platform.URL = ""
			},
			wantErr: false,
		},
		{
			name: "websocket link without url",
			modify: func(c *Config) {
				c.Platform.URL = ""
			},
			wantErr: true,
		},
		{
			name: "mqtt link without client id",
			modify: func(c *Config) {
				c.Platform.Link = LinkMQTT
				c.MQTT.Broker.ClientID = ""
			},
			wantErr: true,
		},
		{
			name: "invalid QoS",
			modify: func(c *Config) {
				c.MQTT.QoS = 3
			},
			wantErr: true,
		},
		{
			name: "zero load timeout",
			modify: func(c *Config) {
				c.Session.LoadTimeout = 0
			},
			wantErr: true,
		},
		{
			name: "invalid API port when enabled",
			modify: func(c *Config) {
				c.API.Port = 0
			},
			wantErr: true,
		},
		{
			name: "relative websocket path",
			modify: func(c *Config) {
				c.WebSocket.Path = "ws"
			},
			wantErr: true,
		},
		{
			name: "API port ignored when disabled",
			modify: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetRequestTimeout(); got != 30*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetCountdownInterval(); got != time.Second {
		t.Errorf("GetCountdownInterval() = %v, want 1s", got)
	}
	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GRAYLOGIC_PLATFORM_URL", "wss://override.test/client")
	t.Setenv("GRAYLOGIC_SESSION_USERNAME", "env-user")
	t.Setenv("GRAYLOGIC_SESSION_PASSWORD", "env-pass")
	t.Setenv("GRAYLOGIC_SESSION_LOAD_TIMEOUT", "45")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "broker.test")
	t.Setenv("GRAYLOGIC_API_PORT", "not-a-number")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Platform.URL != "wss://override.test/client" {
		t.Errorf("Platform.URL = %q, want override", cfg.Platform.URL)
	}
	if cfg.Session.Username != "env-user" || cfg.Session.Password != "env-pass" {
		t.Errorf("Session credentials not overridden: %q/%q", cfg.Session.Username, cfg.Session.Password)
	}
	if cfg.Session.LoadTimeout != 45 {
		t.Errorf("Session.LoadTimeout = %d, want 45", cfg.Session.LoadTimeout)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want the default 8090 for an unparsable override", cfg.API.Port)
	}
	if cfg.MQTT.Broker.Host != "broker.test" {
		t.Errorf("MQTT.Broker.Host = %q, want broker.test", cfg.MQTT.Broker.Host)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Platform.Link != LinkWebSocket {
		t.Errorf("Platform.Link = %q, want %q", cfg.Platform.Link, LinkWebSocket)
	}
	if cfg.Session.LoadTimeout != 30 {
		t.Errorf("Session.LoadTimeout = %d, want 30", cfg.Session.LoadTimeout)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}
