package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
router:
  address: "fritz.box"
  username: "admin"
  password: "secret"
cache:
  enabled: true
  dir: "/tmp/fritzcore-cache"
  format: "gob"
journal:
  enabled: true
  path: "/tmp/fritzcore.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
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

	if cfg.Router.Address != "fritz.box" {
		t.Errorf("Router.Address = %q, want %q", cfg.Router.Address, "fritz.box")
	}

	if cfg.Cache.Format != "gob" {
		t.Errorf("Cache.Format = %q, want %q", cfg.Cache.Format, "gob")
	}

	if cfg.Journal.Path != "/tmp/fritzcore.db" {
		t.Errorf("Journal.Path = %q, want %q", cfg.Journal.Path, "/tmp/fritzcore.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Defaults survive a partial file.
	if cfg.Router.Port != 49000 {
		t.Errorf("Router.Port = %d, want default 49000", cfg.Router.Port)
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
router:
  address: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty router.address, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing router address",
			mutate:  func(c *Config) { c.Router.Address = "" },
			wantErr: true,
		},
		{
			name:    "invalid router port",
			mutate:  func(c *Config) { c.Router.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid tls port",
			mutate:  func(c *Config) { c.Router.TLSPort = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid cache format",
			mutate:  func(c *Config) { c.Cache.Format = "xml" },
			wantErr: true,
		},
		{
			name: "journal enabled without path",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Path = ""
			},
			wantErr: true,
		},
		{
			name: "invalid QoS",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without token",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
				c.InfluxDB.Token = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Router:  RouterConfig{Timeout: 30},
		Monitor: MonitorConfig{ReadTimeout: 15},
	}

	if got := cfg.GetTimeout().Seconds(); got != 30 {
		t.Errorf("GetTimeout() = %v, want 30", got)
	}

	if got := cfg.GetMonitorReadTimeout().Seconds(); got != 15 {
		t.Errorf("GetMonitorReadTimeout() = %v, want 15", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("FRITZCORE_ROUTER_ADDRESS", "192.168.178.1")
	t.Setenv("FRITZCORE_ROUTER_USERNAME", "admin")
	t.Setenv("FRITZCORE_ROUTER_PASSWORD", "hunter2")
	t.Setenv("FRITZCORE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("FRITZCORE_MQTT_USERNAME", "testuser")
	t.Setenv("FRITZCORE_MQTT_PASSWORD", "testpass")
	t.Setenv("FRITZCORE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Router.Address != "192.168.178.1" {
		t.Errorf("Router.Address = %q, want %q", cfg.Router.Address, "192.168.178.1")
	}

	if cfg.Router.Username != "admin" {
		t.Errorf("Router.Username = %q, want %q", cfg.Router.Username, "admin")
	}

	if cfg.Router.Password != "hunter2" {
		t.Errorf("Router.Password = %q, want %q", cfg.Router.Password, "hunter2")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Router.Address != "169.254.1.1" {
		t.Errorf("Default Router.Address = %q, want %q", cfg.Router.Address, "169.254.1.1")
	}

	if cfg.Router.Username != "dslf-config" {
		t.Errorf("Default Router.Username = %q, want %q", cfg.Router.Username, "dslf-config")
	}

	if cfg.Router.Port != 49000 || cfg.Router.TLSPort != 49443 {
		t.Errorf("Default ports = %d/%d, want 49000/49443", cfg.Router.Port, cfg.Router.TLSPort)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("Default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}
