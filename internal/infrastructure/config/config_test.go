package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
lighting:
  command_timeout: 10s
shelf_controllers:
  motion_recency_window: 2m
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Lighting.CommandTimeout != 10*time.Second {
		t.Errorf("Lighting.CommandTimeout = %v, want 10s", cfg.Lighting.CommandTimeout)
	}
	if cfg.ShelfControllers.MotionRecencyWindow != 2*time.Minute {
		t.Errorf("MotionRecencyWindow = %v, want 2m", cfg.ShelfControllers.MotionRecencyWindow)
	}
	// Unset sections keep their defaults.
	if cfg.Recognition.MaxDimension != 1280 {
		t.Errorf("Recognition.MaxDimension = %d, want 1280", cfg.Recognition.MaxDimension)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
database:
  path: "/tmp/test.db"
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "zero upload limit", mutate: func(c *Config) { c.API.MaxUploadBytes = 0 }, wantErr: true},
		{name: "missing recognition URL", mutate: func(c *Config) { c.Recognition.BaseURL = "" }, wantErr: true},
		{name: "zero light timeout", mutate: func(c *Config) { c.Lighting.CommandTimeout = 0 }, wantErr: true},
		{name: "zero recency window", mutate: func(c *Config) { c.ShelfControllers.MotionRecencyWindow = 0 }, wantErr: true},
		{name: "negative cache ttl", mutate: func(c *Config) { c.Inventory.RegistryCacheTTL = -time.Second }, wantErr: true},
		{name: "write timeout below identify budget", mutate: func(c *Config) { c.API.Timeouts.Write = 60 }, wantErr: true},
		{name: "write timeout disabled", mutate: func(c *Config) { c.API.Timeouts.Write = 0 }},
		{name: "shorter budget allows shorter write timeout", mutate: func(c *Config) {
			c.API.Timeouts.Write = 60
			c.Recognition.RetryCount = 0
		}},
		{name: "cache disabled", mutate: func(c *Config) { c.Inventory.RegistryCacheTTL = 0 }},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
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
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("INVENTORY_DATABASE_PATH", "/custom/path.db")
	t.Setenv("INVENTORY_MQTT_HOST", "mqtt.example.com")
	t.Setenv("INVENTORY_MQTT_USERNAME", "testuser")
	t.Setenv("INVENTORY_MQTT_PASSWORD", "testpass")
	t.Setenv("INVENTORY_API_HOST", "192.168.1.1")
	t.Setenv("INVENTORY_API_PORT", "9090")
	t.Setenv("INVENTORY_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("INVENTORY_RECOGNITION_URL", "http://vision.local")
	t.Setenv("INVENTORY_RECOGNITION_API_KEY", "vision-key")
	t.Setenv("INVENTORY_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Recognition.BaseURL", cfg.Recognition.BaseURL, "http://vision.local"},
		{"Recognition.APIKey", cfg.Recognition.APIKey, "vision-key"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}

	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("INVENTORY_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestConfig_IdentifyBudget(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.IdentifyBudget(); got != time.Minute {
		t.Errorf("IdentifyBudget() = %v, want 1m (2 x 15s recognition + 30s light ack)", got)
	}
	if cfg.GetWriteTimeout() <= cfg.IdentifyBudget() {
		t.Errorf("default write timeout %v does not exceed identify budget %v", cfg.GetWriteTimeout(), cfg.IdentifyBudget())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Lighting.CommandTimeout != 30*time.Second {
		t.Errorf("Lighting.CommandTimeout = %v, want 30s", cfg.Lighting.CommandTimeout)
	}
	if cfg.ShelfControllers.MotionRecencyWindow != 5*time.Minute {
		t.Errorf("MotionRecencyWindow = %v, want 5m", cfg.ShelfControllers.MotionRecencyWindow)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}
