package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validEnv sets the minimum required env vars for a valid config.
func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HEARTH_PASSWORD", "hobbiton")
}

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

const validYAML = `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: "5s"
  shutdown_timeout: "5s"

store:
  backend: "sqlite"
  sqlite_path: "/tmp/hearth-test.db"

auth:
  dashboard_password: "hobbiton"
  cron_token: "cron-secret"

assistant:
  api_key: "gm-key"
  model: "gemini-2.0-flash"

digest:
  hour: 7
  timezone: "UTC"

log:
  level: "debug"
  format: "text"
`

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, validYAML)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Backend = %q", cfg.Store.Backend)
	}
	if cfg.Auth.CronToken != "cron-secret" {
		t.Errorf("CronToken = %q", cfg.Auth.CronToken)
	}
	if !cfg.Assistant.Enabled() {
		t.Error("Assistant.Enabled() = false with api key set")
	}
}

func TestLoadEnvOnlyDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	validEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("default backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Digest.Hour != 7 {
		t.Errorf("default digest hour = %d, want 7", cfg.Digest.Hour)
	}
	if cfg.Assistant.Model != "gemini-2.0-flash" {
		t.Errorf("default model = %q", cfg.Assistant.Model)
	}
	if cfg.Assistant.Enabled() {
		t.Error("Assistant.Enabled() = true without api key")
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, validYAML)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SERVER_PORT", "7777")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want env override 7777", cfg.Server.Port)
	}
}

func TestLoadExplicitPathMissing(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store: StoreConfig{Backend: "sqlite", SQLitePath: "./hearth.db", RedisAddr: "localhost:6379"},
			Auth:  AuthConfig{DashboardPassword: "hobbiton"},
			Digest: DigestConfig{
				Hour:     7,
				Timezone: "UTC",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid sqlite", func(c *Config) {}, false},
		{"valid redis", func(c *Config) { c.Store.Backend = "redis" }, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }, true},
		{"redis without addr", func(c *Config) { c.Store.Backend = "redis"; c.Store.RedisAddr = "" }, true},
		{"sqlite without path", func(c *Config) { c.Store.SQLitePath = "" }, true},
		{"empty password", func(c *Config) { c.Auth.DashboardPassword = "" }, true},
		{"digest hour too high", func(c *Config) { c.Digest.Hour = 24 }, true},
		{"digest hour negative", func(c *Config) { c.Digest.Hour = -1 }, true},
		{"bad timezone", func(c *Config) { c.Digest.Timezone = "Middle/Earth" }, true},
		{"sid without token", func(c *Config) { c.Telephony.AccountSID = "AC123" }, true},
		{"sid with token", func(c *Config) { c.Telephony.AccountSID = "AC123"; c.Telephony.AuthToken = "tok" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDigestLocation(t *testing.T) {
	cfg := &Config{Digest: DigestConfig{Timezone: "UTC"}}
	if got := cfg.DigestLocation(); got != time.UTC {
		t.Errorf("DigestLocation() = %v, want UTC", got)
	}
}
