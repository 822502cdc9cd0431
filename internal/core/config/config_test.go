package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		if cfg.Server.Host != "0.0.0.0" {
			t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
		}
		if cfg.Server.Port != 50061 {
			t.Errorf("expected port 50061, got %d", cfg.Server.Port)
		}
		if cfg.Server.MaxMessageBytes != 4<<20 {
			t.Errorf("expected max_message_bytes 4MiB, got %d", cfg.Server.MaxMessageBytes)
		}
		if cfg.Services.Timeout != 10*time.Second {
			t.Errorf("expected services timeout 10s, got %v", cfg.Services.Timeout)
		}
		if cfg.Store.DBURL != "sqlite://rulekeeper.db" {
			t.Errorf("expected default db url, got %s", cfg.Store.DBURL)
		}
		if cfg.Preview.OnCoercionFail != "error" {
			t.Errorf("expected on_coercion_fail error, got %s", cfg.Preview.OnCoercionFail)
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := writeConfig(t, `catalog:
  path: catalog.yaml
  watch: true
  refresh: "@hourly"
services:
  sql_url: http://sql.local
  timeout: 3s
server:
  port: 9000
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		if cfg.Catalog.Path != "catalog.yaml" || !cfg.Catalog.Watch || cfg.Catalog.Refresh != "@hourly" {
			t.Errorf("catalog = %+v, want catalog.yaml watched", cfg.Catalog)
		}
		if cfg.Services.SQLURL != "http://sql.local" || cfg.Services.Timeout != 3*time.Second {
			t.Errorf("services = %+v", cfg.Services)
		}
		if cfg.Server.Port != 9000 {
			t.Errorf("expected port 9000, got %d", cfg.Server.Port)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("RK_SERVER_PORT", "8080")
		t.Setenv("RK_SERVICES_TOKEN", "s3cret")

		cfg, err := LoadConfig(writeConfig(t, "server:\n  port: 9090\n"))
		if err != nil {
			t.Fatalf("LoadConfig() error = %v, want nil", err)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("environment should override config file: expected 8080, got %d", cfg.Server.Port)
		}
		if cfg.Services.Token != "s3cret" {
			t.Errorf("expected token from environment, got %q", cfg.Services.Token)
		}
	})

	t.Run("token in config file rejected", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "services:\n  token: nope\n"))
		if !errors.Is(err, ErrSecretInConfig) {
			t.Fatalf("LoadConfig() error = %v, want ErrSecretInConfig", err)
		}
	})

	t.Run("server token in config file rejected", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "server:\n  token: nope\n"))
		if !errors.Is(err, ErrSecretInConfig) {
			t.Fatalf("LoadConfig() error = %v, want ErrSecretInConfig", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "metrics disabled", mutate: func(c *Config) { c.Server.MetricsPort = 0 }},
		{name: "negative metrics port", mutate: func(c *Config) { c.Server.MetricsPort = -1 }, wantErr: true},
		{name: "zero message size", mutate: func(c *Config) { c.Server.MaxMessageBytes = 0 }, wantErr: true},
		{name: "zero batch size", mutate: func(c *Config) { c.Server.MaxBatchRecords = 0 }, wantErr: true},
		{name: "zero request timeout", mutate: func(c *Config) { c.Server.RequestTimeout = 0 }, wantErr: true},
		{name: "negative service timeout", mutate: func(c *Config) { c.Services.Timeout = -time.Second }, wantErr: true},
		{name: "refresh schedule", mutate: func(c *Config) { c.Catalog.Refresh = "*/5 * * * *" }},
		{name: "refresh interval", mutate: func(c *Config) { c.Catalog.Refresh = "@every 10m" }},
		{name: "refresh garbage", mutate: func(c *Config) { c.Catalog.Refresh = "often" }, wantErr: true},
		{name: "coercion null", mutate: func(c *Config) { c.Preview.OnCoercionFail = "null" }},
		{name: "coercion unknown", mutate: func(c *Config) { c.Preview.OnCoercionFail = "skip" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerAddrs(t *testing.T) {
	c := Default().Server
	if got := c.Addr(); got != "0.0.0.0:50061" {
		t.Errorf("Addr() = %s, want 0.0.0.0:50061", got)
	}
	if got := c.MetricsAddr(); got != "0.0.0.0:9101" {
		t.Errorf("MetricsAddr() = %s, want 0.0.0.0:9101", got)
	}
	c.MetricsPort = 0
	if got := c.MetricsAddr(); got != "" {
		t.Errorf("MetricsAddr() = %s, want empty", got)
	}
}
