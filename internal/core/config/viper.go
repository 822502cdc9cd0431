package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// ErrSecretInConfig rejects tokens placed in a config file.
var ErrSecretInConfig = errors.New("tokens not allowed in config files (use RK_SERVICES_TOKEN and RK_SERVER_TOKEN environment variables)")

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned value.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.url", d.Catalog.URL)
	v.SetDefault("catalog.watch", d.Catalog.Watch)
	v.SetDefault("catalog.refresh", d.Catalog.Refresh)
	v.SetDefault("services.validation_url", "")
	v.SetDefault("services.sql_url", "")
	v.SetDefault("services.storage_url", "")
	v.SetDefault("services.timeout", d.Services.Timeout.String())
	v.SetDefault("services.token", "")
	v.SetDefault("store.db_url", d.Store.DBURL)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.metrics_port", d.Server.MetricsPort)
	v.SetDefault("server.max_message_bytes", d.Server.MaxMessageBytes)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.max_batch_records", d.Server.MaxBatchRecords)
	v.SetDefault("server.token", "")
	v.SetDefault("preview.on_coercion_fail", d.Preview.OnCoercionFail)

	// Bind environment variables with RK_ prefix
	v.SetEnvPrefix("RK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Catalog: CatalogConfig{
			Path:    v.GetString("catalog.path"),
			URL:     v.GetString("catalog.url"),
			Watch:   v.GetBool("catalog.watch"),
			Refresh: v.GetString("catalog.refresh"),
		},
		Services: ServicesConfig{
			ValidationURL: v.GetString("services.validation_url"),
			SQLURL:        v.GetString("services.sql_url"),
			StorageURL:    v.GetString("services.storage_url"),
			Timeout:       v.GetDuration("services.timeout"),
			Token:         v.GetString("services.token"),
		},
		Store: StoreConfig{DBURL: v.GetString("store.db_url")},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			MetricsPort:     v.GetInt("server.metrics_port"),
			MaxMessageBytes: v.GetInt("server.max_message_bytes"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			MaxBatchRecords: v.GetInt("server.max_batch_records"),
			Token:           v.GetString("server.token"),
		},
		Preview: PreviewConfig{OnCoercionFail: v.GetString("preview.on_coercion_fail")},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks port ranges, durations, sizes, the refresh schedule and
// enum values.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 0 and 65535, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.MaxMessageBytes <= 0 {
		return fmt.Errorf("server.max_message_bytes must be positive, got %d", cfg.Server.MaxMessageBytes)
	}
	if cfg.Server.MaxBatchRecords <= 0 {
		return fmt.Errorf("server.max_batch_records must be positive, got %d", cfg.Server.MaxBatchRecords)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Services.Timeout <= 0 {
		return fmt.Errorf("services.timeout must be positive, got %v", cfg.Services.Timeout)
	}
	if cfg.Catalog.Refresh != "" {
		if _, err := cron.ParseStandard(cfg.Catalog.Refresh); err != nil {
			return fmt.Errorf("catalog.refresh is not a valid schedule: %w", err)
		}
	}
	switch cfg.Preview.OnCoercionFail {
	case "error", "null":
	default:
		return fmt.Errorf("preview.on_coercion_fail must be error or null, got %q", cfg.Preview.OnCoercionFail)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only tokens.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("services.token") || v.InConfig("server.token") || v.InConfig("token") {
		return ErrSecretInConfig
	}
	return nil
}
