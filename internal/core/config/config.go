// Package config provides configuration management for rulekeeper.
package config

import (
	"fmt"
	"time"
)

// CatalogConfig locates the field/function catalog.
type CatalogConfig struct {
	// Path is a local JSON or YAML catalog file.
	Path string
	// URL is the catalog service endpoint, used when Path is empty.
	URL string
	// Watch reloads Path when it changes.
	Watch bool
	// Refresh is a cron schedule for refetching URL; empty disables it.
	Refresh string
}

// ServicesConfig holds the remote collaborator endpoints.
type ServicesConfig struct {
	ValidationURL string
	SQLURL        string
	StorageURL    string
	Timeout       time.Duration
	// Token is sent as a bearer token. Environment only.
	Token string
}

// StoreConfig configures the local rule store.
type StoreConfig struct {
	DBURL string
}

// ServerConfig configures the gRPC rule tools service.
type ServerConfig struct {
	Host            string
	Port            int
	MetricsPort     int
	MaxMessageBytes int
	RequestTimeout  time.Duration
	// MaxBatchRecords caps records per PreviewBatch call.
	MaxBatchRecords int
	// Token, when set, is required as a bearer token. Environment only.
	Token string
}

// PreviewConfig tunes the preview evaluator.
type PreviewConfig struct {
	// OnCoercionFail is "error" or "null".
	OnCoercionFail string
}

// Config is the complete rulekeeper configuration.
type Config struct {
	Catalog  CatalogConfig
	Services ServicesConfig
	Store    StoreConfig
	Server   ServerConfig
	Preview  PreviewConfig
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Services: ServicesConfig{Timeout: 10 * time.Second},
		Store:    StoreConfig{DBURL: "sqlite://rulekeeper.db"},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            50061,
			MetricsPort:     9101,
			MaxMessageBytes: 4 << 20,
			RequestTimeout:  30 * time.Second,
			MaxBatchRecords: 1000,
		},
		Preview: PreviewConfig{OnCoercionFail: "error"},
	}
}

// Addr is the gRPC listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddr is the prometheus listen address, empty when disabled.
func (c ServerConfig) MetricsAddr() string {
	if c.MetricsPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}
