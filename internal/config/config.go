// Package config handles loading and parsing of the secrets server's
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the secrets server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Store         StoreConfig         `yaml:"store"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string    `yaml:"host"`
	Port            int       `yaml:"port"`
	Partition       string    `yaml:"partition"`       // ARN partition, e.g. "aws".
	Region          string    `yaml:"region"`           // ARN region and SigV4 credential-scope region.
	AccountID       string    `yaml:"account_id"`       // ARN account id.
	ShutdownTimeout int       `yaml:"shutdown_timeout"` // Graceful shutdown timeout in seconds (default: 30).
	TLS             TLSConfig `yaml:"tls"`
}

// TLSConfig holds optional TLS termination settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig holds the single static principal checked by the SigV4
// verifier, plus the clock-skew tolerance applied to request timestamps.
type AuthConfig struct {
	// AccessKeyID is the access key used for SigV4 authentication.
	AccessKeyID string `yaml:"access_key_id"`
	// SecretAccessKey is the secret key used for SigV4 authentication.
	SecretAccessKey string `yaml:"secret_access_key"`
	// ClockSkewSeconds bounds the allowed drift between X-Amz-Date and the
	// server clock (default: 300, AWS Secrets Manager's own tolerance).
	ClockSkewSeconds int `yaml:"clock_skew_seconds"`
}

// StoreConfig holds the encrypted relational store's settings.
type StoreConfig struct {
	// Path is the filesystem path for the encrypted container file.
	Path string `yaml:"path"`
	// Passphrase derives the store's file-encryption key. Prefer
	// SECRETSMANAGER_STORE_PASSPHRASE over committing this to a config file.
	Passphrase string `yaml:"passphrase"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// Format is the log output format: "text" or "json".
	Format string `yaml:"format"`
}

// ObservabilityConfig holds settings for metrics and health check endpoints.
type ObservabilityConfig struct {
	// Metrics enables the /metrics Prometheus endpoint.
	Metrics bool `yaml:"metrics"`
	// HealthCheck enables the /health liveness probe.
	HealthCheck bool `yaml:"health_check"`
}

const passphraseEnvVar = "SECRETSMANAGER_STORE_PASSPHRASE"

// Load reads a YAML configuration file from the given path and returns a
// parsed Config, applying defaults for unset values. If the primary path
// fails, it falls back to secretsmanager.example.yaml in the same directory
// or parent directory. The store passphrase may also be supplied via the
// SECRETSMANAGER_STORE_PASSPHRASE environment variable, which takes
// precedence over the config file value.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		fallbackPaths := []string{
			filepath.Join(filepath.Dir(path), "secretsmanager.example.yaml"),
			filepath.Join(filepath.Dir(path), "..", "secretsmanager.example.yaml"),
		}
		var fallbackErr error
		for _, fp := range fallbackPaths {
			data, fallbackErr = os.ReadFile(fp)
			if fallbackErr == nil {
				break
			}
		}
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)

	if envPass := os.Getenv(passphraseEnvVar); envPass != "" {
		cfg.Store.Passphrase = envPass
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9090,
			Partition:       "aws",
			Region:          "us-east-1",
			AccountID:       "000000000000",
			ShutdownTimeout: 30,
		},
		Auth: AuthConfig{
			AccessKeyID:      "AKIALOCALSECRETSMGR0",
			SecretAccessKey:  "localsecretaccesskeydonotuseinproduction",
			ClockSkewSeconds: 300,
		},
		Store: StoreConfig{
			Path: "./data/secretsmanager.db",
		},
		Observability: ObservabilityConfig{
			Metrics:     true,
			HealthCheck: true,
		},
	}
}

// applyDefaults fills in any fields still at their zero value after YAML
// unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.Partition == "" {
		cfg.Server.Partition = "aws"
	}
	if cfg.Server.Region == "" {
		cfg.Server.Region = "us-east-1"
	}
	if cfg.Server.AccountID == "" {
		cfg.Server.AccountID = "000000000000"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Auth.AccessKeyID == "" {
		cfg.Auth.AccessKeyID = "AKIALOCALSECRETSMGR0"
	}
	if cfg.Auth.SecretAccessKey == "" {
		cfg.Auth.SecretAccessKey = "localsecretaccesskeydonotuseinproduction"
	}
	if cfg.Auth.ClockSkewSeconds == 0 {
		cfg.Auth.ClockSkewSeconds = 300
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./data/secretsmanager.db"
	}
}
