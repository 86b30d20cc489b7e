// Package config provides configuration management for coalesce. Settings
// load from environment variables with the COALESCE_ prefix, with sensible
// defaults for every option; an optional YAML file can overlay the
// environment for deployments that prefer checked-in config.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Storage engine names accepted by StorageConfig.Engine.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// Config holds all configuration settings for the coalesce service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Security SecurityConfig `yaml:"security"`
	Identity IdentityConfig `yaml:"identity"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"` // default: 127.0.0.1
	Port int    `yaml:"port"` // default: 8363
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	// Engine selects the backend: "sqlite" or "postgres".
	Engine string `yaml:"engine"`

	// DataPath is the directory holding the SQLite database file.
	DataPath string `yaml:"data_path"`

	// PostgresDSN is the connection string for the postgres engine.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// SecurityConfig contains authentication settings for the HTTP surface.
type SecurityConfig struct {
	// Mode is "development" (no auth) or "production" (bearer token).
	Mode string `yaml:"mode"`

	// APIToken is the bearer token required in production mode.
	APIToken string `yaml:"api_token"`
}

// IdentityConfig tunes the consolidation pipeline.
type IdentityConfig struct {
	// MaxTxAttempts caps transaction re-runs after serialization conflicts.
	MaxTxAttempts int `yaml:"max_tx_attempts"`
}

// Load builds a Config from environment variables and defaults.
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("COALESCE_HOST", "127.0.0.1"),
			Port: getEnvInt("COALESCE_PORT", 8363),
		},
		Storage: StorageConfig{
			Engine:      getEnv("COALESCE_STORAGE_ENGINE", EngineSQLite),
			DataPath:    getEnv("COALESCE_DATA_PATH", "./data"),
			PostgresDSN: getEnv("COALESCE_POSTGRES_DSN", ""),
		},
		Security: SecurityConfig{
			Mode:     getEnv("COALESCE_SECURITY_MODE", "development"),
			APIToken: getEnv("COALESCE_API_TOKEN", ""),
		},
		Identity: IdentityConfig{
			MaxTxAttempts: getEnvInt("COALESCE_MAX_TX_ATTEMPTS", 3),
		},
	}, nil
}

// LoadFile builds a Config from the environment and then overlays the YAML
// file at path. File values win over environment values; fields absent from
// the file keep their environment/default values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency before the service starts.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineSQLite:
		if c.Storage.DataPath == "" {
			return fmt.Errorf("config: data_path is required for the sqlite engine")
		}
	case EnginePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: postgres_dsn is required for the postgres engine")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}

	if c.Security.Mode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: api_token is required in production mode")
	}
	return nil
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
