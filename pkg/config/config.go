// Package config provides configuration handling for flowexec.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration for execution history
	Storage StorageConfig `json:"storage"`

	// Triggers configuration
	Triggers TriggersConfig `json:"triggers"`

	// Executor configuration
	Executor ExecutorConfig `json:"executor"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host"`

	// Port to listen on
	Port int `json:"port"`

	// BaseURL is the externally visible base URL, used when building
	// webhook URLs. Defaults to http://{host}:{port} when empty.
	BaseURL string `json:"base_url"`
}

// StorageConfig contains execution history storage settings
type StorageConfig struct {
	// Type of storage to use
	Type string `json:"type"` // "memory", "dynamodb", "postgres"

	// DynamoDB configuration
	DynamoDB DynamoDBConfig `json:"dynamodb"`

	// PostgreSQL configuration
	Postgres PostgresConfig `json:"postgres"`
}

// DynamoDBConfig contains DynamoDB settings
type DynamoDBConfig struct {
	// Region is the AWS region
	Region string `json:"region"`

	// Endpoint is the DynamoDB endpoint (for local development)
	Endpoint string `json:"endpoint"`

	// TablePrefix is the prefix for all tables
	TablePrefix string `json:"table_prefix"`
}

// PostgresConfig contains PostgreSQL settings
type PostgresConfig struct {
	// Host is the database host
	Host string `json:"host"`

	// Port is the database port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// User is the database user
	User string `json:"user"`

	// Password is the database password
	Password string `json:"password"`

	// SSLMode is the SSL mode
	SSLMode string `json:"ssl_mode"`
}

// TriggersConfig contains trigger storage settings
type TriggersConfig struct {
	// Store selects where trigger registrations live
	Store string `json:"store"` // "memory", "redis"

	// Redis configuration, used when Store is "redis"
	Redis RedisConfig `json:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	// Addr is the host:port of the Redis server
	Addr string `json:"addr"`

	// Password is the Redis password, if any
	Password string `json:"password"`

	// DB is the Redis database number
	DB int `json:"db"`
}

// ExecutorConfig contains node executor settings
type ExecutorConfig struct {
	// AgentURL is the base URL of the HTTP agent service that runs nodes.
	// When empty the server starts without a default executor and every
	// node kind must be registered programmatically.
	AgentURL string `json:"agent_url"`

	// TimeoutSeconds bounds a single node execution over HTTP
	TimeoutSeconds int `json:"timeout_seconds"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// JWTSecret is the secret for verifying bearer tokens. When empty
	// the API accepts unauthenticated requests.
	JWTSecret string `json:"jwt_secret"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Storage: StorageConfig{
			Type: "memory",
			DynamoDB: DynamoDBConfig{
				Region:      "us-west-2",
				TablePrefix: "flowexec_",
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "flowexec",
				User:     "flowexec",
				SSLMode:  "disable",
			},
		},
		Triggers: TriggersConfig{
			Store: "memory",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Executor: ExecutorConfig{
			TimeoutSeconds: 60,
		},
	}
}

// ApplyEnv overlays environment variables on top of the loaded
// configuration. Environment always wins over the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FLOWEXEC_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("FLOWEXEC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("FLOWEXEC_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("FLOWEXEC_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("FLOWEXEC_POSTGRES_PASSWORD"); v != "" {
		c.Storage.Postgres.Password = v
	}
	if v := os.Getenv("FLOWEXEC_TRIGGER_STORE"); v != "" {
		c.Triggers.Store = v
	}
	if v := os.Getenv("FLOWEXEC_REDIS_ADDR"); v != "" {
		c.Triggers.Redis.Addr = v
	}
	if v := os.Getenv("FLOWEXEC_REDIS_PASSWORD"); v != "" {
		c.Triggers.Redis.Password = v
	}
	if v := os.Getenv("FLOWEXEC_AGENT_URL"); v != "" {
		c.Executor.AgentURL = v
	}
	if v := os.Getenv("FLOWEXEC_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

// ResolveBaseURL returns the configured base URL, falling back to the
// bind address when none was set.
func (c *Config) ResolveBaseURL() string {
	if c.Server.BaseURL != "" {
		return c.Server.BaseURL
	}
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
