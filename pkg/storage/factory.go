package storage

import (
	"fmt"
)

// ProviderType represents the type of history store backend
type ProviderType string

const (
	// MemoryProviderType is an in-memory history store
	MemoryProviderType ProviderType = "memory"

	// DynamoDBProviderType is a DynamoDB history store
	DynamoDBProviderType ProviderType = "dynamodb"

	// PostgresProviderType is a PostgreSQL history store
	PostgresProviderType ProviderType = "postgres"
)

// ProviderConfig contains configuration for history store backends
type ProviderConfig struct {
	// Type is the backend to create
	Type ProviderType

	// DynamoDB contains configuration for the DynamoDB backend
	DynamoDB *DynamoConfig

	// Postgres contains configuration for the PostgreSQL backend
	Postgres *PostgresConfig
}

// NewHistoryStore creates a history store based on the configuration.
func NewHistoryStore(config ProviderConfig) (HistoryStore, error) {
	switch config.Type {
	case MemoryProviderType, "":
		return NewMemoryHistoryStore(), nil

	case DynamoDBProviderType:
		if config.DynamoDB == nil {
			return nil, fmt.Errorf("DynamoDB configuration is required for DynamoDB provider")
		}
		return NewDynamoHistoryStore(*config.DynamoDB)

	case PostgresProviderType:
		if config.Postgres == nil {
			return nil, fmt.Errorf("PostgreSQL configuration is required for PostgreSQL provider")
		}
		return NewPostgresHistoryStore(*config.Postgres)

	default:
		return nil, fmt.Errorf("unknown provider type: %s", config.Type)
	}
}
