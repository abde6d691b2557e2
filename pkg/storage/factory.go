package storage

import "fmt"

// ProviderType selects a storage backend
type ProviderType string

const (
	MemoryProviderType     ProviderType = "memory"
	DynamoDBProviderType   ProviderType = "dynamodb"
	PostgreSQLProviderType ProviderType = "postgresql"
)

// ProviderConfig selects and configures a storage backend. Only the section
// matching Type is consulted; the others may be nil.
type ProviderConfig struct {
	Type       ProviderType
	DynamoDB   *DynamoDBProviderConfig
	PostgreSQL *PostgreSQLProviderConfig
}

// NewProvider builds the storage provider named by config.Type
func NewProvider(config ProviderConfig) (StorageProvider, error) {
	switch config.Type {
	case MemoryProviderType:
		return NewMemoryProvider(), nil
	case DynamoDBProviderType:
		if config.DynamoDB == nil {
			return nil, fmt.Errorf("dynamodb settings missing for storage type %q", config.Type)
		}
		return NewDynamoDBProvider(*config.DynamoDB)
	case PostgreSQLProviderType:
		if config.PostgreSQL == nil {
			return nil, fmt.Errorf("postgresql settings missing for storage type %q", config.Type)
		}
		return NewPostgreSQLProvider(*config.PostgreSQL)
	}
	return nil, fmt.Errorf("unknown storage type: %q", config.Type)
}
