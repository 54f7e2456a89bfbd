// File: internal/storage/factory.go
package storage

import (
	"fmt"
	"strings"

	"github.com/marketpulse/orchestrator/pkg/utils"
)

// NewStorage creates a storage backend based on the configuration
func NewStorage(config *StorageConfig) (Storage, error) {
	if err := ValidateStorageConfig(config); err != nil {
		return nil, err
	}

	switch strings.ToLower(config.Type) {
	case "sqlite":
		return NewSQLiteStorage(config), nil
	case "postgres", "postgresql":
		return NewPostgreSQLStorage(config), nil
	default:
		return nil, utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("Unsupported storage type: %s", config.Type),
			"supported types: sqlite, postgres")
	}
}

// ValidateStorageConfig validates storage configuration before use
func ValidateStorageConfig(config *StorageConfig) error {
	if config == nil {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Storage configuration is required", "")
	}
	if config.Type == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Storage type is required", "")
	}

	switch strings.ToLower(config.Type) {
	case "sqlite":
		// empty connection string falls back to the default path
	case "postgres", "postgresql":
		if config.ConnectionString == "" {
			return utils.NewAppError(utils.ErrCodeConfiguration,
				"PostgreSQL requires a connection string", "")
		}
	default:
		return utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("Unsupported storage type: %s", config.Type), "")
	}

	return nil
}
