// File: internal/storage/postgres.go
package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/marketpulse/orchestrator/pkg/utils"
)

// PostgreSQLStorage is the networked backend for shared deployments.
type PostgreSQLStorage struct {
	sqlStore
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	store := &PostgreSQLStorage{}
	store.config = config
	store.dialect = DialectPostgres
	store.logger = utils.GetLogger()
	return store
}

// Connect establishes connection to PostgreSQL database
func (s *PostgreSQLStorage) Connect() error {
	if s.config.ConnectionString == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "PostgreSQL connection string is required", "")
	}

	db, err := sql.Open("postgres", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	maxConns := s.config.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	s.db = db
	s.logger.WithField("max_connections", maxConns).Info("Connected to PostgreSQL database")
	return nil
}
