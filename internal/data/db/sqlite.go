package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

// NewSQLiteService opens a single-file database for local runs. An empty
// path means a private in-memory database.
func NewSQLiteService(cfg Config, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "SQLiteService")

	dsn := cfg.SQLitePath
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn+"?_foreign_keys=off&_busy_timeout=5000"), gormConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One writer keeps sqlite transactions serialized.
	sqlDB.SetMaxOpenConns(1)
	serviceLog.Info("Opened SQLite database", "path", dsn)
	return &Service{db: db, log: serviceLog}, nil
}
