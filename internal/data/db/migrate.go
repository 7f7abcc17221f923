package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.User{},
		&types.StageDefinition{},
		&types.Record{},
		&types.RecordStage{},
		&types.RecordUpdateLog{},
		&types.ImportRun{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return ensureIndexes(db)
}

func (s *Service) AutoMigrateAll() error { return AutoMigrateAll(s.db) }

// Partial indexes are not expressible through struct tags on both drivers.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_assignee_name_key ON "user" (name_key) WHERE role = 'ASSIGNEE' AND deleted_at IS NULL`,
}

func ensureIndexes(db *gorm.DB) error {
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
