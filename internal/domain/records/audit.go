package records

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecordUpdateLog is one field change made through the record API.
type RecordUpdateLog struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecordID        uuid.UUID `gorm:"type:uuid;not null;index;column:record_id" json:"record_id"`
	UpdatedByUserID uuid.UUID `gorm:"type:uuid;not null;index;column:updated_by_user_id" json:"updated_by_user_id"`
	FieldName       string    `gorm:"not null;column:field_name" json:"field_name"`
	OldValue        *string   `gorm:"column:old_value" json:"old_value"`
	NewValue        *string   `gorm:"column:new_value" json:"new_value"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (RecordUpdateLog) TableName() string { return "record_update_log" }

func (l *RecordUpdateLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

const (
	ImportModeInsertOnly = "insert_only"
	ImportModeOverwrite  = "overwrite"
)

// ImportRun audits one committed spreadsheet import.
type ImportRun struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Mode       string         `gorm:"not null;column:mode" json:"mode"`
	FileName   string         `gorm:"not null;column:file_name" json:"file_name"`
	ArchiveKey string         `gorm:"column:archive_key" json:"archive_key,omitempty"`
	ImportedBy *uuid.UUID     `gorm:"type:uuid;index;column:imported_by" json:"imported_by,omitempty"`
	Summary    datatypes.JSON `gorm:"column:summary" json:"summary"`
	CreatedAt  time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (ImportRun) TableName() string { return "import_run" }

func (r *ImportRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
