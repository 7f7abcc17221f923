package records

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StageDefinition is one step of the follow-up pipeline.
type StageDefinition struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Code         string     `gorm:"not null;uniqueIndex;column:code" json:"code"`
	Name         string     `gorm:"not null;column:name" json:"name"`
	DisplayOrder int        `gorm:"not null;index;column:display_order" json:"display_order"`
	IsDefault    bool       `gorm:"not null;column:is_default" json:"is_default"`
	IsActive     bool       `gorm:"not null;index;column:is_active" json:"is_active"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
	UpdatedBy    *uuid.UUID `gorm:"type:uuid;column:updated_by" json:"updated_by,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (StageDefinition) TableName() string { return "stage_definition" }

func (s *StageDefinition) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// RecordStage is the progress of one record through one stage.
type RecordStage struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RecordID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_record_stage_pair,priority:1;column:record_id" json:"record_id"`
	StageID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_record_stage_pair,priority:2;index;column:stage_id" json:"stage_id"`
	IsCompleted bool       `gorm:"not null;column:is_completed" json:"is_completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
	Notes       *string    `gorm:"column:notes" json:"notes"`
	UpdatedBy   *uuid.UUID `gorm:"type:uuid;column:updated_by" json:"updated_by,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`

	Stage *StageDefinition `gorm:"foreignKey:StageID" json:"stage,omitempty"`
}

func (RecordStage) TableName() string { return "record_stage" }

func (rs *RecordStage) BeforeCreate(tx *gorm.DB) error {
	if rs.ID == uuid.Nil {
		rs.ID = uuid.New()
	}
	return nil
}
