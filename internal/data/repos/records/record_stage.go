package records

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

const recordStageBatch = 500

type RecordStageRepo interface {
	// CreateMissing inserts rows whose (record_id, stage_id) pair is not yet
	// present and returns how many were written.
	CreateMissing(dbc dbctx.Context, rows []*types.RecordStage) (int64, error)
	GetByRecordIDs(dbc dbctx.Context, recordIDs []uuid.UUID) ([]*types.RecordStage, error)
	RecordIDsMissingStage(dbc dbctx.Context, stageID uuid.UUID) ([]uuid.UUID, error)
	MarkCompleted(dbc dbctx.Context, recordID uuid.UUID, stageIDs []uuid.UUID, at time.Time, actorID *uuid.UUID) (int64, error)
	UpdateFields(dbc dbctx.Context, recordID uuid.UUID, stageID uuid.UUID, updates map[string]interface{}) (int64, error)
	CountByRecordIDs(dbc dbctx.Context, recordIDs []uuid.UUID) (int64, error)
}

type recordStageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecordStageRepo(db *gorm.DB, baseLog *logger.Logger) RecordStageRepo {
	return &recordStageRepo{db: db, log: baseLog.With("repo", "RecordStageRepo")}
}

func (r *recordStageRepo) CreateMissing(dbc dbctx.Context, rows []*types.RecordStage) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	var written int64
	for start := 0; start < len(rows); start += recordStageBatch {
		end := min(start+recordStageBatch, len(rows))
		batch := rows[start:end]
		res := transaction.WithContext(dbc.Ctx).
			Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "record_id"}, {Name: "stage_id"}},
				DoNothing: true,
			}).
			Create(&batch)
		if res.Error != nil {
			return written, res.Error
		}
		written += res.RowsAffected
	}
	return written, nil
}

func (r *recordStageRepo) GetByRecordIDs(dbc dbctx.Context, recordIDs []uuid.UUID) ([]*types.RecordStage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RecordStage
	if len(recordIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Preload("Stage").
		Where("record_id IN ?", recordIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// RecordIDsMissingStage lists live records without a row for stageID.
func (r *recordStageRepo) RecordIDsMissingStage(dbc dbctx.Context, stageID uuid.UUID) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	sub := transaction.WithContext(dbc.Ctx).Model(&types.RecordStage{}).Select("record_id").Where("stage_id = ?", stageID)
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Record{}).
		Where("id NOT IN (?)", sub).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *recordStageRepo) MarkCompleted(dbc dbctx.Context, recordID uuid.UUID, stageIDs []uuid.UUID, at time.Time, actorID *uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(stageIDs) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.RecordStage{}).
		Where("record_id = ? AND stage_id IN ? AND is_completed = ?", recordID, stageIDs, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
			"updated_by":   actorID,
		})
	return res.RowsAffected, res.Error
}

func (r *recordStageRepo) UpdateFields(dbc dbctx.Context, recordID uuid.UUID, stageID uuid.UUID, updates map[string]interface{}) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.RecordStage{}).
		Where("record_id = ? AND stage_id = ?", recordID, stageID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *recordStageRepo) CountByRecordIDs(dbc dbctx.Context, recordIDs []uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if len(recordIDs) == 0 {
		return 0, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.RecordStage{}).
		Where("record_id IN ?", recordIDs).
		Count(&count).Error
	return count, err
}
