package records

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

type RecordUpdateLogRepo interface {
	Create(dbc dbctx.Context, logs []*types.RecordUpdateLog) ([]*types.RecordUpdateLog, error)
	ListByRecord(dbc dbctx.Context, recordID uuid.UUID) ([]*types.RecordUpdateLog, error)
}

type recordUpdateLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecordUpdateLogRepo(db *gorm.DB, baseLog *logger.Logger) RecordUpdateLogRepo {
	return &recordUpdateLogRepo{db: db, log: baseLog.With("repo", "RecordUpdateLogRepo")}
}

func (r *recordUpdateLogRepo) Create(dbc dbctx.Context, logs []*types.RecordUpdateLog) ([]*types.RecordUpdateLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(logs) == 0 {
		return []*types.RecordUpdateLog{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *recordUpdateLogRepo) ListByRecord(dbc dbctx.Context, recordID uuid.UUID) ([]*types.RecordUpdateLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RecordUpdateLog
	if err := transaction.WithContext(dbc.Ctx).
		Where("record_id = ?", recordID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type ImportRunRepo interface {
	Create(dbc dbctx.Context, run *types.ImportRun) (*types.ImportRun, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*types.ImportRun, error)
}

type importRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImportRunRepo(db *gorm.DB, baseLog *logger.Logger) ImportRunRepo {
	return &importRunRepo{db: db, log: baseLog.With("repo", "ImportRunRepo")}
}

func (r *importRunRepo) Create(dbc dbctx.Context, run *types.ImportRun) (*types.ImportRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *importRunRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.ImportRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 20
	}
	var out []*types.ImportRun
	if err := transaction.WithContext(dbc.Ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
