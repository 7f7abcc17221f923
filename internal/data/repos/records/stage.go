package records

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

type StageDefinitionRepo interface {
	Create(dbc dbctx.Context, stages []*types.StageDefinition) ([]*types.StageDefinition, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StageDefinition, error)
	GetByCodes(dbc dbctx.Context, codes []string) ([]*types.StageDefinition, error)
	ListActive(dbc dbctx.Context) ([]*types.StageDefinition, error)
	ListAll(dbc dbctx.Context) ([]*types.StageDefinition, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type stageDefinitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) StageDefinitionRepo {
	return &stageDefinitionRepo{db: db, log: baseLog.With("repo", "StageDefinitionRepo")}
}

func (r *stageDefinitionRepo) Create(dbc dbctx.Context, stages []*types.StageDefinition) ([]*types.StageDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(stages) == 0 {
		return []*types.StageDefinition{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

func (r *stageDefinitionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StageDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StageDefinition
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *stageDefinitionRepo) GetByCodes(dbc dbctx.Context, codes []string) ([]*types.StageDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StageDefinition
	if len(codes) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Where("code IN ?", codes).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *stageDefinitionRepo) ListActive(dbc dbctx.Context) ([]*types.StageDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StageDefinition
	if err := transaction.WithContext(dbc.Ctx).
		Where("is_active = ?", true).
		Order("display_order ASC").
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *stageDefinitionRepo) ListAll(dbc dbctx.Context) ([]*types.StageDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StageDefinition
	if err := transaction.WithContext(dbc.Ctx).
		Order("display_order ASC").
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *stageDefinitionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.StageDefinition{}).
		Where("id = ?", id).
		Updates(updates).Error
}
