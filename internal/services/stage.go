package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/db"
	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/apierr"
)

// poReceivedStageCode is completed by a terminal status value.
const poReceivedStageCode = "PO_RECEIVED"

type defaultStage struct {
	Code  string
	Name  string
	Order int
}

var defaultStages = []defaultStage{
	{"EMAIL_SENT_TO_CUSTOMER", "Email Sent To Customer", 10},
	{"DATA_RECEIVED_FROM_CUSTOMER", "Data Received From Customer", 20},
	{"EMAIL_SENT_TO_BSNL_FOR_FEASIBILITY", "Email Sent To BSNL For Feasibility", 30},
	{"EMAIL_RECEIVED_FROM_BSNL_AFTER_FEASIBILITY", "Email Received From BSNL After Feasibility", 40},
	{"PROPOSAL_SENT", "Proposal Sent", 50},
	{"PO_RECEIVED", "PO Received", 60},
}

type CreateStageInput struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}

type UpdateStageInput struct {
	Name         *string `json:"name"`
	DisplayOrder *int    `json:"display_order"`
	IsActive     *bool   `json:"is_active"`
}

type StageService interface {
	// EnsureDefaultStages seeds any missing default stage and backfills it.
	EnsureDefaultStages(dbc dbctx.Context) error
	ListActive(dbc dbctx.Context) ([]*types.StageDefinition, error)
	ListAll(dbc dbctx.Context) ([]*types.StageDefinition, error)
	CreateStage(dbc dbctx.Context, in CreateStageInput, actorID uuid.UUID) (*types.StageDefinition, int64, error)
	UpdateStage(dbc dbctx.Context, id uuid.UUID, in UpdateStageInput, actorID uuid.UUID) (*types.StageDefinition, int64, error)
	// EnsureRecordStages creates the missing (record, stage) rows.
	EnsureRecordStages(dbc dbctx.Context, recordIDs []uuid.UUID, stages []*types.StageDefinition) (int64, error)
	// BackfillStage gives every live record lacking one a row for stage.
	BackfillStage(dbc dbctx.Context, stage *types.StageDefinition) (int64, error)
}

type stageService struct {
	db          *gorm.DB
	log         *logger.Logger
	stageRepo   repos.StageDefinitionRepo
	recordStage repos.RecordStageRepo
}

func NewStageService(db *gorm.DB, log *logger.Logger, stageRepo repos.StageDefinitionRepo, recordStage repos.RecordStageRepo) StageService {
	return &stageService{
		db:          db,
		log:         log.With("service", "StageService"),
		stageRepo:   stageRepo,
		recordStage: recordStage,
	}
}

// inTx runs fn on dbc's transaction, opening one when there is none.
func inTx(gdb *gorm.DB, dbc dbctx.Context, fn func(dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	return gdb.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: tx})
	})
}

func (s *stageService) EnsureDefaultStages(dbc dbctx.Context) error {
	return inTx(s.db, dbc, func(dbc dbctx.Context) error {
		codes := make([]string, 0, len(defaultStages))
		for _, d := range defaultStages {
			codes = append(codes, d.Code)
		}
		existing, err := s.stageRepo.GetByCodes(dbc, codes)
		if err != nil {
			return fmt.Errorf("load default stages: %w", err)
		}
		have := make(map[string]bool, len(existing))
		for _, st := range existing {
			have[st.Code] = true
		}
		for _, d := range defaultStages {
			if have[d.Code] {
				continue
			}
			st := &types.StageDefinition{
				Code:         d.Code,
				Name:         d.Name,
				DisplayOrder: d.Order,
				IsDefault:    true,
				IsActive:     true,
			}
			created := false
			err := dbc.Tx.Transaction(func(sp *gorm.DB) error {
				_, err := s.stageRepo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: sp}, []*types.StageDefinition{st})
				return err
			})
			switch {
			case err == nil:
				created = true
			case db.IsUniqueViolation(err):
				// seeded by another instance
			default:
				return fmt.Errorf("seed stage %s: %w", d.Code, err)
			}
			if created {
				n, err := s.BackfillStage(dbc, st)
				if err != nil {
					return err
				}
				s.log.Info("Seeded default stage", "code", d.Code, "backfilled", n)
			}
		}
		return nil
	})
}

func (s *stageService) ListActive(dbc dbctx.Context) ([]*types.StageDefinition, error) {
	return s.stageRepo.ListActive(dbc)
}

func (s *stageService) ListAll(dbc dbctx.Context) ([]*types.StageDefinition, error) {
	return s.stageRepo.ListAll(dbc)
}

func (s *stageService) CreateStage(dbc dbctx.Context, in CreateStageInput, actorID uuid.UUID) (*types.StageDefinition, int64, error) {
	code := normalizeStageCode(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, 0, apierr.BadRequest("invalid_stage", "code and name are required")
	}
	st := &types.StageDefinition{
		Code:         code,
		Name:         name,
		DisplayOrder: in.DisplayOrder,
		IsActive:     true,
		CreatedBy:    &actorID,
		UpdatedBy:    &actorID,
	}
	var backfilled int64
	err := inTx(s.db, dbc, func(dbc dbctx.Context) error {
		if _, err := s.stageRepo.Create(dbc, []*types.StageDefinition{st}); err != nil {
			if db.IsUniqueViolation(err) {
				return apierr.Conflict("stage_exists", "stage code %s already exists", code)
			}
			return fmt.Errorf("create stage: %w", err)
		}
		n, err := s.BackfillStage(dbc, st)
		if err != nil {
			return err
		}
		backfilled = n
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	s.log.Info("Created stage", "code", code, "backfilled", backfilled, "actor_id", actorID)
	return st, backfilled, nil
}

func (s *stageService) UpdateStage(dbc dbctx.Context, id uuid.UUID, in UpdateStageInput, actorID uuid.UUID) (*types.StageDefinition, int64, error) {
	var (
		out        *types.StageDefinition
		backfilled int64
	)
	err := inTx(s.db, dbc, func(dbc dbctx.Context) error {
		st, err := s.stageRepo.GetByID(dbc, id)
		if err != nil {
			return fmt.Errorf("load stage: %w", err)
		}
		if st == nil {
			return apierr.NotFound("stage_not_found", "stage not found")
		}
		updates := map[string]interface{}{"updated_by": actorID}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apierr.BadRequest("invalid_stage", "name cannot be empty")
			}
			updates["name"] = name
		}
		if in.DisplayOrder != nil {
			updates["display_order"] = *in.DisplayOrder
		}
		reactivated := false
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
			reactivated = *in.IsActive && !st.IsActive
		}
		if err := s.stageRepo.UpdateFields(dbc, id, updates); err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		out, err = s.stageRepo.GetByID(dbc, id)
		if err != nil {
			return fmt.Errorf("reload stage: %w", err)
		}
		if reactivated {
			backfilled, err = s.BackfillStage(dbc, out)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, backfilled, nil
}

func (s *stageService) EnsureRecordStages(dbc dbctx.Context, recordIDs []uuid.UUID, stages []*types.StageDefinition) (int64, error) {
	rows := make([]*types.RecordStage, 0, len(recordIDs)*len(stages))
	for _, rid := range recordIDs {
		for _, st := range stages {
			if st == nil || !st.IsActive {
				continue
			}
			rows = append(rows, &types.RecordStage{RecordID: rid, StageID: st.ID})
		}
	}
	n, err := s.recordStage.CreateMissing(dbc, rows)
	if err != nil {
		return n, fmt.Errorf("fan out record stages: %w", err)
	}
	return n, nil
}

func (s *stageService) BackfillStage(dbc dbctx.Context, stage *types.StageDefinition) (int64, error) {
	if stage == nil || !stage.IsActive {
		return 0, nil
	}
	ids, err := s.recordStage.RecordIDsMissingStage(dbc, stage.ID)
	if err != nil {
		return 0, fmt.Errorf("find records missing stage %s: %w", stage.Code, err)
	}
	return s.EnsureRecordStages(dbc, ids, []*types.StageDefinition{stage})
}

func normalizeStageCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ' || r == '-':
			return '_'
		default:
			return -1
		}
	}, code)
	return code
}
