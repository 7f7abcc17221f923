package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/importer"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/ctxutil"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/pointers"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/apierr"
)

// Patchable field names. They double as audit log field names.
const (
	fieldCustomerName      = "customer_name"
	fieldMobileNo          = "mobile_no"
	fieldClientEmail       = "client_email"
	fieldNotes             = "notes"
	fieldEmailAlertPending = "email_alert_pending"
	fieldAssigneeID        = "assignee_id"
	fieldStageUpdates      = "stage_updates"
)

var patchCapabilities = map[types.Role]map[string]bool{
	types.RoleAssignee: {
		fieldCustomerName: true, fieldMobileNo: true, fieldClientEmail: true, fieldNotes: true,
	},
	types.RoleEmailTeam: {
		fieldStageUpdates: true, fieldEmailAlertPending: true, fieldNotes: true,
	},
	types.RoleSuperAdmin: {
		fieldCustomerName: true, fieldMobileNo: true, fieldClientEmail: true, fieldNotes: true,
		fieldStageUpdates: true, fieldEmailAlertPending: true, fieldAssigneeID: true,
	},
}

type StageUpdate struct {
	StageID     uuid.UUID `json:"stage_id"`
	IsCompleted bool      `json:"is_completed"`
	Notes       *string   `json:"notes"`
}

// RecordPatch carries only the fields a caller sent. AssigneeID is the
// string form so "" can unassign.
type RecordPatch struct {
	CustomerName      *string       `json:"customer_name"`
	MobileNo          *string       `json:"mobile_no"`
	ClientEmail       *string       `json:"client_email"`
	Notes             *string       `json:"notes"`
	EmailAlertPending *bool         `json:"email_alert_pending"`
	AssigneeID        *string       `json:"assignee_id"`
	StageUpdates      []StageUpdate `json:"stage_updates"`
}

func (p RecordPatch) fields() []string {
	var out []string
	if p.CustomerName != nil {
		out = append(out, fieldCustomerName)
	}
	if p.MobileNo != nil {
		out = append(out, fieldMobileNo)
	}
	if p.ClientEmail != nil {
		out = append(out, fieldClientEmail)
	}
	if p.Notes != nil {
		out = append(out, fieldNotes)
	}
	if p.EmailAlertPending != nil {
		out = append(out, fieldEmailAlertPending)
	}
	if p.AssigneeID != nil {
		out = append(out, fieldAssigneeID)
	}
	if p.StageUpdates != nil {
		out = append(out, fieldStageUpdates)
	}
	return out
}

type RecordPage struct {
	Items    []*types.Record `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type RecordService interface {
	List(dbc dbctx.Context, filter repos.RecordListFilter) (*RecordPage, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Record, error)
	Patch(ctx context.Context, id uuid.UUID, patch RecordPatch) (*types.Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AcknowledgeAlert(ctx context.Context, id uuid.UUID) (*types.Record, error)
	History(dbc dbctx.Context, id uuid.UUID) ([]*types.RecordUpdateLog, error)
}

type recordService struct {
	db          *gorm.DB
	log         *logger.Logger
	recordRepo  repos.RecordRepo
	recordStage repos.RecordStageRepo
	logRepo     repos.RecordUpdateLogRepo
	userRepo    repos.UserRepo
	stages      StageService
	alerts      AlertService
	classifier  *importer.StatusClassifier
}

func NewRecordService(
	db *gorm.DB,
	log *logger.Logger,
	recordRepo repos.RecordRepo,
	recordStage repos.RecordStageRepo,
	logRepo repos.RecordUpdateLogRepo,
	userRepo repos.UserRepo,
	stages StageService,
	alerts AlertService,
	terminalStatuses []string,
) RecordService {
	return &recordService{
		db:          db,
		log:         log.With("service", "RecordService"),
		recordRepo:  recordRepo,
		recordStage: recordStage,
		logRepo:     logRepo,
		userRepo:    userRepo,
		stages:      stages,
		alerts:      alerts,
		classifier:  importer.NewStatusClassifier(terminalStatuses),
	}
}

func (s *recordService) List(dbc dbctx.Context, filter repos.RecordListFilter) (*RecordPage, error) {
	rd, err := requestActor(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	if types.Role(rd.Role) == types.RoleAssignee {
		me := rd.UserID
		filter.AssigneeID = &me
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	items, total, err := s.recordRepo.List(dbc, filter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return &RecordPage{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *recordService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Record, error) {
	rd, err := requestActor(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	return s.load(dbc, rd, id)
}

// load fetches a live record the caller may see.
func (s *recordService) load(dbc dbctx.Context, rd *ctxutil.RequestData, id uuid.UUID) (*types.Record, error) {
	rec, err := s.recordRepo.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if rec == nil {
		return nil, apierr.NotFound("record_not_found", "record not found")
	}
	if types.Role(rd.Role) == types.RoleAssignee && (rec.AssigneeID == nil || *rec.AssigneeID != rd.UserID) {
		return nil, apierr.Forbidden("record_forbidden", "not allowed for this record")
	}
	return rec, nil
}

func (s *recordService) Patch(ctx context.Context, id uuid.UUID, patch RecordPatch) (*types.Record, error) {
	rd, err := requestActor(ctx)
	if err != nil {
		return nil, err
	}
	allowed := patchCapabilities[types.Role(rd.Role)]
	var denied []string
	for _, f := range patch.fields() {
		if !allowed[f] {
			denied = append(denied, f)
		}
	}
	if len(denied) > 0 {
		sort.Strings(denied)
		return nil, apierr.Forbidden("field_not_allowed", "%s cannot update fields: %s", rd.Role, strings.Join(denied, ", "))
	}

	actor := rd.UserID
	now := time.Now().UTC()
	var (
		out      *types.Record
		captured bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		rec, err := s.load(dbc, rd, id)
		if err != nil {
			return err
		}
		if len(patch.fields()) == 0 {
			out = rec
			return nil
		}

		updates := map[string]interface{}{}
		var logs []*types.RecordUpdateLog
		change := func(field string, old, new *string) {
			if pointers.EqualStrings(old, new) {
				return
			}
			logs = append(logs, &types.RecordUpdateLog{
				RecordID: rec.ID, UpdatedByUserID: actor, FieldName: field, OldValue: old, NewValue: new,
			})
		}
		setText := func(field string, cur *string, in *string) *string {
			if in == nil {
				return cur
			}
			next := pointers.NonEmpty(*in)
			if !pointers.EqualStrings(cur, next) {
				updates[field] = next
				change(field, cur, next)
			}
			return next
		}

		setText(fieldCustomerName, rec.CustomerName, patch.CustomerName)
		setText(fieldMobileNo, rec.MobileNo, patch.MobileNo)
		setText(fieldNotes, rec.Notes, patch.Notes)
		email := rec.ClientEmail
		if patch.ClientEmail != nil {
			lower := strings.ToLower(*patch.ClientEmail)
			if next := pointers.NonEmpty(lower); next != nil && !strings.Contains(*next, "@") {
				return apierr.BadRequest("invalid_email", "client_email %q is not an email address", *next)
			}
			email = setText(fieldClientEmail, rec.ClientEmail, &lower)
		}

		assignee := rec.AssigneeID
		if patch.AssigneeID != nil {
			next, err := s.resolveAssignee(dbc, *patch.AssigneeID)
			if err != nil {
				return err
			}
			if !sameUUID(assignee, next) {
				updates[fieldAssigneeID] = next
				change(fieldAssigneeID, uuidString(assignee), uuidString(next))
				assignee = next
			}
		}

		if patch.EmailAlertPending != nil && *patch.EmailAlertPending != rec.EmailAlertPending {
			updates[fieldEmailAlertPending] = *patch.EmailAlertPending
			change(fieldEmailAlertPending, boolString(rec.EmailAlertPending), boolString(*patch.EmailAlertPending))
		}

		oldEmail := strings.ToLower(strings.TrimSpace(pointers.Deref(rec.ClientEmail)))
		newEmail := strings.ToLower(strings.TrimSpace(pointers.Deref(email)))
		if newEmail != "" && newEmail != oldEmail {
			captured = true
			updates[fieldEmailAlertPending] = true
			updates["last_email_alert_at"] = now
		}

		if patch.StageUpdates != nil {
			stageLogs, err := s.applyStageUpdates(dbc, rec, patch.StageUpdates, actor, now)
			if err != nil {
				return err
			}
			logs = append(logs, stageLogs...)
		}

		progress, err := s.progress(dbc, rec.ID)
		if err != nil {
			return err
		}
		updates["status"] = importer.DeriveStatus(s.baseStatus(rec.StatusRaw, assignee), email, progress)
		updates["updated_by"] = actor
		if err := s.recordRepo.UpdateFields(dbc, rec.ID, updates); err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		if len(logs) > 0 {
			if _, err := s.logRepo.Create(dbc, logs); err != nil {
				return fmt.Errorf("write update log: %w", err)
			}
		}
		out, err = s.recordRepo.GetByID(dbc, rec.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if captured && s.alerts != nil {
		s.alerts.EmailCaptured(ctx, out, actor)
	}
	return out, nil
}

func (s *recordService) applyStageUpdates(dbc dbctx.Context, rec *types.Record, in []StageUpdate, actor uuid.UUID, now time.Time) ([]*types.RecordUpdateLog, error) {
	stages, err := s.stages.ListActive(dbc)
	if err != nil {
		return nil, err
	}
	active := make(map[uuid.UUID]bool, len(stages))
	for _, st := range stages {
		active[st.ID] = true
	}
	for _, u := range in {
		if !active[u.StageID] {
			return nil, apierr.BadRequest("invalid_stage", "invalid stage_id: %s", u.StageID)
		}
	}
	if _, err := s.stages.EnsureRecordStages(dbc, []uuid.UUID{rec.ID}, stages); err != nil {
		return nil, err
	}
	current, err := s.recordStage.GetByRecordIDs(dbc, []uuid.UUID{rec.ID})
	if err != nil {
		return nil, fmt.Errorf("load record stages: %w", err)
	}
	byStage := make(map[uuid.UUID]*types.RecordStage, len(current))
	for _, rs := range current {
		byStage[rs.StageID] = rs
	}

	var logs []*types.RecordUpdateLog
	for _, u := range in {
		rs := byStage[u.StageID]
		if rs == nil {
			continue
		}
		updates := map[string]interface{}{"updated_by": actor}
		if u.IsCompleted != rs.IsCompleted {
			updates["is_completed"] = u.IsCompleted
			if u.IsCompleted {
				updates["completed_at"] = now
			} else {
				updates["completed_at"] = nil
			}
		}
		notes := rs.Notes
		if u.Notes != nil {
			notes = pointers.NonEmpty(*u.Notes)
			updates["notes"] = notes
		}
		oldRepr := stageRepr(rs.IsCompleted, rs.Notes)
		newRepr := stageRepr(u.IsCompleted, notes)
		if oldRepr == newRepr {
			continue
		}
		if _, err := s.recordStage.UpdateFields(dbc, rec.ID, u.StageID, updates); err != nil {
			return nil, fmt.Errorf("update record stage: %w", err)
		}
		rs.IsCompleted = u.IsCompleted
		rs.Notes = notes
		logs = append(logs, &types.RecordUpdateLog{
			RecordID:        rec.ID,
			UpdatedByUserID: actor,
			FieldName:       "stage:" + u.StageID.String(),
			OldValue:        &oldRepr,
			NewValue:        &newRepr,
		})
	}
	return logs, nil
}

func (s *recordService) progress(dbc dbctx.Context, recordID uuid.UUID) ([]importer.StageProgress, error) {
	rows, err := s.recordStage.GetByRecordIDs(dbc, []uuid.UUID{recordID})
	if err != nil {
		return nil, fmt.Errorf("load record stages: %w", err)
	}
	var out []importer.StageProgress
	for _, rs := range rows {
		if rs.Stage == nil || !rs.Stage.IsActive || !rs.IsCompleted {
			continue
		}
		out = append(out, importer.StageProgress{Code: rs.Stage.Code, DisplayOrder: rs.Stage.DisplayOrder, Completed: true})
	}
	return out, nil
}

func (s *recordService) baseStatus(raw *string, assignee *uuid.UUID) string {
	base, _ := s.classifier.Classify(raw)
	return fallbackStatus(base, assignee)
}

func (s *recordService) resolveAssignee(dbc dbctx.Context, raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apierr.BadRequest("invalid_assignee", "assignee_id %q is not a valid id", raw)
	}
	users, err := s.userRepo.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("load assignee: %w", err)
	}
	if len(users) == 0 || !users[0].IsActive {
		return nil, apierr.BadRequest("invalid_assignee", "assignee %s not found or inactive", id)
	}
	if r := users[0].Role; r != types.RoleAssignee && r != types.RoleSuperAdmin {
		return nil, apierr.BadRequest("invalid_assignee", "user %s cannot be assigned records", id)
	}
	return &id, nil
}

func (s *recordService) Delete(ctx context.Context, id uuid.UUID) error {
	rd, err := requestActor(ctx)
	if err != nil {
		return err
	}
	if !hasRole(rd, types.RoleSuperAdmin) {
		return apierr.Forbidden("forbidden", "only super admins can delete records")
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.load(dbc, rd, id); err != nil {
			return err
		}
		return s.recordRepo.SoftDelete(dbc, id, rd.UserID)
	})
	if err != nil {
		return err
	}
	s.log.Info("Record deleted", "record_id", id, "actor_id", rd.UserID)
	return nil
}

func (s *recordService) AcknowledgeAlert(ctx context.Context, id uuid.UUID) (*types.Record, error) {
	rd, err := requestActor(ctx)
	if err != nil {
		return nil, err
	}
	if !hasRole(rd, types.RoleSuperAdmin, types.RoleEmailTeam) {
		return nil, apierr.Forbidden("forbidden", "not allowed to acknowledge alerts")
	}
	var (
		out     *types.Record
		cleared bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		rec, err := s.load(dbc, rd, id)
		if err != nil {
			return err
		}
		if rec.EmailAlertPending {
			cleared = true
			if err := s.recordRepo.UpdateFields(dbc, id, map[string]interface{}{
				fieldEmailAlertPending: false,
				"updated_by":           rd.UserID,
			}); err != nil {
				return err
			}
			if _, err := s.logRepo.Create(dbc, []*types.RecordUpdateLog{{
				RecordID:        id,
				UpdatedByUserID: rd.UserID,
				FieldName:       fieldEmailAlertPending,
				OldValue:        boolString(true),
				NewValue:        boolString(false),
			}}); err != nil {
				return err
			}
		}
		out, err = s.recordRepo.GetByID(dbc, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if cleared && s.alerts != nil {
		s.alerts.AlertCleared(ctx, out, rd.UserID)
	}
	return out, nil
}

func (s *recordService) History(dbc dbctx.Context, id uuid.UUID) ([]*types.RecordUpdateLog, error) {
	rd, err := requestActor(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(dbc, rd, id); err != nil {
		return nil, err
	}
	return s.logRepo.ListByRecord(dbc, id)
}

func stageRepr(completed bool, notes *string) string {
	state := "pending"
	if completed {
		state = "completed"
	}
	if n := pointers.Deref(notes); n != "" {
		return state + " (" + n + ")"
	}
	return state
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func boolString(b bool) *string {
	s := strconv.FormatBool(b)
	return &s
}
