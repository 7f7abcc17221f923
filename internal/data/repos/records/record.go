package records

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

// fingerprintChunk keeps IN lists under sqlite's bound-parameter limit.
const fingerprintChunk = 1000

type ListFilter struct {
	AssigneeID     *uuid.UUID
	Status         string
	State          string
	HasClientEmail *bool
	AlertPending   *bool
	Query          string
	Page           int
	PageSize       int
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type AssigneeCount struct {
	AssigneeID   *uuid.UUID `json:"assignee_id"`
	AssigneeName *string    `json:"assignee_name"`
	Total        int64      `json:"total"`
	WithEmail    int64      `json:"with_client_email"`
	POReceived   int64      `json:"po_received"`
}

type Summary struct {
	Total             int64 `json:"total_records"`
	Assigned          int64 `json:"assigned_records"`
	Unassigned        int64 `json:"unassigned_records"`
	WithClientEmail   int64 `json:"with_client_email"`
	AlertPending      int64 `json:"email_alert_pending"`
	POReceived        int64 `json:"po_received"`
	UnassignedByEmail int64 `json:"unassigned_with_client_email"`
}

type RecordRepo interface {
	Create(dbc dbctx.Context, recs []*types.Record) ([]*types.Record, error)
	CreateIfAbsent(dbc dbctx.Context, rec *types.Record) (bool, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Record, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Record, error)
	ExistingFingerprints(dbc dbctx.Context, fingerprints []string) (map[string]struct{}, error)
	GetByFingerprints(dbc dbctx.Context, fingerprints []string) (map[string]*types.Record, error)
	List(dbc dbctx.Context, filter ListFilter) ([]*types.Record, int64, error)
	ActiveIDs(dbc dbctx.Context) ([]uuid.UUID, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, id uuid.UUID, actorID uuid.UUID) error
	UnassignUser(dbc dbctx.Context, userID uuid.UUID, actorID uuid.UUID) (int64, error)
	Summarize(dbc dbctx.Context, assigneeID *uuid.UUID) (*Summary, error)
	CountByStatus(dbc dbctx.Context, assigneeID *uuid.UUID) ([]StatusCount, error)
	CountByAssignee(dbc dbctx.Context) ([]AssigneeCount, error)
}

type recordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	return &recordRepo{db: db, log: baseLog.With("repo", "RecordRepo")}
}

func (r *recordRepo) Create(dbc dbctx.Context, recs []*types.Record) ([]*types.Record, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(recs) == 0 {
		return []*types.Record{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Omit(clause.Associations).Create(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// CreateIfAbsent inserts rec unless another record already holds its
// fingerprint. It reports whether a row was written.
func (r *recordRepo) CreateIfAbsent(dbc dbctx.Context, rec *types.Record) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).
		Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *recordRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Record, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Record
	if err := transaction.WithContext(dbc.Ctx).
		Preload("Assignee").
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Joins("Stage").Order(`"Stage"."display_order" ASC`)
		}).
		Where("record.id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *recordRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Record, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Record
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ExistingFingerprints returns the subset of fingerprints already held by a
// record, soft-deleted ones included.
func (r *recordRepo) ExistingFingerprints(dbc dbctx.Context, fingerprints []string) (map[string]struct{}, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[string]struct{}, len(fingerprints))
	for start := 0; start < len(fingerprints); start += fingerprintChunk {
		end := min(start+fingerprintChunk, len(fingerprints))
		var found []string
		if err := transaction.WithContext(dbc.Ctx).
			Unscoped().
			Model(&types.Record{}).
			Where("fingerprint IN ?", fingerprints[start:end]).
			Pluck("fingerprint", &found).Error; err != nil {
			return nil, err
		}
		for _, fp := range found {
			out[fp] = struct{}{}
		}
	}
	return out, nil
}

func (r *recordRepo) GetByFingerprints(dbc dbctx.Context, fingerprints []string) (map[string]*types.Record, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[string]*types.Record, len(fingerprints))
	for start := 0; start < len(fingerprints); start += fingerprintChunk {
		end := min(start+fingerprintChunk, len(fingerprints))
		var found []*types.Record
		if err := transaction.WithContext(dbc.Ctx).
			Unscoped().
			Where("fingerprint IN ?", fingerprints[start:end]).
			Find(&found).Error; err != nil {
			return nil, err
		}
		for _, rec := range found {
			if rec.Fingerprint != nil {
				out[*rec.Fingerprint] = rec
			}
		}
	}
	return out, nil
}

func (r *recordRepo) List(dbc dbctx.Context, filter ListFilter) ([]*types.Record, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	scoped := func() *gorm.DB {
		q := transaction.WithContext(dbc.Ctx).Model(&types.Record{})
		if filter.AssigneeID != nil {
			q = q.Where("assignee_id = ?", *filter.AssigneeID)
		}
		if s := strings.TrimSpace(filter.Status); s != "" {
			q = q.Where("status = ?", s)
		}
		if s := strings.TrimSpace(filter.State); s != "" {
			q = q.Where("LOWER(state) = ?", strings.ToLower(s))
		}
		if filter.HasClientEmail != nil {
			if *filter.HasClientEmail {
				q = q.Where("client_email IS NOT NULL AND client_email <> ''")
			} else {
				q = q.Where("client_email IS NULL OR client_email = ''")
			}
		}
		if filter.AlertPending != nil {
			q = q.Where("email_alert_pending = ?", *filter.AlertPending)
		}
		if s := strings.ToLower(strings.TrimSpace(filter.Query)); s != "" {
			like := "%" + s + "%"
			q = q.Where(
				"LOWER(short_name) LIKE ? OR LOWER(custodian_organization) LIKE ? OR LOWER(custodian_code) LIKE ? OR LOWER(unlo_code) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(sl_no) LIKE ?",
				like, like, like, like, like, like,
			)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(filter.Page, 1)
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	var out []*types.Record
	if err := scoped().
		Preload("Assignee").
		Order("created_at DESC").
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *recordRepo) ActiveIDs(dbc dbctx.Context) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Record{}).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateFields also reaches soft-deleted records; re-imports keep them in sync
// without reviving them.
func (r *recordRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Unscoped().
		Model(&types.Record{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *recordRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID, actorID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Record{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": actorID,
			"updated_by": actorID,
			"deleted_at": time.Now().UTC(),
		}).Error
}

func (r *recordRepo) UnassignUser(dbc dbctx.Context, userID uuid.UUID, actorID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Record{}).
		Where("assignee_id = ?", userID).
		Updates(map[string]interface{}{
			"assignee_id": nil,
			"updated_by":  actorID,
			"status":      gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", types.StatusAssigned, types.StatusNew),
		})
	return res.RowsAffected, res.Error
}

func (r *recordRepo) Summarize(dbc dbctx.Context, assigneeID *uuid.UUID) (*Summary, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	scoped := func() *gorm.DB {
		q := transaction.WithContext(dbc.Ctx).Model(&types.Record{})
		if assigneeID != nil {
			q = q.Where("assignee_id = ?", *assigneeID)
		}
		return q
	}
	const hasEmail = "client_email IS NOT NULL AND client_email <> ''"

	out := &Summary{}
	counts := []struct {
		dst   *int64
		where string
		args  []interface{}
	}{
		{&out.Total, "", nil},
		{&out.Assigned, "assignee_id IS NOT NULL", nil},
		{&out.Unassigned, "assignee_id IS NULL", nil},
		{&out.WithClientEmail, hasEmail, nil},
		{&out.AlertPending, "email_alert_pending = ?", []interface{}{true}},
		{&out.POReceived, "status = ?", []interface{}{types.StatusPOReceived}},
		{&out.UnassignedByEmail, "assignee_id IS NULL AND " + hasEmail, nil},
	}
	for _, c := range counts {
		q := scoped()
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *recordRepo) CountByStatus(dbc dbctx.Context, assigneeID *uuid.UUID) ([]StatusCount, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&types.Record{})
	if assigneeID != nil {
		q = q.Where("assignee_id = ?", *assigneeID)
	}
	var out []StatusCount
	if err := q.
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("count DESC").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recordRepo) CountByAssignee(dbc dbctx.Context) ([]AssigneeCount, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []AssigneeCount
	if err := transaction.WithContext(dbc.Ctx).
		Table(`record AS r`).
		Select(`r.assignee_id AS assignee_id,
			u.full_name AS assignee_name,
			COUNT(*) AS total,
			SUM(CASE WHEN r.client_email IS NOT NULL AND r.client_email <> '' THEN 1 ELSE 0 END) AS with_email,
			SUM(CASE WHEN r.status = ? THEN 1 ELSE 0 END) AS po_received`, types.StatusPOReceived).
		Joins(`LEFT JOIN "user" AS u ON u.id = r.assignee_id`).
		Where("r.deleted_at IS NULL").
		Group("r.assignee_id, u.full_name").
		Order("total DESC").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
