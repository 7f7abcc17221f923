package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/clients/archive"
	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/importer"
	"github.com/yungbote/cibics-tracking-backend/internal/observability"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

const (
	DefaultPreviewLimit = 50
	MaxPreviewLimit     = 500
)

var importTracer = otel.Tracer("github.com/yungbote/cibics-tracking-backend/internal/services/import")

type ImportConfig struct {
	PreviewLimit     int
	TerminalStatuses []string
}

type CommitOptions struct {
	FileName string
	ActorID  *uuid.UUID
}

type PreviewRow struct {
	SourceRow             int      `json:"source_row"`
	SlNo                  *string  `json:"sl_no"`
	ShortName             *string  `json:"short_name"`
	CustodianOrganization *string  `json:"custodian_organization"`
	State                 *string  `json:"state"`
	CustodianCode         *string  `json:"custodian_code"`
	UnloCode              *string  `json:"unlo_code"`
	Duplicate             bool     `json:"duplicate"`
	DuplicateReasons      []string `json:"duplicate_reasons"`
	Problems              []string `json:"problems,omitempty"`
}

type PreviewResult struct {
	importer.Counts
	PreviewRows []PreviewRow `json:"preview_rows"`
}

type CommitResult struct {
	Mode              string                `json:"mode"`
	Imported          int                   `json:"imported"`
	Created           int                   `json:"created"`
	Updated           int                   `json:"updated"`
	AssigneesCreated  int                   `json:"assignees_created"`
	SkippedDuplicates int                   `json:"skipped_duplicates"`
	SkippedInvalid    int                   `json:"skipped_invalid"`
	StagesCreated     int64                 `json:"record_stages_created"`
	InvalidRows       []importer.RowSkipped `json:"invalid_rows,omitempty"`
	ImportRunID       uuid.UUID             `json:"import_run_id"`
	ArchiveKey        string                `json:"archive_key,omitempty"`
}

// ImportNotifier hears about committed imports.
type ImportNotifier interface {
	ImportCommitted(ctx context.Context, res *CommitResult)
}

type ImportService interface {
	Preview(ctx context.Context, file io.Reader, limit int) (*PreviewResult, error)
	CommitInsertOnly(ctx context.Context, file io.Reader, opts CommitOptions) (*CommitResult, error)
	CommitOverwrite(ctx context.Context, file io.Reader, opts CommitOptions) (*CommitResult, error)
	Template() ([]byte, error)
	RecentRuns(ctx context.Context, limit int) ([]*types.ImportRun, error)
}

type importService struct {
	db          *gorm.DB
	log         *logger.Logger
	layout      *importer.Layout
	normalizer  *importer.Normalizer
	classifier  *importer.StatusClassifier
	previewSize int

	recordRepo  repos.RecordRepo
	recordStage repos.RecordStageRepo
	runRepo     repos.ImportRunRepo
	stages      StageService
	assignees   AssigneeResolver
	archive     archive.Archive
	notifier    ImportNotifier
}

func NewImportService(
	db *gorm.DB,
	log *logger.Logger,
	layout *importer.Layout,
	cfg ImportConfig,
	recordRepo repos.RecordRepo,
	recordStage repos.RecordStageRepo,
	runRepo repos.ImportRunRepo,
	stages StageService,
	assignees AssigneeResolver,
	arc archive.Archive,
	notifier ImportNotifier,
) ImportService {
	layout = layout.WithTerminalStatuses(cfg.TerminalStatuses)
	if arc == nil {
		arc = archive.Nop()
	}
	return &importService{
		db:          db,
		log:         log.With("service", "ImportService"),
		layout:      layout,
		normalizer:  importer.NewNormalizer(layout),
		classifier:  importer.NewStatusClassifier(layout.TerminalStatuses),
		previewSize: clampPreviewLimit(cfg.PreviewLimit),
		recordRepo:  recordRepo,
		recordStage: recordStage,
		runRepo:     runRepo,
		stages:      stages,
		assignees:   assignees,
		archive:     arc,
		notifier:    notifier,
	}
}

func clampPreviewLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultPreviewLimit
	case n > MaxPreviewLimit:
		return MaxPreviewLimit
	default:
		return n
	}
}

func (s *importService) Template() ([]byte, error) {
	return importer.BuildTemplate(s.layout)
}

func (s *importService) RecentRuns(ctx context.Context, limit int) ([]*types.ImportRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runRepo.ListRecent(dbctx.Context{Ctx: ctx}, limit)
}

// parse reads and normalizes the upload. Nothing touches storage.
func (s *importService) parse(ctx context.Context, raw []byte) ([]importer.ImportRow, error) {
	ctx, span := importTracer.Start(ctx, "import.read")
	sheet, err := importer.ReadWorkbook(bytes.NewReader(raw), s.layout)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	ctx, span = importTracer.Start(ctx, "import.normalize", trace.WithAttributes(
		attribute.Int("import.body_rows", len(sheet.Rows)),
	))
	rows, err := s.normalizer.Normalize(ctx, sheet)
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("normalize rows: %w", err)
	}
	return rows, nil
}

// detect annotates rows against the records visible to dbc.
func (s *importService) detect(dbc dbctx.Context, rows []importer.ImportRow) ([]importer.Annotation, importer.Counts, error) {
	ctx, span := importTracer.Start(dbc.Ctx, "import.detect", trace.WithAttributes(
		attribute.Int("import.rows", len(rows)),
	))
	existing, err := s.recordRepo.ExistingFingerprints(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, importer.Fingerprints(rows))
	if err != nil {
		endSpan(span, err)
		return nil, importer.Counts{}, fmt.Errorf("lookup fingerprints: %w", err)
	}
	ann := importer.Detect(rows, importer.FingerprintSet(existing))
	counts := importer.Tally(rows, ann)
	span.SetAttributes(
		attribute.Int("import.duplicates", counts.Duplicates),
		attribute.Int("import.invalid", counts.Invalid),
	)
	endSpan(span, nil)
	return ann, counts, nil
}

func (s *importService) Preview(ctx context.Context, file io.Reader, limit int) (*PreviewResult, error) {
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	rows, err := s.parse(ctx, raw)
	if err != nil {
		return nil, err
	}
	ann, counts, err := s.detect(dbctx.Context{Ctx: ctx}, rows)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.previewSize
	}
	limit = clampPreviewLimit(limit)
	n := min(limit, len(rows))
	out := &PreviewResult{Counts: counts, PreviewRows: make([]PreviewRow, 0, n)}
	for i := 0; i < n; i++ {
		r := &rows[i]
		out.PreviewRows = append(out.PreviewRows, PreviewRow{
			SourceRow:             r.SourceRow,
			SlNo:                  r.SlNo,
			ShortName:             r.ShortName,
			CustodianOrganization: r.CustodianOrganization,
			State:                 r.State,
			CustodianCode:         r.CustodianCode,
			UnloCode:              r.UnloCode,
			Duplicate:             ann[i].Duplicate,
			DuplicateReasons:      ann[i].Reasons,
			Problems:              r.Problems,
		})
	}
	return out, nil
}

func (s *importService) CommitInsertOnly(ctx context.Context, file io.Reader, opts CommitOptions) (*CommitResult, error) {
	return s.commit(ctx, types.ImportModeInsertOnly, file, opts)
}

func (s *importService) CommitOverwrite(ctx context.Context, file io.Reader, opts CommitOptions) (*CommitResult, error) {
	return s.commit(ctx, types.ImportModeOverwrite, file, opts)
}

// rowPlan is the derived outcome for one insertable or updatable row.
type rowPlan struct {
	row      *importer.ImportRow
	base     string
	hint     *string
	stageIDs []uuid.UUID
	flagged  []importer.StageProgress
}

func (s *importService) commit(ctx context.Context, mode string, file io.Reader, opts CommitOptions) (*CommitResult, error) {
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	rows, err := s.parse(ctx, raw)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res := &CommitResult{Mode: mode}
	res.ArchiveKey = s.archiveUpload(ctx, mode, opts.FileName, raw)

	ctx, span := importTracer.Start(ctx, "import.commit", trace.WithAttributes(
		attribute.String("import.mode", mode),
		attribute.Int("import.rows", len(rows)),
	))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.stages.EnsureDefaultStages(dbc); err != nil {
			return err
		}
		stages, err := s.stages.ListActive(dbc)
		if err != nil {
			return fmt.Errorf("load stages: %w", err)
		}
		ann, counts, err := s.detect(dbc, rows)
		if err != nil {
			return err
		}
		res.SkippedInvalid = counts.Invalid
		for i := range rows {
			if !rows[i].Valid() {
				res.InvalidRows = append(res.InvalidRows, importer.RowSkipped{SourceRow: rows[i].SourceRow, Problems: rows[i].Problems})
			}
		}

		switch mode {
		case types.ImportModeOverwrite:
			err = s.overwrite(dbc, rows, ann, stages, opts, res)
		default:
			err = s.insertOnly(dbc, rows, ann, stages, opts, res)
		}
		if err != nil {
			return err
		}

		summary, err := json.Marshal(res)
		if err != nil {
			return err
		}
		run, err := s.runRepo.Create(dbc, &types.ImportRun{
			Mode:       mode,
			FileName:   opts.FileName,
			ArchiveKey: res.ArchiveKey,
			ImportedBy: opts.ActorID,
			Summary:    datatypes.JSON(summary),
		})
		if err != nil {
			return fmt.Errorf("record import run: %w", err)
		}
		res.ImportRunID = run.ID
		return nil
	})
	endSpan(span, err)
	observability.Current().ObserveImport(mode, err, observability.ImportOutcome{
		Created:           res.Created,
		Updated:           res.Updated,
		SkippedDuplicates: res.SkippedDuplicates,
		SkippedInvalid:    res.SkippedInvalid,
	}, time.Since(started))
	if err != nil {
		s.log.Warn("Import commit failed", "mode", mode, "file", opts.FileName, "error", err)
		s.discardUpload(ctx, res.ArchiveKey)
		return nil, err
	}

	s.log.Info("Import committed",
		"mode", mode,
		"file", opts.FileName,
		"created", res.Created,
		"updated", res.Updated,
		"skipped_duplicates", res.SkippedDuplicates,
		"skipped_invalid", res.SkippedInvalid,
		"assignees_created", res.AssigneesCreated,
		"actor_id", opts.ActorID,
	)
	if s.notifier != nil {
		s.notifier.ImportCommitted(ctx, res)
	}
	return res, nil
}

func (s *importService) archiveUpload(ctx context.Context, mode, fileName string, raw []byte) string {
	key := archive.Key(mode, fileName, time.Now())
	if err := s.archive.Put(ctx, key, raw, archive.XLSXContentType); err != nil {
		s.log.Warn("Archiving import upload failed", "key", key, "error", err)
		return ""
	}
	if s.archive.Location(key) == "" {
		return ""
	}
	return key
}

// discardUpload removes the archived copy of an upload whose commit rolled back.
func (s *importService) discardUpload(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.archive.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("Removing archived upload failed", "key", key, "error", err)
	}
}

func (s *importService) plan(row *importer.ImportRow, stageByCode map[string]*types.StageDefinition) *rowPlan {
	base, hint := s.classifier.Classify(row.StatusRaw)
	p := &rowPlan{row: row, base: base, hint: hint}

	codes := row.CompletedStages()
	if base == importer.StatusPOReceived {
		codes = append(codes, poReceivedStageCode)
	}
	seen := make(map[uuid.UUID]bool, len(codes))
	for _, code := range codes {
		st, ok := stageByCode[code]
		if !ok || seen[st.ID] {
			continue
		}
		seen[st.ID] = true
		p.stageIDs = append(p.stageIDs, st.ID)
		p.flagged = append(p.flagged, importer.StageProgress{Code: st.Code, DisplayOrder: st.DisplayOrder, Completed: true})
	}
	return p
}

func stageIndex(stages []*types.StageDefinition) map[string]*types.StageDefinition {
	out := make(map[string]*types.StageDefinition, len(stages))
	for _, st := range stages {
		out[st.Code] = st
	}
	return out
}

func (s *importService) resolve(dbc dbctx.Context, plans []*rowPlan, actorID *uuid.UUID, res *CommitResult) (*AssigneeResolution, error) {
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		if p.hint != nil {
			names = append(names, *p.hint)
		}
	}
	resolution, err := s.assignees.ResolveBatch(dbc, names, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve assignees: %w", err)
	}
	res.AssigneesCreated = resolution.Created
	return resolution, nil
}

func (s *importService) insertOnly(dbc dbctx.Context, rows []importer.ImportRow, ann []importer.Annotation, stages []*types.StageDefinition, opts CommitOptions, res *CommitResult) error {
	byCode := stageIndex(stages)
	plans := make([]*rowPlan, 0, len(rows))
	for i := range rows {
		if !rows[i].Valid() {
			continue
		}
		if ann[i].Duplicate {
			res.SkippedDuplicates++
			continue
		}
		plans = append(plans, s.plan(&rows[i], byCode))
	}

	resolution, err := s.resolve(dbc, plans, opts.ActorID, res)
	if err != nil {
		return err
	}
	return s.create(dbc, plans, resolution, stages, opts, res)
}

// create inserts new records for plans. A fingerprint taken since detection
// counts as a duplicate.
func (s *importService) create(dbc dbctx.Context, plans []*rowPlan, resolution *AssigneeResolution, stages []*types.StageDefinition, opts CommitOptions, res *CommitResult) error {
	created := make([]uuid.UUID, 0, len(plans))
	completions := make(map[uuid.UUID][]uuid.UUID)
	for _, p := range plans {
		rec := newRecord(p, resolution, opts.ActorID)
		inserted, err := s.recordRepo.CreateIfAbsent(dbc, rec)
		if err != nil {
			return &importer.ConstraintViolation{SourceRow: p.row.SourceRow, Err: err}
		}
		if !inserted {
			res.SkippedDuplicates++
			continue
		}
		res.Created++
		created = append(created, rec.ID)
		if len(p.stageIDs) > 0 {
			completions[rec.ID] = p.stageIDs
		}
	}

	n, err := s.stages.EnsureRecordStages(dbc, created, stages)
	if err != nil {
		return err
	}
	res.StagesCreated += n
	if err := s.complete(dbc, completions, opts.ActorID); err != nil {
		return err
	}
	res.Imported = res.Created + res.Updated
	return nil
}

func (s *importService) complete(dbc dbctx.Context, completions map[uuid.UUID][]uuid.UUID, actorID *uuid.UUID) error {
	now := time.Now().UTC()
	for recordID, stageIDs := range completions {
		if _, err := s.recordStage.MarkCompleted(dbc, recordID, stageIDs, now, actorID); err != nil {
			return fmt.Errorf("apply stage flags: %w", err)
		}
	}
	return nil
}

func newRecord(p *rowPlan, resolution *AssigneeResolution, actorID *uuid.UUID) *types.Record {
	r := p.row
	sourceRow := r.SourceRow
	rec := &types.Record{
		SourceRow:             &sourceRow,
		SlNo:                  r.SlNo,
		ListType:              r.ListType,
		RecordType:            r.Type,
		CustodianCode:         r.CustodianCode,
		UnloCode:              r.UnloCode,
		ShortName:             r.ShortName,
		CustodianOrganization: r.CustodianOrganization,
		State:                 r.State,
		SiteAddress:           r.SiteAddress,
		City:                  r.City,
		Pincode:               r.Pincode,
		CategoryOfSite:        r.CategoryOfSite,
		ContactPersonName:     r.ContactPersonName,
		ContactPersonNumber:   r.ContactPersonNumber,
		CustomerName:          r.CustomerName,
		MobileNo:              r.MobileNo,
		ClientEmail:           r.ClientEmail,
		Notes:                 r.Notes,
		Fingerprint:           r.Fingerprint.Ptr(),
		StatusRaw:             r.StatusRaw,
		AssigneeID:            resolution.Lookup(p.hint),
		AssigneeNameHint:      p.hint,
		CreatedBy:             actorID,
		UpdatedBy:             actorID,
	}
	rec.Status = importer.DeriveStatus(fallbackStatus(p.base, rec.AssigneeID), rec.ClientEmail, p.flagged)
	return rec
}

func (s *importService) overwrite(dbc dbctx.Context, rows []importer.ImportRow, ann []importer.Annotation, stages []*types.StageDefinition, opts CommitOptions, res *CommitResult) error {
	byCode := stageIndex(stages)
	plans := make([]*rowPlan, 0, len(rows))
	for i := range rows {
		if !rows[i].Valid() {
			continue
		}
		if hasReason(ann[i], importer.ReasonInFile) {
			res.SkippedDuplicates++
			continue
		}
		plans = append(plans, s.plan(&rows[i], byCode))
	}

	fps := make([]string, 0, len(plans))
	for _, p := range plans {
		if !p.row.Fingerprint.IsEmpty() {
			fps = append(fps, string(p.row.Fingerprint))
		}
	}
	existing, err := s.recordRepo.GetByFingerprints(dbc, fps)
	if err != nil {
		return fmt.Errorf("load matching records: %w", err)
	}

	resolution, err := s.resolve(dbc, plans, opts.ActorID, res)
	if err != nil {
		return err
	}

	fresh := make([]*rowPlan, 0, len(plans))
	matched := make([]*rowPlan, 0, len(plans))
	for _, p := range plans {
		if p.row.Fingerprint.IsEmpty() || existing[string(p.row.Fingerprint)] == nil {
			fresh = append(fresh, p)
		} else {
			matched = append(matched, p)
		}
	}

	if err := s.update(dbc, matched, existing, resolution, stages, opts, res); err != nil {
		return err
	}
	return s.create(dbc, fresh, resolution, stages, opts, res)
}

// update rewrites matched records from their rows, keeping captured contact
// data when the row leaves it blank.
func (s *importService) update(dbc dbctx.Context, plans []*rowPlan, existing map[string]*types.Record, resolution *AssigneeResolution, stages []*types.StageDefinition, opts CommitOptions, res *CommitResult) error {
	if len(plans) == 0 {
		return nil
	}
	live := make([]uuid.UUID, 0, len(plans))
	all := make([]uuid.UUID, 0, len(plans))
	for _, p := range plans {
		rec := existing[string(p.row.Fingerprint)]
		all = append(all, rec.ID)
		if !rec.DeletedAt.Valid {
			live = append(live, rec.ID)
		}
	}
	n, err := s.stages.EnsureRecordStages(dbc, live, stages)
	if err != nil {
		return err
	}
	res.StagesCreated += n

	current, err := s.recordStage.GetByRecordIDs(dbc, all)
	if err != nil {
		return fmt.Errorf("load record stages: %w", err)
	}
	progress := make(map[uuid.UUID][]importer.StageProgress, len(all))
	for _, rs := range current {
		if rs.Stage == nil || !rs.Stage.IsActive || !rs.IsCompleted {
			continue
		}
		progress[rs.RecordID] = append(progress[rs.RecordID], importer.StageProgress{
			Code: rs.Stage.Code, DisplayOrder: rs.Stage.DisplayOrder, Completed: true,
		})
	}

	completions := make(map[uuid.UUID][]uuid.UUID)
	for _, p := range plans {
		rec := existing[string(p.row.Fingerprint)]
		updates := overwriteFields(p, resolution, opts.ActorID)
		email := rec.ClientEmail
		if p.row.ClientEmail != nil {
			email = p.row.ClientEmail
		}
		assignee := resolution.Lookup(p.hint)
		updates["status"] = importer.DeriveStatus(fallbackStatus(p.base, assignee), email, append(progress[rec.ID], p.flagged...))
		if err := s.recordRepo.UpdateFields(dbc, rec.ID, updates); err != nil {
			return &importer.ConstraintViolation{SourceRow: p.row.SourceRow, Err: err}
		}
		if len(p.stageIDs) > 0 {
			completions[rec.ID] = p.stageIDs
		}
		res.Updated++
	}
	return s.complete(dbc, completions, opts.ActorID)
}

func overwriteFields(p *rowPlan, resolution *AssigneeResolution, actorID *uuid.UUID) map[string]interface{} {
	r := p.row
	sourceRow := r.SourceRow
	updates := map[string]interface{}{
		"source_row":             &sourceRow,
		"sl_no":                  r.SlNo,
		"list_type":              r.ListType,
		"type":                   r.Type,
		"custodian_code":         r.CustodianCode,
		"unlo_code":              r.UnloCode,
		"short_name":             r.ShortName,
		"custodian_organization": r.CustodianOrganization,
		"state":                  r.State,
		"site_address":           r.SiteAddress,
		"city":                   r.City,
		"pincode":                r.Pincode,
		"category_of_site":       r.CategoryOfSite,
		"contact_person_name":    r.ContactPersonName,
		"contact_person_number":  r.ContactPersonNumber,
		"status_raw":             r.StatusRaw,
		"updated_by":             actorID,
	}
	keep := map[string]*string{
		"client_email":  r.ClientEmail,
		"customer_name": r.CustomerName,
		"mobile_no":     r.MobileNo,
		"notes":         r.Notes,
	}
	for col, v := range keep {
		if v != nil {
			updates[col] = v
		}
	}
	updates["assignee_id"] = resolution.Lookup(p.hint)
	updates["assignee_name_hint"] = p.hint
	return updates
}

// fallbackStatus reconciles the classified base status with the record's
// actual assignee.
func fallbackStatus(base string, assignee *uuid.UUID) string {
	switch {
	case base == importer.StatusNew && assignee != nil:
		return importer.StatusAssigned
	case base == importer.StatusAssigned && assignee == nil:
		return importer.StatusNew
	}
	return base
}

func hasReason(a importer.Annotation, reason string) bool {
	for _, r := range a.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
