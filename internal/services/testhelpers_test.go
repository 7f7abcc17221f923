package services

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	"github.com/yungbote/cibics-tracking-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/importer"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/ctxutil"
)

type harness struct {
	db         *gorm.DB
	userRepo   repos.UserRepo
	recordRepo repos.RecordRepo
	stageRepo  repos.StageDefinitionRepo
	rsRepo     repos.RecordStageRepo
	logRepo    repos.RecordUpdateLogRepo
	runRepo    repos.ImportRunRepo

	stages    StageService
	assignees AssigneeResolver
	imports   ImportService
	records   RecordService
	users     UserService
	auth      AuthService
	dashboard DashboardService
	alerts    *recordingAlerts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	h := &harness{
		db:         db,
		userRepo:   repos.NewUserRepo(db, log),
		recordRepo: repos.NewRecordRepo(db, log),
		stageRepo:  repos.NewStageDefinitionRepo(db, log),
		rsRepo:     repos.NewRecordStageRepo(db, log),
		logRepo:    repos.NewRecordUpdateLogRepo(db, log),
		runRepo:    repos.NewImportRunRepo(db, log),
		alerts:     &recordingAlerts{},
	}
	layout := importer.MustDefaultLayout()
	h.stages = NewStageService(db, log, h.stageRepo, h.rsRepo)
	h.assignees = NewAssigneeResolver(log, h.userRepo, AssigneeConfig{
		DefaultPassword: "changeme123",
		BcryptCost:      bcrypt.MinCost,
	})
	h.imports = NewImportService(db, log, layout, ImportConfig{}, h.recordRepo, h.rsRepo, h.runRepo, h.stages, h.assignees, nil, h.alerts)
	h.records = NewRecordService(db, log, h.recordRepo, h.rsRepo, h.logRepo, h.userRepo, h.stages, h.alerts, layout.TerminalStatuses)
	h.users = NewUserService(db, log, h.userRepo, h.recordRepo, bcrypt.MinCost)
	h.auth = NewAuthService(db, log, h.userRepo, AuthConfig{JWTSecret: "test-secret", BcryptCost: bcrypt.MinCost})
	h.dashboard = NewDashboardService(log, h.recordRepo)
	return h
}

func (h *harness) seedUser(t *testing.T, name, email string, role types.Role) *types.User {
	t.Helper()
	return testutil.SeedUser(t, context.Background(), h.db, name, email, role)
}

// as returns a context authenticated as u.
func as(u *types.User) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: u.ID, Role: string(u.Role)})
}

// recordingArchive keeps uploads in memory and records deletions.
type recordingArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func (a *recordingArchive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = data
	return nil
}

func (a *recordingArchive) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %q", key)
	}
	return data, nil
}

func (a *recordingArchive) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, key)
	a.deleted = append(a.deleted, key)
	return nil
}

func (a *recordingArchive) Location(key string) string { return "mem://" + key }

type recordingAlerts struct {
	mu       sync.Mutex
	captured []*types.Record
	cleared  []*types.Record
	imports  []*CommitResult
}

func (r *recordingAlerts) StartForwarding(ctx context.Context) error { return nil }

func (r *recordingAlerts) EmailCaptured(ctx context.Context, rec *types.Record, actorID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured = append(r.captured, rec)
}

func (r *recordingAlerts) AlertCleared(ctx context.Context, rec *types.Record, actorID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, rec)
}

func (r *recordingAlerts) ImportCommitted(ctx context.Context, res *CommitResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imports = append(r.imports, res)
}

var sheetHeader = []string{
	"Sl.no", "PO STATUS", "Custodian Code", "UNLO Code", "Short Name", "Custodian Organization",
	"State", "Site Address", "Pincode", "Customer Name", "Email id", "Notes", "Proposal sent",
}

type site struct {
	sl, status, code, short, state, customer, email, notes, proposal string
}

func (s site) cells() []string {
	return []string{s.sl, s.status, s.code, "INMAA", s.short, "Port Trust", s.state, "Dock Road", "600001", s.customer, s.email, s.notes, s.proposal}
}

// xlsx builds a workbook with a title row above the header.
func xlsx(t *testing.T, sites ...site) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]string{{"Site Tracker"}, sheetHeader}
	for _, s := range sites {
		rows = append(rows, s.cells())
	}
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", addr, &cells); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func reader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
