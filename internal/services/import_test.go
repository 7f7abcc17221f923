package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	"github.com/yungbote/cibics-tracking-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/importer"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
)

func threeSites() []site {
	return []site{
		{sl: "1", status: "Ravi Kumar", code: "C-1", short: "Chennai Port", state: "Tamil Nadu"},
		{sl: "2", status: "", code: "C-2", short: "Ennore Port", state: "Tamil Nadu"},
		{sl: "3", status: "ravi   kumar", code: "C-3", short: "Tuticorin Port", state: "Tamil Nadu"},
	}
}

func TestCommitInsertOnlyIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	file := xlsx(t, threeSites()...)

	first, err := h.imports.CommitInsertOnly(ctx, reader(file), CommitOptions{FileName: "sites.xlsx"})
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if first.Created != 3 || first.Imported != 3 || first.SkippedDuplicates != 0 || first.AssigneesCreated != 1 {
		t.Fatalf("first commit result %+v", first)
	}

	second, err := h.imports.CommitInsertOnly(ctx, reader(file), CommitOptions{FileName: "sites.xlsx"})
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if second.Created != 0 || second.SkippedDuplicates != 3 || second.AssigneesCreated != 0 {
		t.Fatalf("second commit result %+v", second)
	}
	if n := countRows(t, h.db, &types.Record{}); n != 3 {
		t.Fatalf("records = %d, want 3", n)
	}
	if n := countRows(t, h.db, &types.User{}); n != 1 {
		t.Fatalf("users = %d, want 1 generated assignee", n)
	}
	if n := countRows(t, h.db, &types.ImportRun{}); n != 2 {
		t.Fatalf("import runs = %d, want 2", n)
	}
	if len(h.alerts.imports) != 2 {
		t.Fatalf("notifier saw %d imports", len(h.alerts.imports))
	}
}

func TestCommitAssignsAndDerivesStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	file := xlsx(t,
		site{sl: "1", status: "Ravi Kumar", code: "C-1", short: "A", state: "Goa"},
		site{sl: "2", status: "", code: "C-2", short: "B", state: "Goa", email: "Buyer@Example.com"},
		site{sl: "3", status: "PO Received", code: "C-3", short: "C", state: "Goa", proposal: "yes"},
	)
	if _, err := h.imports.CommitInsertOnly(ctx, reader(file), CommitOptions{}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var recs []*types.Record
	if err := h.db.Order("source_row ASC").Find(&recs).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d", len(recs))
	}
	if recs[0].Status != importer.StatusAssigned || recs[0].AssigneeID == nil {
		t.Fatalf("row 1 status %q assignee %v", recs[0].Status, recs[0].AssigneeID)
	}
	if recs[1].Status != importer.StatusEmailCaptured || recs[1].AssigneeID != nil {
		t.Fatalf("row 2 status %q", recs[1].Status)
	}
	if recs[2].Status != "PO_RECEIVED" {
		t.Fatalf("row 3 status %q, want PO_RECEIVED", recs[2].Status)
	}

	stages, err := h.rsRepo.GetByRecordIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{recs[2].ID})
	if err != nil {
		t.Fatalf("load stages: %v", err)
	}
	completed := map[string]bool{}
	for _, rs := range stages {
		if rs.IsCompleted {
			completed[rs.Stage.Code] = true
		}
	}
	if len(completed) != 2 || !completed["PROPOSAL_SENT"] || !completed["PO_RECEIVED"] {
		t.Fatalf("completed stages %v", completed)
	}
}

func TestStageFanoutCreatesEveryPair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var sites []site
	for i, short := range []string{"A", "B", "C", "D"} {
		sites = append(sites, site{sl: string(rune('1' + i)), code: "C-" + short, short: short, state: "Kerala"})
	}
	res, err := h.imports.CommitInsertOnly(ctx, reader(xlsx(t, sites...)), CommitOptions{})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	stages, err := h.stages.ListActive(dbctx.Context{Ctx: ctx})
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	want := int64(4 * len(stages))
	if res.StagesCreated != want {
		t.Fatalf("StagesCreated = %d, want %d", res.StagesCreated, want)
	}
	var completed int64
	if err := h.db.Model(&types.RecordStage{}).Where("is_completed = ?", true).Count(&completed).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n := countRows(t, h.db, &types.RecordStage{}); n != want || completed != 0 {
		t.Fatalf("record stages = %d (completed %d), want %d uncompleted", n, completed, want)
	}
}

func TestPreviewAgreesWithCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := site{sl: "1", code: "C-1", short: "A", state: "Goa"}
	b := site{sl: "2", code: "C-2", short: "B", state: "Goa"}
	c := site{sl: "3", code: "C-3", short: "C", state: "Goa"}
	if _, err := h.imports.CommitInsertOnly(ctx, reader(xlsx(t, a)), CommitOptions{}); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	bDup := b
	bDup.short = "  b "
	file := xlsx(t, a, b, bDup, c)
	preview, err := h.imports.Preview(ctx, reader(file), 0)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Total != 4 || preview.Duplicates != 2 || preview.Insertable != 2 {
		t.Fatalf("preview counts %+v", preview.Counts)
	}
	if len(preview.PreviewRows) != 4 || preview.PreviewRows[0].DuplicateReasons[0] != importer.ReasonExisting {
		t.Fatalf("preview rows %+v", preview.PreviewRows)
	}
	if countRows(t, h.db, &types.Record{}) != 1 {
		t.Fatalf("preview must not write")
	}

	res, err := h.imports.CommitInsertOnly(ctx, reader(file), CommitOptions{})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Created != preview.Insertable || res.SkippedDuplicates != preview.Duplicates {
		t.Fatalf("commit %+v disagrees with preview %+v", res, preview.Counts)
	}
}

func TestTenRowScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var sites []site
	for i, short := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		sites = append(sites, site{sl: string(rune('1' + i)), code: "C-" + short, short: short, state: "Goa"})
	}
	sites = append(sites,
		site{sl: "9", status: "Ravi", code: "C-9", short: "Panaji Port", state: "Goa"},
		site{sl: "9", status: "ravi", code: "c-9", short: "PANAJI  PORT", state: " goa "},
	)
	file := xlsx(t, sites...)

	preview, err := h.imports.Preview(ctx, reader(file), 5)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Total != 10 || preview.Duplicates != 1 || preview.Insertable != 9 {
		t.Fatalf("counts %+v", preview.Counts)
	}
	if len(preview.PreviewRows) != 5 {
		t.Fatalf("preview limit ignored: %d rows", len(preview.PreviewRows))
	}
	res, err := h.imports.CommitInsertOnly(ctx, reader(file), CommitOptions{})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Created != 9 || res.SkippedDuplicates != 1 || res.AssigneesCreated != 1 {
		t.Fatalf("commit %+v", res)
	}
}

func TestOverwritePreservesCapturedData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	orig := site{sl: "1", status: "Ravi", code: "C-1", short: "A", state: "Goa", customer: "Asha", email: "asha@example.com", notes: "call back"}
	if _, err := h.imports.CommitInsertOnly(ctx, reader(xlsx(t, orig)), CommitOptions{}); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	again := orig
	again.status = "Meena"
	again.customer, again.email, again.notes = "", "", ""
	fresh := site{sl: "2", code: "C-2", short: "B", state: "Goa"}
	res, err := h.imports.CommitOverwrite(ctx, reader(xlsx(t, again, again, fresh)), CommitOptions{})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if res.Updated != 1 || res.Created != 1 || res.Imported != 2 || res.SkippedDuplicates != 1 || res.AssigneesCreated != 1 {
		t.Fatalf("overwrite result %+v", res)
	}

	var rec types.Record
	if err := h.db.Preload("Assignee").Where("short_name = ?", "A").First(&rec).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.ClientEmail == nil || *rec.ClientEmail != "asha@example.com" {
		t.Fatalf("client email lost: %v", rec.ClientEmail)
	}
	if rec.CustomerName == nil || *rec.CustomerName != "Asha" || rec.Notes == nil || *rec.Notes != "call back" {
		t.Fatalf("captured fields lost: %+v", rec)
	}
	if rec.Assignee == nil || rec.Assignee.FullName != "Meena" {
		t.Fatalf("assignee not replaced: %+v", rec.Assignee)
	}
	if rec.Status != importer.StatusEmailCaptured {
		t.Fatalf("status %q", rec.Status)
	}
}

func TestOverwriteReappliesAssigneeResolution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := site{sl: "1", status: "Ravi", code: "C-1", short: "A", state: "Goa"}
	b := site{sl: "2", status: "Ravi", code: "C-2", short: "B", state: "Goa"}
	if _, err := h.imports.CommitInsertOnly(ctx, reader(xlsx(t, a, b)), CommitOptions{}); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	a.status = ""
	b.status = "PO Received"
	res, err := h.imports.CommitOverwrite(ctx, reader(xlsx(t, a, b)), CommitOptions{})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if res.Updated != 2 {
		t.Fatalf("overwrite result %+v", res)
	}

	var recs []*types.Record
	if err := h.db.Order("source_row ASC").Find(&recs).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d", len(recs))
	}
	if recs[0].Status != importer.StatusNew || recs[0].AssigneeID != nil || recs[0].AssigneeNameHint != nil {
		t.Fatalf("blank status row: status %q assignee %v hint %v", recs[0].Status, recs[0].AssigneeID, recs[0].AssigneeNameHint)
	}
	if recs[1].Status != importer.StatusPOReceived || recs[1].AssigneeID != nil || recs[1].AssigneeNameHint != nil {
		t.Fatalf("po received row: status %q assignee %v hint %v", recs[1].Status, recs[1].AssigneeID, recs[1].AssigneeNameHint)
	}
}

func TestFailedCommitRemovesArchivedUpload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	arc := &recordingArchive{}
	imports := NewImportService(h.db, testutil.Logger(t), importer.MustDefaultLayout(), ImportConfig{},
		h.recordRepo, h.rsRepo, h.runRepo, h.stages, h.assignees, arc, h.alerts)
	file := xlsx(t, site{sl: "1", code: "C-1", short: "A", state: "Goa"})

	ok, err := imports.CommitInsertOnly(ctx, reader(file), CommitOptions{FileName: "sites.xlsx"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ok.ArchiveKey == "" || len(arc.objects) != 1 || len(arc.deleted) != 0 {
		t.Fatalf("successful commit archive key %q objects %d deleted %v", ok.ArchiveKey, len(arc.objects), arc.deleted)
	}

	if err := h.db.Migrator().DropTable(&types.ImportRun{}); err != nil {
		t.Fatalf("drop import runs: %v", err)
	}
	file = xlsx(t, site{sl: "2", code: "C-2", short: "B", state: "Goa"})
	if _, err := imports.CommitInsertOnly(ctx, reader(file), CommitOptions{FileName: "sites.xlsx"}); err == nil {
		t.Fatalf("commit without an import_runs table succeeded")
	}
	if len(arc.deleted) != 1 || len(arc.objects) != 1 {
		t.Fatalf("rolled back upload still archived: objects %d deleted %v", len(arc.objects), arc.deleted)
	}
	if _, kept := arc.objects[ok.ArchiveKey]; !kept {
		t.Fatalf("committed upload was removed")
	}
	if n := countRows(t, h.db, &types.Record{}); n != 1 {
		t.Fatalf("records = %d, want only the first commit", n)
	}
}

func TestCommitRejectsBadWorkbookWithoutWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.imports.CommitInsertOnly(ctx, strings.NewReader("not a workbook"), CommitOptions{})
	if !importer.IsFileFormatError(err) {
		t.Fatalf("want FileFormatError, got %v", err)
	}
	if countRows(t, h.db, &types.Record{}) != 0 || countRows(t, h.db, &types.ImportRun{}) != 0 {
		t.Fatalf("failed import wrote rows")
	}
	if countRows(t, h.db, &types.StageDefinition{}) != 0 {
		t.Fatalf("failed import seeded stages")
	}
}

func TestResolveBatchReusesExistingUsers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ravi := h.seedUser(t, "Ravi Kumar", "ravi@example.com", types.RoleAssignee)
	testutil.SeedUser(t, ctx, h.db, "Meena", "meena@example.com", types.RoleEmailTeam)

	tx := testutil.Tx(t, h.db)
	res, err := h.assignees.ResolveBatch(dbctx.Context{Ctx: ctx, Tx: tx}, []string{"RAVI  KUMAR", "ravi kumar", "Meena", "meena"}, nil)
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}
	name := "Ravi Kumar"
	if got := res.Lookup(&name); got == nil || *got != ravi.ID {
		t.Fatalf("Ravi resolved to %v", got)
	}
	if res.Created != 1 {
		t.Fatalf("created %d; email team members are not assignees", res.Created)
	}
	var created types.User
	if err := tx.Where("name_key = ? AND role = ?", "meena", types.RoleAssignee).First(&created).Error; err != nil {
		t.Fatalf("generated assignee: %v", err)
	}
	if created.Email != "meena@assignee.local" {
		t.Fatalf("generated email %q", created.Email)
	}
}

// missFirstLookup hides existing users from the first name lookup, as if
// another import created them after it ran.
type missFirstLookup struct {
	repos.UserRepo
	calls int
}

func (r *missFirstLookup) GetByNameKeys(dbc dbctx.Context, nameKeys []string, roles []types.Role) ([]*types.User, error) {
	r.calls++
	if r.calls == 1 {
		return nil, nil
	}
	return r.UserRepo.GetByNameKeys(dbc, nameKeys, roles)
}

func TestResolveBatchReusesConcurrentlyCreatedAssignee(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ravi := h.seedUser(t, "Ravi Kumar", "ravi@example.com", types.RoleAssignee)

	lookup := &missFirstLookup{UserRepo: h.userRepo}
	resolver := NewAssigneeResolver(testutil.Logger(t), lookup, AssigneeConfig{
		DefaultPassword: "changeme123",
		BcryptCost:      bcrypt.MinCost,
	})
	tx := testutil.Tx(t, h.db)
	res, err := resolver.ResolveBatch(dbctx.Context{Ctx: ctx, Tx: tx}, []string{"Ravi Kumar"}, nil)
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}
	if res.Created != 0 {
		t.Fatalf("created %d, want the existing user reused", res.Created)
	}
	name := "Ravi Kumar"
	if got := res.Lookup(&name); got == nil || *got != ravi.ID {
		t.Fatalf("resolved to %v, want %s", got, ravi.ID)
	}
	if lookup.calls < 2 {
		t.Fatalf("resolver did not reload after the insert conflict")
	}
	var users int64
	if err := tx.Model(&types.User{}).Count(&users).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if users != 1 {
		t.Fatalf("users = %d, want 1", users)
	}
}

func TestSlugName(t *testing.T) {
	cases := map[string]string{
		"Ravi Kumar": "ravi.kumar",
		"  O'Neil  ": "o.neil",
		"Ünïcode":    "n.code",
		"!!!":        "assignee",
		"A.B.-C":     "a.b.c",
	}
	for in, want := range cases {
		if got := slugName(in); got != want {
			t.Fatalf("slugName(%q) = %q, want %q", in, got, want)
		}
	}
}
