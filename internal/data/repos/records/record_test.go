package records

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/pointers"
)

func TestRecordRepoFingerprints(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRecordRepo(db, testutil.Logger(t))

	live := testutil.SeedRecord(t, dbc.Ctx, tx, &types.Record{ShortName: pointers.String("A"), Fingerprint: pointers.String("fp-live")})
	gone := testutil.SeedRecord(t, dbc.Ctx, tx, &types.Record{ShortName: pointers.String("B"), Fingerprint: pointers.String("fp-gone")})
	testutil.SeedRecord(t, dbc.Ctx, tx, &types.Record{ShortName: pointers.String("C")})
	testutil.SeedRecord(t, dbc.Ctx, tx, &types.Record{ShortName: pointers.String("D")})

	if err := repo.SoftDelete(dbc, gone.ID, uuid.New()); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	found, err := repo.ExistingFingerprints(dbc, []string{"fp-live", "fp-gone", "fp-new"})
	if err != nil {
		t.Fatalf("ExistingFingerprints: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("ExistingFingerprints: want 2 got %v", found)
	}
	if _, ok := found["fp-new"]; ok {
		t.Fatalf("ExistingFingerprints: unexpected fp-new")
	}

	byFP, err := repo.GetByFingerprints(dbc, []string{"fp-live", "fp-gone"})
	if err != nil {
		t.Fatalf("GetByFingerprints: %v", err)
	}
	if byFP["fp-live"].ID != live.ID || byFP["fp-gone"].ID != gone.ID {
		t.Fatalf("GetByFingerprints: unexpected result: %+v", byFP)
	}

	inserted, err := repo.CreateIfAbsent(dbc, &types.Record{Status: types.StatusNew, Fingerprint: pointers.String("fp-live")})
	if err != nil {
		t.Fatalf("CreateIfAbsent duplicate: %v", err)
	}
	if inserted {
		t.Fatalf("CreateIfAbsent duplicate: expected no insert")
	}
	inserted, err = repo.CreateIfAbsent(dbc, &types.Record{Status: types.StatusNew, Fingerprint: pointers.String("fp-new")})
	if err != nil || !inserted {
		t.Fatalf("CreateIfAbsent new: inserted=%v err=%v", inserted, err)
	}
	inserted, err = repo.CreateIfAbsent(dbc, &types.Record{Status: types.StatusNew})
	if err != nil || !inserted {
		t.Fatalf("CreateIfAbsent empty key: inserted=%v err=%v", inserted, err)
	}

	list, total, err := repo.List(dbc, ListFilter{PageSize: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 5 || len(list) != 5 {
		t.Fatalf("List: want 5 live records, got total=%d len=%d", total, len(list))
	}

	got, err := repo.GetByID(dbc, gone.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("GetByID: soft-deleted record should be hidden")
	}
}

func TestRecordRepoListFiltersAndSummary(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRecordRepo(db, testutil.Logger(t))

	assignee := testutil.SeedUser(t, dbc.Ctx, tx, "Ravi Kumar", "ravi@example.com", types.RoleAssignee)
	testutil.SeedRecord(t, dbc.Ctx, tx, &types.Record{ShortName: pointers.String("Alpha Depot"), State: pointers.String("Kerala"), AssigneeID: &assignee.ID, Status: types.StatusAssigned})
	testutil.SeedRecord(t, dbc.Ctx, tx, &types.Record{ShortName: pointers.String("Beta Yard"), State: pointers.String("Goa"), AssigneeID: &assignee.ID, ClientEmail: pointers.String("c@x.in"), Status: types.StatusEmailCaptured, EmailAlertPending: true})
	testutil.SeedRecord(t, dbc.Ctx, tx, &types.Record{ShortName: pointers.String("Gamma"), State: pointers.String("kerala"), Status: types.StatusPOReceived})

	list, total, err := repo.List(dbc, ListFilter{State: "KERALA"})
	if err != nil || total != 2 || len(list) != 2 {
		t.Fatalf("List state: total=%d len=%d err=%v", total, len(list), err)
	}
	list, total, err = repo.List(dbc, ListFilter{Query: "depot"})
	if err != nil || total != 1 || *list[0].ShortName != "Alpha Depot" {
		t.Fatalf("List query: total=%d err=%v", total, err)
	}
	yes := true
	_, total, err = repo.List(dbc, ListFilter{HasClientEmail: &yes, AssigneeID: &assignee.ID})
	if err != nil || total != 1 {
		t.Fatalf("List email: total=%d err=%v", total, err)
	}

	sum, err := repo.Summarize(dbc, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 3 || sum.Assigned != 2 || sum.Unassigned != 1 || sum.WithClientEmail != 1 || sum.AlertPending != 1 || sum.POReceived != 1 {
		t.Fatalf("Summarize: unexpected %+v", sum)
	}
	scoped, err := repo.Summarize(dbc, &assignee.ID)
	if err != nil || scoped.Total != 2 {
		t.Fatalf("Summarize scoped: %+v err=%v", scoped, err)
	}

	byStatus, err := repo.CountByStatus(dbc, nil)
	if err != nil || len(byStatus) != 3 {
		t.Fatalf("CountByStatus: %+v err=%v", byStatus, err)
	}
	byAssignee, err := repo.CountByAssignee(dbc)
	if err != nil || len(byAssignee) != 2 {
		t.Fatalf("CountByAssignee: %+v err=%v", byAssignee, err)
	}
	for _, row := range byAssignee {
		if row.AssigneeID != nil && (row.Total != 2 || row.WithEmail != 1) {
			t.Fatalf("CountByAssignee: unexpected row %+v", row)
		}
	}

	n, err := repo.UnassignUser(dbc, assignee.ID, uuid.New())
	if err != nil || n != 2 {
		t.Fatalf("UnassignUser: n=%d err=%v", n, err)
	}
}

func TestRecordStageRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRecordStageRepo(db, testutil.Logger(t))

	s1 := testutil.SeedStage(t, dbc.Ctx, tx, "FIRST", 10)
	s2 := testutil.SeedStage(t, dbc.Ctx, tx, "SECOND", 20)
	r1 := testutil.SeedRecord(t, dbc.Ctx, tx, &types.Record{})
	r2 := testutil.SeedRecord(t, dbc.Ctx, tx, &types.Record{})

	rows := func() []*types.RecordStage {
		return []*types.RecordStage{
			{RecordID: r1.ID, StageID: s1.ID},
			{RecordID: r1.ID, StageID: s2.ID},
			{RecordID: r2.ID, StageID: s1.ID},
		}
	}
	n, err := repo.CreateMissing(dbc, rows())
	if err != nil || n != 3 {
		t.Fatalf("CreateMissing: n=%d err=%v", n, err)
	}
	n, err = repo.CreateMissing(dbc, rows())
	if err != nil || n != 0 {
		t.Fatalf("CreateMissing rerun: n=%d err=%v", n, err)
	}

	missing, err := repo.RecordIDsMissingStage(dbc, s2.ID)
	if err != nil {
		t.Fatalf("RecordIDsMissingStage: %v", err)
	}
	if len(missing) != 1 || missing[0] != r2.ID {
		t.Fatalf("RecordIDsMissingStage: unexpected %v", missing)
	}
	canceled, cancel := context.WithCancel(dbc.Ctx)
	cancel()
	if _, err := repo.RecordIDsMissingStage(dbctx.Context{Ctx: canceled, Tx: tx}, s2.ID); err == nil {
		t.Fatalf("RecordIDsMissingStage ignored a canceled context")
	}

	now := time.Now().UTC()
	n, err = repo.MarkCompleted(dbc, r1.ID, []uuid.UUID{s1.ID}, now, nil)
	if err != nil || n != 1 {
		t.Fatalf("MarkCompleted: n=%d err=%v", n, err)
	}
	n, err = repo.MarkCompleted(dbc, r1.ID, []uuid.UUID{s1.ID}, now, nil)
	if err != nil || n != 0 {
		t.Fatalf("MarkCompleted rerun: n=%d err=%v", n, err)
	}

	got, err := repo.GetByRecordIDs(dbc, []uuid.UUID{r1.ID})
	if err != nil || len(got) != 2 {
		t.Fatalf("GetByRecordIDs: len=%d err=%v", len(got), err)
	}
	for _, rs := range got {
		if rs.Stage == nil {
			t.Fatalf("GetByRecordIDs: stage not preloaded")
		}
		if rs.StageID == s1.ID && !rs.IsCompleted {
			t.Fatalf("GetByRecordIDs: FIRST should be completed")
		}
	}
}
