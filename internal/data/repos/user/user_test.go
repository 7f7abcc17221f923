package user

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/cibics-tracking-backend/internal/data/db"
	"github.com/yungbote/cibics-tracking-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
)

func TestUserRepo(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)

	repo := NewUserRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	created, err := repo.Create(dbc, []*types.User{
		{
			FullName: "  Ravi   Kumar ",
			Email:    "Ravi@Example.com ",
			Password: "pw",
			Role:     types.RoleAssignee,
			IsActive: true,
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 || created[0].ID == uuid.Nil {
		t.Fatalf("Create: unexpected result: %+v", created)
	}
	if created[0].NameKey != "ravi kumar" || created[0].Email != "ravi@example.com" {
		t.Fatalf("Create: normalization: name_key=%q email=%q", created[0].NameKey, created[0].Email)
	}

	gotByIDs, err := repo.GetByIDs(dbc, []uuid.UUID{created[0].ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(gotByIDs) != 1 || gotByIDs[0].ID != created[0].ID {
		t.Fatalf("GetByIDs: unexpected result: %+v", gotByIDs)
	}

	byEmail, err := repo.GetByEmail(dbc, "RAVI@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if byEmail == nil || byEmail.ID != created[0].ID {
		t.Fatalf("GetByEmail: unexpected result: %+v", byEmail)
	}

	exists, err := repo.EmailExists(dbc, "does-not-exist@example.com")
	if err != nil {
		t.Fatalf("EmailExists: %v", err)
	}
	if exists {
		t.Fatalf("EmailExists: expected false")
	}

	byName, err := repo.GetByNameKeys(dbc, []string{"ravi kumar", "nobody"}, []types.Role{types.RoleAssignee, types.RoleSuperAdmin})
	if err != nil {
		t.Fatalf("GetByNameKeys: %v", err)
	}
	if len(byName) != 1 {
		t.Fatalf("GetByNameKeys: expected 1 user, got %d", len(byName))
	}

	if err := repo.UpdateFields(dbc, created[0].ID, map[string]interface{}{"full_name": "Ravi K"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	byName, err = repo.GetByNameKeys(dbc, []string{"ravi k"}, nil)
	if err != nil || len(byName) != 1 {
		t.Fatalf("GetByNameKeys after rename: err=%v got=%d", err, len(byName))
	}

	actor := testutil.SeedUser(t, dbc.Ctx, tx, "Admin", "admin@example.com", types.RoleSuperAdmin)
	if err := repo.SoftDelete(dbc, created[0].ID, actor.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	gotByIDs, err = repo.GetByIDs(dbc, []uuid.UUID{created[0].ID})
	if err != nil {
		t.Fatalf("GetByIDs after delete: %v", err)
	}
	if len(gotByIDs) != 0 {
		t.Fatalf("GetByIDs after delete: expected no rows, got %d", len(gotByIDs))
	}
	exists, err = repo.EmailExists(dbc, "ravi@example.com")
	if err != nil || !exists {
		t.Fatalf("EmailExists after delete: want reserved, got exists=%v err=%v", exists, err)
	}

	admins, err := repo.CountActiveByRole(dbc, types.RoleSuperAdmin)
	if err != nil || admins != 1 {
		t.Fatalf("CountActiveByRole: want=1 got=%d err=%v", admins, err)
	}
}

func TestUserRepoAssigneeNameIsUnique(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewUserRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	if _, err := repo.Create(dbc, []*types.User{{
		FullName: "Meena Iyer", Email: "meena@example.com", Password: "pw", Role: types.RoleAssignee, IsActive: true,
	}}); err != nil {
		t.Fatalf("Create first: %v", err)
	}
	_, err := repo.Create(dbc, []*types.User{{
		FullName: "MEENA  iyer", Email: "meena2@example.com", Password: "pw", Role: types.RoleAssignee, IsActive: true,
	}})
	if !db.IsUniqueViolation(err) {
		t.Fatalf("Create duplicate assignee: want unique violation, got %v", err)
	}

	// The constraint is scoped to assignees.
	if _, err := repo.Create(dbc, []*types.User{{
		FullName: "Meena Iyer", Email: "meena3@example.com", Password: "pw", Role: types.RoleEmailTeam, IsActive: true,
	}}); err != nil {
		t.Fatalf("Create email team namesake: %v", err)
	}
}
