package services

import (
	"context"
	"testing"

	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/ctxutil"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/pointers"
)

func TestBootstrapLoginAndToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin, err := h.auth.Bootstrap(ctx, BootstrapInput{FullName: "Root Admin", Email: " Root@Example.com ", Password: "supersecret"})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if admin.Role != types.RoleSuperAdmin || admin.Email != "root@example.com" {
		t.Fatalf("bootstrapped %+v", admin)
	}
	_, err = h.auth.Bootstrap(ctx, BootstrapInput{FullName: "Second", Email: "second@example.com", Password: "supersecret"})
	wantAPIErr(t, err, "already_bootstrapped")

	_, err = h.auth.Login(ctx, "root@example.com", "wrong-password")
	wantAPIErr(t, err, "invalid_credentials")

	res, err := h.auth.Login(ctx, "ROOT@example.com", "supersecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	authed, err := h.auth.SetContextFromToken(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := ctxutil.GetRequestData(authed)
	if rd == nil || rd.UserID != admin.ID || rd.Role != string(types.RoleSuperAdmin) {
		t.Fatalf("request data %+v", rd)
	}
	if _, err := h.auth.SetContextFromToken(ctx, res.AccessToken+"x"); err == nil {
		t.Fatalf("tampered token accepted")
	}
}

func TestLastSuperAdminGuard(t *testing.T) {
	h := newHarness(t)
	admin := h.seedUser(t, "Admin", "admin@example.com", types.RoleSuperAdmin)
	ctx := as(admin)

	second, err := h.users.Create(ctx, CreateUserInput{FullName: "Deputy", Email: "deputy@example.com", Password: "longenough", Role: types.RoleSuperAdmin})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := h.users.Create(ctx, CreateUserInput{FullName: "Dup", Email: "DEPUTY@example.com", Password: "longenough", Role: types.RoleAssignee}); err == nil {
		t.Fatalf("duplicate email accepted")
	}

	demote := types.RoleEmailTeam
	if _, err := h.users.Update(ctx, second.ID, UpdateUserInput{Role: &demote}); err != nil {
		t.Fatalf("demoting one of two admins: %v", err)
	}
	_, err = h.users.Update(as(second), admin.ID, UpdateUserInput{Role: &demote})
	wantAPIErr(t, err, "last_super_admin")

	err = h.users.Delete(ctx, admin.ID)
	wantAPIErr(t, err, "self_delete")
}

func TestDeleteUserUnassignsRecords(t *testing.T) {
	h := newHarness(t)
	admin := h.seedUser(t, "Admin", "admin@example.com", types.RoleSuperAdmin)
	ravi := h.seedUser(t, "Ravi", "ravi@example.com", types.RoleAssignee)
	rec := importedRecord(t, h, ravi)

	if err := h.users.Delete(as(admin), ravi.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := h.records.Get(dbctx.Context{Ctx: as(admin)}, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AssigneeID != nil || got.Status != types.StatusNew {
		t.Fatalf("record after delete: assignee=%v status=%q", got.AssigneeID, got.Status)
	}
	assignees, err := h.users.ListAssignees(dbctx.Context{Ctx: context.Background()})
	if err != nil {
		t.Fatalf("ListAssignees: %v", err)
	}
	for _, u := range assignees {
		if u.ID == ravi.ID {
			t.Fatalf("deleted user still listed")
		}
	}
}

func TestUpdateSelfRequiresCurrentPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin, err := h.auth.Bootstrap(ctx, BootstrapInput{FullName: "Root", Email: "root@example.com", Password: "supersecret"})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	_, err = h.users.UpdateSelf(as(admin), UpdateSelfInput{CurrentPassword: "nope", NewPassword: pointers.String("brandnewpass")})
	wantAPIErr(t, err, "invalid_password")

	me, err := h.users.UpdateSelf(as(admin), UpdateSelfInput{
		FullName:        pointers.String("Root  Admin"),
		CurrentPassword: "supersecret",
		NewPassword:     pointers.String("brandnewpass"),
	})
	if err != nil {
		t.Fatalf("UpdateSelf: %v", err)
	}
	if me.FullName != "Root  Admin" {
		t.Fatalf("name %q", me.FullName)
	}
	if _, err := h.auth.Login(ctx, "root@example.com", "brandnewpass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}
