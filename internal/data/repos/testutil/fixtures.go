package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, name, email string, role types.Role) *types.User {
	tb.Helper()
	u := &types.User{
		FullName: name,
		NameKey:  types.NameKey(name),
		Email:    email,
		Password: "pw",
		Role:     role,
		IsActive: true,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedStage(tb testing.TB, ctx context.Context, tx *gorm.DB, code string, order int) *types.StageDefinition {
	tb.Helper()
	s := &types.StageDefinition{
		Code:         code,
		Name:         code,
		DisplayOrder: order,
		IsActive:     true,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed stage: %v", err)
	}
	return s
}

func SeedRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, rec *types.Record) *types.Record {
	tb.Helper()
	if rec.Status == "" {
		rec.Status = types.StatusNew
	}
	if err := tx.WithContext(ctx).Omit("Assignee", "Stages").Create(rec).Error; err != nil {
		tb.Fatalf("seed record: %v", err)
	}
	return rec
}
