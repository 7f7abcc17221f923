package testutil

import (
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/db"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a fresh, migrated in-memory database private to tb.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	svc, err := db.NewSQLiteService(db.Config{Driver: "sqlite"}, Logger(tb))
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	tb.Cleanup(func() { _ = svc.Close() })
	if err := svc.AutoMigrateAll(); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return svc.DB()
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
