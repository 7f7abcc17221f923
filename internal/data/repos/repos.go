package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos/records"
	"github.com/yungbote/cibics-tracking-backend/internal/data/repos/user"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

type UserRepo = user.UserRepo
type UserListFilter = user.ListFilter

type RecordRepo = records.RecordRepo
type RecordListFilter = records.ListFilter
type RecordSummary = records.Summary
type StatusCount = records.StatusCount
type AssigneeCount = records.AssigneeCount

type StageDefinitionRepo = records.StageDefinitionRepo
type RecordStageRepo = records.RecordStageRepo
type RecordUpdateLogRepo = records.RecordUpdateLogRepo
type ImportRunRepo = records.ImportRunRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return user.NewUserRepo(db, baseLog)
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	return records.NewRecordRepo(db, baseLog)
}

func NewStageDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) StageDefinitionRepo {
	return records.NewStageDefinitionRepo(db, baseLog)
}

func NewRecordStageRepo(db *gorm.DB, baseLog *logger.Logger) RecordStageRepo {
	return records.NewRecordStageRepo(db, baseLog)
}

func NewRecordUpdateLogRepo(db *gorm.DB, baseLog *logger.Logger) RecordUpdateLogRepo {
	return records.NewRecordUpdateLogRepo(db, baseLog)
}

func NewImportRunRepo(db *gorm.DB, baseLog *logger.Logger) ImportRunRepo {
	return records.NewImportRunRepo(db, baseLog)
}
