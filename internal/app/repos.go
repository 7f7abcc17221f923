package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

type Repos struct {
	User        repos.UserRepo
	Record      repos.RecordRepo
	Stage       repos.StageDefinitionRepo
	RecordStage repos.RecordStageRepo
	UpdateLog   repos.RecordUpdateLogRepo
	ImportRun   repos.ImportRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:        repos.NewUserRepo(db, log),
		Record:      repos.NewRecordRepo(db, log),
		Stage:       repos.NewStageDefinitionRepo(db, log),
		RecordStage: repos.NewRecordStageRepo(db, log),
		UpdateLog:   repos.NewRecordUpdateLogRepo(db, log),
		ImportRun:   repos.NewImportRunRepo(db, log),
	}
}
