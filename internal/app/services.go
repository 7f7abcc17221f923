package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/importer"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/realtime"
	"github.com/yungbote/cibics-tracking-backend/internal/services"
)

type Services struct {
	Auth      services.AuthService
	User      services.UserService
	Stage     services.StageService
	Assignee  services.AssigneeResolver
	Import    services.ImportService
	Record    services.RecordService
	Dashboard services.DashboardService
	Alert     services.AlertService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, hub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")

	layout, err := importer.DefaultLayout()
	if err != nil {
		return Services{}, err
	}

	alerts := services.NewAlertService(log, repos.User, clients.Bus, hub, clients.SendGrid)
	stages := services.NewStageService(db, log, repos.Stage, repos.RecordStage)
	assignees := services.NewAssigneeResolver(log, repos.User, services.AssigneeConfig{
		DefaultPassword: cfg.DefaultAssigneePassword,
		EmailDomain:     cfg.AssigneeEmailDomain,
		BcryptCost:      cfg.BcryptCost,
	})
	imports := services.NewImportService(db, log, layout, services.ImportConfig{
		PreviewLimit:     cfg.ImportPreviewLimit,
		TerminalStatuses: cfg.ImportTerminalStatuses,
	}, repos.Record, repos.RecordStage, repos.ImportRun, stages, assignees, clients.Archive, alerts)
	terminal := layout.WithTerminalStatuses(cfg.ImportTerminalStatuses).TerminalStatuses

	return Services{
		Auth: services.NewAuthService(db, log, repos.User, services.AuthConfig{
			JWTSecret:  cfg.JWTSecretKey,
			AccessTTL:  cfg.AccessTokenTTL,
			BcryptCost: cfg.BcryptCost,
		}),
		User:      services.NewUserService(db, log, repos.User, repos.Record, cfg.BcryptCost),
		Stage:     stages,
		Assignee:  assignees,
		Import:    imports,
		Record:    services.NewRecordService(db, log, repos.Record, repos.RecordStage, repos.UpdateLog, repos.User, stages, alerts, terminal),
		Dashboard: services.NewDashboardService(log, repos.Record),
		Alert:     alerts,
	}, nil
}
