package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/http"
	httpH "github.com/yungbote/cibics-tracking-backend/internal/http/handlers"
	httpMW "github.com/yungbote/cibics-tracking-backend/internal/http/middleware"
	"github.com/yungbote/cibics-tracking-backend/internal/observability"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Auth      *httpH.AuthHandler
	User      *httpH.UserHandler
	Record    *httpH.RecordHandler
	Stage     *httpH.StageHandler
	Import    *httpH.ImportHandler
	Dashboard *httpH.DashboardHandler
	Realtime  *httpH.RealtimeHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, services Services, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(db),
		Auth:      httpH.NewAuthHandler(services.Auth, services.User),
		User:      httpH.NewUserHandler(services.User),
		Record:    httpH.NewRecordHandler(services.Record),
		Stage:     httpH.NewStageHandler(services.Stage),
		Import:    httpH.NewImportHandler(log, services.Import, cfg.ImportMaxUploadBytes),
		Dashboard: httpH.NewDashboardHandler(services.Dashboard),
		Realtime:  httpH.NewRealtimeHandler(log, sseHub),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *http.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Log:              log,
		ServiceName:      serviceName,
		AllowedOrigins:   cfg.AllowedOrigins,
		Metrics:          metrics,
		AuthMiddleware:   middleware.Auth,
		HealthHandler:    handlers.Health,
		AuthHandler:      handlers.Auth,
		UserHandler:      handlers.User,
		RecordHandler:    handlers.Record,
		StageHandler:     handlers.Stage,
		ImportHandler:    handlers.Import,
		DashboardHandler: handlers.Dashboard,
		RealtimeHandler:  handlers.Realtime,
	})
}
