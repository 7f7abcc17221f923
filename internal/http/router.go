package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	httpH "github.com/yungbote/cibics-tracking-backend/internal/http/handlers"
	httpMW "github.com/yungbote/cibics-tracking-backend/internal/http/middleware"
	"github.com/yungbote/cibics-tracking-backend/internal/observability"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler    *httpH.HealthHandler
	AuthHandler      *httpH.AuthHandler
	UserHandler      *httpH.UserHandler
	RecordHandler    *httpH.RecordHandler
	StageHandler     *httpH.StageHandler
	ImportHandler    *httpH.ImportHandler
	DashboardHandler *httpH.DashboardHandler
	RealtimeHandler  *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api/v1")
	{
		if cfg.HealthHandler != nil {
			api.GET("/health", cfg.HealthHandler.HealthCheck)
		}
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/auth/bootstrap", cfg.AuthHandler.Bootstrap)
			api.POST("/auth/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware == nil {
		return r
	}
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	superAdmin := cfg.AuthMiddleware.RequireRoles(types.RoleSuperAdmin)
	alertRoles := cfg.AuthMiddleware.RequireRoles(types.RoleSuperAdmin, types.RoleEmailTeam)

	if cfg.AuthHandler != nil {
		protected.GET("/auth/me", cfg.AuthHandler.Me)
	}

	// Users
	if cfg.UserHandler != nil {
		protected.GET("/users/assignees", cfg.UserHandler.ListAssignees)
		protected.PATCH("/users/me", cfg.UserHandler.UpdateMe)
		protected.GET("/users", superAdmin, cfg.UserHandler.List)
		protected.POST("/users", superAdmin, cfg.UserHandler.Create)
		protected.PATCH("/users/:id", superAdmin, cfg.UserHandler.Update)
		protected.DELETE("/users/:id", superAdmin, cfg.UserHandler.Delete)
	}

	// Stages
	if cfg.StageHandler != nil {
		protected.GET("/records/stages", cfg.StageHandler.List)
		protected.POST("/records/stages", superAdmin, cfg.StageHandler.Create)
		protected.PATCH("/records/stages/:id", superAdmin, cfg.StageHandler.Update)
	}

	// Import
	if cfg.ImportHandler != nil {
		protected.POST("/records/import/preview", superAdmin, cfg.ImportHandler.Preview)
		protected.POST("/records/import/upload", superAdmin, cfg.ImportHandler.Upload)
		protected.POST("/records/import/overwrite", superAdmin, cfg.ImportHandler.Overwrite)
		protected.GET("/records/import/template", superAdmin, cfg.ImportHandler.Template)
		protected.GET("/records/import/runs", superAdmin, cfg.ImportHandler.Runs)
	}

	// Records
	if cfg.RecordHandler != nil {
		protected.GET("/records", cfg.RecordHandler.List)
		protected.GET("/records/:id", cfg.RecordHandler.Get)
		protected.PATCH("/records/:id", cfg.RecordHandler.Patch)
		protected.DELETE("/records/:id", superAdmin, cfg.RecordHandler.Delete)
		protected.GET("/records/:id/history", cfg.RecordHandler.History)
		protected.POST("/records/:id/acknowledge-alert", alertRoles, cfg.RecordHandler.AcknowledgeAlert)
	}

	// Dashboard
	if cfg.DashboardHandler != nil {
		protected.GET("/dashboard/summary", cfg.DashboardHandler.Summary)
		protected.GET("/dashboard/by-status", cfg.DashboardHandler.ByStatus)
		protected.GET("/dashboard/by-assignee", alertRoles, cfg.DashboardHandler.ByAssignee)
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		protected.GET("/alerts/stream", alertRoles, cfg.RealtimeHandler.AlertStream)
	}

	return r
}
