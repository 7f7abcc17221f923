package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/db"
	"github.com/yungbote/cibics-tracking-backend/internal/http"
	"github.com/yungbote/cibics-tracking-backend/internal/observability"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/apierr"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/envutil"
	"github.com/yungbote/cibics-tracking-backend/internal/realtime"
	"github.com/yungbote/cibics-tracking-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *http.Server
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	dbService    *db.Service
	shutdownOtel func(context.Context) error
	cancel       context.CancelFunc
}

// New builds the core stack without HTTP. The import CLI stops here.
func New(ctx context.Context) (*App, error) {
	LoadDotEnv()
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	shutdownOtel := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(log)

	dbs, err := db.Open(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbs.DB()

	ssehub := realtime.NewSSEHub(log)

	clientset, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clientset, ssehub)
	if err != nil {
		clientset.Close()
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Clients:      clientset,
		SSEHub:       ssehub,
		Metrics:      metrics,
		dbService:    dbs,
		shutdownOtel: shutdownOtel,
	}
	if err := a.seed(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// NewServer builds the full API application.
func NewServer(ctx context.Context) (*App, error) {
	a, err := New(ctx)
	if err != nil {
		return nil, err
	}
	handlerset := wireHandlers(a.DB, a.Log, a.Cfg, a.Services, a.SSEHub)
	middleware := wireMiddleware(a.Log, a.Services)
	a.Server = wireServer(a.Log, a.Cfg, handlerset, middleware, a.Metrics)
	return a, nil
}

// seed creates the default stages and, on an empty install, the configured
// super admin.
func (a *App) seed(ctx context.Context) error {
	if err := a.Services.Stage.EnsureDefaultStages(dbctx.Context{Ctx: ctx}); err != nil {
		return fmt.Errorf("seed default stages: %w", err)
	}
	if a.Cfg.DefaultSuperAdminEmail == "" || a.Cfg.DefaultSuperAdminPassword == "" {
		return nil
	}
	u, err := a.Services.Auth.Bootstrap(ctx, services.BootstrapInput{
		FullName: a.Cfg.DefaultSuperAdminName,
		Email:    a.Cfg.DefaultSuperAdminEmail,
		Password: a.Cfg.DefaultSuperAdminPassword,
	})
	if err != nil {
		if ae, ok := apierr.As(err); ok && ae.Code == "already_bootstrapped" {
			return nil
		}
		return fmt.Errorf("seed super admin: %w", err)
	}
	a.Log.Info("Created default super admin", "user_id", u.ID)
	return nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.Services.Alert.StartForwarding(ctx); err != nil {
		a.Log.Warn("Alert forwarding unavailable", "error", err)
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartDBCollector(ctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Cfg.Redis.Addr)
}

func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Listening", "address", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.shutdownOtel != nil {
		_ = a.shutdownOtel(context.Background())
	}
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
