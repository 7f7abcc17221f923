package app

import (
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/cibics-tracking-backend/internal/clients/archive"
	"github.com/yungbote/cibics-tracking-backend/internal/data/db"
	"github.com/yungbote/cibics-tracking-backend/internal/observability"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/envutil"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/sendgrid"
	"github.com/yungbote/cibics-tracking-backend/internal/realtime/bus"
)

const defaultJWTSecret = "defaultsecret"

type Config struct {
	Port           string
	AllowedOrigins []string

	DB db.Config

	JWTSecretKey   string
	AccessTokenTTL time.Duration
	BcryptCost     int

	DefaultSuperAdminName     string
	DefaultSuperAdminEmail    string
	DefaultSuperAdminPassword string

	DefaultAssigneePassword string
	AssigneeEmailDomain     string

	ImportPreviewLimit     int
	ImportMaxUploadBytes   int64
	ImportTerminalStatuses []string

	Archive  archive.Config
	Redis    bus.RedisConfig
	SendGrid sendgrid.Config
	Otel     observability.OtelConfig

	MetricsAddr string
}

// LoadDotEnv reads .env.local then .env when present. Variables already set
// in the process environment win.
func LoadDotEnv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:           envutil.String("PORT", "8080"),
		AllowedOrigins: envutil.CSV("ALLOWED_ORIGINS", nil),
		DB: db.Config{
			Driver:           envutil.String("DB_DRIVER", "postgres"),
			PostgresHost:     envutil.String("POSTGRES_HOST", "localhost"),
			PostgresPort:     envutil.String("POSTGRES_PORT", "5432"),
			PostgresUser:     envutil.String("POSTGRES_USER", "postgres"),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", ""),
			PostgresName:     envutil.String("POSTGRES_NAME", "cibics_tracking"),
			PostgresSSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath:       envutil.String("SQLITE_PATH", "cibics_tracking.db"),
			SlowThreshold:    envutil.Duration("DB_SLOW_THRESHOLD", 500*time.Millisecond),
		},
		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", defaultJWTSecret),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", 12*time.Hour),
		BcryptCost:     envutil.Int("BCRYPT_COST", 0),

		DefaultSuperAdminName:     envutil.String("DEFAULT_SUPER_ADMIN_NAME", "Super Admin"),
		DefaultSuperAdminEmail:    envutil.String("DEFAULT_SUPER_ADMIN_EMAIL", ""),
		DefaultSuperAdminPassword: envutil.String("DEFAULT_SUPER_ADMIN_PASSWORD", ""),

		DefaultAssigneePassword: envutil.String("DEFAULT_ASSIGNEE_PASSWORD", "changeme123"),
		AssigneeEmailDomain:     envutil.String("ASSIGNEE_EMAIL_DOMAIN", "assignee.local"),

		ImportPreviewLimit:     envutil.Int("IMPORT_PREVIEW_LIMIT", 50),
		ImportMaxUploadBytes:   int64(envutil.Int("IMPORT_MAX_UPLOAD_MB", 10)) << 20,
		ImportTerminalStatuses: envutil.CSV("IMPORT_TERMINAL_STATUSES", nil),

		Archive: archive.Config{
			Bucket:          envutil.String("IMPORT_ARCHIVE_BUCKET", ""),
			Prefix:          envutil.String("IMPORT_ARCHIVE_PREFIX", "imports"),
			Dir:             envutil.String("IMPORT_ARCHIVE_DIR", ""),
			CredentialsJSON: envutil.String("GCP_CREDENTIALS_JSON", ""),
			CredentialsFile: envutil.String("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Redis: bus.RedisConfig{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
			Channel:  envutil.String("REDIS_CHANNEL", "cibics:alerts"),
		},
		SendGrid: sendgrid.ConfigFromEnv(),
		Otel:     observability.OtelConfigFromEnv(),

		MetricsAddr: envutil.String("METRICS_ADDR", ":9090"),
	}
	if cfg.JWTSecretKey == defaultJWTSecret && log != nil {
		log.Warn("JWT_SECRET_KEY not set; using the development default")
	}
	return cfg
}
