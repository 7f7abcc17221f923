package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/ctxutil"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/apierr"
)

const minPasswordLength = 8

type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	BcryptCost int
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        *types.User `json:"user"`
}

type BootstrapInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// Bootstrap creates the first super admin; it refuses once any user exists.
	Bootstrap(ctx context.Context, in BootstrapInput) (*types.User, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	cfg      AuthConfig
}

func NewAuthService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, cfg AuthConfig) AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 12 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &authService{
		db:       db,
		log:      log.With("service", "AuthService"),
		userRepo: userRepo,
		cfg:      cfg,
	}
}

func (as *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apierr.BadRequest("invalid_credentials", "email and password are required")
	}
	user, err := as.userRepo.GetByEmail(dbctx.Context{Ctx: ctx}, email)
	if err != nil {
		return nil, fmt.Errorf("load user by email: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, apierr.Unauthorized("invalid_credentials", "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apierr.Unauthorized("invalid_credentials", "invalid email or password")
	}
	tok, err := as.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	as.log.Info("User logged in", "user_id", user.ID, "role", user.Role)
	return &LoginResult{
		AccessToken: tok,
		TokenType:   "bearer",
		ExpiresIn:   int64(as.cfg.AccessTTL.Seconds()),
		User:        user,
	}, nil
}

func (as *authService) Bootstrap(ctx context.Context, in BootstrapInput) (*types.User, error) {
	name := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" {
		return nil, apierr.BadRequest("invalid_user", "full_name and email are required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apierr.BadRequest("weak_password", "password must be at least %d characters", minPasswordLength)
	}
	hash, err := hashPassword(in.Password, as.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	var created *types.User
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		count, err := as.userRepo.CountAll(dbc)
		if err != nil {
			return err
		}
		if count > 0 {
			return apierr.Conflict("already_bootstrapped", "users already exist")
		}
		users, err := as.userRepo.Create(dbc, []*types.User{{
			FullName:     name,
			Email:        email,
			Password:     hash,
			Role:         types.RoleSuperAdmin,
			ReceiveAlert: true,
			IsActive:     true,
		}})
		if err != nil {
			return err
		}
		created = users[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	as.log.Info("Bootstrapped super admin", "user_id", created.ID)
	return created, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.cfg.JWTSecret))
}

// SetContextFromToken validates the token and attaches the caller. The role
// is reloaded from the user row so demotions apply to live tokens.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, apierr.Unauthorized("missing_token", "missing bearer token")
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ctx, apierr.Unauthorized("invalid_token", "parse token: %v", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, apierr.Unauthorized("invalid_token", "invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthorized("invalid_token", "invalid user id in token")
	}
	users, err := as.userRepo.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{userID})
	if err != nil {
		return ctx, fmt.Errorf("load token user: %w", err)
	}
	if len(users) == 0 || !users[0].IsActive {
		return ctx, apierr.Unauthorized("inactive_user", "user is inactive or deleted")
	}
	rd := &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        string(users[0].Role),
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.cfg.AccessTTL
}

func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// requestActor returns the authenticated caller or a 401.
func requestActor(ctx context.Context) (*ctxutil.RequestData, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("not_authenticated", "not authenticated")
	}
	return rd, nil
}

func hasRole(rd *ctxutil.RequestData, roles ...types.Role) bool {
	for _, r := range roles {
		if types.Role(rd.Role) == r {
			return true
		}
	}
	return false
}
