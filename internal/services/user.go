package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/data/db"
	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/apierr"
)

type CreateUserInput struct {
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	Password     string     `json:"password"`
	Role         types.Role `json:"role"`
	ReceiveAlert *bool      `json:"receive_alert"`
}

type UpdateUserInput struct {
	FullName     *string     `json:"full_name"`
	Role         *types.Role `json:"role"`
	IsActive     *bool       `json:"is_active"`
	ReceiveAlert *bool       `json:"receive_alert"`
	Password     *string     `json:"password"`
}

type UpdateSelfInput struct {
	FullName        *string `json:"full_name"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     *string `json:"new_password"`
}

type UserService interface {
	GetMe(dbc dbctx.Context) (*types.User, error)
	List(dbc dbctx.Context, includeInactive bool) ([]*types.User, error)
	ListAssignees(dbc dbctx.Context) ([]*types.User, error)
	Create(ctx context.Context, in CreateUserInput) (*types.User, error)
	Update(ctx context.Context, userID uuid.UUID, in UpdateUserInput) (*types.User, error)
	UpdateSelf(ctx context.Context, in UpdateSelfInput) (*types.User, error)
	// Delete soft-deletes the user and unassigns their records.
	Delete(ctx context.Context, userID uuid.UUID) error
}

type userService struct {
	db         *gorm.DB
	log        *logger.Logger
	userRepo   repos.UserRepo
	recordRepo repos.RecordRepo
	bcryptCost int
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, recordRepo repos.RecordRepo, bcryptCost int) UserService {
	return &userService{
		db:         db,
		log:        log.With("service", "UserService"),
		userRepo:   userRepo,
		recordRepo: recordRepo,
		bcryptCost: bcryptCost,
	}
}

func (us *userService) GetMe(dbc dbctx.Context) (*types.User, error) {
	rd, err := requestActor(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	return us.get(dbc, rd.UserID)
}

func (us *userService) get(dbc dbctx.Context, userID uuid.UUID) (*types.User, error) {
	found, err := us.userRepo.GetByIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, apierr.NotFound("user_not_found", "user not found")
	}
	return found[0], nil
}

func (us *userService) List(dbc dbctx.Context, includeInactive bool) ([]*types.User, error) {
	return us.userRepo.List(dbc, repos.UserListFilter{ActiveOnly: !includeInactive})
}

func (us *userService) ListAssignees(dbc dbctx.Context) ([]*types.User, error) {
	return us.userRepo.List(dbc, repos.UserListFilter{
		Roles:      []types.Role{types.RoleAssignee, types.RoleSuperAdmin},
		ActiveOnly: true,
	})
}

func (us *userService) Create(ctx context.Context, in CreateUserInput) (*types.User, error) {
	rd, err := requestActor(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, apierr.BadRequest("invalid_user", "full_name and a valid email are required")
	}
	if !in.Role.Valid() {
		return nil, apierr.BadRequest("invalid_role", "unknown role %q", in.Role)
	}
	if len(in.Password) < minPasswordLength {
		return nil, apierr.BadRequest("weak_password", "password must be at least %d characters", minPasswordLength)
	}
	hash, err := hashPassword(in.Password, us.bcryptCost)
	if err != nil {
		return nil, err
	}
	receive := in.Role != types.RoleAssignee
	if in.ReceiveAlert != nil {
		receive = *in.ReceiveAlert
	}

	var created *types.User
	err = us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		exists, err := us.userRepo.EmailExists(dbc, email)
		if err != nil {
			return err
		}
		if exists {
			return apierr.Conflict("email_taken", "email %s is already registered", email)
		}
		actor := rd.UserID
		users, err := us.userRepo.Create(dbc, []*types.User{{
			FullName:     name,
			Email:        email,
			Password:     hash,
			Role:         in.Role,
			ReceiveAlert: receive,
			IsActive:     true,
			CreatedBy:    &actor,
		}})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return apierr.Conflict("email_taken", "email %s is already registered", email)
			}
			return err
		}
		created = users[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	us.log.Info("User created", "user_id", created.ID, "role", created.Role, "actor_id", rd.UserID)
	return created, nil
}

func (us *userService) Update(ctx context.Context, userID uuid.UUID, in UpdateUserInput) (*types.User, error) {
	rd, err := requestActor(ctx)
	if err != nil {
		return nil, err
	}
	var out *types.User
	err = us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		target, err := us.get(dbc, userID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if in.FullName != nil {
			name := strings.TrimSpace(*in.FullName)
			if name == "" {
				return apierr.BadRequest("invalid_user", "full_name cannot be empty")
			}
			updates["full_name"] = name
		}
		if in.Role != nil {
			if !in.Role.Valid() {
				return apierr.BadRequest("invalid_role", "unknown role %q", *in.Role)
			}
			updates["role"] = *in.Role
		}
		if in.IsActive != nil {
			if !*in.IsActive && target.ID == rd.UserID {
				return apierr.BadRequest("self_deactivation", "you cannot deactivate yourself")
			}
			updates["is_active"] = *in.IsActive
		}
		if in.ReceiveAlert != nil {
			updates["receive_alert"] = *in.ReceiveAlert
		}
		if in.Password != nil {
			if len(*in.Password) < minPasswordLength {
				return apierr.BadRequest("weak_password", "password must be at least %d characters", minPasswordLength)
			}
			hash, err := hashPassword(*in.Password, us.bcryptCost)
			if err != nil {
				return err
			}
			updates["password"] = hash
		}

		demoted := in.Role != nil && *in.Role != types.RoleSuperAdmin
		deactivated := in.IsActive != nil && !*in.IsActive
		if target.Role == types.RoleSuperAdmin && target.IsActive && (demoted || deactivated) {
			if err := us.guardLastSuperAdmin(dbc); err != nil {
				return err
			}
		}
		if err := us.userRepo.UpdateFields(dbc, userID, updates); err != nil {
			return err
		}
		out, err = us.get(dbc, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	us.log.Info("User updated", "user_id", userID, "actor_id", rd.UserID)
	return out, nil
}

func (us *userService) UpdateSelf(ctx context.Context, in UpdateSelfInput) (*types.User, error) {
	rd, err := requestActor(ctx)
	if err != nil {
		return nil, err
	}
	var out *types.User
	err = us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		me, err := us.get(dbc, rd.UserID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if in.FullName != nil {
			name := strings.TrimSpace(*in.FullName)
			if name == "" {
				return apierr.BadRequest("invalid_user", "full_name cannot be empty")
			}
			updates["full_name"] = name
		}
		if in.NewPassword != nil {
			if err := bcrypt.CompareHashAndPassword([]byte(me.Password), []byte(in.CurrentPassword)); err != nil {
				return apierr.BadRequest("invalid_password", "current password is incorrect")
			}
			if len(*in.NewPassword) < minPasswordLength {
				return apierr.BadRequest("weak_password", "password must be at least %d characters", minPasswordLength)
			}
			hash, err := hashPassword(*in.NewPassword, us.bcryptCost)
			if err != nil {
				return err
			}
			updates["password"] = hash
		}
		if err := us.userRepo.UpdateFields(dbc, rd.UserID, updates); err != nil {
			return err
		}
		out, err = us.get(dbc, rd.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (us *userService) Delete(ctx context.Context, userID uuid.UUID) error {
	rd, err := requestActor(ctx)
	if err != nil {
		return err
	}
	if userID == rd.UserID {
		return apierr.BadRequest("self_delete", "you cannot delete yourself")
	}
	var unassigned int64
	err = us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		target, err := us.get(dbc, userID)
		if err != nil {
			return err
		}
		if target.Role == types.RoleSuperAdmin && target.IsActive {
			if err := us.guardLastSuperAdmin(dbc); err != nil {
				return err
			}
		}
		unassigned, err = us.recordRepo.UnassignUser(dbc, userID, rd.UserID)
		if err != nil {
			return err
		}
		return us.userRepo.SoftDelete(dbc, userID, rd.UserID)
	})
	if err != nil {
		return err
	}
	us.log.Info("User deleted", "user_id", userID, "actor_id", rd.UserID, "records_unassigned", unassigned)
	return nil
}

func (us *userService) guardLastSuperAdmin(dbc dbctx.Context) error {
	n, err := us.userRepo.CountActiveByRole(dbc, types.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return apierr.Conflict("last_super_admin", "at least one active super admin must remain")
	}
	return nil
}
