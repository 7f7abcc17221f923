package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

type ListFilter struct {
	Roles      []types.Role
	ActiveOnly bool
}

type UserRepo interface {
	Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error)
	GetByIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.User, error)
	EmailExists(dbc dbctx.Context, email string) (bool, error)
	GetByNameKeys(dbc dbctx.Context, nameKeys []string, roles []types.Role) ([]*types.User, error)
	List(dbc dbctx.Context, filter ListFilter) ([]*types.User, error)
	ListAlertRecipients(dbc dbctx.Context) ([]*types.User, error)
	CountAll(dbc dbctx.Context) (int64, error)
	CountActiveByRole(dbc dbctx.Context, role types.Role) (int64, error)
	UpdateFields(dbc dbctx.Context, userID uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, userID uuid.UUID, actorID uuid.UUID) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (ur *userRepo) Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	if len(users) == 0 {
		return []*types.User{}, nil
	}
	for _, u := range users {
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		u.NameKey = types.NameKey(u.FullName)
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (ur *userRepo) GetByIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	var results []*types.User
	if len(userIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var results []*types.User
	if err := transaction.WithContext(dbc.Ctx).
		Where("email = ?", email).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// EmailExists also sees soft-deleted users; their addresses stay reserved.
func (ur *userRepo) EmailExists(dbc dbctx.Context, email string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Unscoped().
		Model(&types.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (ur *userRepo) GetByNameKeys(dbc dbctx.Context, nameKeys []string, roles []types.Role) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	var results []*types.User
	if len(nameKeys) == 0 {
		return results, nil
	}
	q := transaction.WithContext(dbc.Ctx).Where("name_key IN ?", nameKeys)
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	if err := q.Order("created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) List(dbc dbctx.Context, filter ListFilter) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&types.User{})
	if len(filter.Roles) > 0 {
		q = q.Where("role IN ?", filter.Roles)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var results []*types.User
	if err := q.Order("full_name ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) ListAlertRecipients(dbc dbctx.Context) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	var results []*types.User
	if err := transaction.WithContext(dbc.Ctx).
		Where("is_active = ? AND receive_alert = ?", true, true).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) CountAll(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).Model(&types.User{}).Count(&count).Error
	return count, err
}

func (ur *userRepo) CountActiveByRole(dbc dbctx.Context, role types.Role) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.User{}).
		Where("role = ? AND is_active = ?", role, true).
		Count(&count).Error
	return count, err
}

func (ur *userRepo) UpdateFields(dbc dbctx.Context, userID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	if len(updates) == 0 {
		return nil
	}
	if name, ok := updates["full_name"].(string); ok {
		updates["name_key"] = types.NameKey(name)
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

func (ur *userRepo) SoftDelete(dbc dbctx.Context, userID uuid.UUID, actorID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"deleted_by": actorID,
			"deleted_at": time.Now().UTC(),
		}).Error
}
