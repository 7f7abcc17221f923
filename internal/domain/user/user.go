package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAssignee   Role = "ASSIGNEE"
	RoleEmailTeam  Role = "EMAIL_TEAM"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAssignee, RoleEmailTeam:
		return true
	default:
		return false
	}
}

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FullName     string     `gorm:"not null;column:full_name" json:"full_name"`
	NameKey      string     `gorm:"not null;index;column:name_key" json:"-"`
	Email        string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password     string     `gorm:"not null;column:password" json:"-"`
	Role         Role       `gorm:"not null;index;column:role" json:"role"`
	ReceiveAlert bool       `gorm:"not null;column:receive_alert" json:"receive_alert"`
	IsActive     bool       `gorm:"not null;index;column:is_active" json:"is_active"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
	DeletedBy    *uuid.UUID `gorm:"type:uuid;column:deleted_by" json:"deleted_by,omitempty"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.NameKey == "" {
		u.NameKey = NameKey(u.FullName)
	}
	return nil
}

// NameKey is the case and whitespace insensitive identity of a person's name.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
