package records

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/cibics-tracking-backend/internal/domain/user"
)

const (
	StatusNew           = "NEW"
	StatusAssigned      = "ASSIGNED"
	StatusEmailCaptured = "EMAIL_CAPTURED"
	StatusPOReceived    = "PO_RECEIVED"
)

// Record is one customer site tracked through the stage pipeline.
type Record struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourceRow *int      `gorm:"column:source_row" json:"source_row,omitempty"`

	SlNo                  *string `gorm:"column:sl_no;index" json:"sl_no"`
	ListType              *string `gorm:"column:list_type" json:"list_type"`
	RecordType            *string `gorm:"column:type" json:"type"`
	CustodianCode         *string `gorm:"column:custodian_code;index" json:"custodian_code"`
	UnloCode              *string `gorm:"column:unlo_code;index" json:"unlo_code"`
	ShortName             *string `gorm:"column:short_name" json:"short_name"`
	CustodianOrganization *string `gorm:"column:custodian_organization" json:"custodian_organization"`
	State                 *string `gorm:"column:state;index" json:"state"`
	SiteAddress           *string `gorm:"column:site_address" json:"site_address"`
	City                  *string `gorm:"column:city" json:"city"`
	Pincode               *string `gorm:"column:pincode" json:"pincode"`
	CategoryOfSite        *string `gorm:"column:category_of_site" json:"category_of_site"`
	ContactPersonName     *string `gorm:"column:contact_person_name" json:"contact_person_name"`
	ContactPersonNumber   *string `gorm:"column:contact_person_number" json:"contact_person_number"`
	CustomerName          *string `gorm:"column:customer_name" json:"customer_name"`
	MobileNo              *string `gorm:"column:mobile_no" json:"mobile_no"`
	ClientEmail           *string `gorm:"column:client_email;index" json:"client_email"`

	// NULL when every key field is empty; such rows never collide.
	Fingerprint *string `gorm:"column:fingerprint;uniqueIndex:idx_record_fingerprint" json:"-"`

	StatusRaw        *string    `gorm:"column:status_raw" json:"status_raw"`
	Status           string     `gorm:"not null;index;column:status" json:"status"`
	AssigneeID       *uuid.UUID `gorm:"type:uuid;index;column:assignee_id" json:"assignee_id"`
	AssigneeNameHint *string    `gorm:"column:assignee_name_hint" json:"assignee_name_hint"`

	EmailAlertPending bool       `gorm:"not null;index;column:email_alert_pending" json:"email_alert_pending"`
	LastEmailAlertAt  *time.Time `gorm:"column:last_email_alert_at" json:"last_email_alert_at"`
	Notes             *string    `gorm:"column:notes" json:"notes"`

	CreatedBy *uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid;column:updated_by" json:"updated_by,omitempty"`
	DeletedBy *uuid.UUID `gorm:"type:uuid;column:deleted_by" json:"deleted_by,omitempty"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Assignee *user.User    `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Stages   []RecordStage `gorm:"foreignKey:RecordID" json:"stages,omitempty"`
}

func (Record) TableName() string { return "record" }

func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
