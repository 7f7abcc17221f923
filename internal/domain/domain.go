package domain

import (
	"github.com/yungbote/cibics-tracking-backend/internal/domain/records"
	"github.com/yungbote/cibics-tracking-backend/internal/domain/user"
)

type (
	User = user.User
	Role = user.Role

	Record          = records.Record
	StageDefinition = records.StageDefinition
	RecordStage     = records.RecordStage
	RecordUpdateLog = records.RecordUpdateLog
	ImportRun       = records.ImportRun
)

const (
	RoleSuperAdmin = user.RoleSuperAdmin
	RoleAssignee   = user.RoleAssignee
	RoleEmailTeam  = user.RoleEmailTeam

	StatusNew           = records.StatusNew
	StatusAssigned      = records.StatusAssigned
	StatusEmailCaptured = records.StatusEmailCaptured
	StatusPOReceived    = records.StatusPOReceived

	ImportModeInsertOnly = records.ImportModeInsertOnly
	ImportModeOverwrite  = records.ImportModeOverwrite
)

var NameKey = user.NameKey
