package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/ctxutil"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/apierr"
)

type DashboardService interface {
	Summary(dbc dbctx.Context) (*repos.RecordSummary, error)
	ByStatus(dbc dbctx.Context) ([]repos.StatusCount, error)
	ByAssignee(dbc dbctx.Context) ([]repos.AssigneeCount, error)
}

type dashboardService struct {
	log        *logger.Logger
	recordRepo repos.RecordRepo
}

func NewDashboardService(log *logger.Logger, recordRepo repos.RecordRepo) DashboardService {
	return &dashboardService{
		log:        log.With("service", "DashboardService"),
		recordRepo: recordRepo,
	}
}

// scope limits assignees to their own records.
func scope(rd *ctxutil.RequestData) *uuid.UUID {
	if types.Role(rd.Role) != types.RoleAssignee {
		return nil
	}
	id := rd.UserID
	return &id
}

func (s *dashboardService) Summary(dbc dbctx.Context) (*repos.RecordSummary, error) {
	rd, err := requestActor(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	return s.recordRepo.Summarize(dbc, scope(rd))
}

func (s *dashboardService) ByStatus(dbc dbctx.Context) ([]repos.StatusCount, error) {
	rd, err := requestActor(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	return s.recordRepo.CountByStatus(dbc, scope(rd))
}

func (s *dashboardService) ByAssignee(dbc dbctx.Context) ([]repos.AssigneeCount, error) {
	rd, err := requestActor(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	if !hasRole(rd, types.RoleSuperAdmin, types.RoleEmailTeam) {
		return nil, apierr.Forbidden("forbidden", "not allowed to view assignee breakdown")
	}
	return s.recordRepo.CountByAssignee(dbc)
}
