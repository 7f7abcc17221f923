package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/cibics-tracking-backend/internal/http/response"
	"github.com/yungbote/cibics-tracking-backend/internal/services"
)

type DashboardHandler struct {
	dashboardService services.DashboardService
}

func NewDashboardHandler(dashboardService services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) Summary(c *gin.Context) {
	sum, err := h.dashboardService.Summary(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, sum)
}

func (h *DashboardHandler) ByStatus(c *gin.Context) {
	rows, err := h.dashboardService.ByStatus(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"items": rows})
}

func (h *DashboardHandler) ByAssignee(c *gin.Context) {
	rows, err := h.dashboardService.ByAssignee(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"items": rows})
}
