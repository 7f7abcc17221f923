package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	"github.com/yungbote/cibics-tracking-backend/internal/http/response"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/apierr"
	"github.com/yungbote/cibics-tracking-backend/internal/services"
)

type RecordHandler struct {
	recordService services.RecordService
}

func NewRecordHandler(recordService services.RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

// List filters: page, page_size, assignee_id, status, state,
// has_client_email, alert_pending, q.
func (h *RecordHandler) List(c *gin.Context) {
	filter := repos.RecordListFilter{
		Status:         strings.TrimSpace(c.Query("status")),
		State:          strings.TrimSpace(c.Query("state")),
		HasClientEmail: queryBool(c, "has_client_email"),
		AlertPending:   queryBool(c, "alert_pending"),
		Query:          strings.TrimSpace(c.Query("q")),
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "page_size", 50),
	}
	if raw := strings.TrimSpace(c.Query("assignee_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondAPIError(c, apierr.BadRequest("invalid_assignee", "invalid assignee_id"))
			return
		}
		filter.AssigneeID = &id
	}
	page, err := h.recordService.List(requestDBC(c), filter)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, page)
}

func (h *RecordHandler) Get(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rec, err := h.recordService.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"record": rec})
}

func (h *RecordHandler) Patch(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req services.RecordPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.recordService.Patch(c.Request.Context(), id, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"record": rec})
}

func (h *RecordHandler) Delete(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if err := h.recordService.Delete(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

func (h *RecordHandler) AcknowledgeAlert(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rec, err := h.recordService.AcknowledgeAlert(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"record": rec})
}

func (h *RecordHandler) History(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	logs, err := h.recordService.History(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"updates": logs})
}
