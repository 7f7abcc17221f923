package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cibics-tracking-backend/internal/http/response"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/apierr"
	"github.com/yungbote/cibics-tracking-backend/internal/services"
)

type StageHandler struct {
	stageService services.StageService
}

func NewStageHandler(stageService services.StageService) *StageHandler {
	return &StageHandler{stageService: stageService}
}

func (h *StageHandler) List(c *gin.Context) {
	list := h.stageService.ListActive
	if b := queryBool(c, "include_inactive"); b != nil && *b {
		list = h.stageService.ListAll
	}
	stages, err := list(requestDBC(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stages": stages})
}

func (h *StageHandler) Create(c *gin.Context) {
	var req services.CreateStageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	actor := actorID(c)
	if actor == nil {
		response.RespondAPIError(c, apierr.Unauthorized("not_authenticated", "not authenticated"))
		return
	}
	stage, backfilled, err := h.stageService.CreateStage(requestDBC(c), req, *actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"stage": stage, "record_stages_created": backfilled})
}

func (h *StageHandler) Update(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var req services.UpdateStageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	actor := actorID(c)
	if actor == nil {
		response.RespondAPIError(c, apierr.Unauthorized("not_authenticated", "not authenticated"))
		return
	}
	stage, backfilled, err := h.stageService.UpdateStage(requestDBC(c), id, req, *actor)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stage": stage, "record_stages_created": backfilled})
}
