package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/cibics-tracking-backend/internal/http/response"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/apierr"
	"github.com/yungbote/cibics-tracking-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// AlertStream serves the alerts channel and the caller's own channel until
// the client disconnects.
func (h *RealtimeHandler) AlertStream(c *gin.Context) {
	actor := actorID(c)
	if actor == nil {
		response.RespondAPIError(c, apierr.Unauthorized("not_authenticated", "not authenticated"))
		return
	}
	client := h.hub.NewSSEClient(*actor)
	h.hub.AddChannel(client, realtime.UserChannel(*actor))
	h.hub.AddChannel(client, realtime.AlertsChannel)
	h.log.Debug("Alert stream open", "user_id", actor.String(), "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("Alert stream closed", "user_id", actor.String(), "client_id", client.ID)
}
