package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/cibics-tracking-backend/internal/data/repos"
	types "github.com/yungbote/cibics-tracking-backend/internal/domain"
	"github.com/yungbote/cibics-tracking-backend/internal/observability"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/dbctx"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/pointers"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/sendgrid"
	"github.com/yungbote/cibics-tracking-backend/internal/realtime"
	"github.com/yungbote/cibics-tracking-backend/internal/realtime/bus"
)

type RecordAlert struct {
	RecordID    uuid.UUID  `json:"record_id"`
	ShortName   string     `json:"short_name,omitempty"`
	ClientEmail string     `json:"client_email,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
	ActorID     uuid.UUID  `json:"actor_id"`
	At          time.Time  `json:"at"`
}

type AlertService interface {
	// StartForwarding relays bus messages into the local SSE hub.
	StartForwarding(ctx context.Context) error
	EmailCaptured(ctx context.Context, rec *types.Record, actorID uuid.UUID)
	AlertCleared(ctx context.Context, rec *types.Record, actorID uuid.UUID)
	ImportCommitted(ctx context.Context, res *CommitResult)
}

type alertService struct {
	log      *logger.Logger
	userRepo repos.UserRepo
	bus      bus.Bus
	hub      *realtime.SSEHub
	mail     sendgrid.Client
}

// NewAlertService wires alert fanout. mail may be nil, in which case no
// email is sent.
func NewAlertService(log *logger.Logger, userRepo repos.UserRepo, b bus.Bus, hub *realtime.SSEHub, mail sendgrid.Client) AlertService {
	return &alertService{
		log:      log.With("service", "AlertService"),
		userRepo: userRepo,
		bus:      b,
		hub:      hub,
		mail:     mail,
	}
}

func (s *alertService) StartForwarding(ctx context.Context) error {
	if s.bus == nil || s.hub == nil {
		return nil
	}
	return s.bus.StartForwarder(ctx, s.hub.Broadcast)
}

func (s *alertService) publish(ctx context.Context, msg realtime.SSEMessage) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, msg); err != nil {
		s.log.Warn("Publishing alert failed", "event", msg.Event, "channel", msg.Channel, "error", err)
		return
	}
	observability.Current().IncAlert(string(msg.Event), msg.Channel)
}

func (s *alertService) EmailCaptured(ctx context.Context, rec *types.Record, actorID uuid.UUID) {
	alert := RecordAlert{
		RecordID:    rec.ID,
		ShortName:   pointers.Deref(rec.ShortName),
		ClientEmail: pointers.Deref(rec.ClientEmail),
		AssigneeID:  rec.AssigneeID,
		ActorID:     actorID,
		At:          time.Now().UTC(),
	}
	s.publish(ctx, realtime.SSEMessage{Channel: realtime.AlertsChannel, Event: realtime.SSEEventRecordEmailCaptured, Data: alert})
	s.sendEmail(ctx, rec)
}

func (s *alertService) AlertCleared(ctx context.Context, rec *types.Record, actorID uuid.UUID) {
	s.publish(ctx, realtime.SSEMessage{
		Channel: realtime.AlertsChannel,
		Event:   realtime.SSEEventRecordAlertCleared,
		Data:    RecordAlert{RecordID: rec.ID, ActorID: actorID, At: time.Now().UTC()},
	})
}

func (s *alertService) ImportCommitted(ctx context.Context, res *CommitResult) {
	s.publish(ctx, realtime.SSEMessage{Channel: realtime.AlertsChannel, Event: realtime.SSEEventImportCommitted, Data: res})
}

func (s *alertService) sendEmail(ctx context.Context, rec *types.Record) {
	if s.mail == nil {
		return
	}
	recipients, err := s.userRepo.ListAlertRecipients(dbctx.Context{Ctx: ctx})
	if err != nil {
		s.log.Warn("Loading alert recipients failed", "record_id", rec.ID, "error", err)
		return
	}
	to := make([]sendgrid.EmailAddress, 0, len(recipients))
	for _, u := range recipients {
		if u.Role == types.RoleAssignee && (rec.AssigneeID == nil || *rec.AssigneeID != u.ID) {
			continue
		}
		to = append(to, sendgrid.EmailAddress{Email: u.Email, Name: u.FullName})
	}
	if len(to) == 0 {
		return
	}

	name := pointers.Deref(rec.ShortName)
	if name == "" {
		name = rec.ID.String()
	}
	body := fmt.Sprintf("Client email captured for %s.\n\nSite: %s\nState: %s\nClient email: %s\n",
		name,
		strings.TrimSpace(pointers.Deref(rec.SiteAddress)),
		pointers.Deref(rec.State),
		pointers.Deref(rec.ClientEmail),
	)
	if _, err := s.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:         to[:1],
		BCC:        to[1:],
		Subject:    "Client email captured: " + name,
		Text:       body,
		Categories: []string{"email-captured"},
	}); err != nil {
		s.log.Warn("Sending alert email failed", "record_id", rec.ID, "error", err)
		return
	}
	observability.Current().IncAlert(string(realtime.SSEEventRecordEmailCaptured), "email")
}
