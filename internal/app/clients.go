package app

import (
	"context"
	"fmt"

	"github.com/yungbote/cibics-tracking-backend/internal/clients/archive"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/platform/sendgrid"
	"github.com/yungbote/cibics-tracking-backend/internal/realtime/bus"
)

type Clients struct {
	Bus      bus.Bus
	Archive  archive.Archive
	SendGrid sendgrid.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Realtime bus (redis when configured)
	b, err := bus.New(cfg.Redis, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init alert bus: %w", err)
	}

	// Import archive (gcs, local dir or nop)
	arc, err := archive.New(ctx, cfg.Archive, log)
	if err != nil {
		_ = b.Close()
		return Clients{}, fmt.Errorf("init import archive: %w", err)
	}

	// SendGrid
	var mail sendgrid.Client
	if cfg.SendGrid.Enabled() {
		mail, err = sendgrid.New(log, cfg.SendGrid)
		if err != nil {
			_ = b.Close()
			return Clients{}, fmt.Errorf("init sendgrid client: %w", err)
		}
	} else {
		log.Info("SendGrid not configured; alert emails disabled")
	}

	return Clients{Bus: b, Archive: arc, SendGrid: mail}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
}
