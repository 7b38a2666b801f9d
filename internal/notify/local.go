package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
	"github.com/stride-fit/stride/internal/event"
)

// LocalChannel surfaces a fired reminder in the user's current session by
// publishing it on the event hub; the session's stream subscriber renders
// it. No subscriber means no session (or notifications not permitted),
// which is a silent no-op rather than an error.
type LocalChannel struct {
	hub    *event.Hub
	logger *zap.Logger
}

// NewLocalChannel creates the in-session delivery channel
func NewLocalChannel(hub *event.Hub, logger *zap.Logger) *LocalChannel {
	return &LocalChannel{hub: hub, logger: logger}
}

// Deliver publishes the fired reminder to the owner's session listeners.
func (c *LocalChannel) Deliver(_ context.Context, rem *db.Reminder) error {
	delivered := c.hub.Publish(event.Fired{
		ReminderID: rem.ID,
		OwnerID:    rem.OwnerID,
		Title:      rem.Title,
		Body:       rem.Body,
		Category:   rem.Category,
		Payload:    rem.Payload,
	})

	c.logger.Debug("local delivery",
		zap.String("reminder_id", rem.ID.String()),
		zap.Int("listeners", delivered),
	)

	return nil
}

// Name identifies the channel in logs and metrics
func (c *LocalChannel) Name() string {
	return "local"
}
