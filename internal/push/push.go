// Package push delivers fired reminders to registered remote targets.
// Each subscription names a transport; transports are best-effort and a
// failed target never affects the others.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stride-fit/stride/internal/db"
)

// ErrTargetGone indicates the subscription's target no longer exists
// (disabled platform endpoint, relay that answered 404/410). The caller
// prunes the subscription instead of retrying forever.
var ErrTargetGone = errors.New("push target gone")

// Notice is the wire payload delivered to a push target.
type Notice struct {
	ReminderID uuid.UUID       `json:"reminder_id"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Tag        string          `json:"tag"`
	Category   string          `json:"category"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	FiredAt    time.Time       `json:"fired_at"`
}

// NoticeFor builds the push payload for a fired reminder. The tag is the
// reminder id so clients can collapse repeat occurrences of the same
// reminder into one visible notification.
func NoticeFor(rem *db.Reminder, firedAt time.Time) Notice {
	return Notice{
		ReminderID: rem.ID,
		Title:      rem.Title,
		Body:       rem.Body,
		Tag:        rem.ID.String(),
		Category:   rem.Category,
		Payload:    rem.Payload,
		FiredAt:    firedAt,
	}
}

// Transport sends a notice to one kind of subscription target.
type Transport interface {
	Deliver(ctx context.Context, sub *db.PushSubscription, n Notice) error
	Kind() string
}
