// Package notify holds the delivery channels a fired reminder goes through.
// Channels are best-effort: they log their own failures and the dispatcher
// never lets one channel's error reach another.
package notify

import (
	"context"

	"github.com/stride-fit/stride/internal/db"
)

// Channel delivers one occurrence of a reminder.
type Channel interface {
	Deliver(ctx context.Context, rem *db.Reminder) error
	Name() string
}
