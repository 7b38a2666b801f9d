package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
	"github.com/stride-fit/stride/internal/metrics"
	"github.com/stride-fit/stride/internal/push"
)

// SubscriptionStore is the slice of the repository the push channel needs.
type SubscriptionStore interface {
	ListPushSubscriptions(ctx context.Context, ownerID uuid.UUID) ([]*db.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id uuid.UUID) error
}

// PushChannel fans a fired reminder out to the owner's registered remote
// targets. One target failing never aborts the others; targets reported
// gone are pruned from the registry.
type PushChannel struct {
	store      SubscriptionStore
	transports map[string]push.Transport
	logger     *zap.Logger
}

// NewPushChannel creates the remote delivery channel over the given
// transports.
func NewPushChannel(store SubscriptionStore, logger *zap.Logger, transports ...push.Transport) *PushChannel {
	byKind := make(map[string]push.Transport, len(transports))
	for _, t := range transports {
		byKind[t.Kind()] = t
	}
	return &PushChannel{
		store:      store,
		transports: byKind,
		logger:     logger,
	}
}

// Deliver sends the notice to every subscription of the reminder's owner.
// Only a registry read failure is returned; per-target failures are logged
// and swallowed.
func (c *PushChannel) Deliver(ctx context.Context, rem *db.Reminder) error {
	subs, err := c.store.ListPushSubscriptions(ctx, rem.OwnerID)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}

	notice := push.NoticeFor(rem, time.Now())

	for _, sub := range subs {
		if sub.Transport == db.TransportEmail {
			// Email targets only receive missed-reminder notices.
			continue
		}

		transport, ok := c.transports[sub.Transport]
		if !ok {
			c.logger.Warn("no transport for push subscription",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("transport", sub.Transport),
			)
			continue
		}

		err := transport.Deliver(ctx, sub, notice)
		if err == nil {
			metrics.RecordDelivery(c.Name(), "ok")
			continue
		}

		metrics.RecordDelivery(c.Name(), "error")
		c.logger.Warn("push delivery failed",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
			zap.String("subscription_id", sub.ID.String()),
			zap.String("transport", sub.Transport),
		)

		if errors.Is(err, push.ErrTargetGone) {
			if pruneErr := c.store.DeletePushSubscription(ctx, sub.ID); pruneErr != nil {
				c.logger.Error("failed to prune dead push subscription",
					zap.Error(pruneErr),
					zap.String("subscription_id", sub.ID.String()),
				)
			}
		}
	}

	return nil
}

// Name identifies the channel in logs and metrics
func (c *PushChannel) Name() string {
	return "push"
}
