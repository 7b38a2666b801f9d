package schedule

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bootstrapper reconciles durable state into armed timers when a session
// starts. It is the single re-entry point after any reload: timer handles
// from the previous process are gone, so everything active is re-derived
// from the store.
type Bootstrapper struct {
	store  Store
	sched  *Scheduler
	logger *zap.Logger

	mu      sync.Mutex
	started map[uuid.UUID]bool
}

// NewBootstrapper creates the session bootstrap routine.
func NewBootstrapper(store Store, sched *Scheduler, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		store:   store,
		sched:   sched,
		logger:  logger,
		started: map[uuid.UUID]bool{},
	}
}

// Run arms every active reminder of the owner, ordered by fire_at.
// It is guarded against re-entry: a second call for the same session is a
// no-op, so duplicate timers cannot be armed by racing initializers.
// Returns how many reminders ended up armed.
func (b *Bootstrapper) Run(ctx context.Context, ownerID uuid.UUID) (int, error) {
	b.mu.Lock()
	if b.started[ownerID] {
		b.mu.Unlock()
		b.logger.Debug("bootstrap already ran for this session",
			zap.String("owner_id", ownerID.String()),
		)
		return 0, nil
	}
	b.started[ownerID] = true
	b.mu.Unlock()

	reminders, err := b.store.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		// Allow a retry: nothing was armed.
		b.Reset(ownerID)
		return 0, err
	}

	armed := 0
	for _, rem := range reminders {
		if err := b.sched.Arm(ctx, rem); err != nil {
			b.logger.Error("failed to arm reminder at bootstrap",
				zap.Error(err),
				zap.String("reminder_id", rem.ID.String()),
			)
			continue
		}
		// Arm may have marked an overdue one-off missed instead of arming.
		if rem.Active {
			armed++
		}
	}

	b.logger.Info("session bootstrap complete",
		zap.String("owner_id", ownerID.String()),
		zap.Int("active", len(reminders)),
		zap.Int("armed", armed),
	)

	return armed, nil
}

// Reset clears the re-entry guard for an owner, typically at session end,
// so the next login reconciles again.
func (b *Bootstrapper) Reset(ownerID uuid.UUID) {
	b.mu.Lock()
	delete(b.started, ownerID)
	b.mu.Unlock()
}
