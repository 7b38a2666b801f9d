// Package schedule is the reminder engine: an in-memory timer registry
// (Scheduler), the timer callback that delivers and advances reminders
// (Dispatcher), and the session bootstrap that rebuilds timers from the
// store (Bootstrapper).
//
// Only fire_at and active in the store are authoritative. Timer handles
// live for one process lifetime and are rebuilt by the Bootstrapper after
// every reload; they are never persisted.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
	"github.com/stride-fit/stride/internal/metrics"
	"github.com/stride-fit/stride/internal/recurrence"
)

// Store is the durable-state surface the engine depends on.
type Store interface {
	ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*db.Reminder, error)
	UpdateFireAt(ctx context.Context, id uuid.UUID, fireAt time.Time) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Scheduler owns the id -> timer registry. At most one timer exists per
// reminder id; all registry mutations happen under one mutex.
type Scheduler struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*timerEntry
	gen    uint64

	clk    clock.Clock
	store  Store
	logger *zap.Logger

	dispatch func(ctx context.Context, rem *db.Reminder)
	onMissed func(ctx context.Context, rem *db.Reminder)
}

// timerEntry tags each registered timer with the generation it was armed
// under. A fired timer may only clear the registry slot if the slot still
// holds its own generation; otherwise a replacement was armed while the
// fire was in flight and the fired timer is stale.
type timerEntry struct {
	timer *clock.Timer
	gen   uint64
}

// NewScheduler creates an empty scheduler. Wire the fire callback with
// OnFire before arming anything.
func NewScheduler(store Store, clk clock.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		timers: map[uuid.UUID]*timerEntry{},
		clk:    clk,
		store:  store,
		logger: logger,
	}
}

// OnFire sets the callback invoked when an armed timer fires.
func (s *Scheduler) OnFire(fn func(ctx context.Context, rem *db.Reminder)) {
	s.dispatch = fn
}

// OnMissed sets the optional callback invoked when an overdue one-off is
// marked missed instead of being armed.
func (s *Scheduler) OnMissed(fn func(ctx context.Context, rem *db.Reminder)) {
	s.onMissed = fn
}

// Arm registers a single-shot timer for rem.FireAt.
//
// An overdue one-off is marked missed (deactivated, never silently fired).
// An overdue recurring reminder is caught up to its next future slot, which
// is persisted before the timer is armed. Arming an id that already has a
// timer replaces it; two live timers for one id cannot exist.
func (s *Scheduler) Arm(ctx context.Context, rem *db.Reminder) error {
	if !rem.Active {
		return fmt.Errorf("reminder %s is not active", rem.ID)
	}

	now := s.clk.Now()
	if rem.FireAt.Before(now) {
		if !rem.Repeat.Recurring() {
			return s.markMissed(ctx, rem)
		}

		next, steps, ok := recurrence.CatchUp(rem.FireAt, rem.Repeat, now)
		metrics.RecordCatchUp(steps)
		if !ok {
			s.logger.Warn("catch-up cap exceeded, deactivating reminder",
				zap.String("reminder_id", rem.ID.String()),
				zap.Time("fire_at", rem.FireAt),
				zap.Int("steps", steps),
			)
			if err := s.store.Deactivate(ctx, rem.ID); err != nil {
				return fmt.Errorf("deactivate dormant reminder: %w", err)
			}
			rem.Active = false
			return nil
		}

		// Persist before arming: if this write fails the reminder stays
		// un-armed and the next bootstrap reconciles it from the store.
		if err := s.store.UpdateFireAt(ctx, rem.ID, next); err != nil {
			return fmt.Errorf("persist caught-up fire_at: %w", err)
		}

		s.logger.Info("overdue reminder caught up",
			zap.String("reminder_id", rem.ID.String()),
			zap.Time("was", rem.FireAt),
			zap.Time("now", next),
			zap.Int("skipped", steps),
		)
		rem.FireAt = next
	}

	delay := rem.FireAt.Sub(s.clk.Now())
	snapshot := *rem

	s.mu.Lock()
	if e, ok := s.timers[rem.ID]; ok {
		e.timer.Stop()
	}
	s.gen++
	gen := s.gen
	entry := &timerEntry{gen: gen}
	entry.timer = s.clk.AfterFunc(delay, func() {
		s.fire(&snapshot, gen)
	})
	s.timers[rem.ID] = entry
	armed := len(s.timers)
	s.mu.Unlock()

	metrics.SetArmed(armed)
	s.logger.Debug("reminder armed",
		zap.String("reminder_id", rem.ID.String()),
		zap.Time("fire_at", rem.FireAt),
		zap.Duration("delay", delay),
	)

	return nil
}

// Disarm cancels the timer for id, if any. Unknown ids are a no-op, never
// an error.
func (s *Scheduler) Disarm(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.timers[id]
	if ok {
		e.timer.Stop()
		delete(s.timers, id)
	}
	armed := len(s.timers)
	s.mu.Unlock()

	if ok {
		metrics.SetArmed(armed)
		s.logger.Debug("reminder disarmed", zap.String("reminder_id", id.String()))
	}
}

// Rearm is Disarm followed by Arm. Arm already replaces an existing timer,
// so Rearm exists for callers that want the intent spelled out (edits).
func (s *Scheduler) Rearm(ctx context.Context, rem *db.Reminder) error {
	s.Disarm(rem.ID)
	return s.Arm(ctx, rem)
}

// Armed reports how many timers are currently registered.
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every armed timer. Used at shutdown; durable state is
// untouched and the next bootstrap re-arms everything.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	metrics.SetArmed(0)
	s.logger.Info("scheduler stopped")
}

// fire runs on the timer goroutine. The handle is removed before dispatch,
// but only when the registry slot still holds this timer's generation. An
// Arm or Rearm that raced the fire already replaced the slot; the stale
// fire must not evict the replacement or dispatch a second time.
func (s *Scheduler) fire(rem *db.Reminder, gen uint64) {
	s.mu.Lock()
	e, ok := s.timers[rem.ID]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		s.logger.Debug("stale timer fire ignored",
			zap.String("reminder_id", rem.ID.String()),
		)
		return
	}
	delete(s.timers, rem.ID)
	armed := len(s.timers)
	s.mu.Unlock()

	metrics.SetArmed(armed)

	if s.dispatch == nil {
		s.logger.Error("timer fired with no dispatcher wired",
			zap.String("reminder_id", rem.ID.String()),
		)
		return
	}
	s.dispatch(context.Background(), rem)
}

func (s *Scheduler) markMissed(ctx context.Context, rem *db.Reminder) error {
	if err := s.store.Deactivate(ctx, rem.ID); err != nil {
		return fmt.Errorf("deactivate missed reminder: %w", err)
	}
	rem.Active = false

	metrics.RecordMissed()
	s.logger.Info("one-off reminder missed",
		zap.String("reminder_id", rem.ID.String()),
		zap.Time("fire_at", rem.FireAt),
	)

	if s.onMissed != nil {
		s.onMissed(ctx, rem)
	}
	return nil
}
