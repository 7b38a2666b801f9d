package schedule

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
	"github.com/stride-fit/stride/internal/metrics"
	"github.com/stride-fit/stride/internal/notify"
	"github.com/stride-fit/stride/internal/recurrence"
)

// Dispatcher is the timer callback: deliver through both channels, advance
// the recurrence from the scheduled fire time, persist, re-arm.
type Dispatcher struct {
	store  Store
	sched  *Scheduler
	local  notify.Channel
	push   notify.Channel
	clk    clock.Clock
	logger *zap.Logger
}

// NewDispatcher wires itself as the scheduler's fire callback.
// push may be nil when no remote transport is configured.
func NewDispatcher(store Store, sched *Scheduler, local, push notify.Channel, clk clock.Clock, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		sched:  sched,
		local:  local,
		push:   push,
		clk:    clk,
		logger: logger,
	}
	sched.OnFire(d.Dispatch)
	return d
}

// Dispatch handles one fired occurrence of rem.
//
// Channel failures are delivery errors: logged, swallowed, independent of
// each other and of the recurrence advance. Store failures are the only
// thing that leaves the reminder un-armed; the next bootstrap reconciles it.
func (d *Dispatcher) Dispatch(ctx context.Context, rem *db.Reminder) {
	d.logger.Info("reminder fired",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("category", rem.Category),
		zap.Time("fire_at", rem.FireAt),
	)
	metrics.RecordFired(rem.Category)

	if err := d.local.Deliver(ctx, rem); err != nil {
		metrics.RecordDelivery(d.local.Name(), "error")
		d.logger.Warn("local delivery failed",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
	} else {
		metrics.RecordDelivery(d.local.Name(), "ok")
	}

	if d.push != nil {
		if err := d.push.Deliver(ctx, rem); err != nil {
			d.logger.Warn("push delivery failed",
				zap.Error(err),
				zap.String("reminder_id", rem.ID.String()),
			)
		}
	}

	// Advance from the scheduled time, not the actual fire time, so slow
	// dispatches never accumulate drift.
	next, steps, ok := recurrence.CatchUp(rem.FireAt, rem.Repeat, d.clk.Now())
	metrics.RecordCatchUp(steps)
	if !ok {
		if err := d.store.Deactivate(ctx, rem.ID); err != nil {
			d.logger.Error("failed to deactivate fired one-off; bootstrap will retry",
				zap.Error(err),
				zap.String("reminder_id", rem.ID.String()),
			)
			return
		}
		rem.Active = false
		return
	}

	if err := d.store.UpdateFireAt(ctx, rem.ID, next); err != nil {
		// Not persisted, so not re-armed: an armed timer the store doesn't
		// know about would diverge on the next reload.
		d.logger.Error("failed to persist next occurrence; reminder left un-armed",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
			zap.Time("next", next),
		)
		return
	}

	rem.FireAt = next
	if err := d.sched.Rearm(ctx, rem); err != nil {
		d.logger.Error("failed to re-arm reminder",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
	}
}
