// Package recurrence computes the next occurrence of a repeating reminder.
// It is pure: no clocks, no stores, no side effects.
package recurrence

import (
	"time"

	"github.com/stride-fit/stride/internal/db"
)

// MaxCatchUpSteps bounds how far CatchUp will walk a dormant reminder
// forward. 3700 daily steps covers over ten years of sleep; anything beyond
// that is treated as having no next occurrence.
const MaxCatchUpSteps = 3700

// Next returns the occurrence strictly after fireAt, or false if the rule
// is one-off. Unknown rule kinds behave as one-off rather than failing.
//
// Advances use calendar arithmetic in fireAt's location, so the wall-clock
// time is preserved across DST transitions.
func Next(fireAt time.Time, rule db.RepeatRule) (time.Time, bool) {
	switch rule.Kind {
	case db.RepeatDaily:
		return fireAt.AddDate(0, 0, 1), true
	case db.RepeatWeekly:
		for d := 1; d < 7; d++ {
			candidate := fireAt.AddDate(0, 0, d)
			if rule.OnWeekday(candidate.Weekday()) {
				return candidate, true
			}
		}
		// Empty weekday set, or only fireAt's own weekday: one week later.
		return fireAt.AddDate(0, 0, 7), true
	default:
		return time.Time{}, false
	}
}

// CatchUp computes the occurrence after fireAt and, if that is still not in
// the future, keeps advancing until the result is strictly after now. The
// skipped occurrences are never fired; steps reports how many were skipped.
//
// Returns false when the rule is one-off or when MaxCatchUpSteps was reached
// before a future occurrence was found; callers treat both as "no next
// occurrence".
func CatchUp(fireAt time.Time, rule db.RepeatRule, now time.Time) (next time.Time, steps int, ok bool) {
	next, ok = Next(fireAt, rule)
	if !ok {
		return time.Time{}, 0, false
	}
	for !next.After(now) {
		steps++
		if steps >= MaxCatchUpSteps {
			return time.Time{}, steps, false
		}
		next, _ = Next(next, rule)
	}
	return next, steps, true
}
