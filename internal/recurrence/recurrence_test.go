package recurrence

import (
	"testing"
	"time"

	"github.com/stride-fit/stride/internal/db"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return ts
}

func TestNext_OneOff(t *testing.T) {
	fireAt := at(t, "2025-03-10T07:30:00Z")

	if _, ok := Next(fireAt, db.RepeatRule{Kind: db.RepeatNone}); ok {
		t.Fatal("one-off rule must have no next occurrence")
	}
}

func TestNext_UnknownKindBehavesAsOneOff(t *testing.T) {
	fireAt := at(t, "2025-03-10T07:30:00Z")

	if _, ok := Next(fireAt, db.RepeatRule{Kind: "fortnightly"}); ok {
		t.Fatal("unknown rule kind must behave as one-off")
	}
}

func TestNext_Daily(t *testing.T) {
	fireAt := at(t, "2025-03-10T07:30:00Z")

	next, ok := Next(fireAt, db.RepeatRule{Kind: db.RepeatDaily})
	if !ok {
		t.Fatal("daily rule must have a next occurrence")
	}
	if want := at(t, "2025-03-11T07:30:00Z"); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNext_DailyKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// Last day before the spring-forward transition (2025-03-30 in Berlin).
	fireAt := time.Date(2025, time.March, 29, 7, 30, 0, 0, loc)

	next, ok := Next(fireAt, db.RepeatRule{Kind: db.RepeatDaily})
	if !ok {
		t.Fatal("daily rule must have a next occurrence")
	}
	if next.Hour() != 7 || next.Minute() != 30 {
		t.Fatalf("wall clock not preserved: got %02d:%02d", next.Hour(), next.Minute())
	}
	if next.Day() != 30 {
		t.Fatalf("expected next day 30, got %d", next.Day())
	}
}

func TestNext_Weekly(t *testing.T) {
	// 2025-03-10 is a Monday.
	fireAt := at(t, "2025-03-10T18:00:00Z")

	tests := []struct {
		name     string
		weekdays []time.Weekday
		want     string
	}{
		{"next_in_set_midweek", []time.Weekday{time.Monday, time.Thursday}, "2025-03-13T18:00:00Z"},
		{"same_weekday_only", []time.Weekday{time.Monday}, "2025-03-17T18:00:00Z"},
		{"tomorrow", []time.Weekday{time.Tuesday}, "2025-03-11T18:00:00Z"},
		{"wraps_to_sunday", []time.Weekday{time.Sunday}, "2025-03-16T18:00:00Z"},
		{"empty_set_falls_back_to_week", nil, "2025-03-17T18:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := Next(fireAt, db.RepeatRule{Kind: db.RepeatWeekly, Weekdays: tt.weekdays})
			if !ok {
				t.Fatal("weekly rule must have a next occurrence")
			}
			if want := at(t, tt.want); !next.Equal(want) {
				t.Fatalf("next = %v, want %v", next, want)
			}
		})
	}
}

func TestNext_WeeklyStrictlyAdvances(t *testing.T) {
	fireAt := at(t, "2025-03-10T18:00:00Z")
	rule := db.RepeatRule{Kind: db.RepeatWeekly, Weekdays: []time.Weekday{time.Monday, time.Wednesday}}

	prev := fireAt
	for i := 0; i < 10; i++ {
		next, ok := Next(prev, rule)
		if !ok {
			t.Fatal("weekly rule must have a next occurrence")
		}
		if !next.After(prev) {
			t.Fatalf("occurrence %d did not advance: %v -> %v", i, prev, next)
		}
		if !rule.OnWeekday(next.Weekday()) {
			t.Fatalf("occurrence %d landed on %v, not in set", i, next.Weekday())
		}
		prev = next
	}
}

func TestCatchUp_NotOverdue(t *testing.T) {
	fireAt := at(t, "2025-03-10T07:30:00Z")
	now := at(t, "2025-03-10T08:00:00Z")

	next, steps, ok := CatchUp(fireAt, db.RepeatRule{Kind: db.RepeatDaily}, now)
	if !ok {
		t.Fatal("expected a next occurrence")
	}
	if steps != 0 {
		t.Fatalf("steps = %d, want 0", steps)
	}
	if want := at(t, "2025-03-11T07:30:00Z"); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestCatchUp_DormantSessionSkipsMissedDays(t *testing.T) {
	// Laptop closed for two weeks: no burst of re-fires, a single future slot.
	fireAt := at(t, "2025-03-01T07:30:00Z")
	now := at(t, "2025-03-15T12:00:00Z")

	next, steps, ok := CatchUp(fireAt, db.RepeatRule{Kind: db.RepeatDaily}, now)
	if !ok {
		t.Fatal("expected a next occurrence")
	}
	if want := at(t, "2025-03-16T07:30:00Z"); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
	if steps == 0 {
		t.Fatal("expected missed occurrences to be skipped")
	}
	if !next.After(now) {
		t.Fatalf("next %v is not strictly after now %v", next, now)
	}
}

func TestCatchUp_OneOff(t *testing.T) {
	fireAt := at(t, "2025-03-01T07:30:00Z")
	now := at(t, "2025-03-15T12:00:00Z")

	if _, _, ok := CatchUp(fireAt, db.RepeatRule{Kind: db.RepeatNone}, now); ok {
		t.Fatal("one-off rule must not catch up")
	}
}

func TestCatchUp_CapsIterations(t *testing.T) {
	fireAt := at(t, "2000-01-01T07:30:00Z")
	now := at(t, "2025-03-15T12:00:00Z") // >9000 daily steps away

	_, steps, ok := CatchUp(fireAt, db.RepeatRule{Kind: db.RepeatDaily}, now)
	if ok {
		t.Fatal("expected catch-up to give up past the step cap")
	}
	if steps != MaxCatchUpSteps {
		t.Fatalf("steps = %d, want %d", steps, MaxCatchUpSteps)
	}
}
