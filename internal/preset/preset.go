// Package preset builds draft reminders from time-of-day templates for the
// common fitness categories. It only fills in fields; persisting and arming
// the drafts is the caller's job.
package preset

import (
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/stride-fit/stride/internal/db"
)

// Template is one named slot of a preset: a category, a wall-clock time,
// and the repeat rule the draft should carry.
type Template struct {
	Title    string
	Body     string
	Category string
	Hour     int
	Minute   int
}

// Daily meal slots and the hydration ladder. Times are wall clock in the
// owner's current zone.
var presets = map[string][]Template{
	"breakfast": {
		{Title: "Breakfast", Body: "Time for breakfast. Don't skip the most important meal.", Category: db.CategoryMeal, Hour: 7, Minute: 30},
	},
	"lunch": {
		{Title: "Lunch", Body: "Lunch break. Step away and eat something proper.", Category: db.CategoryMeal, Hour: 12, Minute: 30},
	},
	"dinner": {
		{Title: "Dinner", Body: "Dinner time. Wind down with a good meal.", Category: db.CategoryMeal, Hour: 19, Minute: 0},
	},
	"hydration": {
		{Title: "Drink water", Body: "Hydration check. Have a glass of water.", Category: db.CategoryHydration, Hour: 9, Minute: 0},
		{Title: "Drink water", Body: "Hydration check. Have a glass of water.", Category: db.CategoryHydration, Hour: 12, Minute: 0},
		{Title: "Drink water", Body: "Hydration check. Have a glass of water.", Category: db.CategoryHydration, Hour: 15, Minute: 0},
		{Title: "Drink water", Body: "Hydration check. Have a glass of water.", Category: db.CategoryHydration, Hour: 18, Minute: 0},
	},
}

// Factory stamps drafts against its clock so "already past today" is
// decided consistently and testably.
type Factory struct {
	clk clock.Clock
}

// NewFactory creates a preset factory.
func NewFactory(clk clock.Clock) *Factory {
	return &Factory{clk: clk}
}

// Names lists the available daily preset names, sorted.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build expands a named daily preset into draft reminders. A slot whose
// time-of-day has already passed today starts tomorrow instead.
func (f *Factory) Build(ownerID uuid.UUID, name string) ([]*db.Reminder, error) {
	templates, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}

	now := f.clk.Now()
	drafts := make([]*db.Reminder, 0, len(templates))
	for _, tpl := range templates {
		drafts = append(drafts, &db.Reminder{
			ID:       uuid.New(),
			OwnerID:  ownerID,
			Title:    tpl.Title,
			Body:     tpl.Body,
			Category: tpl.Category,
			FireAt:   nextDaily(now, tpl.Hour, tpl.Minute),
			Repeat:   db.RepeatRule{Kind: db.RepeatDaily},
			Active:   true,
		})
	}
	return drafts, nil
}

// Training builds a weekly training draft for the given weekday and time.
// If that slot is already past this week, the draft starts next week.
func (f *Factory) Training(ownerID uuid.UUID, weekday time.Weekday, hour, minute int) (*db.Reminder, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid training time %02d:%02d", hour, minute)
	}

	return &db.Reminder{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Title:    "Training session",
		Body:     "Training time. Grab your gear and get moving.",
		Category: db.CategoryTraining,
		FireAt:   nextWeekly(f.clk.Now(), weekday, hour, minute),
		Repeat:   db.RepeatRule{Kind: db.RepeatWeekly, Weekdays: []time.Weekday{weekday}},
		Active:   true,
	}, nil
}

// nextDaily returns today's instant at hour:minute, or tomorrow's if that
// has already passed.
func nextDaily(now time.Time, hour, minute int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// nextWeekly returns the earliest future instant on the given weekday at
// hour:minute, starting from today.
func nextWeekly(now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	// Today's slot may already be gone, so the scan covers today plus a
	// full week.
	for i := 0; i < 8; i++ {
		if at.Weekday() == weekday && at.After(now) {
			break
		}
		at = at.AddDate(0, 0, 1)
	}
	return at
}
