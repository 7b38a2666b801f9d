package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reminder is a scheduled notification owned by a single user.
// FireAt always holds the next not-yet-delivered occurrence; it is the only
// scheduling state that survives a restart.
type Reminder struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Category  string          `json:"category"`
	FireAt    time.Time       `json:"fire_at"`
	Repeat    RepeatRule      `json:"repeat"`
	Active    bool            `json:"active"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Category constants. The category only picks default content; it has no
// effect on scheduling.
const (
	CategoryMeal      = "meal"
	CategoryTraining  = "training"
	CategoryHydration = "hydration"
	CategoryEvent     = "event"
	CategoryGeneral   = "general"
)

// Repeat kind constants
const (
	RepeatNone   = "none"
	RepeatDaily  = "daily"
	RepeatWeekly = "weekly"
)

// RepeatRule describes how a reminder recurs. Weekdays is only meaningful
// for weekly rules.
type RepeatRule struct {
	Kind     string         `json:"kind"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
}

// Recurring reports whether the rule produces further occurrences.
// Unknown kinds are treated as one-off, never as an error.
func (r RepeatRule) Recurring() bool {
	return r.Kind == RepeatDaily || r.Kind == RepeatWeekly
}

// OnWeekday reports whether d is in the rule's weekday set.
func (r RepeatRule) OnWeekday(d time.Weekday) bool {
	for _, w := range r.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// weekdayMask packs a weekday set into a bitmask for storage (bit 0 = Sunday).
func weekdayMask(days []time.Weekday) int32 {
	var mask int32
	for _, d := range days {
		mask |= 1 << uint(d)
	}
	return mask
}

func weekdaysFromMask(mask int32) []time.Weekday {
	if mask == 0 {
		return nil
	}
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if mask&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	return days
}

// Push transport constants. Email targets are only used for missed-reminder
// notices, never for live fires.
const (
	TransportSNS     = "sns"
	TransportWebhook = "webhook"
	TransportEmail   = "email"
)

// PushSubscription is a registered remote delivery target for one owner.
// The registration handshake lives outside this service; we only read the
// registry and prune targets the transport reports as gone.
type PushSubscription struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Transport string    `json:"transport"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}
