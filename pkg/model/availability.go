package model

import "time"

// Window is a clock interval in the display zone, "HH:MM" inclusive start,
// exclusive end.
type Window struct {
	Start string `json:"start" bson:"start" validate:"required"`
	End   string `json:"end" bson:"end" validate:"required"`
}

// AvailabilityRule opens a recurring weekly window. Days use 0=Sunday..6=Saturday
// in the display zone.
type AvailabilityRule struct {
	Days        []int    `json:"dow" bson:"dow" validate:"required,min=1,max=7,dive,min=0,max=6"`
	Start       string   `json:"start" bson:"start" validate:"required"`
	End         string   `json:"end" bson:"end" validate:"required"`
	SlotMinutes int      `json:"slot_min" bson:"slot_min" validate:"required,min=15,max=480"`
	Breaks      []Window `json:"break,omitempty" bson:"break,omitempty" validate:"omitempty,dive"`
	// ServiceIDs restricts the rule to specific offerings; empty means all.
	ServiceIDs []string `json:"service_ids,omitempty" bson:"service_ids,omitempty"`
}

// AvailabilityException overrides a single calendar date: either fully
// closed, or open with extra blocked sub-windows.
type AvailabilityException struct {
	Date   string   `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Closed bool     `json:"is_closed" bson:"is_closed"`
	Blocks []Window `json:"blocks,omitempty" bson:"blocks,omitempty" validate:"omitempty,dive"`
}

// AvailabilityConfig is a singleton document, replaced whole on every
// administrative write. UpdatedAt anchors the base-days rollover boundary:
// a BaseDays change only affects calendar days at or after the next
// week start following UpdatedAt.
type AvailabilityConfig struct {
	ID         string                  `json:"id,omitempty" bson:"_id,omitempty"`
	Rules      []AvailabilityRule      `json:"rules" bson:"rules" validate:"omitempty,dive"`
	Exceptions []AvailabilityException `json:"exceptions" bson:"exceptions" validate:"omitempty,dive"`
	BaseDays   []int                   `json:"base_days" bson:"base_days" validate:"omitempty,dive,min=0,max=6"`
	UpdatedAt  time.Time               `json:"updated_at" bson:"updated_at"`
}

// ExceptionFor returns the exception for a display-zone date, or nil.
func (c *AvailabilityConfig) ExceptionFor(date string) *AvailabilityException {
	for i := range c.Exceptions {
		if c.Exceptions[i].Date == date {
			return &c.Exceptions[i]
		}
	}
	return nil
}

// HasBaseDay reports whether the weekday (0=Sunday..6=Saturday) is one of
// the default open days.
func (c *AvailabilityConfig) HasBaseDay(dow int) bool {
	for _, d := range c.BaseDays {
		if d == dow {
			return true
		}
	}
	return false
}

// Slot is one fixed-duration bookable sub-interval, in storage (UTC) instants.
type Slot struct {
	StartAt time.Time `json:"start_at" bson:"start_at"`
	EndAt   time.Time `json:"end_at" bson:"end_at"`
}
