// Package timeutil converts between the studio's display calendar
// (a single configured timezone, KST by default) and the UTC instants
// used for storage and comparison.
package timeutil

import (
	"fmt"
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

// Zone wraps the display timezone. All persisted instants are UTC; a Zone
// resolves calendar questions (what day is it, when does the week start)
// in the studio's local calendar.
type Zone struct {
	loc *time.Location
}

func NewZone(name string) (*Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

func MustZone(name string) *Zone {
	z, err := NewZone(name)
	if err != nil {
		panic(err)
	}
	return z
}

func (z *Zone) Location() *time.Location {
	return z.loc
}

// In converts an instant into the display zone.
func (z *Zone) In(t time.Time) time.Time {
	return t.In(z.loc)
}

// ParseDate parses a YYYY-MM-DD string as a calendar day in the display zone.
func (z *Zone) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, z.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// DayRange returns the UTC interval [start, end) covering the given
// display-zone calendar day.
func (z *Zone) DayRange(date string) (time.Time, time.Time, error) {
	start, err := z.ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC(), nil
}

// Weekday returns the display-zone day of week as 0=Sunday..6=Saturday.
func (z *Zone) Weekday(t time.Time) int {
	return int(t.In(z.loc).Weekday())
}

// Midnight returns the display-zone midnight of the instant's calendar day,
// as a UTC instant.
func (z *Zone) Midnight(t time.Time) time.Time {
	local := t.In(z.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, z.loc).UTC()
}

// NextWeekStart returns the next Monday 00:00 in the display zone strictly
// after t, as a UTC instant. An instant already on a Monday rolls over to
// the following week.
func (z *Zone) NextWeekStart(t time.Time) time.Time {
	local := t.In(z.loc)
	// Monday=0..Sunday=6 for the rollover arithmetic.
	wd := (int(local.Weekday()) + 6) % 7
	days := 7 - wd
	if days == 0 {
		days = 7
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, z.loc)
	return midnight.AddDate(0, 0, days).UTC()
}

// ParseClock parses "HH:MM" into minutes since local midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
