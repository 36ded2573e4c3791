package service

import (
	"context"
	"errors"
	"time"

	availabilityerrors "studiobook/internal/availability/errors"
	"studiobook/internal/availability/repository"
	"studiobook/internal/availability/validator"
	"studiobook/pkg/config"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
	"studiobook/pkg/timeutil"
)

const defaultSlotMinutes = 60

// BookingLookup is the composer's only I/O: a bounded existence check
// against the booking store.
type BookingLookup interface {
	// BookedStarts returns the start instants (unix millis) of non-canceled
	// bookings inside [from, to), optionally filtered by service.
	BookedStarts(ctx context.Context, serviceID string, from, to time.Time) (map[int64]struct{}, error)
	// HasActiveBooking reports whether a non-canceled booking exists for
	// the exact (service, start) pair.
	HasActiveBooking(ctx context.Context, serviceID string, startAt time.Time) (bool, error)
}

type AvailabilityService interface {
	GetConfig(ctx context.Context) (*model.AvailabilityConfig, error)
	ReplaceConfig(ctx context.Context, cfg *model.AvailabilityConfig) (*model.AvailabilityConfig, error)
	// SlotsForDate composes the bookable slots for a display-zone calendar
	// date, net of breaks, blocks, past time and existing bookings.
	SlotsForDate(ctx context.Context, date string, serviceID string, now time.Time) ([]model.Slot, error)
	IsSlotAvailable(ctx context.Context, serviceID string, startAt time.Time) (bool, error)
}

type availabilityService struct {
	repo      repository.AvailabilityRepository
	bookings  BookingLookup
	validator *validator.AvailabilityValidator
	cfg       *config.Config
}

func NewAvailabilityService(
	repo repository.AvailabilityRepository,
	bookings BookingLookup,
	val *validator.AvailabilityValidator,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		bookings:  bookings,
		validator: val,
		cfg:       cfg,
	}
}

func (s *availabilityService) GetConfig(ctx context.Context) (*model.AvailabilityConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrNotConfigured) {
			return nil, apperrors.NotFound("Availability configuration")
		}
		return nil, apperrors.Internal("Failed to load availability configuration", err)
	}
	return cfg, nil
}

func (s *availabilityService) ReplaceConfig(ctx context.Context, cfg *model.AvailabilityConfig) (*model.AvailabilityConfig, error) {
	if cfg == nil {
		return nil, apperrors.InvalidInput("Availability configuration cannot be nil")
	}
	if err := s.validator.Validate(cfg); err != nil {
		s.cfg.Log.Warn("Availability config validation failed", "error", err)
		return nil, apperrors.Validation("Availability configuration validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	replaced, err := s.repo.Replace(ctx, cfg)
	if err != nil {
		s.cfg.Log.Error("Failed to replace availability config", "error", err)
		return nil, apperrors.Internal("Failed to store availability configuration", err)
	}

	s.cfg.Log.Info("Availability configuration replaced",
		"rules", len(replaced.Rules),
		"exceptions", len(replaced.Exceptions),
		"base_days", replaced.BaseDays,
	)
	return replaced, nil
}

// DayComposition is the rule-resolution result for one calendar date,
// before slot splitting and booking checks. Intervals and Blocks are
// minute pairs since display-zone midnight.
type DayComposition struct {
	Date            string
	Weekday         int
	BaseDaysApplied bool
	Closed          bool
	Intervals       [][2]int
	Blocks          [][2]int
	SlotMinutes     int
}

// ComposeDay resolves rules, breaks, base-days gating and the day's
// exception for one date. Pure: no storage access.
func ComposeDay(zone *timeutil.Zone, cfg *model.AvailabilityConfig, date string, serviceID string) (*DayComposition, error) {
	dayStart, err := zone.ParseDate(date)
	if err != nil {
		return nil, err
	}
	dow := zone.Weekday(dayStart)

	var intervals []span
	var slotCandidates []int
	for _, rule := range cfg.Rules {
		if !ruleMatches(rule, dow, serviceID) {
			continue
		}
		start, err := timeutil.ParseClock(rule.Start)
		if err != nil {
			continue
		}
		end, err := timeutil.ParseClock(rule.End)
		if err != nil || end <= start {
			continue
		}
		slotMin := rule.SlotMinutes
		if slotMin <= 0 {
			slotMin = defaultSlotMinutes
		}
		slotCandidates = append(slotCandidates, slotMin)

		var breaks []span
		for _, b := range rule.Breaks {
			bs, err := timeutil.ParseClock(b.Start)
			if err != nil {
				continue
			}
			be, err := timeutil.ParseClock(b.End)
			if err != nil || be <= bs {
				continue
			}
			breaks = append(breaks, span{bs, be})
		}
		intervals = append(intervals, subtractSpans([]span{{start, end}}, breaks)...)
	}
	intervals = mergeSpans(intervals)

	// Base-days gating: a base_days change only affects days at or after
	// the next week start following updated_at. Explicit rule intervals are
	// never suppressed.
	baseDaysApplied := true
	if !cfg.UpdatedAt.IsZero() {
		baseDaysApplied = !dayStart.UTC().Before(zone.NextWeekStart(cfg.UpdatedAt))
	}
	closed := baseDaysApplied && !cfg.HasBaseDay(dow) && len(intervals) == 0

	var blocks []span
	ex := cfg.ExceptionFor(date)
	if ex != nil {
		if ex.Closed {
			closed = true
			intervals = nil
		} else {
			for _, b := range ex.Blocks {
				bs, err := timeutil.ParseClock(b.Start)
				if err != nil {
					continue
				}
				be, err := timeutil.ParseClock(b.End)
				if err != nil || be <= bs {
					continue
				}
				blocks = append(blocks, span{bs, be})
			}
			intervals = subtractSpans(intervals, blocks)
		}
	}
	if closed {
		intervals = nil
	}

	slotMin := defaultSlotMinutes
	for i, c := range slotCandidates {
		if i == 0 || c < slotMin {
			slotMin = c
		}
	}

	comp := &DayComposition{
		Date:            date,
		Weekday:         dow,
		BaseDaysApplied: baseDaysApplied,
		Closed:          closed,
		SlotMinutes:     slotMin,
	}
	for _, iv := range intervals {
		comp.Intervals = append(comp.Intervals, [2]int{iv.start, iv.end})
	}
	for _, b := range blocks {
		comp.Blocks = append(comp.Blocks, [2]int{b.start, b.end})
	}
	return comp, nil
}

func (s *availabilityService) SlotsForDate(ctx context.Context, date string, serviceID string, now time.Time) ([]model.Slot, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	comp, err := ComposeDay(s.cfg.Zone, cfg, date, serviceID)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if comp.Closed || len(comp.Intervals) == 0 {
		return nil, nil
	}

	intervals := make([]span, 0, len(comp.Intervals))
	for _, iv := range comp.Intervals {
		intervals = append(intervals, span{iv[0], iv[1]})
	}
	raw := splitSlots(intervals, comp.SlotMinutes)
	if len(raw) == 0 {
		return nil, nil
	}

	dayStart, dayEnd, err := s.cfg.Zone.DayRange(date)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	booked, err := s.bookings.BookedStarts(ctx, serviceID, dayStart, dayEnd)
	if err != nil {
		s.cfg.Log.Error("Failed to load booked starts", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to check existing bookings", err)
	}

	slots := make([]model.Slot, 0, len(raw))
	for _, sl := range raw {
		startAt := dayStart.Add(time.Duration(sl.start) * time.Minute)
		endAt := dayStart.Add(time.Duration(sl.end) * time.Minute)
		if !startAt.After(now) {
			continue
		}
		if _, taken := booked[startAt.UnixMilli()]; taken {
			continue
		}
		slots = append(slots, model.Slot{StartAt: startAt, EndAt: endAt})
	}

	s.cfg.Log.Debug("Composed availability slots",
		"date", date,
		"service_id", serviceID,
		"weekday", comp.Weekday,
		"slots", len(slots),
	)
	return slots, nil
}

func (s *availabilityService) IsSlotAvailable(ctx context.Context, serviceID string, startAt time.Time) (bool, error) {
	if serviceID == "" {
		return false, apperrors.InvalidInput("Service ID cannot be empty")
	}
	if startAt.IsZero() {
		return false, apperrors.InvalidInput("Start time cannot be zero")
	}

	taken, err := s.bookings.HasActiveBooking(ctx, serviceID, startAt)
	if err != nil {
		return false, apperrors.Internal("Failed to check slot availability", err)
	}
	return !taken, nil
}

func ruleMatches(rule model.AvailabilityRule, dow int, serviceID string) bool {
	matched := false
	for _, d := range rule.Days {
		if d == dow {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if serviceID == "" || len(rule.ServiceIDs) == 0 {
		return true
	}
	for _, id := range rule.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}
