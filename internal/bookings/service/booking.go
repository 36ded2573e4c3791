package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	availservice "studiobook/internal/availability/service"
	bookingserrors "studiobook/internal/bookings/errors"
	"studiobook/internal/bookings/repository"
	"studiobook/internal/bookings/validator"
	catalogrepo "studiobook/internal/catalog/repository"
	"studiobook/internal/events"
	"studiobook/pkg/config"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
	"studiobook/pkg/sanitizer"
)

// Action names a lifecycle transition requested by a caller. The target
// status is derived from the action, never passed in directly.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
)

func (a Action) target() (model.BookingStatus, bool) {
	switch a {
	case ActionConfirm:
		return model.BookingConfirmed, true
	case ActionCancel:
		return model.BookingCanceled, true
	case ActionComplete:
		return model.BookingCompleted, true
	case ActionNoShow:
		return model.BookingNoShow, true
	}
	return "", false
}

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking, actor model.Actor) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	Transition(ctx context.Context, id string, action Action, actor model.Actor, reason string) (*model.Booking, error)
	Reschedule(ctx context.Context, id string, newStart time.Time, actor model.Actor, reason string) (*model.Booking, error)
}

type bookingService struct {
	repo         repository.BookingRepository
	catalog      catalogrepo.CatalogRepository
	availability availservice.AvailabilityService
	validator    *validator.BookingValidator
	sink         events.Sink
	cfg          *config.Config
	now          func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	catalog catalogrepo.CatalogRepository,
	availability availservice.AvailabilityService,
	validator *validator.BookingValidator,
	sink events.Sink,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:         repo,
		catalog:      catalog,
		availability: availability,
		validator:    validator,
		sink:         sink,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking, actor model.Actor) error {
	now := s.now()
	s.sanitize(booking)

	offering, err := s.catalog.FindByID(ctx, booking.ServiceID)
	if err != nil {
		if errors.Is(err, catalogrepo.ErrNotFound) {
			return apperrors.NotFoundWithID("Service", booking.ServiceID)
		}
		return apperrors.Internal("Failed to resolve service offering", err)
	}
	if !offering.Active {
		return apperrors.InvalidInput("Service offering is not active")
	}

	policy, duration := catalogrepo.PolicyFor(offering, s.cfg)
	booking.Policy = policy
	if booking.EndAt.IsZero() {
		booking.EndAt = booking.StartAt.Add(duration)
	}
	booking.Status = model.BookingRequested
	if booking.Code == "" {
		booking.Code = model.NewBookingCode()
	}
	booking.Reminder = nil
	booking.History = []model.HistoryEntry{{
		At:     now,
		By:     actor,
		To:     model.BookingRequested,
		Reason: "created",
	}}

	if err := s.validate(booking, now); err != nil {
		return err
	}

	if s.availability != nil {
		available, err := s.availability.IsSlotAvailable(ctx, booking.ServiceID, booking.StartAt)
		if err != nil {
			return apperrors.Internal("Failed to check slot availability", err)
		}
		if !available {
			return apperrors.Conflict("Requested slot is not available")
		}
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		if errors.Is(err, bookingserrors.ErrDuplicateSlot) {
			return apperrors.Conflict("Requested slot already has an active booking")
		}
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return apperrors.Internal("Failed to create booking", err)
	}

	s.emit(ctx, model.EventBookingCreated, booking, nil)
	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"code", booking.Code,
		"service_id", booking.ServiceID,
		"start_at", booking.StartAt,
		"actor", actor.String(),
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) Transition(ctx context.Context, id string, action Action, actor model.Actor, reason string) (*model.Booking, error) {
	target, ok := action.target()
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Unknown booking action: %s", action))
	}
	if !actor.Valid() {
		return nil, apperrors.InvalidInput("Transition actor is required")
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Repeating an already-applied transition is a success, not an error.
	if booking.Status == target {
		return booking, nil
	}
	if !model.CanTransition(booking.Status, target) {
		return nil, apperrors.Conflict(fmt.Sprintf(
			"Cannot %s a booking in status %s", action, booking.Status))
	}
	if err := s.checkCutoff(booking, action, actor); err != nil {
		return nil, err
	}

	entry := model.HistoryEntry{
		At:     s.now(),
		By:     actor,
		From:   booking.Status,
		To:     target,
		Reason: reason,
	}
	updated, err := s.repo.TransitionStatus(ctx, id, booking.Status, target, entry)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStatusMismatch) {
			return s.resolveRace(ctx, id, action, target)
		}
		s.cfg.Log.Error("Failed to transition booking", "id", id, "action", action, "error", err)
		return nil, apperrors.Internal("Failed to transition booking", err)
	}

	s.emit(ctx, eventTypeFor(target), updated, map[string]string{"reason": reason})
	s.cfg.Log.Info("Booking transitioned",
		"id", updated.ID,
		"from", entry.From,
		"to", entry.To,
		"actor", actor.String(),
	)
	return updated, nil
}

// resolveRace re-reads after a conditional update matched nothing. A
// concurrent caller applying the same transition counts as our success;
// anything else is a genuine conflict.
func (s *bookingService) resolveRace(ctx context.Context, id string, action Action, target model.BookingStatus) (*model.Booking, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == target {
		return current, nil
	}
	return nil, apperrors.Conflict(fmt.Sprintf(
		"Cannot %s a booking in status %s", action, current.Status))
}

func (s *bookingService) Reschedule(ctx context.Context, id string, newStart time.Time, actor model.Actor, reason string) (*model.Booking, error) {
	if !actor.Valid() {
		return nil, apperrors.InvalidInput("Reschedule actor is required")
	}
	now := s.now()
	if !newStart.After(now) {
		return nil, apperrors.InvalidInput("New start time must be in the future")
	}

	original, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.Status.Terminal() {
		return nil, apperrors.Conflict(fmt.Sprintf(
			"Cannot reschedule a booking in status %s", original.Status))
	}
	if newStart.Equal(original.StartAt) {
		return original, nil
	}
	if actor.Kind == model.ActorCustomer {
		cutoff := original.StartAt.Add(-time.Duration(original.Policy.ChangeBeforeHours) * time.Hour)
		if now.After(cutoff) {
			return nil, apperrors.PolicyCutoff(fmt.Sprintf(
				"Bookings must be rescheduled at least %d hours before the start time",
				original.Policy.ChangeBeforeHours))
		}
	}

	if s.availability != nil {
		available, err := s.availability.IsSlotAvailable(ctx, original.ServiceID, newStart)
		if err != nil {
			return nil, apperrors.Internal("Failed to check slot availability", err)
		}
		if !available {
			return nil, apperrors.Conflict("Requested slot is not available")
		}
	}

	if reason == "" {
		reason = "reschedule"
	}
	replacement := &model.Booking{
		Code:         model.NewBookingCode(),
		ServiceID:    original.ServiceID,
		CustomerID:   original.CustomerID,
		StartAt:      newStart,
		EndAt:        newStart.Add(original.Duration()),
		Status:       original.Status,
		Policy:       original.Policy,
		NoteCustomer: original.NoteCustomer,
		NoteInternal: original.NoteInternal,
		Source:       original.Source,
		RescheduleOf: original.ID,
		History: []model.HistoryEntry{{
			At:     now,
			By:     actor,
			To:     original.Status,
			Reason: reason,
		}},
	}

	// The replacement and the cancellation of the original land together
	// or not at all, so a collision on the new slot leaves the original
	// booking untouched.
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, replacement); err != nil {
			if errors.Is(err, bookingserrors.ErrDuplicateSlot) {
				return apperrors.Conflict("Requested slot already has an active booking")
			}
			return apperrors.Internal("Failed to create replacement booking", err)
		}
		entry := model.HistoryEntry{
			At:     now,
			By:     actor,
			From:   original.Status,
			To:     model.BookingCanceled,
			Reason: reason,
		}
		if _, err := s.repo.TransitionStatus(sessCtx, original.ID, original.Status, model.BookingCanceled, entry); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusMismatch) {
				return apperrors.Conflict("Booking changed while rescheduling")
			}
			return apperrors.Internal("Failed to cancel original booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reschedule booking", "id", id, "error", err)
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to reschedule booking", err)
	}

	s.emit(ctx, model.EventBookingCanceled, original, map[string]string{"reason": reason})
	s.emit(ctx, model.EventBookingCreated, replacement, map[string]string{"reschedule_of": original.ID})
	s.cfg.Log.Info("Booking rescheduled",
		"id", original.ID,
		"replacement_id", replacement.ID,
		"start_at", replacement.StartAt,
		"actor", actor.String(),
	)
	return replacement, nil
}

// checkCutoff enforces the policy snapshot captured at creation. Customer
// cancellations honor the cutoff; admin and system actors bypass it since
// the cleanup coordinator cancels stale requests regardless of proximity.
func (s *bookingService) checkCutoff(booking *model.Booking, action Action, actor model.Actor) error {
	now := s.now()
	switch action {
	case ActionCancel:
		if actor.Kind != model.ActorCustomer {
			return nil
		}
		cutoff := booking.StartAt.Add(-time.Duration(booking.Policy.CancelBeforeHours) * time.Hour)
		if now.After(cutoff) {
			return apperrors.PolicyCutoff(fmt.Sprintf(
				"Bookings must be canceled at least %d hours before the start time",
				booking.Policy.CancelBeforeHours))
		}
	case ActionComplete:
		if now.Before(booking.EndAt) {
			return apperrors.PolicyCutoff("Bookings can only be completed after their end time")
		}
	case ActionNoShow:
		threshold := booking.StartAt.Add(time.Duration(booking.Policy.NoShowAfterMin) * time.Minute)
		if now.Before(threshold) {
			return apperrors.PolicyCutoff(fmt.Sprintf(
				"Bookings can only be marked no-show %d minutes after the start time",
				booking.Policy.NoShowAfterMin))
		}
	}
	return nil
}

func (s *bookingService) sanitize(booking *model.Booking) {
	booking.ServiceID = sanitizer.TrimAndNormalize(booking.ServiceID)
	booking.CustomerID = sanitizer.TrimAndNormalize(booking.CustomerID)
	booking.Source = sanitizer.TrimAndNormalize(booking.Source)
	booking.NoteCustomer = sanitizer.SanitizeNote(booking.NoteCustomer)
	booking.NoteInternal = sanitizer.SanitizeNote(booking.NoteInternal)
}

func (s *bookingService) validate(booking *model.Booking, now time.Time) error {
	if err := s.validator.Validate(booking, now); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			details := make(map[string]any, len(validationErrs))
			for _, ve := range validationErrs {
				details[ve.Field] = ve.Message
			}
			return apperrors.Validation("Booking validation failed", details)
		}
		return apperrors.Validation(err.Error(), nil)
	}
	return nil
}

func (s *bookingService) emit(ctx context.Context, eventType string, booking *model.Booking, extra map[string]string) {
	if s.sink == nil {
		return
	}
	meta := map[string]string{
		"booking_id": booking.ID,
		"code":       booking.Code,
		"service_id": booking.ServiceID,
		"start_at":   booking.StartAt.UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		if v != "" {
			meta[k] = v
		}
	}
	event := model.Event{Type: eventType, At: s.now(), Meta: meta}
	if err := s.sink.Emit(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to emit booking event", "type", eventType, "booking_id", booking.ID, "error", err)
	}
}

func eventTypeFor(status model.BookingStatus) string {
	switch status {
	case model.BookingConfirmed:
		return model.EventBookingConfirmed
	case model.BookingCompleted:
		return model.EventBookingCompleted
	case model.BookingCanceled:
		return model.EventBookingCanceled
	case model.BookingNoShow:
		return model.EventBookingNoShow
	}
	return model.EventBookingCreated
}
