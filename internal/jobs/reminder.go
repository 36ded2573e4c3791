package jobs

import (
	"context"
	"time"

	"studiobook/internal/bookings/repository"
	"studiobook/internal/events"
	"studiobook/internal/joblock"
	"studiobook/pkg/config"
	"studiobook/pkg/model"
	"studiobook/pkg/timeutil"
)

const reminderJobName = "reminder"

// ReminderCoordinator sends one reminder per confirmed booking inside the
// lead window. The lock fences out other replicas for the hour; the
// per-booking sent marker makes retries within the hour idempotent.
type ReminderCoordinator struct {
	repo  repository.BookingRepository
	locks joblock.Store
	sink  events.Sink
	cfg   *config.Config
	zone  *timeutil.Zone
	owner string
}

func NewReminderCoordinator(
	repo repository.BookingRepository,
	locks joblock.Store,
	sink events.Sink,
	cfg *config.Config,
	zone *timeutil.Zone,
	owner string,
) *ReminderCoordinator {
	return &ReminderCoordinator{
		repo:  repo,
		locks: locks,
		sink:  sink,
		cfg:   cfg,
		zone:  zone,
		owner: owner,
	}
}

func (c *ReminderCoordinator) Name() string {
	return reminderJobName
}

func (c *ReminderCoordinator) Run(ctx context.Context, now time.Time) (Summary, error) {
	key := joblock.HourKey(reminderJobName, c.zone, now)
	return runLocked(ctx, c.cfg, c.locks, key, c.owner, func(ctx context.Context) (Summary, error) {
		return c.sweep(ctx, now)
	})
}

func (c *ReminderCoordinator) sweep(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	windowEnd := now.Add(time.Duration(c.cfg.ReminderBeforeHours) * time.Hour)
	candidates, err := c.repo.FindConfirmedStartingBetween(ctx, now, windowEnd)
	if err != nil {
		return summary, err
	}

	for _, booking := range candidates {
		if booking.Reminder != nil {
			summary.Skipped++
			continue
		}
		marked, err := c.repo.MarkReminded(ctx, booking.ID, now)
		if err != nil {
			c.cfg.Log.Error("Failed to mark booking reminded", "id", booking.ID, "error", err)
			summary.Errors++
			continue
		}
		if !marked {
			summary.Skipped++
			continue
		}
		c.emit(ctx, booking, now)
		summary.Processed++
	}

	return summary, nil
}

func (c *ReminderCoordinator) emit(ctx context.Context, booking *model.Booking, now time.Time) {
	if c.sink == nil {
		return
	}
	event := model.Event{
		Type: model.EventBookingReminded,
		At:   now,
		Meta: map[string]string{
			"booking_id": booking.ID,
			"code":       booking.Code,
			"service_id": booking.ServiceID,
			"start_at":   booking.StartAt.UTC().Format(time.RFC3339),
		},
	}
	if err := c.sink.Emit(ctx, event); err != nil {
		c.cfg.Log.Warn("Failed to emit reminder event", "booking_id", booking.ID, "error", err)
	}
}
