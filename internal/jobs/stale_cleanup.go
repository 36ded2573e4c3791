package jobs

import (
	"context"
	"time"

	"studiobook/internal/bookings/repository"
	"studiobook/internal/bookings/service"
	"studiobook/internal/joblock"
	"studiobook/pkg/config"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
	"studiobook/pkg/timeutil"
)

const (
	staleCleanupJobName = "stale_cleanup"
	staleCancelReason   = "stale_requested"
)

// StaleCleanupCoordinator cancels requested bookings that were never
// confirmed within the staleness window. It runs once per day; the lock is
// anchored to the calendar day so a restarted scheduler does not repeat a
// sweep that already happened.
type StaleCleanupCoordinator struct {
	repo     repository.BookingRepository
	bookings service.BookingService
	locks    joblock.Store
	cfg      *config.Config
	zone     *timeutil.Zone
	owner    string
}

func NewStaleCleanupCoordinator(
	repo repository.BookingRepository,
	bookings service.BookingService,
	locks joblock.Store,
	cfg *config.Config,
	zone *timeutil.Zone,
	owner string,
) *StaleCleanupCoordinator {
	return &StaleCleanupCoordinator{
		repo:     repo,
		bookings: bookings,
		locks:    locks,
		cfg:      cfg,
		zone:     zone,
		owner:    owner,
	}
}

func (c *StaleCleanupCoordinator) Name() string {
	return staleCleanupJobName
}

func (c *StaleCleanupCoordinator) Run(ctx context.Context, now time.Time) (Summary, error) {
	key := joblock.DayKey(staleCleanupJobName, c.zone, now)
	return runLocked(ctx, c.cfg, c.locks, key, c.owner, func(ctx context.Context) (Summary, error) {
		return c.sweep(ctx, now)
	})
}

func (c *StaleCleanupCoordinator) sweep(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	cutoff := now.Add(-time.Duration(c.cfg.StaleRequestAfterHours) * time.Hour)
	candidates, err := c.repo.FindStaleRequested(ctx, cutoff)
	if err != nil {
		return summary, err
	}

	actor := model.SystemActor(staleCleanupJobName)
	for _, booking := range candidates {
		_, err := c.bookings.Transition(ctx, booking.ID, service.ActionCancel, actor, staleCancelReason)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeConflict) {
				summary.Skipped++
				continue
			}
			c.cfg.Log.Error("Failed to cancel stale booking", "id", booking.ID, "error", err)
			summary.Errors++
			continue
		}
		summary.Processed++
	}

	return summary, nil
}
