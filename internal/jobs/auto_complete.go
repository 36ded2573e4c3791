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

const autoCompleteJobName = "auto_complete"

// AutoCompleteCoordinator flips confirmed bookings to completed once their
// end time plus a grace period has passed. Transitions go through the
// lifecycle engine so history and events stay uniform.
type AutoCompleteCoordinator struct {
	repo     repository.BookingRepository
	bookings service.BookingService
	locks    joblock.Store
	cfg      *config.Config
	zone     *timeutil.Zone
	owner    string
}

func NewAutoCompleteCoordinator(
	repo repository.BookingRepository,
	bookings service.BookingService,
	locks joblock.Store,
	cfg *config.Config,
	zone *timeutil.Zone,
	owner string,
) *AutoCompleteCoordinator {
	return &AutoCompleteCoordinator{
		repo:     repo,
		bookings: bookings,
		locks:    locks,
		cfg:      cfg,
		zone:     zone,
		owner:    owner,
	}
}

func (c *AutoCompleteCoordinator) Name() string {
	return autoCompleteJobName
}

func (c *AutoCompleteCoordinator) Run(ctx context.Context, now time.Time) (Summary, error) {
	key := joblock.HourKey(autoCompleteJobName, c.zone, now)
	return runLocked(ctx, c.cfg, c.locks, key, c.owner, func(ctx context.Context) (Summary, error) {
		return c.sweep(ctx, now)
	})
}

func (c *AutoCompleteCoordinator) sweep(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	grace := time.Duration(c.cfg.AutoCompleteAfterMin) * time.Minute
	candidates, err := c.repo.FindReadyToComplete(ctx, now.Add(-grace))
	if err != nil {
		return summary, err
	}

	actor := model.SystemActor(autoCompleteJobName)
	for _, booking := range candidates {
		_, err := c.bookings.Transition(ctx, booking.ID, service.ActionComplete, actor, autoCompleteJobName)
		if err != nil {
			// A concurrent cancel or manual completion is not a failure
			// of the sweep.
			if apperrors.HasCode(err, apperrors.CodeConflict) || apperrors.HasCode(err, apperrors.CodePolicyCutoff) {
				summary.Skipped++
				continue
			}
			c.cfg.Log.Error("Failed to auto-complete booking", "id", booking.ID, "error", err)
			summary.Errors++
			continue
		}
		summary.Processed++
	}

	return summary, nil
}
