package jobs

import (
	"context"
	"time"

	"studiobook/internal/events"
	"studiobook/internal/joblock"
	"studiobook/internal/orders/repository"
	"studiobook/pkg/config"
	"studiobook/pkg/model"
	"studiobook/pkg/timeutil"
)

const orderExpireJobName = "order_expire"

// OrderExpireCoordinator closes the deposit window: orders still awaiting
// payment past their deadline flip to expired. The per-order conditional
// update keeps a payment landing mid-sweep from being clobbered.
type OrderExpireCoordinator struct {
	repo  repository.OrderRepository
	locks joblock.Store
	sink  events.Sink
	cfg   *config.Config
	zone  *timeutil.Zone
	owner string
}

func NewOrderExpireCoordinator(
	repo repository.OrderRepository,
	locks joblock.Store,
	sink events.Sink,
	cfg *config.Config,
	zone *timeutil.Zone,
	owner string,
) *OrderExpireCoordinator {
	return &OrderExpireCoordinator{
		repo:  repo,
		locks: locks,
		sink:  sink,
		cfg:   cfg,
		zone:  zone,
		owner: owner,
	}
}

func (c *OrderExpireCoordinator) Name() string {
	return orderExpireJobName
}

func (c *OrderExpireCoordinator) Run(ctx context.Context, now time.Time) (Summary, error) {
	key := joblock.HourKey(orderExpireJobName, c.zone, now)
	return runLocked(ctx, c.cfg, c.locks, key, c.owner, func(ctx context.Context) (Summary, error) {
		return c.sweep(ctx, now)
	})
}

func (c *OrderExpireCoordinator) sweep(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	candidates, err := c.repo.FindReadyToExpire(ctx, now)
	if err != nil {
		return summary, err
	}

	for _, order := range candidates {
		expired, err := c.repo.Expire(ctx, order.ID, now)
		if err != nil {
			c.cfg.Log.Error("Failed to expire order", "id", order.ID, "error", err)
			summary.Errors++
			continue
		}
		if !expired {
			// Deposit arrived between the find and the update.
			summary.Skipped++
			continue
		}
		c.emit(ctx, order, now)
		summary.Processed++
	}

	return summary, nil
}

func (c *OrderExpireCoordinator) emit(ctx context.Context, order *model.Order, now time.Time) {
	if c.sink == nil {
		return
	}
	event := model.Event{
		Type: model.EventOrderExpired,
		At:   now,
		Meta: map[string]string{
			"order_id": order.ID,
			"code":     order.Code,
		},
	}
	if err := c.sink.Emit(ctx, event); err != nil {
		c.cfg.Log.Warn("Failed to emit order expired event", "order_id", order.ID, "error", err)
	}
}
