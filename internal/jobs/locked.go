package jobs

import (
	"context"
	"time"

	"studiobook/internal/joblock"
	"studiobook/pkg/config"
)

// runLocked wraps one coordinator batch in a job lock. When the lock is
// held elsewhere the run is a clean no-op; the holder's run covers this
// anchor window for the whole fleet.
func runLocked(
	ctx context.Context,
	cfg *config.Config,
	locks joblock.Store,
	key, owner string,
	fn func(ctx context.Context) (Summary, error),
) (Summary, error) {
	acquired, err := locks.Acquire(ctx, key, owner, cfg.JobLockTTL)
	if err != nil {
		return Summary{}, err
	}
	if !acquired {
		cfg.Log.Debug("Job lock busy, skipping run", "key", key)
		return Summary{Skipped: 1}, nil
	}
	defer func() {
		if err := locks.Release(ctx, key, owner); err != nil {
			cfg.Log.Warn("Failed to release job lock", "key", key, "error", err)
		}
	}()

	// Long batches renew in the background so the TTL reaper cannot hand
	// the lock to another replica mid-run.
	renewCtx, stopRenew := context.WithCancel(ctx)
	defer stopRenew()
	go renewLoop(renewCtx, cfg, locks, key, owner)

	return fn(ctx)
}

func renewLoop(ctx context.Context, cfg *config.Config, locks joblock.Store, key, owner string) {
	interval := cfg.JobLockTTL / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			renewed, err := locks.Renew(ctx, key, owner, cfg.JobLockTTL)
			if err != nil {
				cfg.Log.Warn("Failed to renew job lock", "key", key, "error", err)
				continue
			}
			if !renewed {
				cfg.Log.Warn("Job lock lost before run finished", "key", key)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
