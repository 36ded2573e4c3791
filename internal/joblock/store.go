package joblock

import (
	"context"
	"fmt"
	"time"

	"studiobook/pkg/timeutil"
)

// Store is the mutual-exclusion primitive for scheduled jobs. Acquire is
// first-writer-wins: a false result means another owner holds a live lock
// and the caller should skip its run, not fail it.
type Store interface {
	// Acquire claims key for owner until now+ttl. It returns (true, nil)
	// on success, (false, nil) when a different owner holds an unexpired
	// lock, and a non-nil error only on storage failure.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Renew extends a lock the owner already holds. It returns false when
	// the lock is gone or held by someone else.
	Renew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release deletes the lock if owner still holds it. Releasing a lock
	// held by another owner is a no-op.
	Release(ctx context.Context, key, owner string) error
	IsLocked(ctx context.Context, key string) (bool, error)
}

// HourKey anchors a job run to its display-zone hour, so every scheduler
// replica competing for the same hourly run contends on the same key.
func HourKey(job string, zone *timeutil.Zone, t time.Time) string {
	return fmt.Sprintf("job:%s:%s", job, zone.In(t).Format("2006-01-02T15"))
}

// DayKey anchors a job run to its display-zone calendar day.
func DayKey(job string, zone *timeutil.Zone, t time.Time) string {
	return fmt.Sprintf("job:%s:%s", job, zone.In(t).Format("2006-01-02"))
}
