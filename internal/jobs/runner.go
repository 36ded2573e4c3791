package jobs

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"studiobook/pkg/config"
	"studiobook/pkg/timeutil"
)

// Summary is what one coordinator run accomplished. A lock-busy run is a
// success with everything skipped, never an error.
type Summary struct {
	Processed int
	Skipped   int
	Errors    int
}

func (s Summary) Add(other Summary) Summary {
	return Summary{
		Processed: s.Processed + other.Processed,
		Skipped:   s.Skipped + other.Skipped,
		Errors:    s.Errors + other.Errors,
	}
}

// Task is a single scheduled coordinator. Run must be safe to invoke
// repeatedly; idempotency comes from the job lock plus per-item markers.
type Task interface {
	Name() string
	Run(ctx context.Context, now time.Time) (Summary, error)
}

// Schedule triggers a task either on a fixed interval or once per day at
// a display-zone wall-clock time. Exactly one field is set.
type Schedule struct {
	Interval time.Duration
	DailyAt  string
}

type entry struct {
	task     Task
	schedule Schedule
}

// Runner drives registered tasks on their schedules. Each task gets one
// goroutine; a run still in flight when the next tick fires makes that
// tick coalesce into a skip rather than overlap.
type Runner struct {
	cfg      *config.Config
	zone     *timeutil.Zone
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	entries  []entry
}

func NewRunner(cfg *config.Config, zone *timeutil.Zone) *Runner {
	return &Runner{
		cfg:      cfg,
		zone:     zone,
		stopChan: make(chan struct{}),
	}
}

func (r *Runner) Register(task Task, schedule Schedule) {
	r.entries = append(r.entries, entry{task: task, schedule: schedule})
}

func (r *Runner) Start(ctx context.Context) {
	r.cfg.Log.Info("Starting job runner", "tasks", len(r.entries))
	for _, e := range r.entries {
		r.wg.Add(1)
		if e.schedule.DailyAt != "" {
			go r.runDaily(ctx, e.task, e.schedule.DailyAt)
		} else {
			go r.runInterval(ctx, e.task, e.schedule.Interval)
		}
	}
}

// Stop signals all task loops and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	r.cfg.Log.Info("Stopping job runner")
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

func (r *Runner) runInterval(ctx context.Context, task Task, interval time.Duration) {
	defer r.wg.Done()

	r.invoke(ctx, task)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.invoke(ctx, task)
		case <-r.stopChan:
			r.cfg.Log.Info("Task loop stopped", "task", task.Name())
			return
		case <-ctx.Done():
			r.cfg.Log.Info("Task loop cancelled", "task", task.Name())
			return
		}
	}
}

// runDaily recomputes the next fire time after every run instead of
// ticking a fixed 24h, so DST shifts in the display zone cannot drift
// the wall-clock schedule.
func (r *Runner) runDaily(ctx context.Context, task Task, at string) {
	defer r.wg.Done()

	for {
		wait := time.Until(r.nextDaily(time.Now(), at))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			r.invoke(ctx, task)
		case <-r.stopChan:
			timer.Stop()
			r.cfg.Log.Info("Task loop stopped", "task", task.Name())
			return
		case <-ctx.Done():
			timer.Stop()
			r.cfg.Log.Info("Task loop cancelled", "task", task.Name())
			return
		}
	}
}

func (r *Runner) nextDaily(now time.Time, at string) time.Time {
	minutes, err := timeutil.ParseClock(at)
	if err != nil {
		// Validated at config load; fall back to midnight if it slips.
		minutes = 0
	}
	local := r.zone.Midnight(now).Add(time.Duration(minutes) * time.Minute)
	if !local.After(now) {
		local = r.zone.Midnight(now.AddDate(0, 0, 1)).Add(time.Duration(minutes) * time.Minute)
	}
	return local
}

func (r *Runner) invoke(ctx context.Context, task Task) {
	now := time.Now()
	summary, err := task.Run(ctx, now)
	if err != nil {
		r.cfg.Log.Error("Task run failed", "task", task.Name(), "error", err)
		return
	}
	r.cfg.Log.Info("Task run finished",
		"task", task.Name(),
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
	)
}

// NewOwner identifies this scheduler instance in job lock documents.
func NewOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "scheduler"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
