// Package expiry runs the scheduled sweep that expires finished weekly packages.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// DefaultSchedule sweeps every five minutes.
const DefaultSchedule = "@every 5m"

// Expirer flips past-due packages to expired.
type Expirer interface {
	ExpirePackages(ctx context.Context, now time.Time) (int64, error)
}

// Worker runs the expiry sweep on a cron schedule.
type Worker struct {
	store    Expirer
	schedule string
	now      func() time.Time
}

// NewWorker creates a worker. An empty schedule uses DefaultSchedule.
func NewWorker(store Expirer, schedule string) *Worker {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Worker{store: store, schedule: schedule, now: time.Now}
}

// Validate checks that the schedule parses.
func Validate(schedule string) error {
	if _, err := rcron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", schedule, err)
	}
	return nil
}

// Run sweeps once, then on schedule until ctx is done. It waits for a
// running sweep to finish before returning.
func (w *Worker) Run(ctx context.Context) error {
	c := rcron.New()
	if _, err := c.AddFunc(w.schedule, func() { w.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}

	w.Sweep(ctx)
	c.Start()
	slog.Info("Expiry worker started", "schedule", w.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("Expiry worker shutting down", "reason", ctx.Err())
	return nil
}

// Sweep expires due packages once and returns how many changed.
func (w *Worker) Sweep(ctx context.Context) int64 {
	if ctx.Err() != nil {
		return 0
	}
	n, err := w.store.ExpirePackages(ctx, w.now())
	if err != nil {
		slog.Error("Expiry sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("Expired weekly packages", "count", n)
	}
	return n
}
