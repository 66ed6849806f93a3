package schedule

import (
	"context"
	"log/slog"
	"time"
)

// DefaultCheckInterval is how often the runner looks for a due event
const DefaultCheckInterval = time.Minute

// Job is the work run for each due event
type Job func(ctx context.Context) error

// Runner polls the scheduler and runs the job when the event is due. Runs never overlap.
type Runner struct {
	scheduler     *Scheduler
	job           Job
	checkInterval time.Duration
}

// NewRunner creates a runner
func NewRunner(scheduler *Scheduler, job Job, checkInterval time.Duration) *Runner {
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}
	return &Runner{
		scheduler:     scheduler,
		job:           job,
		checkInterval: checkInterval,
	}
}

// Start checks immediately and then on every tick until ctx is done
func (r *Runner) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "check_interval", r.checkInterval)

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if _, err := r.Tick(ctx); err != nil {
		slog.Error("Scheduler tick failed", "error", err)
	}
}

// Tick runs the job once if the event is due and reports whether it ran.
// Job errors are logged; the event still advances.
func (r *Runner) Tick(ctx context.Context) (bool, error) {
	event, err := r.scheduler.Next(ctx)
	if err != nil {
		return false, err
	}
	now := r.scheduler.now()
	if event == nil || !event.Due(now) {
		return false, nil
	}

	slog.Debug("Running scheduled event", "hook", event.Hook, "due", event.NextRunTime())
	if err := r.job(ctx); err != nil {
		slog.Error("Scheduled job failed", "hook", event.Hook, "error", err)
	}

	next, err := r.scheduler.Advance(ctx, *event, r.scheduler.now())
	if err != nil {
		return true, err
	}
	if next != nil {
		slog.Debug("Next run scheduled", "hook", next.Hook, "next_run", next.NextRunTime())
	}
	return true, nil
}
