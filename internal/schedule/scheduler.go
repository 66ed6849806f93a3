package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lepinkainen/subreddit-ingest/internal/store"
)

// Option names and the event hook
const (
	EventOption      = "cron_event"
	RecurrenceOption = "cron_time"
	Hook             = "reddit_scrape"
)

// ErrAlreadyScheduled is returned when an event already exists
var ErrAlreadyScheduled = errors.New("event already scheduled")

// Event is the persisted recurring event
type Event struct {
	Hook       string     `json:"hook"`
	NextRun    int64      `json:"next_run"` // unix seconds
	Recurrence Recurrence `json:"recurrence"`
}

// NextRunTime returns NextRun as a time
func (e Event) NextRunTime() time.Time {
	return time.Unix(e.NextRun, 0)
}

// Due reports whether the event should run at now
func (e Event) Due(now time.Time) bool {
	return now.Unix() >= e.NextRun
}

// OptionStorage is the subset of the option store the scheduler needs
type OptionStorage interface {
	Get(ctx context.Context, name, def string) (string, error)
	Update(ctx context.Context, name, value string) (bool, error)
	Delete(ctx context.Context, name string) error
	AddPreUpdateFilter(name string, filter store.PreUpdateFilter)
}

// Scheduler stores one recurring event in the option store
type Scheduler struct {
	options           OptionStorage
	defaultRecurrence Recurrence
	now               func() time.Time

	mu sync.Mutex
}

// New creates a scheduler and registers its filter on the recurrence option,
// so every update of that option reschedules the event.
func New(options OptionStorage, defaultRecurrence Recurrence, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if defaultRecurrence.Interval() == 0 {
		defaultRecurrence = Hourly
	}

	s := &Scheduler{
		options:           options,
		defaultRecurrence: defaultRecurrence,
		now:               now,
	}
	options.AddPreUpdateFilter(RecurrenceOption, s.OnRecurrenceUpdate)
	return s
}

// Schedule creates the event, first due at start
func (s *Scheduler) Schedule(ctx context.Context, start time.Time, recurrence Recurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule(ctx, start, recurrence)
}

func (s *Scheduler) schedule(ctx context.Context, start time.Time, recurrence Recurrence) error {
	if _, err := ParseRecurrence(string(recurrence)); err != nil {
		return err
	}

	existing, err := s.next(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyScheduled
	}

	event := Event{Hook: Hook, NextRun: start.Unix(), Recurrence: recurrence}
	if err := s.save(ctx, event); err != nil {
		return err
	}

	slog.Info("Scheduled event", "hook", Hook, "recurrence", recurrence, "next_run", event.NextRunTime())
	return nil
}

// Clear removes the event
func (s *Scheduler) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(ctx)
}

func (s *Scheduler) clear(ctx context.Context) error {
	if err := s.options.Delete(ctx, EventOption); err != nil {
		return fmt.Errorf("failed to clear scheduled event: %w", err)
	}
	slog.Debug("Cleared scheduled event", "hook", Hook)
	return nil
}

// Next returns the scheduled event, or nil when nothing is scheduled
func (s *Scheduler) Next(ctx context.Context) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next(ctx)
}

func (s *Scheduler) next(ctx context.Context) (*Event, error) {
	raw, err := s.options.Get(ctx, EventOption, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read scheduled event: %w", err)
	}
	if raw == "" {
		return nil, nil
	}

	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, fmt.Errorf("failed to decode scheduled event: %w", err)
	}
	return &event, nil
}

func (s *Scheduler) save(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode scheduled event: %w", err)
	}
	if _, err := s.options.Update(ctx, EventOption, string(raw)); err != nil {
		return fmt.Errorf("failed to save scheduled event: %w", err)
	}
	return nil
}

// Recurrence returns the stored recurrence, or the default when unset or invalid
func (s *Scheduler) Recurrence(ctx context.Context) (Recurrence, error) {
	stored, err := s.options.Get(ctx, RecurrenceOption, "")
	if err != nil {
		return "", fmt.Errorf("failed to read recurrence: %w", err)
	}

	recurrence, err := ParseRecurrence(stored)
	if err != nil {
		return s.defaultRecurrence, nil
	}
	return recurrence, nil
}

// SetRecurrence stores a new recurrence. The option filter reschedules the event.
func (s *Scheduler) SetRecurrence(ctx context.Context, value string) error {
	if _, err := s.options.Update(ctx, RecurrenceOption, value); err != nil {
		return err
	}
	return nil
}

// Activate schedules the event now with the stored recurrence
func (s *Scheduler) Activate(ctx context.Context) error {
	recurrence, err := s.Recurrence(ctx)
	if err != nil {
		return err
	}
	return s.Schedule(ctx, s.now(), recurrence)
}

// Deactivate removes the event
func (s *Scheduler) Deactivate(ctx context.Context) error {
	return s.Clear(ctx)
}

// OnRecurrenceUpdate validates a new recurrence and reschedules the event at now
func (s *Scheduler) OnRecurrenceUpdate(ctx context.Context, value, _ string) (string, error) {
	recurrence, err := ParseRecurrence(value)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clear(ctx); err != nil {
		return "", err
	}
	if err := s.schedule(ctx, s.now(), recurrence); err != nil {
		return "", err
	}
	return value, nil
}

// Advance moves a completed event to its next slot after now, unless it was
// rescheduled while the job ran.
func (s *Scheduler) Advance(ctx context.Context, ran Event, now time.Time) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.next(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil || *current != ran {
		slog.Debug("Event changed during run, not advancing", "hook", Hook)
		return current, nil
	}

	current.NextRun = NextSlot(current.NextRunTime(), current.Recurrence.Interval(), now).Unix()
	if err := s.save(ctx, *current); err != nil {
		return nil, err
	}
	return current, nil
}

// NextSlot returns the first time after now on the grid start + k*interval
func NextSlot(start time.Time, interval time.Duration, now time.Time) time.Time {
	if interval <= 0 {
		return now
	}
	if now.Before(start) {
		return start
	}
	elapsed := now.Sub(start)
	return start.Add((elapsed/interval + 1) * interval)
}
