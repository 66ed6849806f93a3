// Package schedule keeps a single recurring ingest event and runs it when due.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecurrence is returned for recurrence names other than hourly, twicedaily and daily
var ErrInvalidRecurrence = errors.New("invalid recurrence")

// Recurrence names how often the event repeats
type Recurrence string

const (
	Hourly     Recurrence = "hourly"
	TwiceDaily Recurrence = "twicedaily"
	Daily      Recurrence = "daily"
)

var recurrences = []struct {
	name     Recurrence
	label    string
	interval time.Duration
}{
	{Hourly, "Hourly", time.Hour},
	{TwiceDaily, "Twice Daily", 12 * time.Hour},
	{Daily, "Daily", 24 * time.Hour},
}

// Recurrences lists the supported recurrences in display order
func Recurrences() []Recurrence {
	out := make([]Recurrence, 0, len(recurrences))
	for _, r := range recurrences {
		out = append(out, r.name)
	}
	return out
}

// ParseRecurrence validates a recurrence name
func ParseRecurrence(name string) (Recurrence, error) {
	for _, r := range recurrences {
		if string(r.name) == name {
			return r.name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRecurrence, name)
}

// Interval returns the time between runs, or zero for an unknown recurrence
func (r Recurrence) Interval() time.Duration {
	for _, known := range recurrences {
		if known.name == r {
			return known.interval
		}
	}
	return 0
}

// Label returns the human-readable name
func (r Recurrence) Label() string {
	for _, known := range recurrences {
		if known.name == r {
			return known.label
		}
	}
	return string(r)
}

func (r Recurrence) String() string {
	return string(r)
}
