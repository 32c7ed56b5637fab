// Package engine implements the study-session scheduling core: availability
// grid construction, priority-ordered slot allocation, overlap detection,
// deterministic conflict resolution and adaptive redistribution of missed
// work. Everything in this package is a pure, synchronous computation over
// caller-supplied state; persistence and transport live elsewhere.
package engine

import (
	"time"

	"github.com/studyflow/studyflow-api/internal/models"
)

// Options bound the engine's view of a day.
type Options struct {
	WakingStartHour   int
	WakingEndHour     int
	MinSessionMinutes int
}

// WithDefaults fills unset option fields.
func (o Options) WithDefaults() Options {
	if o.WakingStartHour <= 0 {
		o.WakingStartHour = 6
	}
	if o.WakingEndHour <= 0 || o.WakingEndHour <= o.WakingStartHour {
		o.WakingEndHour = 23
	}
	if o.MinSessionMinutes <= 0 {
		o.MinSessionMinutes = 15
	}
	return o
}

// Interval is a half-open [Start, End) span of open time. Desirability is
// higher for time inside the plan's preferred windows.
type Interval struct {
	Start        time.Time
	End          time.Time
	Desirability int
}

// Minutes returns the interval length in whole minutes.
func (iv Interval) Minutes() int {
	return int(iv.End.Sub(iv.Start) / time.Minute)
}

// DayGrid lists a single day's open intervals, ordered by desirability
// descending then chronologically.
type DayGrid struct {
	Date      time.Time
	Intervals []Interval
}

// OpenMinutes sums the day's open time.
func (d DayGrid) OpenMinutes() int {
	total := 0
	for _, iv := range d.Intervals {
		total += iv.Minutes()
	}
	return total
}

// Topic is the engine's view of a unit of study effort. It carries no
// timing: start and end times exist only on sessions the engine emits.
type Topic struct {
	ID               string
	Name             string
	EstimatedMinutes int
	Difficulty       models.Difficulty
	Priority         int
	Deadline         *time.Time
}

// Overload reports effort that found no slot before its deadline.
type Overload struct {
	TopicID        string
	Name           string
	MissingMinutes int
	Reason         string
}

// Window bounds where a session may be re-placed, derived from its topic's
// deadline and the plan's date range.
type Window struct {
	EarliestStart time.Time
	LatestStart   time.Time
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
