package engine

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/studyflow/studyflow-api/internal/models"
)

// Allocator assigns topic effort to open intervals using
// first-fit-decreasing by priority with cognitive-load gating.
type Allocator struct {
	opts Options
}

// NewAllocator constructs an allocator with defaulted options.
func NewAllocator(opts Options) *Allocator {
	return &Allocator{opts: opts.WithDefaults()}
}

type dayState struct {
	date      time.Time
	intervals []Interval
	sessions  int
	hard      int
}

// SortTopics orders topics for allocation: priority weight descending,
// deadline ascending (topics without a deadline last), topic id as the
// stable tie-break. The input slice is not modified.
func SortTopics(topics []Topic) []Topic {
	sorted := make([]Topic, len(topics))
	copy(sorted, topics)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		di, dj := sorted[i].Deadline, sorted[j].Deadline
		switch {
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// Allocate places every topic into the grid. Topics that cannot be fully
// placed before their deadline are reported as overloaded, never dropped
// and never an error; the run always terminates with partial results.
func (a *Allocator) Allocate(plan *models.Plan, grid []DayGrid, topics []Topic, policy models.CognitiveLoadPolicy) ([]models.Session, []Overload) {
	return a.allocateTopics(plan, a.newDayStates(grid), topics, policy)
}

// AllocateWithBusy is Allocate with already-placed sessions carved out of
// the grid and charged against the day caps. Re-plans over a partially
// executed plan use this so completed and in-progress work stays fixed.
func (a *Allocator) AllocateWithBusy(plan *models.Plan, grid []DayGrid, topics []Topic, busy []models.Session, policy models.CognitiveLoadPolicy) ([]models.Session, []Overload) {
	days := a.newDayStates(grid)
	a.subtractBusy(days, busy)
	a.seedCounters(days, busy)
	return a.allocateTopics(plan, days, topics, policy)
}

func (a *Allocator) allocateTopics(plan *models.Plan, days []*dayState, topics []Topic, policy models.CognitiveLoadPolicy) ([]models.Session, []Overload) {
	var sessions []models.Session
	overloads := make([]Overload, 0)

	for _, topic := range SortTopics(topics) {
		remaining := topic.EstimatedMinutes
		part := 0
		for remaining > 0 {
			session, chunk := a.placeChunk(plan, days, topic, remaining, policy, part)
			if chunk == 0 {
				overloads = append(overloads, Overload{
					TopicID:        topic.ID,
					Name:           topic.Name,
					MissingMinutes: remaining,
					Reason:         overloadReason(topic),
				})
				break
			}
			sessions = append(sessions, session)
			remaining -= chunk
			part++
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].StartAt.Equal(sessions[j].StartAt) {
			return sessions[i].StartAt.Before(sessions[j].StartAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, overloads
}

// PlaceOne re-places a single session-sized chunk of effort inside window,
// avoiding the caller's busy sessions and honouring day caps they already
// consume. Used by the conflict resolver and the adaptive rescheduler.
func (a *Allocator) PlaceOne(plan *models.Plan, grid []DayGrid, topic Topic, window Window, busy []models.Session, policy models.CognitiveLoadPolicy) (models.Session, string, bool) {
	days := a.newDayStates(grid)
	a.subtractBusy(days, busy)
	a.seedCounters(days, busy)

	duration := topic.EstimatedMinutes
	for _, day := range days {
		if day.sessions >= policy.MaxSessionsPerDay {
			continue
		}
		if topic.Difficulty == models.DifficultyHard && day.hard >= policy.MaxHardSessionsPerDay {
			continue
		}
		for _, iv := range day.intervals {
			start := maxTime(iv.Start, window.EarliestStart)
			if start.After(window.LatestStart) {
				continue
			}
			end := start.Add(time.Duration(duration) * time.Minute)
			if end.After(iv.End) {
				continue
			}
			if topic.Deadline != nil && end.After(*topic.Deadline) {
				continue
			}
			return a.newSession(plan, topic, start, duration, 0), "", true
		}
	}
	return models.Session{}, "no open interval within the flexible window", false
}

// placeChunk finds the earliest day with capacity and carves the largest
// legal chunk out of its best interval. Returns the emitted session and the
// chunk size, or zero when nothing fits.
func (a *Allocator) placeChunk(plan *models.Plan, days []*dayState, topic Topic, remaining int, policy models.CognitiveLoadPolicy, part int) (models.Session, int) {
	for _, day := range days {
		if day.sessions >= policy.MaxSessionsPerDay {
			continue
		}
		if topic.Difficulty == models.DifficultyHard && day.hard >= policy.MaxHardSessionsPerDay {
			continue
		}
		for idx, iv := range day.intervals {
			chunk := a.chunkFor(iv, topic, remaining)
			if chunk == 0 {
				continue
			}
			session := a.newSession(plan, topic, iv.Start, chunk, part)
			day.carve(idx, chunk)
			day.sessions++
			if topic.Difficulty == models.DifficultyHard {
				day.hard++
			}
			return session, chunk
		}
	}
	return models.Session{}, 0
}

// chunkFor sizes the piece of remaining effort this interval can take.
// Splitting never leaves either side below the minimum session duration;
// a topic smaller than the minimum is placed whole.
func (a *Allocator) chunkFor(iv Interval, topic Topic, remaining int) int {
	capacity := iv.Minutes()
	if topic.Deadline != nil {
		untilDeadline := int(topic.Deadline.Sub(iv.Start) / time.Minute)
		if untilDeadline < capacity {
			capacity = untilDeadline
		}
	}
	if capacity <= 0 {
		return 0
	}

	if remaining <= capacity {
		return remaining
	}

	chunk := capacity
	if chunk < a.opts.MinSessionMinutes {
		return 0
	}
	if leftover := remaining - chunk; leftover < a.opts.MinSessionMinutes {
		chunk = remaining - a.opts.MinSessionMinutes
		if chunk < a.opts.MinSessionMinutes {
			return 0
		}
	}
	return chunk
}

func (a *Allocator) newDayStates(grid []DayGrid) []*dayState {
	days := make([]*dayState, 0, len(grid))
	for _, day := range grid {
		intervals := make([]Interval, len(day.Intervals))
		copy(intervals, day.Intervals)
		days = append(days, &dayState{date: day.Date, intervals: intervals})
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	return days
}

// carve consumes minutes from the front of interval idx, keeping the
// remainder (if any) in place and the interval order stable.
func (d *dayState) carve(idx, minutes int) {
	iv := d.intervals[idx]
	iv.Start = iv.Start.Add(time.Duration(minutes) * time.Minute)
	if iv.Minutes() > 0 {
		d.intervals[idx] = iv
		return
	}
	d.intervals = append(d.intervals[:idx], d.intervals[idx+1:]...)
}

// subtractBusy removes already-placed session time from the open intervals.
func (a *Allocator) subtractBusy(days []*dayState, busy []models.Session) {
	for _, day := range days {
		for _, s := range busy {
			var next []Interval
			for _, iv := range day.intervals {
				if s.EndAt.Compare(iv.Start) <= 0 || s.StartAt.Compare(iv.End) >= 0 {
					next = append(next, iv)
					continue
				}
				if s.StartAt.After(iv.Start) {
					next = append(next, Interval{Start: iv.Start, End: s.StartAt, Desirability: iv.Desirability})
				}
				if s.EndAt.Before(iv.End) {
					next = append(next, Interval{Start: s.EndAt, End: iv.End, Desirability: iv.Desirability})
				}
			}
			day.intervals = next
		}
	}
}

// seedCounters charges busy sessions against the day caps.
func (a *Allocator) seedCounters(days []*dayState, busy []models.Session) {
	for _, day := range days {
		for _, s := range busy {
			if dateOf(s.StartAt).Equal(day.date) {
				day.sessions++
				if s.Difficulty == models.DifficultyHard {
					day.hard++
				}
			}
		}
	}
}

// newSession materialises a placement. IDs are derived deterministically
// from (plan, topic, part) so identical allocation inputs yield identical
// session sets.
func (a *Allocator) newSession(plan *models.Plan, topic Topic, start time.Time, minutes, part int) models.Session {
	end := start.Add(time.Duration(minutes) * time.Minute)
	window := a.flexibleWindow(plan, topic, minutes)
	return models.Session{
		ID:            uuid.NewSHA1(uuid.NameSpaceOID, []byte(plan.ID+"/"+topic.ID+"/"+strconv.Itoa(part))).String(),
		PlanID:        plan.ID,
		TopicID:       topic.ID,
		Title:         topic.Name,
		Difficulty:    topic.Difficulty,
		Priority:      topic.Priority,
		Status:        models.SessionStatusPending,
		StartAt:       start,
		EndAt:         end,
		EarliestStart: window.EarliestStart,
		LatestStart:   window.LatestStart,
	}
}

// flexibleWindow derives the earliest/latest allowable start from the
// topic's deadline and the plan's date range.
func (a *Allocator) flexibleWindow(plan *models.Plan, topic Topic, minutes int) Window {
	earliest := dateOf(plan.StartDate.UTC()).Add(time.Duration(a.opts.WakingStartHour) * time.Hour)
	latestEnd := dateOf(plan.EndDate.UTC()).Add(time.Duration(a.opts.WakingEndHour) * time.Hour)
	if topic.Deadline != nil {
		latestEnd = minTime(latestEnd, topic.Deadline.UTC())
	}
	latest := latestEnd.Add(-time.Duration(minutes) * time.Minute)
	if latest.Before(earliest) {
		latest = earliest
	}
	return Window{EarliestStart: earliest, LatestStart: latest}
}

func overloadReason(topic Topic) string {
	if topic.Deadline != nil {
		return fmt.Sprintf("no remaining capacity before deadline %s", topic.Deadline.UTC().Format(time.RFC3339))
	}
	return "no remaining capacity within the plan range"
}
