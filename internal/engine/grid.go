package engine

import (
	"sort"
	"time"

	"github.com/studyflow/studyflow-api/internal/models"
)

// Named preferred-window presets, minutes from midnight.
var windowPresets = map[string][2]int{
	"morning":   {6 * 60, 12 * 60},
	"afternoon": {12 * 60, 17 * 60},
	"evening":   {17 * 60, 22 * 60},
}

// GridBuilder turns a plan's budget, preferred windows and locked blocks
// into per-day open intervals.
type GridBuilder struct {
	opts Options
}

// NewGridBuilder constructs a builder with defaulted options.
func NewGridBuilder(opts Options) *GridBuilder {
	return &GridBuilder{opts: opts.WithDefaults()}
}

// span is a half-open [start, end) range in minutes from midnight.
type span struct {
	start, end int
	score      int
}

// Build produces the availability grid for every day between from and to
// (instants, inclusive of both days). Days left with zero open minutes are
// omitted. Output is deterministic for identical input: intervals are
// stably sorted by desirability descending, then start time.
func (b *GridBuilder) Build(plan *models.Plan, blocks []models.LockedBlock, from, to time.Time) []DayGrid {
	if plan == nil || !from.Before(to) {
		return nil
	}
	from = from.UTC()
	to = to.UTC()

	windows := resolveWindows(plan.Windows())

	var grid []DayGrid
	for day := dateOf(from); !day.After(dateOf(to)); day = day.AddDate(0, 0, 1) {
		open := b.dayOpenSpans(day, from, to)
		if len(open) == 0 {
			continue
		}
		for _, block := range blocks {
			if !blockAppliesTo(block, day) {
				continue
			}
			open = subtractSpan(open, span{start: block.StartMinute, end: block.EndMinute})
		}
		scored := scoreSpans(open, windows)
		clipped := clipToBudget(scored, plan.DailyBudgetMin)
		if len(clipped) == 0 {
			continue
		}

		sort.SliceStable(clipped, func(i, j int) bool {
			if clipped[i].score != clipped[j].score {
				return clipped[i].score > clipped[j].score
			}
			return clipped[i].start < clipped[j].start
		})

		intervals := make([]Interval, 0, len(clipped))
		for _, s := range clipped {
			intervals = append(intervals, Interval{
				Start:        day.Add(time.Duration(s.start) * time.Minute),
				End:          day.Add(time.Duration(s.end) * time.Minute),
				Desirability: s.score,
			})
		}
		grid = append(grid, DayGrid{Date: day, Intervals: intervals})
	}
	return grid
}

// dayOpenSpans bounds a day to waking hours, clipped against the overall
// [from, to] range so mid-day range edges are honoured.
func (b *GridBuilder) dayOpenSpans(day, from, to time.Time) []span {
	start := b.opts.WakingStartHour * 60
	end := b.opts.WakingEndHour * 60

	if day.Equal(dateOf(from)) {
		if m := minuteOfDay(from); m > start {
			start = m
		}
	}
	if day.Equal(dateOf(to)) {
		if m := minuteOfDay(to); m < end {
			end = m
		}
	}
	if start >= end {
		return nil
	}
	return []span{{start: start, end: end}}
}

func blockAppliesTo(block models.LockedBlock, day time.Time) bool {
	if block.EndMinute <= block.StartMinute {
		return false
	}
	if block.Date != nil {
		return dateOf(block.Date.UTC()).Equal(day)
	}
	if block.Weekday != nil {
		return int(day.Weekday()) == *block.Weekday
	}
	return false
}

// subtractSpan removes [cut.start, cut.end) from each open span, splitting
// where the cut lands in the middle.
func subtractSpan(open []span, cut span) []span {
	result := make([]span, 0, len(open)+1)
	for _, s := range open {
		if cut.end <= s.start || cut.start >= s.end {
			result = append(result, s)
			continue
		}
		if cut.start > s.start {
			result = append(result, span{start: s.start, end: cut.start, score: s.score})
		}
		if cut.end < s.end {
			result = append(result, span{start: cut.end, end: s.end, score: s.score})
		}
	}
	return result
}

// resolveWindows maps labels to minute ranges. Ordering matters: earlier
// entries in the preference list score higher.
func resolveWindows(prefs []models.PreferredWindow) []span {
	windows := make([]span, 0, len(prefs))
	for i, pref := range prefs {
		start, end := pref.StartMinute, pref.EndMinute
		if end <= start {
			preset, ok := windowPresets[pref.Label]
			if !ok {
				continue
			}
			start, end = preset[0], preset[1]
		}
		windows = append(windows, span{start: start, end: end, score: len(prefs) - i})
	}
	return windows
}

// scoreSpans splits open spans at preferred-window boundaries and assigns
// each piece the best score of any window covering it. Off-window time
// scores zero.
func scoreSpans(open []span, windows []span) []span {
	if len(windows) == 0 {
		return open
	}

	var result []span
	for _, s := range open {
		cuts := []int{s.start, s.end}
		for _, w := range windows {
			if w.start > s.start && w.start < s.end {
				cuts = append(cuts, w.start)
			}
			if w.end > s.start && w.end < s.end {
				cuts = append(cuts, w.end)
			}
		}
		sort.Ints(cuts)
		for i := 0; i < len(cuts)-1; i++ {
			piece := span{start: cuts[i], end: cuts[i+1]}
			if piece.end <= piece.start {
				continue
			}
			for _, w := range windows {
				if piece.start >= w.start && piece.end <= w.end && w.score > piece.score {
					piece.score = w.score
				}
			}
			result = append(result, piece)
		}
	}
	return mergeAdjacent(result)
}

// mergeAdjacent re-joins contiguous pieces that ended up with equal scores.
func mergeAdjacent(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start == last.end && s.score == last.score {
			last.end = s.end
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// clipToBudget keeps at most budget open minutes, dropping the lowest
// desirability tail first.
func clipToBudget(spans []span, budget int) []span {
	if budget <= 0 {
		return spans
	}
	ordered := make([]span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].start < ordered[j].start
	})

	remaining := budget
	kept := make([]span, 0, len(ordered))
	for _, s := range ordered {
		if remaining <= 0 {
			break
		}
		length := s.end - s.start
		if length > remaining {
			s.end = s.start + remaining
			length = remaining
		}
		kept = append(kept, s)
		remaining -= length
	}
	return kept
}

// OpenIntervals returns one day's availability unclipped by the daily
// budget: waking hours minus the locked blocks that apply to the day.
// The budget governs how much of this time allocation may spend; a
// user-chosen placement is bounded by the availability itself.
func (b *GridBuilder) OpenIntervals(blocks []models.LockedBlock, day time.Time) []Interval {
	day = dateOf(day.UTC())
	open := []span{{start: b.opts.WakingStartHour * 60, end: b.opts.WakingEndHour * 60}}
	for _, block := range blocks {
		if !blockAppliesTo(block, day) {
			continue
		}
		open = subtractSpan(open, span{start: block.StartMinute, end: block.EndMinute})
	}

	intervals := make([]Interval, 0, len(open))
	for _, s := range open {
		intervals = append(intervals, Interval{
			Start: day.Add(time.Duration(s.start) * time.Minute),
			End:   day.Add(time.Duration(s.end) * time.Minute),
		})
	}
	return intervals
}

// Covers reports whether [start, end) lies entirely inside the union of
// the intervals. Contiguous intervals count as one continuous stretch.
func Covers(intervals []Interval, start, end time.Time) bool {
	if !start.Before(end) {
		return false
	}
	ordered := make([]Interval, len(intervals))
	copy(ordered, intervals)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start.Before(ordered[j].Start) })

	cursor := start
	for _, iv := range ordered {
		if iv.End.Compare(cursor) <= 0 {
			continue
		}
		if iv.Start.After(cursor) {
			return false
		}
		cursor = iv.End
		if !cursor.Before(end) {
			return true
		}
	}
	return false
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
