package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyflow/studyflow-api/internal/models"
)

func testPlan(t *testing.T, budget int, windows []models.PreferredWindow) *models.Plan {
	t.Helper()
	var raw types.JSONText
	if len(windows) > 0 {
		payload, err := json.Marshal(windows)
		require.NoError(t, err)
		raw = types.JSONText(payload)
	}
	return &models.Plan{
		ID:               "plan-1",
		OwnerID:          "owner-1",
		Title:            "Finals prep",
		StartDate:        time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		DailyBudgetMin:   budget,
		PreferredWindows: raw,
	}
}

func day(t *testing.T, dayOfMonth, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2025, 3, dayOfMonth, hour, minute, 0, 0, time.UTC)
}

func TestGridBuilderBoundsToWakingHours(t *testing.T) {
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 0, nil)

	grid := builder.Build(plan, nil, day(t, 3, 0, 0), day(t, 3, 23, 59))
	require.Len(t, grid, 1)
	require.Len(t, grid[0].Intervals, 1)
	assert.Equal(t, day(t, 3, 6, 0), grid[0].Intervals[0].Start)
	assert.Equal(t, day(t, 3, 23, 0), grid[0].Intervals[0].End)
}

func TestGridBuilderSubtractsLockedBlocks(t *testing.T) {
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 0, nil)
	monday := 1
	blocks := []models.LockedBlock{
		{PlanID: plan.ID, Weekday: &monday, StartMinute: 9 * 60, EndMinute: 12 * 60, Label: "lectures"},
	}

	// 2025-03-03 is a Monday.
	grid := builder.Build(plan, blocks, day(t, 3, 0, 0), day(t, 3, 23, 59))
	require.Len(t, grid, 1)
	require.Len(t, grid[0].Intervals, 2)
	assert.Equal(t, day(t, 3, 6, 0), grid[0].Intervals[0].Start)
	assert.Equal(t, day(t, 3, 9, 0), grid[0].Intervals[0].End)
	assert.Equal(t, day(t, 3, 12, 0), grid[0].Intervals[1].Start)
}

func TestGridBuilderOmitsFullyBlockedDays(t *testing.T) {
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 0, nil)
	tuesday := day(t, 4, 0, 0)
	blocks := []models.LockedBlock{
		{PlanID: plan.ID, Date: &tuesday, StartMinute: 0, EndMinute: 24 * 60, Label: "away"},
	}

	grid := builder.Build(plan, blocks, day(t, 3, 0, 0), day(t, 5, 23, 59))
	require.Len(t, grid, 2)
	assert.Equal(t, day(t, 3, 0, 0), grid[0].Date)
	assert.Equal(t, day(t, 5, 0, 0), grid[1].Date)
}

func TestGridBuilderPreferredWindowsScoreHigher(t *testing.T) {
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 0, []models.PreferredWindow{{Label: "evening"}, {Label: "morning"}})

	grid := builder.Build(plan, nil, day(t, 3, 0, 0), day(t, 3, 23, 59))
	require.Len(t, grid, 1)
	require.NotEmpty(t, grid[0].Intervals)

	first := grid[0].Intervals[0]
	assert.Equal(t, day(t, 3, 17, 0), first.Start, "first preference (evening) should lead")
	assert.Equal(t, 2, first.Desirability)
	for i := 1; i < len(grid[0].Intervals); i++ {
		assert.LessOrEqual(t, grid[0].Intervals[i].Desirability, grid[0].Intervals[i-1].Desirability)
	}
}

func TestGridBuilderClipsToDailyBudgetKeepingPreferredTime(t *testing.T) {
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 120, []models.PreferredWindow{{Label: "evening"}})

	grid := builder.Build(plan, nil, day(t, 3, 0, 0), day(t, 3, 23, 59))
	require.Len(t, grid, 1)
	assert.Equal(t, 120, grid[0].OpenMinutes())
	// Budget should be spent inside the evening window, not at 06:00.
	assert.Equal(t, day(t, 3, 17, 0), grid[0].Intervals[0].Start)
}

func TestGridBuilderDeterministic(t *testing.T) {
	builder := NewGridBuilder(Options{})
	monday := 1
	blocks := []models.LockedBlock{
		{Weekday: &monday, StartMinute: 8 * 60, EndMinute: 10 * 60},
		{Weekday: &monday, StartMinute: 14 * 60, EndMinute: 15 * 60},
	}
	plan := testPlan(t, 180, []models.PreferredWindow{{Label: "morning"}, {Label: "afternoon"}})

	first := builder.Build(plan, blocks, day(t, 3, 0, 0), day(t, 9, 23, 59))
	second := builder.Build(plan, blocks, day(t, 3, 0, 0), day(t, 9, 23, 59))
	assert.Equal(t, first, second)
}

func TestGridBuilderOpenIntervalsIgnoreBudget(t *testing.T) {
	builder := NewGridBuilder(Options{})
	monday := 1
	blocks := []models.LockedBlock{
		{Weekday: &monday, StartMinute: 9 * 60, EndMinute: 10 * 60},
	}

	open := builder.OpenIntervals(blocks, day(t, 3, 12, 0))
	require.Len(t, open, 2)
	assert.Equal(t, day(t, 3, 6, 0), open[0].Start)
	assert.Equal(t, day(t, 3, 9, 0), open[0].End)
	assert.Equal(t, day(t, 3, 10, 0), open[1].Start)
	assert.Equal(t, day(t, 3, 23, 0), open[1].End)

	assert.True(t, Covers(open, day(t, 3, 12, 0), day(t, 3, 13, 0)))
	assert.False(t, Covers(open, day(t, 3, 8, 30), day(t, 3, 9, 30)), "a span crossing into a locked block is not covered")
	assert.False(t, Covers(open, day(t, 3, 5, 0), day(t, 3, 6, 0)))
}

func TestCoversSpansContiguousIntervals(t *testing.T) {
	intervals := []Interval{
		{Start: day(t, 3, 9, 0), End: day(t, 3, 12, 0)},
		{Start: day(t, 3, 6, 0), End: day(t, 3, 9, 0), Desirability: 1},
	}
	assert.True(t, Covers(intervals, day(t, 3, 8, 0), day(t, 3, 10, 0)), "equal-edge neighbours form one stretch")
	assert.False(t, Covers(intervals, day(t, 3, 11, 0), day(t, 3, 13, 0)))
	assert.False(t, Covers(intervals, day(t, 3, 8, 0), day(t, 3, 8, 0)), "an empty span covers nothing")
}

func TestGridBuilderClipsFirstDayToRangeStart(t *testing.T) {
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 0, nil)

	grid := builder.Build(plan, nil, day(t, 3, 20, 30), day(t, 4, 23, 59))
	require.Len(t, grid, 2)
	assert.Equal(t, day(t, 3, 20, 30), grid[0].Intervals[0].Start)
	assert.Equal(t, day(t, 4, 6, 0), grid[1].Intervals[0].Start)
}
