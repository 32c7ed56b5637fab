package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyflow/studyflow-api/internal/models"
)

func defaultPolicy() models.CognitiveLoadPolicy {
	return models.CognitiveLoadPolicy{MaxSessionsPerDay: 4, MaxHardSessionsPerDay: 2}
}

func assertNoOverlaps(t *testing.T, sessions []models.Session) {
	t.Helper()
	for i := range sessions {
		for j := i + 1; j < len(sessions); j++ {
			assert.Falsef(t, sessions[i].Overlaps(&sessions[j]),
				"sessions %s and %s overlap", sessions[i].ID, sessions[j].ID)
		}
	}
}

func allocatedMinutes(sessions []models.Session, topicID string) int {
	total := 0
	for _, s := range sessions {
		if s.TopicID == topicID {
			total += s.DurationMinutes()
		}
	}
	return total
}

func TestAllocatorHardTopicFirstMediumSpillsToNextDay(t *testing.T) {
	alloc := NewAllocator(Options{})
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 120, nil)
	policy := models.CognitiveLoadPolicy{MaxSessionsPerDay: 4, MaxHardSessionsPerDay: 1}

	topics := []Topic{
		{ID: "t-medium", Name: "Statistics", EstimatedMinutes: 120, Difficulty: models.DifficultyMedium, Priority: 3},
		{ID: "t-hard", Name: "Organic chemistry", EstimatedMinutes: 90, Difficulty: models.DifficultyHard, Priority: 5},
		{ID: "t-easy", Name: "Vocabulary", EstimatedMinutes: 60, Difficulty: models.DifficultyEasy, Priority: 1},
	}

	grid := builder.Build(plan, nil, plan.StartDate, plan.EndDate.Add(24*time.Hour))
	sessions, overloads := alloc.Allocate(plan, grid, topics, policy)

	assert.Empty(t, overloads)
	require.NotEmpty(t, sessions)

	// Highest priority wins the best slot of day one.
	assert.Equal(t, "t-hard", sessions[0].TopicID)
	assert.Equal(t, day(t, 3, 6, 0), sessions[0].StartAt)
	assert.Equal(t, 90, sessions[0].DurationMinutes())

	// The medium topic cannot finish inside day one's remaining budget and
	// spills into day two.
	var mediumDays []time.Time
	for _, s := range sessions {
		if s.TopicID == "t-medium" {
			mediumDays = append(mediumDays, dateOf(s.StartAt))
		}
	}
	require.NotEmpty(t, mediumDays)
	assert.Contains(t, mediumDays, day(t, 4, 0, 0))

	assert.Equal(t, 120, allocatedMinutes(sessions, "t-medium"))
	assert.Equal(t, 90, allocatedMinutes(sessions, "t-hard"))
	assert.Equal(t, 60, allocatedMinutes(sessions, "t-easy"))
	assertNoOverlaps(t, sessions)

	hardPerDay := map[time.Time]int{}
	perDay := map[time.Time]int{}
	for _, s := range sessions {
		d := dateOf(s.StartAt)
		perDay[d]++
		if s.Difficulty == models.DifficultyHard {
			hardPerDay[d]++
		}
	}
	for d, n := range perDay {
		assert.LessOrEqualf(t, n, policy.MaxSessionsPerDay, "too many sessions on %s", d)
	}
	for d, n := range hardPerDay {
		assert.LessOrEqualf(t, n, policy.MaxHardSessionsPerDay, "too many hard sessions on %s", d)
	}
}

func TestAllocatorDeterministic(t *testing.T) {
	alloc := NewAllocator(Options{})
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 180, []models.PreferredWindow{{Label: "morning"}})

	topics := []Topic{
		{ID: "t-a", Name: "Algebra", EstimatedMinutes: 200, Difficulty: models.DifficultyMedium, Priority: 4},
		{ID: "t-b", Name: "Biology", EstimatedMinutes: 95, Difficulty: models.DifficultyHard, Priority: 4},
		{ID: "t-c", Name: "Civics", EstimatedMinutes: 45, Difficulty: models.DifficultyEasy, Priority: 2},
	}
	reordered := []Topic{topics[2], topics[0], topics[1]}

	grid := builder.Build(plan, nil, plan.StartDate, plan.EndDate.Add(24*time.Hour))

	first, firstOver := alloc.Allocate(plan, grid, topics, defaultPolicy())
	second, secondOver := alloc.Allocate(plan, grid, topics, defaultPolicy())
	third, thirdOver := alloc.Allocate(plan, grid, reordered, defaultPolicy())

	assert.Equal(t, first, second)
	assert.Equal(t, firstOver, secondOver)
	assert.Equal(t, first, third, "input order must not change the outcome")
	assert.Equal(t, firstOver, thirdOver)
}

func TestAllocatorConservationUnderOverload(t *testing.T) {
	alloc := NewAllocator(Options{})
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 60, nil)
	plan.EndDate = plan.StartDate.Add(24 * time.Hour) // two days, 120 open minutes

	topics := []Topic{
		{ID: "t-big", Name: "Thermodynamics", EstimatedMinutes: 300, Difficulty: models.DifficultyMedium, Priority: 5},
	}

	grid := builder.Build(plan, nil, plan.StartDate, plan.EndDate.Add(24*time.Hour))
	sessions, overloads := alloc.Allocate(plan, grid, topics, defaultPolicy())

	require.Len(t, overloads, 1)
	assert.Equal(t, "t-big", overloads[0].TopicID)
	assert.Equal(t, 300, allocatedMinutes(sessions, "t-big")+overloads[0].MissingMinutes)
	assert.Contains(t, overloads[0].Reason, "no remaining capacity")
}

func TestAllocatorDeadlineBeforeAnyCapacity(t *testing.T) {
	alloc := NewAllocator(Options{})
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 0, nil)
	deadline := plan.StartDate // midnight of day one, before waking hours

	topics := []Topic{
		{ID: "t-late", Name: "History essay", EstimatedMinutes: 60, Difficulty: models.DifficultyEasy, Priority: 3, Deadline: &deadline},
	}

	grid := builder.Build(plan, nil, plan.StartDate, plan.EndDate.Add(24*time.Hour))
	sessions, overloads := alloc.Allocate(plan, grid, topics, defaultPolicy())

	assert.Empty(t, sessions)
	require.Len(t, overloads, 1)
	assert.Equal(t, 60, overloads[0].MissingMinutes)
	assert.Contains(t, overloads[0].Reason, "deadline")
}

func TestAllocatorSplitNeverLeavesRunt(t *testing.T) {
	alloc := NewAllocator(Options{})
	grid := []DayGrid{
		{Date: day(t, 3, 0, 0), Intervals: []Interval{{Start: day(t, 3, 6, 0), End: day(t, 3, 6, 20)}}},
		{Date: day(t, 4, 0, 0), Intervals: []Interval{{Start: day(t, 4, 6, 0), End: day(t, 4, 8, 0)}}},
	}
	plan := testPlan(t, 0, nil)

	// Splitting 25 minutes as 20+5 would leave a 5-minute runt, and 10+15
	// would leave a 10-minute head: both below the 15-minute floor, so the
	// topic must skip day one and land whole on day two.
	topics := []Topic{
		{ID: "t-split", Name: "Reading", EstimatedMinutes: 25, Difficulty: models.DifficultyEasy, Priority: 2},
	}
	sessions, overloads := alloc.Allocate(plan, grid, topics, defaultPolicy())

	assert.Empty(t, overloads)
	require.Len(t, sessions, 1)
	assert.Equal(t, day(t, 4, 6, 0), sessions[0].StartAt)
	assert.Equal(t, 25, sessions[0].DurationMinutes())
}

func TestAllocatorTopicBelowMinimumPlacedWhole(t *testing.T) {
	alloc := NewAllocator(Options{})
	grid := []DayGrid{
		{Date: day(t, 3, 0, 0), Intervals: []Interval{{Start: day(t, 3, 6, 0), End: day(t, 3, 6, 20)}}},
	}
	plan := testPlan(t, 0, nil)

	topics := []Topic{
		{ID: "t-tiny", Name: "Flashcards", EstimatedMinutes: 10, Difficulty: models.DifficultyEasy, Priority: 1},
	}
	sessions, overloads := alloc.Allocate(plan, grid, topics, defaultPolicy())

	assert.Empty(t, overloads)
	require.Len(t, sessions, 1)
	assert.Equal(t, 10, sessions[0].DurationMinutes())
}

func TestSortTopicsOrdering(t *testing.T) {
	early := day(t, 4, 0, 0)
	late := day(t, 6, 0, 0)
	topics := []Topic{
		{ID: "c", Priority: 3},
		{ID: "a", Priority: 3, Deadline: &late},
		{ID: "b", Priority: 3, Deadline: &early},
		{ID: "d", Priority: 5},
		{ID: "e", Priority: 3, Deadline: &late},
	}

	sorted := SortTopics(topics)
	ids := make([]string, 0, len(sorted))
	for _, tp := range sorted {
		ids = append(ids, tp.ID)
	}
	assert.Equal(t, []string{"d", "b", "a", "e", "c"}, ids)
	assert.Equal(t, "c", topics[0].ID, "input slice must stay untouched")
}

func TestPlaceOneAvoidsBusySessions(t *testing.T) {
	alloc := NewAllocator(Options{})
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 0, nil)

	busy := []models.Session{{
		ID:         "s-busy",
		PlanID:     plan.ID,
		TopicID:    "t-other",
		Difficulty: models.DifficultyMedium,
		Status:     models.SessionStatusPending,
		StartAt:    day(t, 3, 6, 0),
		EndAt:      day(t, 3, 10, 0),
	}}
	topic := Topic{ID: "t-move", Name: "Physics", EstimatedMinutes: 60, Difficulty: models.DifficultyMedium, Priority: 4}
	window := Window{EarliestStart: day(t, 3, 6, 0), LatestStart: day(t, 3, 22, 0)}

	grid := builder.Build(plan, nil, day(t, 3, 0, 0), day(t, 3, 23, 59))
	placed, reason, ok := alloc.PlaceOne(plan, grid, topic, window, busy, defaultPolicy())

	require.True(t, ok, reason)
	assert.Equal(t, day(t, 3, 10, 0), placed.StartAt)
	assert.Equal(t, day(t, 3, 11, 0), placed.EndAt)
}

func TestPlaceOneRespectsDayCaps(t *testing.T) {
	alloc := NewAllocator(Options{})
	builder := NewGridBuilder(Options{})
	plan := testPlan(t, 0, nil)
	plan.EndDate = plan.StartDate // single day

	busy := []models.Session{{
		ID:         "s-busy",
		PlanID:     plan.ID,
		TopicID:    "t-other",
		Difficulty: models.DifficultyEasy,
		Status:     models.SessionStatusPending,
		StartAt:    day(t, 3, 6, 0),
		EndAt:      day(t, 3, 7, 0),
	}}
	topic := Topic{ID: "t-move", Name: "Physics", EstimatedMinutes: 30, Difficulty: models.DifficultyMedium, Priority: 4}
	window := Window{EarliestStart: day(t, 3, 6, 0), LatestStart: day(t, 3, 22, 0)}
	policy := models.CognitiveLoadPolicy{MaxSessionsPerDay: 1, MaxHardSessionsPerDay: 1}

	grid := builder.Build(plan, nil, day(t, 3, 0, 0), day(t, 3, 23, 59))
	_, reason, ok := alloc.PlaceOne(plan, grid, topic, window, busy, policy)

	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}
