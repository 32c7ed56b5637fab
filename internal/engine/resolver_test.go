package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyflow/studyflow-api/internal/models"
)

func flexibleSession(id string, priority int, start, end time.Time, earliest, latest time.Time) models.Session {
	s := session(id, start, end, models.SessionStatusPending)
	s.Priority = priority
	s.EarliestStart = earliest
	s.LatestStart = latest
	return s
}

func conflictBetween(a, b models.Session) models.Conflict {
	return models.Conflict{
		ID:         "c-1",
		PlanID:     a.PlanID,
		SessionAID: a.ID,
		SessionBID: b.ID,
		Status:     models.ConflictStatusDetected,
	}
}

func TestResolverMovesLowerPriority(t *testing.T) {
	resolver := NewResolver(Options{})
	plan := testPlan(t, 0, nil)
	now := day(t, 3, 5, 0)

	high := flexibleSession("s-high", 5, day(t, 3, 9, 0), day(t, 3, 10, 0), day(t, 3, 6, 0), day(t, 3, 22, 0))
	low := flexibleSession("s-low", 2, day(t, 3, 9, 30), day(t, 3, 10, 30), day(t, 3, 6, 0), day(t, 3, 22, 0))
	sessions := []models.Session{high, low}

	res := resolver.Resolve(conflictBetween(high, low), plan, nil, sessions, defaultPolicy(), now)

	require.True(t, res.Resolved)
	require.NotNil(t, res.Moved)
	assert.Equal(t, "s-low", res.Moved.ID)
	assert.Equal(t, models.ConflictStatusAutoResolved, res.Conflict.Status)
	assert.Equal(t, 1, res.Moved.RescheduleCount)
	assert.Falsef(t, res.Moved.Overlaps(&high), "moved session still overlaps the kept one")
	assert.Equal(t, 60, res.Moved.DurationMinutes(), "duration must survive the move")
}

func TestResolverTieBreaksOnLaterStart(t *testing.T) {
	resolver := NewResolver(Options{})
	plan := testPlan(t, 0, nil)
	now := day(t, 3, 5, 0)

	first := flexibleSession("s-first", 3, day(t, 3, 9, 0), day(t, 3, 10, 0), day(t, 3, 6, 0), day(t, 3, 22, 0))
	second := flexibleSession("s-second", 3, day(t, 3, 9, 30), day(t, 3, 10, 30), day(t, 3, 6, 0), day(t, 3, 22, 0))
	sessions := []models.Session{first, second}

	res := resolver.Resolve(conflictBetween(first, second), plan, nil, sessions, defaultPolicy(), now)

	require.True(t, res.Resolved)
	require.NotNil(t, res.Moved)
	assert.Equal(t, "s-second", res.Moved.ID, "equal priority: the later-starting session moves")
}

func TestResolverLeavesConflictWhenNothingFits(t *testing.T) {
	resolver := NewResolver(Options{})
	plan := testPlan(t, 0, nil)
	now := day(t, 3, 5, 0)

	// The mover's flexible window closes at 10:00, and the kept session
	// occupies everything reachable inside it.
	kept := flexibleSession("s-kept", 5, day(t, 3, 6, 0), day(t, 3, 12, 0), day(t, 3, 6, 0), day(t, 3, 22, 0))
	mover := flexibleSession("s-mover", 1, day(t, 3, 9, 0), day(t, 3, 10, 0), day(t, 3, 6, 0), day(t, 3, 10, 0))
	sessions := []models.Session{kept, mover}

	res := resolver.Resolve(conflictBetween(kept, mover), plan, nil, sessions, defaultPolicy(), now)

	assert.False(t, res.Resolved)
	assert.Nil(t, res.Moved)
	assert.Equal(t, models.ConflictStatusDetected, res.Conflict.Status)
	assert.NotEmpty(t, res.Reason)
}

func TestResolverStaleConflictAutoResolves(t *testing.T) {
	resolver := NewResolver(Options{})
	plan := testPlan(t, 0, nil)
	now := day(t, 3, 5, 0)

	a := flexibleSession("s-a", 3, day(t, 3, 9, 0), day(t, 3, 10, 0), day(t, 3, 6, 0), day(t, 3, 22, 0))
	b := flexibleSession("s-b", 3, day(t, 3, 11, 0), day(t, 3, 12, 0), day(t, 3, 6, 0), day(t, 3, 22, 0))
	sessions := []models.Session{a, b}

	res := resolver.Resolve(conflictBetween(a, b), plan, nil, sessions, defaultPolicy(), now)

	assert.True(t, res.Resolved)
	assert.Nil(t, res.Moved)
	assert.Equal(t, models.ConflictStatusAutoResolved, res.Conflict.Status)
	assert.Equal(t, "sessions no longer overlap", res.Reason)
}

func TestResolverMissingSessionFails(t *testing.T) {
	resolver := NewResolver(Options{})
	plan := testPlan(t, 0, nil)

	a := flexibleSession("s-a", 3, day(t, 3, 9, 0), day(t, 3, 10, 0), day(t, 3, 6, 0), day(t, 3, 22, 0))
	conflict := models.Conflict{ID: "c-x", PlanID: plan.ID, SessionAID: "s-a", SessionBID: "s-gone"}

	res := resolver.Resolve(conflict, plan, nil, []models.Session{a}, defaultPolicy(), day(t, 3, 5, 0))

	assert.False(t, res.Resolved)
	assert.Equal(t, "conflicting session no longer exists", res.Reason)
}

func TestResolverAvoidsThirdSessions(t *testing.T) {
	resolver := NewResolver(Options{})
	plan := testPlan(t, 0, nil)
	now := day(t, 3, 5, 0)

	kept := flexibleSession("s-kept", 5, day(t, 3, 9, 0), day(t, 3, 10, 0), day(t, 3, 6, 0), day(t, 3, 22, 0))
	mover := flexibleSession("s-mover", 2, day(t, 3, 9, 30), day(t, 3, 10, 30), day(t, 3, 6, 0), day(t, 3, 22, 0))
	bystander := flexibleSession("s-bystander", 4, day(t, 3, 10, 0), day(t, 3, 12, 0), day(t, 3, 6, 0), day(t, 3, 22, 0))
	sessions := []models.Session{kept, mover, bystander}

	res := resolver.Resolve(conflictBetween(kept, mover), plan, nil, sessions, defaultPolicy(), now)

	require.True(t, res.Resolved)
	require.NotNil(t, res.Moved)
	assert.False(t, res.Moved.Overlaps(&kept))
	assert.False(t, res.Moved.Overlaps(&bystander), "resolution must not create a new conflict")
}
