package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyflow/studyflow-api/internal/models"
)

func session(id string, start, end time.Time, status models.SessionStatus) models.Session {
	return models.Session{
		ID:         id,
		PlanID:     "plan-1",
		TopicID:    "topic-" + id,
		Difficulty: models.DifficultyMedium,
		Priority:   3,
		Status:     status,
		StartAt:    start,
		EndAt:      end,
	}
}

func TestDetectorFindsOverlap(t *testing.T) {
	now := day(t, 3, 5, 0)
	sessions := []models.Session{
		session("s-a", day(t, 3, 9, 0), day(t, 3, 10, 0), models.SessionStatusPending),
		session("s-b", day(t, 3, 9, 30), day(t, 3, 10, 30), models.SessionStatusPending),
	}

	conflicts := NewDetector().Detect(sessions, now)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, "s-a", c.SessionAID)
	assert.Equal(t, "s-b", c.SessionBID)
	assert.Equal(t, 30, c.OverlapMinutes)
	assert.Equal(t, models.ConflictStatusDetected, c.Status)
	assert.Equal(t, now, c.DetectedAt)
}

func TestDetectorIgnoresFinishedSessions(t *testing.T) {
	sessions := []models.Session{
		session("s-a", day(t, 3, 9, 0), day(t, 3, 10, 0), models.SessionStatusCompleted),
		session("s-b", day(t, 3, 9, 0), day(t, 3, 10, 0), models.SessionStatusPending),
		session("s-c", day(t, 3, 9, 0), day(t, 3, 10, 0), models.SessionStatusSkipped),
	}

	conflicts := NewDetector().Detect(sessions, day(t, 3, 5, 0))
	assert.Empty(t, conflicts)
}

func TestDetectorBackToBackIsNotAConflict(t *testing.T) {
	sessions := []models.Session{
		session("s-a", day(t, 3, 9, 0), day(t, 3, 10, 0), models.SessionStatusPending),
		session("s-b", day(t, 3, 10, 0), day(t, 3, 11, 0), models.SessionStatusInProgress),
	}

	conflicts := NewDetector().Detect(sessions, day(t, 3, 5, 0))
	assert.Empty(t, conflicts)
}

func TestDetectorSeverityThresholds(t *testing.T) {
	tests := []struct {
		name     string
		bStart   time.Time
		severity models.ConflictSeverity
	}{
		// Session a runs 09:00-10:00 (60 min, the shorter of the pair).
		{"high at half", day(t, 3, 9, 30), models.SeverityHigh},
		{"medium at a fifth", day(t, 3, 9, 48), models.SeverityMedium},
		{"low below a fifth", day(t, 3, 9, 50), models.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := []models.Session{
				session("s-a", day(t, 3, 9, 0), day(t, 3, 10, 0), models.SessionStatusPending),
				session("s-b", tt.bStart, tt.bStart.Add(2*time.Hour), models.SessionStatusPending),
			}
			conflicts := NewDetector().Detect(sessions, day(t, 3, 5, 0))
			require.Len(t, conflicts, 1)
			assert.Equal(t, tt.severity, conflicts[0].Severity)
		})
	}
}

func TestDetectorThreeWayOverlapYieldsAllPairs(t *testing.T) {
	sessions := []models.Session{
		session("s-a", day(t, 3, 9, 0), day(t, 3, 11, 0), models.SessionStatusPending),
		session("s-b", day(t, 3, 9, 30), day(t, 3, 10, 30), models.SessionStatusPending),
		session("s-c", day(t, 3, 10, 0), day(t, 3, 12, 0), models.SessionStatusPending),
	}

	conflicts := NewDetector().Detect(sessions, day(t, 3, 5, 0))
	require.Len(t, conflicts, 3)

	pairs := map[string]bool{}
	for _, c := range conflicts {
		pairs[c.SessionAID+"/"+c.SessionBID] = true
	}
	assert.True(t, pairs["s-a/s-b"])
	assert.True(t, pairs["s-a/s-c"])
	assert.True(t, pairs["s-b/s-c"])
}

func TestDetectorDeterministicIDs(t *testing.T) {
	now := day(t, 3, 5, 0)
	sessions := []models.Session{
		session("s-b", day(t, 3, 9, 30), day(t, 3, 10, 30), models.SessionStatusPending),
		session("s-a", day(t, 3, 9, 0), day(t, 3, 10, 0), models.SessionStatusPending),
	}

	first := NewDetector().Detect(sessions, now)
	second := NewDetector().Detect([]models.Session{sessions[1], sessions[0]}, now)
	assert.Equal(t, first, second, "conflict ids and order must not depend on input order")
}
