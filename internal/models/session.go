package models

import "time"

// SessionStatus tracks a session through its lifecycle.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "PENDING"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusSkipped    SessionStatus = "SKIPPED"
)

// Live reports whether the status participates in conflict checks.
func (s SessionStatus) Live() bool {
	return s == SessionStatusPending || s == SessionStatusInProgress
}

// Difficulty tiers a topic's cognitive demand.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// ValidDifficulty reports whether the tier is one of the known values.
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Session is the single canonical scheduled unit: a concrete, time-boxed
// placement of (part of) a topic. Start and end are always present; the
// engine is the only writer of these fields.
type Session struct {
	ID              string        `db:"id" json:"id"`
	PlanID          string        `db:"plan_id" json:"plan_id"`
	TopicID         string        `db:"topic_id" json:"topic_id"`
	Title           string        `db:"title" json:"title"`
	Difficulty      Difficulty    `db:"difficulty" json:"difficulty"`
	Priority        int           `db:"priority" json:"priority"`
	Status          SessionStatus `db:"status" json:"status"`
	StartAt         time.Time     `db:"start_at" json:"start_at"`
	EndAt           time.Time     `db:"end_at" json:"end_at"`
	EarliestStart   time.Time     `db:"earliest_start" json:"earliest_start"`
	LatestStart     time.Time     `db:"latest_start" json:"latest_start"`
	RescheduleCount int           `db:"reschedule_count" json:"reschedule_count"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// DurationMinutes returns the session length in whole minutes.
func (s *Session) DurationMinutes() int {
	return int(s.EndAt.Sub(s.StartAt) / time.Minute)
}

// Overlaps reports whether two sessions share any time on [start, end).
func (s *Session) Overlaps(other *Session) bool {
	return s.StartAt.Before(other.EndAt) && other.StartAt.Before(s.EndAt)
}
