package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// PreferredWindow names a slice of the day the owner likes to study in.
// Known labels (morning, afternoon, evening) may omit the minute bounds;
// custom windows carry explicit minutes from midnight.
type PreferredWindow struct {
	Label       string `json:"label"`
	StartMinute int    `json:"startMinute,omitempty"`
	EndMinute   int    `json:"endMinute,omitempty"`
}

// CognitiveLoadPolicy caps how much work a single day may absorb.
// Zero values mean "inherit the configured defaults".
type CognitiveLoadPolicy struct {
	MaxSessionsPerDay     int `db:"max_sessions_per_day" json:"max_sessions_per_day"`
	MaxHardSessionsPerDay int `db:"max_hard_sessions_per_day" json:"max_hard_sessions_per_day"`
}

// Plan is the owner's study plan envelope. It is read-only input for the
// allocator; only re-plan operations mutate it.
type Plan struct {
	ID               string         `db:"id" json:"id"`
	OwnerID          string         `db:"owner_id" json:"owner_id"`
	Title            string         `db:"title" json:"title"`
	StartDate        time.Time      `db:"start_date" json:"start_date"`
	EndDate          time.Time      `db:"end_date" json:"end_date"`
	DailyBudgetMin   int            `db:"daily_budget_minutes" json:"daily_budget_minutes"`
	PreferredWindows types.JSONText `db:"preferred_windows" json:"preferred_windows"`
	ExamDate         *time.Time     `db:"exam_date" json:"exam_date,omitempty"`
	MaxSessions      int            `db:"max_sessions_per_day" json:"max_sessions_per_day"`
	MaxHardSessions  int            `db:"max_hard_sessions_per_day" json:"max_hard_sessions_per_day"`
	Version          int            `db:"version" json:"version"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Policy returns the plan's cognitive-load override with defaults filled in
// for zero values.
func (p *Plan) Policy(defaults CognitiveLoadPolicy) CognitiveLoadPolicy {
	policy := CognitiveLoadPolicy{
		MaxSessionsPerDay:     p.MaxSessions,
		MaxHardSessionsPerDay: p.MaxHardSessions,
	}
	if policy.MaxSessionsPerDay <= 0 {
		policy.MaxSessionsPerDay = defaults.MaxSessionsPerDay
	}
	if policy.MaxHardSessionsPerDay <= 0 {
		policy.MaxHardSessionsPerDay = defaults.MaxHardSessionsPerDay
	}
	return policy
}

// Windows decodes the preferred window list. Malformed payloads degrade to
// "no preference" rather than failing an allocation run.
func (p *Plan) Windows() []PreferredWindow {
	if len(p.PreferredWindows) == 0 {
		return nil
	}
	var windows []PreferredWindow
	if err := json.Unmarshal(p.PreferredWindows, &windows); err != nil {
		return nil
	}
	return windows
}

// LockedBlock is an immovable commitment (class, appointment) supplied by
// the timetable source. Weekly blocks set Weekday; one-off blocks set Date.
type LockedBlock struct {
	ID          string     `db:"id" json:"id"`
	PlanID      string     `db:"plan_id" json:"plan_id"`
	Weekday     *int       `db:"weekday" json:"weekday,omitempty"`
	Date        *time.Time `db:"date" json:"date,omitempty"`
	StartMinute int        `db:"start_minute" json:"start_minute"`
	EndMinute   int        `db:"end_minute" json:"end_minute"`
	Label       string     `db:"label" json:"label"`
}
