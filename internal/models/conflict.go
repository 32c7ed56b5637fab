package models

import "time"

// ConflictSeverity grades an overlap by its fraction of the shorter session.
type ConflictSeverity string

const (
	SeverityLow    ConflictSeverity = "LOW"
	SeverityMedium ConflictSeverity = "MEDIUM"
	SeverityHigh   ConflictSeverity = "HIGH"
)

// ConflictStatus tracks how an overlap was closed, if at all.
type ConflictStatus string

const (
	ConflictStatusDetected     ConflictStatus = "DETECTED"
	ConflictStatusAutoResolved ConflictStatus = "AUTO_RESOLVED"
	ConflictStatusUserResolved ConflictStatus = "USER_RESOLVED"
	ConflictStatusAccepted     ConflictStatus = "ACCEPTED"
)

// Conflict records a temporal overlap between two live sessions.
type Conflict struct {
	ID             string           `db:"id" json:"id"`
	PlanID         string           `db:"plan_id" json:"plan_id"`
	SessionAID     string           `db:"session_a_id" json:"session_a_id"`
	SessionBID     string           `db:"session_b_id" json:"session_b_id"`
	OverlapMinutes int              `db:"overlap_minutes" json:"overlap_minutes"`
	Severity       ConflictSeverity `db:"severity" json:"severity"`
	Status         ConflictStatus   `db:"status" json:"status"`
	Resolution     string           `db:"resolution" json:"resolution,omitempty"`
	DetectedAt     time.Time        `db:"detected_at" json:"detected_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}
