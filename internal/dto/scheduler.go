package dto

import (
	"time"

	"github.com/studyflow/studyflow-api/internal/models"
)

// TopicInput is the strategy producer's contract. It deliberately has no
// start/end fields: placement in time belongs to the scheduling engine
// alone, and the allocate handler rejects payloads carrying unknown keys.
type TopicInput struct {
	ID               string     `json:"id" validate:"required"`
	Name             string     `json:"name" validate:"required"`
	EstimatedMinutes int        `json:"estimatedMinutes" validate:"required,min=1"`
	Difficulty       string     `json:"difficulty" validate:"required,oneof=EASY MEDIUM HARD"`
	Priority         int        `json:"priority" validate:"required,min=1"`
	DependsOn        []string   `json:"dependsOn,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
}

// AllocateRequest runs a full allocation for a plan.
type AllocateRequest struct {
	PlanVersion int          `json:"planVersion" validate:"min=0"`
	Topics      []TopicInput `json:"topics" validate:"required,min=1,dive"`
}

// OverloadedTopic reports effort that could not be placed before its
// deadline. Allocated + MissingMinutes always equals the estimate.
type OverloadedTopic struct {
	TopicID        string `json:"topicId"`
	Name           string `json:"name"`
	MissingMinutes int    `json:"missingMinutes"`
	Reason         string `json:"reason"`
}

// AllocateResponse returns the placed sessions and any unplaced remainders.
type AllocateResponse struct {
	PlanID           string            `json:"planId"`
	PlanVersion      int               `json:"planVersion"`
	Sessions         []models.Session  `json:"sessions"`
	OverloadedTopics []OverloadedTopic `json:"overloadedTopics"`
}

// RescheduleRequest moves a session to a user-chosen start time.
type RescheduleRequest struct {
	PlanVersion int       `json:"planVersion" validate:"min=0"`
	NewStart    time.Time `json:"newStart" validate:"required"`
}

// RescheduleResponse carries the moved session plus the conflicts the move
// creates. Conflicts are data, not errors: the move is persisted either way.
type RescheduleResponse struct {
	Session   models.Session    `json:"session"`
	Conflicts []models.Conflict `json:"conflicts"`
}

// ResolutionResponse reports the outcome of an automatic conflict resolution.
type ResolutionResponse struct {
	ConflictID string          `json:"conflictId"`
	Resolved   bool            `json:"resolved"`
	Reason     string          `json:"reason,omitempty"`
	Moved      *models.Session `json:"moved,omitempty"`
}

// RedistributionResponse reports how a missed session's effort was re-placed.
type RedistributionResponse struct {
	SessionID        string            `json:"sessionId"`
	Sessions         []models.Session  `json:"sessions"`
	OverloadedTopics []OverloadedTopic `json:"overloadedTopics"`
}

// CreatePlanRequest registers a study plan envelope.
type CreatePlanRequest struct {
	OwnerID          string                   `json:"ownerId" validate:"required"`
	Title            string                   `json:"title" validate:"required"`
	StartDate        time.Time                `json:"startDate" validate:"required"`
	EndDate          time.Time                `json:"endDate" validate:"required,gtfield=StartDate"`
	DailyBudgetMin   int                      `json:"dailyBudgetMinutes" validate:"required,min=15"`
	PreferredWindows []models.PreferredWindow `json:"preferredWindows,omitempty"`
	ExamDate         *time.Time               `json:"examDate,omitempty"`
	MaxSessions      int                      `json:"maxSessionsPerDay" validate:"omitempty,min=1"`
	MaxHardSessions  int                      `json:"maxHardSessionsPerDay" validate:"omitempty,min=1"`
}
