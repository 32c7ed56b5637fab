package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studyflow/studyflow-api/internal/dto"
	"github.com/studyflow/studyflow-api/internal/models"
	"github.com/studyflow/studyflow-api/internal/service"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
	"github.com/studyflow/studyflow-api/pkg/response"
)

const (
	maxTopicsPerAllocation = 256
)

type schedulerService interface {
	Allocate(ctx context.Context, planID string, req dto.AllocateRequest) (*dto.AllocateResponse, error)
	Reschedule(ctx context.Context, sessionID string, req dto.RescheduleRequest) (*dto.RescheduleResponse, error)
	ResolveConflict(ctx context.Context, conflictID string) (*dto.ResolutionResponse, error)
	AcceptConflict(ctx context.Context, conflictID string) error
	HandleMissed(ctx context.Context, sessionID string) (*dto.RedistributionResponse, error)
	ListSessions(ctx context.Context, planID string) ([]models.Session, error)
	ListConflicts(ctx context.Context, planID string, status models.ConflictStatus) ([]models.Conflict, error)
}

// SchedulerHandler exposes allocation, rescheduling and conflict endpoints.
type SchedulerHandler struct {
	service schedulerService
}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler(svc *service.SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{service: svc}
}

// Allocate godoc
// @Summary Build the session schedule for a plan
// @Description Replaces all pending sessions with a fresh allocation. Topics with unknown fields are rejected so callers cannot smuggle placement times into the strategy payload.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.AllocateRequest true "Allocate payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans/{id}/allocate [post]
func (h *SchedulerHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocate payload"))
		return
	}
	if len(req.Topics) > maxTopicsPerAllocation {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "topics exceeds supported limit"))
		return
	}
	result, err := h.service.Allocate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reschedule godoc
// @Summary Move a session to a new start time
// @Description Moves targeting a locked block or off-hours time are rejected. Overlaps with other sessions persist and are returned as conflicts alongside the session.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.RescheduleRequest true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/reschedule [post]
func (h *SchedulerHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	result, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ResolveConflict godoc
// @Summary Automatically resolve a detected conflict
// @Description Moves the lower-priority session to the nearest free interval. Returns 422 when neither session can move.
// @Tags Conflicts
// @Produce json
// @Param id path string true "Conflict ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /conflicts/{id}/resolve [post]
func (h *SchedulerHandler) ResolveConflict(c *gin.Context) {
	result, err := h.service.ResolveConflict(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AcceptConflict godoc
// @Summary Accept a detected conflict as-is
// @Tags Conflicts
// @Produce json
// @Param id path string true "Conflict ID"
// @Success 200 {object} response.Envelope
// @Router /conflicts/{id}/accept [post]
func (h *SchedulerHandler) AcceptConflict(c *gin.Context) {
	if err := h.service.AcceptConflict(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"conflictId": c.Param("id"), "status": models.ConflictStatusAccepted}, nil)
}

// HandleMissed godoc
// @Summary Mark a session missed and redistribute its effort
// @Description Skips the session and re-places its minutes across remaining capacity before the topic deadline. Unplaceable effort is reported as overloaded topics, not as an error.
// @Tags Scheduler
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/handle-missed [post]
func (h *SchedulerHandler) HandleMissed(c *gin.Context) {
	result, err := h.service.HandleMissed(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListSessions godoc
// @Summary List a plan's sessions in chronological order
// @Tags Scheduler
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/sessions [get]
func (h *SchedulerHandler) ListSessions(c *gin.Context) {
	sessions, err := h.service.ListSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// ListConflicts godoc
// @Summary List a plan's conflicts
// @Tags Conflicts
// @Produce json
// @Param id path string true "Plan ID"
// @Param status query string false "Filter by status (DETECTED, AUTO_RESOLVED, USER_RESOLVED, ACCEPTED)"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/conflicts [get]
func (h *SchedulerHandler) ListConflicts(c *gin.Context) {
	status, err := parseConflictStatus(c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	conflicts, err := h.service.ListConflicts(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

func parseConflictStatus(raw string) (models.ConflictStatus, error) {
	if raw == "" {
		return "", nil
	}
	status := models.ConflictStatus(strings.ToUpper(raw))
	switch status {
	case models.ConflictStatusDetected, models.ConflictStatusAutoResolved,
		models.ConflictStatusUserResolved, models.ConflictStatusAccepted:
		return status, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "unknown conflict status filter")
}
