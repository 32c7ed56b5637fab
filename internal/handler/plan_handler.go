package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyflow/studyflow-api/internal/dto"
	"github.com/studyflow/studyflow-api/internal/models"
	"github.com/studyflow/studyflow-api/internal/service"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
	"github.com/studyflow/studyflow-api/pkg/response"
)

type planService interface {
	Create(ctx context.Context, req dto.CreatePlanRequest) (*models.Plan, error)
	Get(ctx context.Context, id string) (*models.Plan, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Plan, error)
	ListBlocks(ctx context.Context, planID string) ([]models.LockedBlock, error)
	AddBlock(ctx context.Context, planID string, block *models.LockedBlock) (*models.LockedBlock, error)
	RemoveBlock(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// PlanHandler exposes plan and locked-block endpoints.
type PlanHandler struct {
	service planService
}

// NewPlanHandler constructs the handler.
func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{service: svc}
}

// Create godoc
// @Summary Create a study plan
// @Tags Plans
// @Accept json
// @Produce json
// @Param payload body dto.CreatePlanRequest true "Create plan payload"
// @Success 201 {object} response.Envelope
// @Router /plans [post]
func (h *PlanHandler) Create(c *gin.Context) {
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && req.OwnerID == "" {
		req.OwnerID = claims.UserID
	}
	plan, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Get godoc
// @Summary Get a study plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id} [get]
func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// List godoc
// @Summary List the caller's study plans
// @Tags Plans
// @Produce json
// @Param ownerId query string false "Owner ID (defaults to the authenticated user)"
// @Success 200 {object} response.Envelope
// @Router /plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	ownerID := c.Query("ownerId")
	if ownerID == "" {
		if claims := claimsFromContext(c); claims != nil {
			ownerID = claims.UserID
		}
	}
	plans, err := h.service.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, nil)
}

// Delete godoc
// @Summary Delete a study plan
// @Tags Plans
// @Param id path string true "Plan ID"
// @Success 204
// @Router /plans/{id} [delete]
func (h *PlanHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListBlocks godoc
// @Summary List a plan's locked blocks
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/blocks [get]
func (h *PlanHandler) ListBlocks(c *gin.Context) {
	blocks, err := h.service.ListBlocks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// AddBlock godoc
// @Summary Attach a locked block to a plan
// @Description A block carries either a recurring weekday or a specific date. Its minutes are subtracted from that day's availability on every allocation.
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body models.LockedBlock true "Locked block payload"
// @Success 201 {object} response.Envelope
// @Router /plans/{id}/blocks [post]
func (h *PlanHandler) AddBlock(c *gin.Context) {
	var block models.LockedBlock
	if err := c.ShouldBindJSON(&block); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid locked block payload"))
		return
	}
	created, err := h.service.AddBlock(c.Request.Context(), c.Param("id"), &block)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// RemoveBlock godoc
// @Summary Delete a locked block
// @Tags Plans
// @Param id path string true "Plan ID"
// @Param blockId path string true "Locked block ID"
// @Success 204
// @Router /plans/{id}/blocks/{blockId} [delete]
func (h *PlanHandler) RemoveBlock(c *gin.Context) {
	if err := h.service.RemoveBlock(c.Request.Context(), c.Param("blockId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
