package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/studyflow/studyflow-api/internal/dto"
	"github.com/studyflow/studyflow-api/internal/models"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
)

type planStore interface {
	FindByID(ctx context.Context, id string) (*models.Plan, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) error
	Delete(ctx context.Context, id string) error
}

type lockedBlockStore interface {
	ListByPlan(ctx context.Context, planID string) ([]models.LockedBlock, error)
	Create(ctx context.Context, block *models.LockedBlock) error
	Delete(ctx context.Context, id string) error
}

// PlanService manages study plan envelopes and their locked blocks.
type PlanService struct {
	plans     planStore
	blocks    lockedBlockStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPlanService wires plan dependencies.
func NewPlanService(plans planStore, blocks lockedBlockStore, validate *validator.Validate, logger *zap.Logger) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{plans: plans, blocks: blocks, validator: validate, logger: logger}
}

// Create registers a new study plan.
func (s *PlanService) Create(ctx context.Context, req dto.CreatePlanRequest) (*models.Plan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}

	var windows types.JSONText
	if len(req.PreferredWindows) > 0 {
		payload, err := json.Marshal(req.PreferredWindows)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode preferred windows")
		}
		windows = types.JSONText(payload)
	}

	plan := &models.Plan{
		OwnerID:          req.OwnerID,
		Title:            req.Title,
		StartDate:        req.StartDate.UTC(),
		EndDate:          req.EndDate.UTC(),
		DailyBudgetMin:   req.DailyBudgetMin,
		PreferredWindows: windows,
		ExamDate:         req.ExamDate,
		MaxSessions:      req.MaxSessions,
		MaxHardSessions:  req.MaxHardSessions,
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan")
	}
	s.logger.Info("plan created", zap.String("planId", plan.ID), zap.String("ownerId", plan.OwnerID))
	return plan, nil
}

// Get loads a single plan.
func (s *PlanService) Get(ctx context.Context, id string) (*models.Plan, error) {
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound.Code) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	return plan, nil
}

// ListByOwner returns the owner's plans.
func (s *PlanService) ListByOwner(ctx context.Context, ownerID string) ([]models.Plan, error) {
	if ownerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ownerId is required")
	}
	plans, err := s.plans.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	return plans, nil
}

// ListBlocks returns the plan's locked blocks.
func (s *PlanService) ListBlocks(ctx context.Context, planID string) ([]models.LockedBlock, error) {
	if _, err := s.Get(ctx, planID); err != nil {
		return nil, err
	}
	blocks, err := s.blocks.ListByPlan(ctx, planID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locked blocks")
	}
	return blocks, nil
}

// AddBlock attaches a locked block to a plan.
func (s *PlanService) AddBlock(ctx context.Context, planID string, block *models.LockedBlock) (*models.LockedBlock, error) {
	if _, err := s.Get(ctx, planID); err != nil {
		return nil, err
	}
	if block.Weekday == nil && block.Date == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "locked block needs a weekday or a date")
	}
	if block.Weekday != nil && (*block.Weekday < 0 || *block.Weekday > 6) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekday must be between 0 (Sunday) and 6 (Saturday)")
	}
	if block.StartMinute < 0 || block.EndMinute > 24*60 || block.EndMinute <= block.StartMinute {
		return nil, appErrors.Clone(appErrors.ErrValidation, "block minutes must satisfy 0 <= start < end <= 1440")
	}
	block.PlanID = planID
	if err := s.blocks.Create(ctx, block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create locked block")
	}
	return block, nil
}

// RemoveBlock deletes a locked block.
func (s *PlanService) RemoveBlock(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "block id is required")
	}
	if err := s.blocks.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete locked block")
	}
	return nil
}

// Delete removes a plan and everything hanging off it.
func (s *PlanService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete plan")
	}
	return nil
}
