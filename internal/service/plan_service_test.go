package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyflow/studyflow-api/internal/dto"
	"github.com/studyflow/studyflow-api/internal/models"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
)

type planStoreStub struct {
	plans   map[string]*models.Plan
	created []*models.Plan
	deleted []string
}

func newPlanStoreStub(plans ...*models.Plan) *planStoreStub {
	s := &planStoreStub{plans: map[string]*models.Plan{}}
	for _, p := range plans {
		s.plans[p.ID] = p
	}
	return s
}

func (s *planStoreStub) FindByID(ctx context.Context, id string) (*models.Plan, error) {
	plan, ok := s.plans[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return plan, nil
}

func (s *planStoreStub) ListByOwner(ctx context.Context, ownerID string) ([]models.Plan, error) {
	var result []models.Plan
	for _, p := range s.plans {
		if p.OwnerID == ownerID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *planStoreStub) Create(ctx context.Context, plan *models.Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	plan.Version = 1
	s.plans[plan.ID] = plan
	s.created = append(s.created, plan)
	return nil
}

func (s *planStoreStub) Delete(ctx context.Context, id string) error {
	delete(s.plans, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type blockStoreStub struct {
	blocks  []models.LockedBlock
	created []*models.LockedBlock
	deleted []string
}

func (s *blockStoreStub) ListByPlan(ctx context.Context, planID string) ([]models.LockedBlock, error) {
	return s.blocks, nil
}

func (s *blockStoreStub) Create(ctx context.Context, block *models.LockedBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	s.created = append(s.created, block)
	return nil
}

func (s *blockStoreStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func validCreateRequest() dto.CreatePlanRequest {
	return dto.CreatePlanRequest{
		OwnerID:        "owner-1",
		Title:          "Finals prep",
		StartDate:      time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		DailyBudgetMin: 120,
		PreferredWindows: []models.PreferredWindow{
			{Label: "evening"},
		},
	}
}

func TestPlanServiceCreate(t *testing.T) {
	plans := newPlanStoreStub()
	svc := NewPlanService(plans, &blockStoreStub{}, nil, nil)

	plan, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, 1, plan.Version)
	assert.Equal(t, 120, plan.DailyBudgetMin)
	assert.NotEmpty(t, plan.PreferredWindows)
	require.Len(t, plans.created, 1)
}

func TestPlanServiceCreateValidation(t *testing.T) {
	svc := NewPlanService(newPlanStoreStub(), &blockStoreStub{}, nil, nil)

	req := validCreateRequest()
	req.EndDate = req.StartDate.AddDate(0, 0, -1)
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
}

func TestPlanServiceGetNotFound(t *testing.T) {
	svc := NewPlanService(newPlanStoreStub(), &blockStoreStub{}, nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound.Code))
}

func TestPlanServiceAddBlock(t *testing.T) {
	plan := &models.Plan{ID: "plan-1", OwnerID: "owner-1"}
	blocks := &blockStoreStub{}
	svc := NewPlanService(newPlanStoreStub(plan), blocks, nil, nil)

	weekday := 1
	created, err := svc.AddBlock(context.Background(), "plan-1", &models.LockedBlock{
		Weekday:     &weekday,
		StartMinute: 540,
		EndMinute:   720,
		Label:       "school",
	})
	require.NoError(t, err)
	assert.Equal(t, "plan-1", created.PlanID)
	require.Len(t, blocks.created, 1)
}

func TestPlanServiceAddBlockValidation(t *testing.T) {
	plan := &models.Plan{ID: "plan-1"}
	svc := NewPlanService(newPlanStoreStub(plan), &blockStoreStub{}, nil, nil)

	cases := []struct {
		name  string
		block models.LockedBlock
	}{
		{name: "no weekday or date", block: models.LockedBlock{StartMinute: 0, EndMinute: 60}},
		{name: "weekday out of range", block: models.LockedBlock{Weekday: intPtr(7), StartMinute: 0, EndMinute: 60}},
		{name: "end before start", block: models.LockedBlock{Weekday: intPtr(1), StartMinute: 120, EndMinute: 60}},
		{name: "end past midnight", block: models.LockedBlock{Weekday: intPtr(1), StartMinute: 1380, EndMinute: 1500}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			block := tc.block
			_, err := svc.AddBlock(context.Background(), "plan-1", &block)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
		})
	}
}

func TestPlanServiceDelete(t *testing.T) {
	plan := &models.Plan{ID: "plan-1"}
	plans := newPlanStoreStub(plan)
	svc := NewPlanService(plans, &blockStoreStub{}, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "plan-1"))
	assert.Equal(t, []string{"plan-1"}, plans.deleted)

	err := svc.Delete(context.Background(), "plan-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound.Code))
}

func intPtr(v int) *int {
	return &v
}
