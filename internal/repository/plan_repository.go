package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyflow/studyflow-api/internal/models"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
)

const planColumns = `id, owner_id, title, start_date, end_date, daily_budget_minutes, preferred_windows, exam_date, max_sessions_per_day, max_hard_sessions_per_day, version, created_at, updated_at`

// PlanRepository provides persistence for study plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new plan repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// FindByID loads a plan by id.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*models.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE id = $1`, planColumns)
	var plan models.Plan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find plan %s: %w", id, err)
	}
	return &plan, nil
}

// ListByOwner returns the owner's plans, newest first.
func (r *PlanRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE owner_id = $1 ORDER BY created_at DESC, id ASC`, planColumns)
	var plans []models.Plan
	if err := r.db.SelectContext(ctx, &plans, query, ownerID); err != nil {
		return nil, fmt.Errorf("list plans for owner %s: %w", ownerID, err)
	}
	return plans, nil
}

// Create stores a new plan record.
func (r *PlanRepository) Create(ctx context.Context, plan *models.Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	if plan.Version == 0 {
		plan.Version = 1
	}

	const query = `INSERT INTO plans (id, owner_id, title, start_date, end_date, daily_budget_minutes, preferred_windows, exam_date, max_sessions_per_day, max_hard_sessions_per_day, version, created_at, updated_at) VALUES (:id, :owner_id, :title, :start_date, :end_date, :daily_budget_minutes, :preferred_windows, :exam_date, :max_sessions_per_day, :max_hard_sessions_per_day, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

// Update modifies a plan's editable fields without touching the version.
func (r *PlanRepository) Update(ctx context.Context, plan *models.Plan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE plans SET title = :title, start_date = :start_date, end_date = :end_date, daily_budget_minutes = :daily_budget_minutes, preferred_windows = :preferred_windows, exam_date = :exam_date, max_sessions_per_day = :max_sessions_per_day, max_hard_sessions_per_day = :max_hard_sessions_per_day, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("update plan %s: %w", plan.ID, err)
	}
	return nil
}

// BumpVersion advances the plan version iff the caller still holds the
// current one. A zero rowcount means another writer got there first.
func (r *PlanRepository) BumpVersion(ctx context.Context, id string, expected int) (int, error) {
	const query = `UPDATE plans SET version = version + 1, updated_at = $3 WHERE id = $1 AND version = $2`
	res, err := r.db.ExecContext(ctx, query, id, expected, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("bump plan version %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bump plan version %s: %w", id, err)
	}
	if affected == 0 {
		return 0, appErrors.ErrStaleVersion
	}
	return expected + 1, nil
}

// Delete removes a plan by id. Sessions, conflicts and locked blocks cascade
// at the schema level.
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete plan %s: %w", id, err)
	}
	return nil
}
