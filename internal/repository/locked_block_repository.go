package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyflow/studyflow-api/internal/models"
)

// LockedBlockRepository provides persistence for immovable commitments.
type LockedBlockRepository struct {
	db *sqlx.DB
}

// NewLockedBlockRepository creates a new locked block repository.
func NewLockedBlockRepository(db *sqlx.DB) *LockedBlockRepository {
	return &LockedBlockRepository{db: db}
}

// ListByPlan returns the plan's locked blocks ordered by weekday and start.
func (r *LockedBlockRepository) ListByPlan(ctx context.Context, planID string) ([]models.LockedBlock, error) {
	const query = `SELECT id, plan_id, weekday, date, start_minute, end_minute, label FROM locked_blocks WHERE plan_id = $1 ORDER BY weekday ASC NULLS LAST, date ASC NULLS LAST, start_minute ASC, id ASC`
	var blocks []models.LockedBlock
	if err := r.db.SelectContext(ctx, &blocks, query, planID); err != nil {
		return nil, fmt.Errorf("list locked blocks for plan %s: %w", planID, err)
	}
	return blocks, nil
}

// Create stores a new locked block.
func (r *LockedBlockRepository) Create(ctx context.Context, block *models.LockedBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	const query = `INSERT INTO locked_blocks (id, plan_id, weekday, date, start_minute, end_minute, label) VALUES (:id, :plan_id, :weekday, :date, :start_minute, :end_minute, :label)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create locked block: %w", err)
	}
	return nil
}

// Delete removes a locked block by id.
func (r *LockedBlockRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM locked_blocks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete locked block %s: %w", id, err)
	}
	return nil
}
