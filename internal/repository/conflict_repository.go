package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studyflow/studyflow-api/internal/models"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
)

const conflictColumns = `id, plan_id, session_a_id, session_b_id, overlap_minutes, severity, status, resolution, detected_at, updated_at`

// ConflictRepository provides persistence for detected session conflicts.
type ConflictRepository struct {
	db *sqlx.DB
}

// NewConflictRepository creates a new conflict repository.
func NewConflictRepository(db *sqlx.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

// FindByID loads a conflict by id.
func (r *ConflictRepository) FindByID(ctx context.Context, id string) (*models.Conflict, error) {
	query := fmt.Sprintf(`SELECT %s FROM conflicts WHERE id = $1`, conflictColumns)
	var conflict models.Conflict
	if err := r.db.GetContext(ctx, &conflict, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find conflict %s: %w", id, err)
	}
	return &conflict, nil
}

// ListByPlan returns the plan's conflicts, optionally narrowed to a status.
func (r *ConflictRepository) ListByPlan(ctx context.Context, planID string, status models.ConflictStatus) ([]models.Conflict, error) {
	query := fmt.Sprintf(`SELECT %s FROM conflicts WHERE plan_id = $1`, conflictColumns)
	args := []interface{}{planID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY detected_at ASC, id ASC`

	var conflicts []models.Conflict
	if err := r.db.SelectContext(ctx, &conflicts, query, args...); err != nil {
		return nil, fmt.Errorf("list conflicts for plan %s: %w", planID, err)
	}
	return conflicts, nil
}

// SyncForPlan replaces the plan's open conflicts with a fresh detection run.
// Resolved and accepted conflicts are kept as history; stale open ones whose
// overlap disappeared are dropped.
func (r *ConflictRepository) SyncForPlan(ctx context.Context, planID string, conflicts []models.Conflict) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync conflicts: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM conflicts WHERE plan_id = $1 AND status = $2`, planID, models.ConflictStatusDetected); err != nil {
		return fmt.Errorf("clear open conflicts for plan %s: %w", planID, err)
	}

	now := time.Now().UTC()
	for i := range conflicts {
		payload := conflicts[i]
		payload.UpdatedAt = now
		if _, err = sqlx.NamedExecContext(ctx, tx, `INSERT INTO conflicts (id, plan_id, session_a_id, session_b_id, overlap_minutes, severity, status, resolution, detected_at, updated_at) VALUES (:id, :plan_id, :session_a_id, :session_b_id, :overlap_minutes, :severity, :status, :resolution, :detected_at, :updated_at) ON CONFLICT (id) DO UPDATE SET overlap_minutes = EXCLUDED.overlap_minutes, severity = EXCLUDED.severity, updated_at = EXCLUDED.updated_at`, &payload); err != nil {
			return fmt.Errorf("sync conflict %s: %w", payload.ID, err)
		}
		conflicts[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit sync conflicts: %w", err)
	}
	return nil
}

// UpdateStatus records how a conflict was closed.
func (r *ConflictRepository) UpdateStatus(ctx context.Context, id string, status models.ConflictStatus, resolution string) error {
	const query = `UPDATE conflicts SET status = $2, resolution = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, resolution, time.Now().UTC()); err != nil {
		return fmt.Errorf("update conflict status %s: %w", id, err)
	}
	return nil
}
