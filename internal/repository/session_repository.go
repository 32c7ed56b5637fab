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

const sessionColumns = `id, plan_id, topic_id, title, difficulty, priority, status, start_at, end_at, earliest_start, latest_start, reschedule_count, created_at, updated_at`

const sessionInsert = `INSERT INTO sessions (id, plan_id, topic_id, title, difficulty, priority, status, start_at, end_at, earliest_start, latest_start, reschedule_count, created_at, updated_at) VALUES (:id, :plan_id, :topic_id, :title, :difficulty, :priority, :status, :start_at, :end_at, :earliest_start, :latest_start, :reschedule_count, :created_at, :updated_at)`

// SessionRepository provides persistence for study sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID loads a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find session %s: %w", id, err)
	}
	return &session, nil
}

// ListByPlan returns every session of a plan ordered by start time.
func (r *SessionRepository) ListByPlan(ctx context.Context, planID string) ([]models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE plan_id = $1 ORDER BY start_at ASC, id ASC`, sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, planID); err != nil {
		return nil, fmt.Errorf("list sessions for plan %s: %w", planID, err)
	}
	return sessions, nil
}

// ListOverdue returns live sessions whose end passed before the cutoff.
// The missed-session sweeper feeds on this.
func (r *SessionRepository) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]models.Session, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE status IN ($1, $2) AND end_at < $3 ORDER BY end_at ASC, id ASC LIMIT %d`, sessionColumns, limit)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, models.SessionStatusPending, models.SessionStatusInProgress, cutoff); err != nil {
		return nil, fmt.Errorf("list overdue sessions: %w", err)
	}
	return sessions, nil
}

// ReplaceForPlan atomically swaps the plan's pending sessions for a freshly
// allocated set. Completed, in-progress and skipped sessions survive.
func (r *SessionRepository) ReplaceForPlan(ctx context.Context, planID string, sessions []models.Session) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace sessions: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE plan_id = $1 AND status = $2`, planID, models.SessionStatusPending); err != nil {
		return fmt.Errorf("clear pending sessions for plan %s: %w", planID, err)
	}
	if err = r.bulkInsertSessions(ctx, tx, sessions); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace sessions: %w", err)
	}
	return nil
}

// BulkCreate inserts sessions within a transaction.
func (r *SessionRepository) BulkCreate(ctx context.Context, sessions []models.Session) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create sessions: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.bulkInsertSessions(ctx, tx, sessions); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create sessions: %w", err)
	}
	return nil
}

func (r *SessionRepository) bulkInsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	now := time.Now().UTC()
	for i := range sessions {
		payload := sessions[i]
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, exec, sessionInsert, &payload); err != nil {
			return fmt.Errorf("bulk insert session: %w", err)
		}
		sessions[i] = payload
	}
	return nil
}

// Update rewrites a session's schedulable fields.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET title = :title, difficulty = :difficulty, priority = :priority, status = :status, start_at = :start_at, end_at = :end_at, earliest_start = :earliest_start, latest_start = :latest_start, reschedule_count = :reschedule_count, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session %s: %w", session.ID, err)
	}
	return nil
}

// UpdateStatus transitions a session's lifecycle state.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update session status %s: %w", id, err)
	}
	return nil
}

// Delete removes a session by id.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}
