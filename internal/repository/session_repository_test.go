package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyflow/studyflow-api/internal/models"
)

func sessionFixture(id string) models.Session {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	return models.Session{
		ID:            id,
		PlanID:        "plan-1",
		TopicID:       "topic-1",
		Title:         "Algebra",
		Difficulty:    models.DifficultyMedium,
		Priority:      3,
		Status:        models.SessionStatusPending,
		StartAt:       start,
		EndAt:         start.Add(time.Hour),
		EarliestStart: start.Add(-3 * time.Hour),
		LatestStart:   start.Add(12 * time.Hour),
	}
}

func TestSessionRepositoryListByPlan(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "plan_id", "topic_id", "title", "difficulty", "priority", "status", "start_at", "end_at", "earliest_start", "latest_start", "reschedule_count", "created_at", "updated_at"}).
		AddRow("s-1", "plan-1", "topic-1", "Algebra", "MEDIUM", 3, "PENDING", time.Now(), time.Now(), time.Now(), time.Now(), 0, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+sessionColumns+` FROM sessions WHERE plan_id = $1 ORDER BY start_at ASC, id ASC`)).
		WithArgs("plan-1").
		WillReturnRows(rows)

	sessions, err := repo.ListByPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, models.SessionStatusPending, sessions[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryReplaceForPlan(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE plan_id = $1 AND status = $2`)).
		WithArgs("plan-1", models.SessionStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sessions := []models.Session{sessionFixture("s-1"), sessionFixture("s-2")}
	err := repo.ReplaceForPlan(context.Background(), "plan-1", sessions)
	require.NoError(t, err)
	assert.False(t, sessions[0].UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryReplaceForPlanRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE plan_id = $1 AND status = $2`)).
		WithArgs("plan-1", models.SessionStatusPending).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ReplaceForPlan(context.Background(), "plan-1", []models.Session{sessionFixture("s-1")})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListOverdue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	cutoff := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "plan_id", "topic_id", "title", "difficulty", "priority", "status", "start_at", "end_at", "earliest_start", "latest_start", "reschedule_count", "created_at", "updated_at"}).
		AddRow("s-late", "plan-1", "topic-1", "Algebra", "MEDIUM", 3, "PENDING", time.Now(), time.Now(), time.Now(), time.Now(), 0, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+sessionColumns+` FROM sessions WHERE status IN ($1, $2) AND end_at < $3 ORDER BY end_at ASC, id ASC LIMIT 100`)).
		WithArgs(models.SessionStatusPending, models.SessionStatusInProgress, cutoff).
		WillReturnRows(rows)

	sessions, err := repo.ListOverdue(context.Background(), cutoff, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("s-1", models.SessionStatusSkipped, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "s-1", models.SessionStatusSkipped)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
