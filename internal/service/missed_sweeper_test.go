package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyflow/studyflow-api/internal/dto"
	"github.com/studyflow/studyflow-api/internal/models"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
	"github.com/studyflow/studyflow-api/pkg/jobs"
)

type overdueListerStub struct {
	sessions []models.Session
	err      error
	cutoff   time.Time
	limit    int
}

func (s *overdueListerStub) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]models.Session, error) {
	s.cutoff = cutoff
	s.limit = limit
	return s.sessions, s.err
}

type missedHandlerStub struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *missedHandlerStub) HandleMissed(ctx context.Context, sessionID string) (*dto.RedistributionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sessionID)
	if s.err != nil {
		return nil, s.err
	}
	return &dto.RedistributionResponse{SessionID: sessionID}, nil
}

func (s *missedHandlerStub) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func TestMissedSweeperRejectsBadCronSpec(t *testing.T) {
	_, err := NewMissedSweeper(&overdueListerStub{}, &missedHandlerStub{}, nil, nil, SweeperConfig{
		CronSpec: "not a cron spec",
	})
	require.Error(t, err)
}

func TestMissedSweeperSweepEnqueuesOverdue(t *testing.T) {
	lister := &overdueListerStub{sessions: []models.Session{
		{ID: "s-1", Status: models.SessionStatusPending},
		{ID: "s-2", Status: models.SessionStatusInProgress, RescheduleCount: 1},
	}}
	handler := &missedHandlerStub{}
	sweeper, err := NewMissedSweeper(lister, handler, nil, nil, SweeperConfig{Workers: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.queue.Start(ctx)
	sweeper.sweep()

	require.Eventually(t, func() bool {
		return len(handler.called()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	sweeper.queue.Stop()

	assert.Equal(t, 100, lister.limit)
	assert.ElementsMatch(t, []string{"s-1", "s-2"}, handler.called())
}

func TestMissedSweeperJobTreatsClosedSessionsAsDone(t *testing.T) {
	handler := &missedHandlerStub{err: appErrors.Clone(appErrors.ErrValidation, "completed sessions cannot be marked missed")}
	sweeper, err := NewMissedSweeper(&overdueListerStub{}, handler, nil, nil, SweeperConfig{})
	require.NoError(t, err)

	jobErr := sweeper.handleJob(context.Background(), jobs.Job{ID: "missed/s-1/0", Type: "handle-missed", Payload: "s-1"})
	assert.NoError(t, jobErr)
}

func TestMissedSweeperJobRetriesTransientErrors(t *testing.T) {
	handler := &missedHandlerStub{err: appErrors.ErrInternal}
	sweeper, err := NewMissedSweeper(&overdueListerStub{}, handler, nil, nil, SweeperConfig{})
	require.NoError(t, err)

	jobErr := sweeper.handleJob(context.Background(), jobs.Job{ID: "missed/s-1/0", Type: "handle-missed", Payload: "s-1"})
	assert.Error(t, jobErr)
}
