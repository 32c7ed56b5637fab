package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/studyflow/studyflow-api/internal/dto"
	"github.com/studyflow/studyflow-api/internal/models"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
	"github.com/studyflow/studyflow-api/pkg/jobs"
)

type overdueLister interface {
	ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]models.Session, error)
}

type missedHandler interface {
	HandleMissed(ctx context.Context, sessionID string) (*dto.RedistributionResponse, error)
}

// SweeperConfig governs the missed-session sweeper.
type SweeperConfig struct {
	CronSpec   string
	Workers    int
	MaxRetries int
	BatchSize  int
}

// MissedSweeper periodically scans for live sessions whose end passed
// without completion and feeds them through missed-session handling via a
// background worker queue.
type MissedSweeper struct {
	sessions  overdueLister
	scheduler missedHandler
	metrics   *MetricsService
	logger    *zap.Logger

	cron      *cron.Cron
	queue     *jobs.Queue
	batchSize int
	now       func() time.Time
}

// NewMissedSweeper wires the sweeper's cron schedule and worker queue.
func NewMissedSweeper(sessions overdueLister, scheduler missedHandler, metrics *MetricsService, logger *zap.Logger, cfg SweeperConfig) (*MissedSweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CronSpec == "" {
		cfg.CronSpec = "*/15 * * * *"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	s := &MissedSweeper{
		sessions:  sessions,
		scheduler: scheduler,
		metrics:   metrics,
		logger:    logger,
		cron:      cron.New(),
		batchSize: cfg.BatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("missed-sessions", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})

	if _, err := s.cron.AddFunc(cfg.CronSpec, s.sweep); err != nil {
		return nil, fmt.Errorf("register sweeper schedule %q: %w", cfg.CronSpec, err)
	}
	return s, nil
}

// Start launches the worker queue and the cron schedule.
func (s *MissedSweeper) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.cron.Start()
	s.logger.Info("missed-session sweeper started")
}

// Stop halts the cron schedule and drains the workers.
func (s *MissedSweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.queue.Stop()
	s.logger.Info("missed-session sweeper stopped")
}

// sweep enqueues every overdue live session for redistribution.
func (s *MissedSweeper) sweep() {
	s.metrics.RecordSweeperRun()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	overdue, err := s.sessions.ListOverdue(ctx, s.now(), s.batchSize)
	if err != nil {
		s.logger.Error("sweep failed to list overdue sessions", zap.Error(err))
		return
	}
	for _, session := range overdue {
		job := jobs.Job{
			ID:      fmt.Sprintf("missed/%s/%d", session.ID, session.RescheduleCount),
			Type:    "handle-missed",
			Payload: session.ID,
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue missed session", zap.String("sessionId", session.ID), zap.Error(err))
		}
	}
	if len(overdue) > 0 {
		s.logger.Info("sweep enqueued overdue sessions", zap.Int("count", len(overdue)))
	}
}

func (s *MissedSweeper) handleJob(ctx context.Context, job jobs.Job) error {
	sessionID, ok := job.Payload.(string)
	if !ok {
		s.logger.Error("missed-session job carries unexpected payload", zap.String("jobId", job.ID))
		return nil
	}
	_, err := s.scheduler.HandleMissed(ctx, sessionID)
	if err != nil {
		// Validation and not-found outcomes are terminal: another worker or
		// the owner already dealt with the session.
		if appErrors.Is(err, appErrors.ErrValidation.Code) || appErrors.Is(err, appErrors.ErrNotFound.Code) {
			return nil
		}
		return err
	}
	return nil
}
