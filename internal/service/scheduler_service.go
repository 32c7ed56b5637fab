package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyflow/studyflow-api/internal/dto"
	"github.com/studyflow/studyflow-api/internal/engine"
	"github.com/studyflow/studyflow-api/internal/models"
	appErrors "github.com/studyflow/studyflow-api/pkg/errors"
)

type planRepository interface {
	FindByID(ctx context.Context, id string) (*models.Plan, error)
	BumpVersion(ctx context.Context, id string, expected int) (int, error)
}

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListByPlan(ctx context.Context, planID string) ([]models.Session, error)
	ReplaceForPlan(ctx context.Context, planID string, sessions []models.Session) error
	BulkCreate(ctx context.Context, sessions []models.Session) error
	Update(ctx context.Context, session *models.Session) error
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
}

type conflictRepository interface {
	FindByID(ctx context.Context, id string) (*models.Conflict, error)
	ListByPlan(ctx context.Context, planID string, status models.ConflictStatus) ([]models.Conflict, error)
	SyncForPlan(ctx context.Context, planID string, conflicts []models.Conflict) error
	UpdateStatus(ctx context.Context, id string, status models.ConflictStatus, resolution string) error
}

type lockedBlockReader interface {
	ListByPlan(ctx context.Context, planID string) ([]models.LockedBlock, error)
}

// SchedulerConfig governs engine behaviour and caching for the scheduler.
type SchedulerConfig struct {
	Options  engine.Options
	Defaults models.CognitiveLoadPolicy
	CacheTTL time.Duration
}

// SchedulerService is the single entry point for allocation, rescheduling,
// conflict handling and missed-session redistribution. All mutating
// operations on one plan serialise through a per-plan lock and advance the
// plan's optimistic version.
type SchedulerService struct {
	plans     planRepository
	sessions  sessionRepository
	conflicts conflictRepository
	blocks    lockedBlockReader
	cache     *CacheService
	metrics   *MetricsService

	grid        *engine.GridBuilder
	allocator   *engine.Allocator
	detector    *engine.Detector
	resolver    *engine.Resolver
	rescheduler *engine.Rescheduler

	defaults models.CognitiveLoadPolicy
	cacheTTL time.Duration

	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewSchedulerService wires scheduler dependencies.
func NewSchedulerService(
	plans planRepository,
	sessions sessionRepository,
	conflicts conflictRepository,
	blocks lockedBlockReader,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulerConfig,
) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := cfg.Options.WithDefaults()
	defaults := cfg.Defaults
	if defaults.MaxSessionsPerDay <= 0 {
		defaults.MaxSessionsPerDay = 4
	}
	if defaults.MaxHardSessionsPerDay <= 0 {
		defaults.MaxHardSessionsPerDay = 2
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &SchedulerService{
		plans:       plans,
		sessions:    sessions,
		conflicts:   conflicts,
		blocks:      blocks,
		cache:       cache,
		metrics:     metrics,
		grid:        engine.NewGridBuilder(opts),
		allocator:   engine.NewAllocator(opts),
		detector:    engine.NewDetector(),
		resolver:    engine.NewResolver(opts),
		rescheduler: engine.NewRescheduler(opts),
		defaults:    defaults,
		cacheTTL:    cfg.CacheTTL,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// lockPlan serialises mutating operations per plan. The returned func
// releases the lock.
func (s *SchedulerService) lockPlan(planID string) func() {
	s.lockMu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	mu, ok := s.locks[planID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[planID] = mu
	}
	s.lockMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Allocate runs a full allocation for the plan: grid building, first-fit
// placement by priority and a conflict sweep, then swaps the plan's pending
// sessions for the new set. Completed and in-progress sessions stay fixed.
func (s *SchedulerService) Allocate(ctx context.Context, planID string, req dto.AllocateRequest) (*dto.AllocateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}
	topics, err := toEngineTopics(req.Topics)
	if err != nil {
		return nil, err
	}

	unlock := s.lockPlan(planID)
	defer unlock()

	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, s.repoError(err, "failed to load plan")
	}
	if req.PlanVersion != 0 && req.PlanVersion != plan.Version {
		return nil, appErrors.Clone(appErrors.ErrStaleVersion, "")
	}

	blocks, err := s.blocks.ListByPlan(ctx, planID)
	if err != nil {
		return nil, s.repoError(err, "failed to load locked blocks")
	}
	existing, err := s.sessions.ListByPlan(ctx, planID)
	if err != nil {
		return nil, s.repoError(err, "failed to load sessions")
	}

	now := s.now()
	busy := make([]models.Session, 0, len(existing))
	for _, sess := range existing {
		if sess.Status != models.SessionStatusPending && sess.Status != models.SessionStatusSkipped {
			busy = append(busy, sess)
		}
	}

	from := plan.StartDate.UTC()
	if now.After(from) {
		from = now
	}
	grid := s.grid.Build(plan, blocks, from, endOfPlanDay(plan.EndDate))

	policy := plan.Policy(s.defaults)
	placed, overloads := s.allocator.AllocateWithBusy(plan, grid, topics, busy, policy)
	conflicts := s.detector.Detect(append(busy, placed...), now)

	if err := s.sessions.ReplaceForPlan(ctx, planID, placed); err != nil {
		return nil, s.repoError(err, "failed to persist allocated sessions")
	}
	if err := s.conflicts.SyncForPlan(ctx, planID, conflicts); err != nil {
		return nil, s.repoError(err, "failed to persist conflicts")
	}
	version, err := s.plans.BumpVersion(ctx, planID, plan.Version)
	if err != nil {
		return nil, s.repoError(err, "failed to advance plan version")
	}
	s.invalidatePlan(ctx, planID)

	s.metrics.RecordAllocation(len(placed), len(overloads))
	s.metrics.RecordConflictsDetected(len(conflicts))
	s.logger.Info("allocation completed",
		zap.String("planId", planID),
		zap.Int("sessions", len(placed)),
		zap.Int("overloadedTopics", len(overloads)),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("planVersion", version))

	return &dto.AllocateResponse{
		PlanID:           planID,
		PlanVersion:      version,
		Sessions:         placed,
		OverloadedTopics: toOverloadedTopics(overloads),
	}, nil
}

// Reschedule moves a session to a user-chosen start inside its flexible
// window and inside an open interval: locked blocks and off-hours time
// reject the move. Overlaps with other sessions do not; they persist and
// come back as conflict records.
func (s *SchedulerService) Reschedule(ctx context.Context, sessionID string, req dto.RescheduleRequest) (*dto.RescheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, s.repoError(err, "failed to load session")
	}

	unlock := s.lockPlan(session.PlanID)
	defer unlock()

	plan, err := s.plans.FindByID(ctx, session.PlanID)
	if err != nil {
		return nil, s.repoError(err, "failed to load plan")
	}
	if req.PlanVersion != 0 && req.PlanVersion != plan.Version {
		return nil, appErrors.Clone(appErrors.ErrStaleVersion, "")
	}
	if !session.Status.Live() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only pending or in-progress sessions can be rescheduled")
	}

	newStart := req.NewStart.UTC().Truncate(time.Minute)
	if newStart.Before(session.EarliestStart) || newStart.After(session.LatestStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(
			"new start must fall within the flexible window [%s, %s]",
			session.EarliestStart.Format(time.RFC3339), session.LatestStart.Format(time.RFC3339)))
	}

	blocks, err := s.blocks.ListByPlan(ctx, session.PlanID)
	if err != nil {
		return nil, s.repoError(err, "failed to load locked blocks")
	}
	newEnd := newStart.Add(time.Duration(session.DurationMinutes()) * time.Minute)
	if !engine.Covers(s.grid.OpenIntervals(blocks, newStart), newStart, newEnd) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			"new start must land in an open interval, clear of locked blocks and inside waking hours")
	}

	session.StartAt = newStart
	session.EndAt = newEnd
	session.RescheduleCount++

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, s.repoError(err, "failed to persist rescheduled session")
	}

	all, err := s.sessions.ListByPlan(ctx, session.PlanID)
	if err != nil {
		return nil, s.repoError(err, "failed to load sessions")
	}
	conflicts := s.detector.Detect(all, s.now())
	if err := s.conflicts.SyncForPlan(ctx, session.PlanID, conflicts); err != nil {
		return nil, s.repoError(err, "failed to persist conflicts")
	}
	if _, err := s.plans.BumpVersion(ctx, session.PlanID, plan.Version); err != nil {
		return nil, s.repoError(err, "failed to advance plan version")
	}
	s.invalidatePlan(ctx, session.PlanID)
	s.metrics.RecordConflictsDetected(len(conflicts))

	involved := make([]models.Conflict, 0)
	for _, c := range conflicts {
		if c.SessionAID == session.ID || c.SessionBID == session.ID {
			involved = append(involved, c)
		}
	}
	s.logger.Info("session rescheduled",
		zap.String("sessionId", session.ID),
		zap.String("planId", session.PlanID),
		zap.Time("newStart", session.StartAt),
		zap.Int("conflicts", len(involved)))

	return &dto.RescheduleResponse{Session: *session, Conflicts: involved}, nil
}

// ResolveConflict attempts an automatic resolution: the lower-priority
// session moves to a free interval in its flexible window. An unresolvable
// conflict keeps its record and surfaces as a typed error.
func (s *SchedulerService) ResolveConflict(ctx context.Context, conflictID string) (*dto.ResolutionResponse, error) {
	conflict, err := s.conflicts.FindByID(ctx, conflictID)
	if err != nil {
		return nil, s.repoError(err, "failed to load conflict")
	}

	unlock := s.lockPlan(conflict.PlanID)
	defer unlock()

	if conflict.Status != models.ConflictStatusDetected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "conflict is already closed")
	}

	plan, err := s.plans.FindByID(ctx, conflict.PlanID)
	if err != nil {
		return nil, s.repoError(err, "failed to load plan")
	}
	blocks, err := s.blocks.ListByPlan(ctx, conflict.PlanID)
	if err != nil {
		return nil, s.repoError(err, "failed to load locked blocks")
	}
	sessions, err := s.sessions.ListByPlan(ctx, conflict.PlanID)
	if err != nil {
		return nil, s.repoError(err, "failed to load sessions")
	}

	res := s.resolver.Resolve(*conflict, plan, blocks, sessions, plan.Policy(s.defaults), s.now())
	s.metrics.RecordConflictResolution(res.Resolved)

	if !res.Resolved {
		if err := s.conflicts.UpdateStatus(ctx, conflictID, models.ConflictStatusDetected, res.Reason); err != nil {
			return nil, s.repoError(err, "failed to record resolution attempt")
		}
		return nil, appErrors.Clone(appErrors.ErrUnresolvable, res.Reason)
	}

	if res.Moved != nil {
		if err := s.sessions.Update(ctx, res.Moved); err != nil {
			return nil, s.repoError(err, "failed to persist moved session")
		}
		if _, err := s.plans.BumpVersion(ctx, conflict.PlanID, plan.Version); err != nil {
			return nil, s.repoError(err, "failed to advance plan version")
		}
	}
	if err := s.conflicts.UpdateStatus(ctx, conflictID, res.Conflict.Status, res.Conflict.Resolution); err != nil {
		return nil, s.repoError(err, "failed to close conflict")
	}
	s.invalidatePlan(ctx, conflict.PlanID)
	s.logger.Info("conflict resolved",
		zap.String("conflictId", conflictID),
		zap.String("planId", conflict.PlanID),
		zap.Bool("moved", res.Moved != nil))

	return &dto.ResolutionResponse{
		ConflictID: conflictID,
		Resolved:   true,
		Reason:     res.Reason,
		Moved:      res.Moved,
	}, nil
}

// AcceptConflict closes a conflict without moving anything: the owner keeps
// the overlap on purpose.
func (s *SchedulerService) AcceptConflict(ctx context.Context, conflictID string) error {
	conflict, err := s.conflicts.FindByID(ctx, conflictID)
	if err != nil {
		return s.repoError(err, "failed to load conflict")
	}

	unlock := s.lockPlan(conflict.PlanID)
	defer unlock()

	if conflict.Status != models.ConflictStatusDetected {
		return appErrors.Clone(appErrors.ErrConflict, "conflict is already closed")
	}
	if err := s.conflicts.UpdateStatus(ctx, conflictID, models.ConflictStatusAccepted, "accepted by owner"); err != nil {
		return s.repoError(err, "failed to accept conflict")
	}
	s.invalidatePlan(ctx, conflict.PlanID)
	return nil
}

// HandleMissed marks an overdue session skipped and redistributes its effort
// across the plan's residual capacity. Effort that no longer fits is
// surfaced as overloaded, never silently dropped.
func (s *SchedulerService) HandleMissed(ctx context.Context, sessionID string) (*dto.RedistributionResponse, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, s.repoError(err, "failed to load session")
	}

	unlock := s.lockPlan(session.PlanID)
	defer unlock()

	now := s.now()
	if session.Status == models.SessionStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "completed sessions cannot be marked missed")
	}
	if session.Status.Live() && session.EndAt.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session has not ended yet")
	}

	plan, err := s.plans.FindByID(ctx, session.PlanID)
	if err != nil {
		return nil, s.repoError(err, "failed to load plan")
	}
	blocks, err := s.blocks.ListByPlan(ctx, session.PlanID)
	if err != nil {
		return nil, s.repoError(err, "failed to load locked blocks")
	}

	if session.Status.Live() {
		if err := s.sessions.UpdateStatus(ctx, sessionID, models.SessionStatusSkipped); err != nil {
			return nil, s.repoError(err, "failed to mark session skipped")
		}
		session.Status = models.SessionStatusSkipped
	}

	future, err := s.sessions.ListByPlan(ctx, session.PlanID)
	if err != nil {
		return nil, s.repoError(err, "failed to load sessions")
	}

	red := s.rescheduler.HandleMissed(*session, plan, blocks, future, plan.Policy(s.defaults), now)
	if len(red.Sessions) > 0 {
		if err := s.sessions.BulkCreate(ctx, red.Sessions); err != nil {
			return nil, s.repoError(err, "failed to persist redistributed sessions")
		}
	}
	if _, err := s.plans.BumpVersion(ctx, session.PlanID, plan.Version); err != nil {
		return nil, s.repoError(err, "failed to advance plan version")
	}
	s.invalidatePlan(ctx, session.PlanID)
	s.metrics.RecordRedistribution(len(red.Sessions), len(red.Overloads))
	s.logger.Info("missed session redistributed",
		zap.String("sessionId", sessionID),
		zap.String("planId", session.PlanID),
		zap.Int("sessions", len(red.Sessions)),
		zap.Int("overloadedTopics", len(red.Overloads)))

	return &dto.RedistributionResponse{
		SessionID:        sessionID,
		Sessions:         red.Sessions,
		OverloadedTopics: toOverloadedTopics(red.Overloads),
	}, nil
}

// ListSessions returns the plan's sessions, served from cache when warm.
func (s *SchedulerService) ListSessions(ctx context.Context, planID string) ([]models.Session, error) {
	key := planCacheKey(planID, "sessions")
	var cached []models.Session
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	if _, err := s.plans.FindByID(ctx, planID); err != nil {
		return nil, s.repoError(err, "failed to load plan")
	}
	sessions, err := s.sessions.ListByPlan(ctx, planID)
	if err != nil {
		return nil, s.repoError(err, "failed to load sessions")
	}
	_ = s.cache.Set(ctx, key, sessions, s.cacheTTL)
	return sessions, nil
}

// ListConflicts returns the plan's conflicts, optionally filtered by status.
func (s *SchedulerService) ListConflicts(ctx context.Context, planID string, status models.ConflictStatus) ([]models.Conflict, error) {
	if _, err := s.plans.FindByID(ctx, planID); err != nil {
		return nil, s.repoError(err, "failed to load plan")
	}
	conflicts, err := s.conflicts.ListByPlan(ctx, planID, status)
	if err != nil {
		return nil, s.repoError(err, "failed to load conflicts")
	}
	return conflicts, nil
}

func (s *SchedulerService) invalidatePlan(ctx context.Context, planID string) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, planCachePattern(planID))
	}
}

func (s *SchedulerService) repoError(err error, message string) error {
	if e := appErrors.FromError(err); e.Code != appErrors.ErrInternal.Code {
		return e
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// endOfPlanDay is the first instant after the plan's last day. End dates
// carrying a time of day still close the plan at the end of that day.
func endOfPlanDay(end time.Time) time.Time {
	end = end.UTC()
	return time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

func planCacheKey(planID, suffix string) string {
	return fmt.Sprintf("plans:%s:%s", planID, suffix)
}

func planCachePattern(planID string) string {
	return fmt.Sprintf("plans:%s:*", planID)
}

// toEngineTopics converts and cross-validates the allocation payload.
// DependsOn references must resolve inside the same batch.
func toEngineTopics(inputs []dto.TopicInput) ([]engine.Topic, error) {
	ids := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if ids[in.ID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate topic id %s", in.ID))
		}
		ids[in.ID] = true
	}

	topics := make([]engine.Topic, 0, len(inputs))
	for _, in := range inputs {
		for _, dep := range in.DependsOn {
			if !ids[dep] {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("topic %s depends on unknown topic %s", in.ID, dep))
			}
		}
		topics = append(topics, engine.Topic{
			ID:               in.ID,
			Name:             in.Name,
			EstimatedMinutes: in.EstimatedMinutes,
			Difficulty:       models.Difficulty(in.Difficulty),
			Priority:         in.Priority,
			Deadline:         in.Deadline,
		})
	}
	return topics, nil
}

func toOverloadedTopics(overloads []engine.Overload) []dto.OverloadedTopic {
	out := make([]dto.OverloadedTopic, 0, len(overloads))
	for _, o := range overloads {
		out = append(out, dto.OverloadedTopic{
			TopicID:        o.TopicID,
			Name:           o.Name,
			MissingMinutes: o.MissingMinutes,
			Reason:         o.Reason,
		})
	}
	return out
}
