package engine

import (
	"fmt"
	"time"

	"github.com/studyflow/studyflow-api/internal/models"
)

// Resolution is the outcome of an automatic conflict resolution attempt.
// On failure the conflict keeps its detected status and carries the reason.
type Resolution struct {
	Conflict models.Conflict
	Moved    *models.Session
	Resolved bool
	Reason   string
}

// Resolver deterministically picks which of two overlapping sessions to
// move and re-invokes single-session placement inside its flexible window.
type Resolver struct {
	grid  *GridBuilder
	alloc *Allocator
	opts  Options
}

// NewResolver constructs a resolver sharing grid and allocator machinery.
func NewResolver(opts Options) *Resolver {
	opts = opts.WithDefaults()
	return &Resolver{
		grid:  NewGridBuilder(opts),
		alloc: NewAllocator(opts),
		opts:  opts,
	}
}

// Resolve moves the lower-priority session of the conflict (tie-break: the
// one starting later) into a free interval within its flexible window that
// overlaps no other live session. When no such interval exists the conflict
// is left detected with an explanation; the sessions are never touched.
func (r *Resolver) Resolve(conflict models.Conflict, plan *models.Plan, blocks []models.LockedBlock, sessions []models.Session, policy models.CognitiveLoadPolicy, now time.Time) Resolution {
	a := findSession(sessions, conflict.SessionAID)
	b := findSession(sessions, conflict.SessionBID)
	if a == nil || b == nil {
		return r.failed(conflict, "conflicting session no longer exists")
	}
	if !a.Overlaps(b) {
		conflict.Status = models.ConflictStatusAutoResolved
		conflict.Resolution = "sessions no longer overlap"
		return Resolution{Conflict: conflict, Resolved: true, Reason: conflict.Resolution}
	}

	mover, kept := pickMover(a, b)

	others := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.ID != mover.ID && s.Status.Live() {
			others = append(others, s)
		}
	}

	duration := mover.DurationMinutes()
	window := Window{
		EarliestStart: maxTime(mover.EarliestStart, now),
		LatestStart:   mover.LatestStart,
	}
	if window.EarliestStart.After(window.LatestStart) {
		return r.failed(conflict, "flexible window is already in the past")
	}

	latestEnd := window.LatestStart.Add(time.Duration(duration) * time.Minute)
	grid := r.grid.Build(plan, blocks, window.EarliestStart, latestEnd)

	topic := Topic{
		ID:               mover.TopicID,
		Name:             mover.Title,
		EstimatedMinutes: duration,
		Difficulty:       mover.Difficulty,
		Priority:         mover.Priority,
		Deadline:         &latestEnd,
	}

	placed, reason, ok := r.alloc.PlaceOne(plan, grid, topic, window, others, policy)
	if !ok {
		return r.failed(conflict, reason)
	}

	moved := *mover
	moved.StartAt = placed.StartAt
	moved.EndAt = placed.EndAt
	moved.RescheduleCount++

	conflict.Status = models.ConflictStatusAutoResolved
	conflict.Resolution = fmt.Sprintf("moved session %s to %s, kept %s in place",
		moved.ID, moved.StartAt.UTC().Format(time.RFC3339), kept.ID)

	return Resolution{Conflict: conflict, Moved: &moved, Resolved: true, Reason: conflict.Resolution}
}

func (r *Resolver) failed(conflict models.Conflict, reason string) Resolution {
	conflict.Status = models.ConflictStatusDetected
	conflict.Resolution = reason
	return Resolution{Conflict: conflict, Resolved: false, Reason: reason}
}

// pickMover returns (mover, kept): the session with the lower priority
// weight moves; ties move the one with the later original start.
func pickMover(a, b *models.Session) (*models.Session, *models.Session) {
	switch {
	case a.Priority < b.Priority:
		return a, b
	case b.Priority < a.Priority:
		return b, a
	case a.StartAt.After(b.StartAt):
		return a, b
	case b.StartAt.After(a.StartAt):
		return b, a
	case a.ID > b.ID:
		return a, b
	}
	return b, a
}

func findSession(sessions []models.Session, id string) *models.Session {
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i]
		}
	}
	return nil
}
