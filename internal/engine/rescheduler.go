package engine

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/studyflow/studyflow-api/internal/models"
)

// Redistribution is the result of re-placing a missed session's effort.
type Redistribution struct {
	Sessions  []models.Session
	Overloads []Overload
}

// Rescheduler redistributes the remaining effort of missed sessions across
// the plan's residual capacity.
type Rescheduler struct {
	grid  *GridBuilder
	alloc *Allocator
	opts  Options
}

// NewRescheduler constructs a rescheduler sharing grid and allocator
// machinery.
func NewRescheduler(opts Options) *Rescheduler {
	opts = opts.WithDefaults()
	return &Rescheduler{
		grid:  NewGridBuilder(opts),
		alloc: NewAllocator(opts),
		opts:  opts,
	}
}

// HandleMissed treats the missed session's remaining effort as a fresh
// topic with the same priority, difficulty and deadline, and re-runs grid
// building plus allocation over [now, plan end]. Future pending sessions
// stay where they are and count against the day caps, so redistribution
// cannot silently overload a day. Effort that no longer fits before the
// deadline is surfaced as overloaded, not force-fit.
func (r *Rescheduler) HandleMissed(missed models.Session, plan *models.Plan, blocks []models.LockedBlock, future []models.Session, policy models.CognitiveLoadPolicy, now time.Time) Redistribution {
	duration := missed.DurationMinutes()
	deadline := minTime(
		missed.LatestStart.Add(time.Duration(duration)*time.Minute),
		dateOf(plan.EndDate.UTC()).Add(time.Duration(r.opts.WakingEndHour)*time.Hour),
	)

	topic := Topic{
		ID:               missed.TopicID,
		Name:             missed.Title,
		EstimatedMinutes: duration,
		Difficulty:       missed.Difficulty,
		Priority:         missed.Priority,
		Deadline:         &deadline,
	}

	if !now.Before(deadline) {
		return Redistribution{Overloads: []Overload{{
			TopicID:        topic.ID,
			Name:           topic.Name,
			MissingMinutes: duration,
			Reason:         overloadReason(topic),
		}}}
	}

	busy := make([]models.Session, 0, len(future))
	for _, s := range future {
		if s.ID != missed.ID && s.Status.Live() {
			busy = append(busy, s)
		}
	}

	grid := r.grid.Build(plan, blocks, now, deadline)
	days := r.alloc.newDayStates(grid)
	r.alloc.subtractBusy(days, busy)
	r.alloc.seedCounters(days, busy)

	sessions, overloads := r.alloc.allocateTopics(plan, days, []Topic{topic}, policy)
	for i := range sessions {
		// Re-keyed so redistributed chunks never collide with the ids of
		// the original allocation run.
		sessions[i].ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(missed.ID+"/redistribute/"+strconv.Itoa(i))).String()
		sessions[i].RescheduleCount = missed.RescheduleCount + 1
	}
	return Redistribution{Sessions: sessions, Overloads: overloads}
}
