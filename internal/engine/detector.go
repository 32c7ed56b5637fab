package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/studyflow/studyflow-api/internal/models"
)

// Severity thresholds as fractions of the shorter session's duration.
const (
	severityHighFraction   = 0.5
	severityMediumFraction = 0.2
)

// Detector finds temporal overlaps between live sessions. It is a pure
// read: persisting the resulting conflict records is the caller's job.
type Detector struct{}

// NewDetector constructs a detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect scans the owner's sessions for pairwise overlaps via a sweep over
// start-sorted sessions. Completed and skipped sessions are excluded.
func (d *Detector) Detect(sessions []models.Session, now time.Time) []models.Conflict {
	live := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Status.Live() {
			live = append(live, s)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		if !live[i].StartAt.Equal(live[j].StartAt) {
			return live[i].StartAt.Before(live[j].StartAt)
		}
		return live[i].ID < live[j].ID
	})

	conflicts := make([]models.Conflict, 0)
	var active []models.Session
	for _, s := range live {
		// Retire sessions that ended before this one starts.
		retained := active[:0]
		for _, a := range active {
			if a.EndAt.After(s.StartAt) {
				retained = append(retained, a)
			}
		}
		active = retained

		for _, a := range active {
			conflicts = append(conflicts, d.buildConflict(a, s, now))
		}
		active = append(active, s)
	}
	return conflicts
}

func (d *Detector) buildConflict(a, b models.Session, now time.Time) models.Conflict {
	overlapStart := maxTime(a.StartAt, b.StartAt)
	overlapEnd := minTime(a.EndAt, b.EndAt)
	overlap := int(overlapEnd.Sub(overlapStart) / time.Minute)

	shorter := a.DurationMinutes()
	if m := b.DurationMinutes(); m < shorter {
		shorter = m
	}

	return models.Conflict{
		ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte("conflict/"+a.ID+"/"+b.ID)).String(),
		PlanID:         a.PlanID,
		SessionAID:     a.ID,
		SessionBID:     b.ID,
		OverlapMinutes: overlap,
		Severity:       severityFor(overlap, shorter),
		Status:         models.ConflictStatusDetected,
		DetectedAt:     now,
	}
}

func severityFor(overlapMinutes, shorterMinutes int) models.ConflictSeverity {
	if shorterMinutes <= 0 {
		return models.SeverityLow
	}
	fraction := float64(overlapMinutes) / float64(shorterMinutes)
	switch {
	case fraction >= severityHighFraction:
		return models.SeverityHigh
	case fraction >= severityMediumFraction:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
