package appointment

import (
	"time"

	"github.com/google/uuid"
)

// PrefetchMargin widens the storage query around a candidate slot. It only
// bounds the rows loaded; FindConflict decides.
const PrefetchMargin = 60 * time.Minute

// Interval is a half-open [Start, End) range.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start time.Time, durationMinutes int) Interval {
	s := NormalizeTime(start)
	return Interval{Start: s, End: s.Add(time.Duration(durationMinutes) * time.Minute)}
}

// Overlaps reports whether [a,b) and [c,d) intersect: a < d && c < b.
// Touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// PrefetchWindow returns the widened window used to load candidates.
func (i Interval) PrefetchWindow() Interval {
	return Interval{Start: i.Start.Add(-PrefetchMargin), End: i.End.Add(PrefetchMargin)}
}

// FindConflict returns the first non-cancelled appointment in existing whose
// slot overlaps candidate, ignoring excludeID. It returns nil when the slot is free.
func FindConflict(candidate Interval, existing []*Appointment, excludeID *uuid.UUID) *Appointment {
	for _, a := range existing {
		if a.Status == StatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if candidate.Overlaps(a.Interval()) {
			return a
		}
	}
	return nil
}
