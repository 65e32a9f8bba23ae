package scheduler

import (
	"sort"
	"time"
)

// Slot represents a scheduled-time placement in the timebox domain.
type Slot struct {
	ID     string
	TaskID string
	Start  time.Time
	End    time.Time
}

// Overlap details an overlapping slot relation that callers can present to
// users. Overlaps are advisory; they never block a placement.
type Overlap struct {
	SlotID string
	TaskID string
	Start  time.Time
	End    time.Time
}

// DetectOverlaps identifies existing slots whose interval intersects the
// candidate's. The candidate itself (matching ID) is skipped so updates do
// not report self-overlap. Results are ordered by start time then slot ID.
func DetectOverlaps(existing []Slot, candidate Slot) []Overlap {
	if !candidate.End.After(candidate.Start) {
		return nil
	}

	overlaps := make([]Overlap, 0)
	for _, slot := range existing {
		if slot.ID == candidate.ID {
			continue
		}
		if !slot.End.After(slot.Start) {
			continue
		}
		if candidate.Start.Before(slot.End) && slot.Start.Before(candidate.End) {
			overlaps = append(overlaps, Overlap{
				SlotID: slot.ID,
				TaskID: slot.TaskID,
				Start:  slot.Start,
				End:    slot.End,
			})
		}
	}

	if len(overlaps) == 0 {
		return nil
	}

	sort.Slice(overlaps, func(i, j int) bool {
		if overlaps[i].Start.Equal(overlaps[j].Start) {
			return overlaps[i].SlotID < overlaps[j].SlotID
		}
		return overlaps[i].Start.Before(overlaps[j].Start)
	})

	return overlaps
}
