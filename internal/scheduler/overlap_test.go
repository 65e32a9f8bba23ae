package scheduler

import (
	"testing"
	"time"
)

func slotAt(id, taskID string, hour, durationMinutes int) Slot {
	start := time.Date(2024, 3, 4, hour, 0, 0, 0, time.UTC)
	return Slot{
		ID:     id,
		TaskID: taskID,
		Start:  start,
		End:    start.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

func TestDetectOverlaps_ReportsIntersections(t *testing.T) {
	t.Parallel()

	existing := []Slot{
		slotAt("slot-1", "task-1", 9, 60),
		slotAt("slot-2", "task-2", 11, 60),
	}

	overlaps := DetectOverlaps(existing, slotAt("slot-3", "task-3", 9, 90))
	if len(overlaps) != 1 {
		t.Fatalf("expected 1 overlap, got %d", len(overlaps))
	}
	if overlaps[0].SlotID != "slot-1" {
		t.Errorf("expected overlap with slot-1, got %s", overlaps[0].SlotID)
	}
}

func TestDetectOverlaps_AdjacentSlotsDoNotOverlap(t *testing.T) {
	t.Parallel()

	existing := []Slot{slotAt("slot-1", "task-1", 9, 60)}

	if overlaps := DetectOverlaps(existing, slotAt("slot-2", "task-2", 10, 60)); overlaps != nil {
		t.Errorf("expected back-to-back slots not to overlap, got %+v", overlaps)
	}
}

func TestDetectOverlaps_SkipsSelf(t *testing.T) {
	t.Parallel()

	existing := []Slot{slotAt("slot-1", "task-1", 9, 60)}

	if overlaps := DetectOverlaps(existing, slotAt("slot-1", "task-1", 9, 30)); overlaps != nil {
		t.Errorf("expected the candidate's own row to be skipped, got %+v", overlaps)
	}
}

func TestDetectOverlaps_OrdersByStartTime(t *testing.T) {
	t.Parallel()

	existing := []Slot{
		slotAt("slot-2", "task-2", 10, 60),
		slotAt("slot-1", "task-1", 9, 60),
	}

	overlaps := DetectOverlaps(existing, slotAt("slot-3", "task-3", 9, 120))
	if len(overlaps) != 2 {
		t.Fatalf("expected 2 overlaps, got %d", len(overlaps))
	}
	if overlaps[0].SlotID != "slot-1" || overlaps[1].SlotID != "slot-2" {
		t.Errorf("expected overlaps sorted by start, got %+v", overlaps)
	}
}
