package recurrence

import (
	"errors"
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateOccurrences_OnePerDayInclusive(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	template := Template{
		ID:              "tmpl-1",
		Title:           "Morning review",
		TimeOfDay:       "08:30",
		DurationMinutes: 15,
		Enabled:         true,
	}

	occurrences, err := engine.GenerateOccurrences(template, day(1), day(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occurrences))
	}

	first := occurrences[0]
	if !first.Start.Equal(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected first start: %s", first.Start)
	}
	if first.End.Sub(first.Start) != 15*time.Minute {
		t.Errorf("unexpected duration: %s", first.End.Sub(first.Start))
	}
}

func TestGenerateOccurrences_DisabledTemplateYieldsNothing(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	template := Template{ID: "tmpl-1", TimeOfDay: "08:30", DurationMinutes: 15, Enabled: false}

	occurrences, err := engine.GenerateOccurrences(template, day(1), day(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if occurrences != nil {
		t.Errorf("expected no occurrences for a disabled template, got %+v", occurrences)
	}
}

func TestGenerateOccurrences_RejectsMalformedTimeOfDay(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	template := Template{ID: "tmpl-1", TimeOfDay: "25:99", DurationMinutes: 15, Enabled: true}

	if _, err := engine.GenerateOccurrences(template, day(1), day(1)); !errors.Is(err, ErrInvalidTimeOfDay) {
		t.Errorf("expected ErrInvalidTimeOfDay, got %v", err)
	}
}

func TestGenerateOccurrences_RejectsReversedWindow(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	template := Template{ID: "tmpl-1", TimeOfDay: "08:30", DurationMinutes: 15, Enabled: true}

	if _, err := engine.GenerateOccurrences(template, day(3), day(1)); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}
