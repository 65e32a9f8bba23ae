package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/timebox/internal/persistence"
	"github.com/example/timebox/internal/testfixtures"
)

func TestOutlookRepository_UpsertReplacesExistingRow(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	seedUser(t, h, "user-1")

	first := persistence.OutlookIntegration{
		ID:             "integ-1",
		UserID:         "user-1",
		AccessToken:    "token-a",
		RefreshToken:   "refresh-a",
		TokenExpiresAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		CalendarID:     "cal-1",
		SyncEnabled:    true,
	}
	if err := h.Integrations.UpsertIntegration(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := first
	second.AccessToken = "token-b"
	second.RefreshToken = "refresh-b"
	if err := h.Integrations.UpsertIntegration(ctx, second); err != nil {
		t.Fatalf("unexpected error on upsert: %v", err)
	}

	stored, err := h.Integrations.GetIntegrationByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.AccessToken != "token-b" || stored.RefreshToken != "refresh-b" {
		t.Errorf("expected refreshed tokens persisted, got %+v", stored)
	}
}

func TestOutlookRepository_LookupByCalendarID(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	seedUser(t, h, "user-1")

	if err := h.Integrations.UpsertIntegration(ctx, persistence.OutlookIntegration{
		ID: "integ-1", UserID: "user-1", CalendarID: "cal-42",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := h.Integrations.GetIntegrationByCalendarID(ctx, "cal-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", stored.UserID)
	}

	if _, err := h.Integrations.GetIntegrationByCalendarID(ctx, "cal-unknown"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncOutcomeRepository_KeepsLatestPerSlotAndOperation(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	base := persistence.SyncOutcome{
		UserID:    "user-1",
		TaskID:    "task-1",
		SlotID:    "slot-1",
		Operation: persistence.SyncOpCreate,
	}

	failed := base
	failed.ID = "outcome-1"
	failed.Status = persistence.SyncStatusFailed
	failed.Detail = "network unreachable"
	failed.RecordedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := h.Outcomes.RecordOutcome(ctx, failed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	synced := base
	synced.ID = "outcome-2"
	synced.Status = persistence.SyncStatusSynced
	synced.EventID = "event-1"
	synced.RecordedAt = time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
	if err := h.Outcomes.RecordOutcome(ctx, synced); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcomes, err := h.Outcomes.ListOutcomes(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected a single outcome per (task, slot, op), got %d", len(outcomes))
	}
	if outcomes[0].Status != persistence.SyncStatusSynced || outcomes[0].EventID != "event-1" {
		t.Errorf("expected the latest outcome, got %+v", outcomes[0])
	}
}

func TestSyncOutcomeRepository_DeleteOutcomesBefore(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()

	old := persistence.SyncOutcome{
		ID: "outcome-old", UserID: "user-1", TaskID: "task-1", SlotID: "slot-1",
		Operation: persistence.SyncOpDelete, Status: persistence.SyncStatusSkipped,
		RecordedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	recent := persistence.SyncOutcome{
		ID: "outcome-new", UserID: "user-1", TaskID: "task-2", SlotID: "slot-2",
		Operation: persistence.SyncOpCreate, Status: persistence.SyncStatusSynced,
		RecordedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, outcome := range []persistence.SyncOutcome{old, recent} {
		if err := h.Outcomes.RecordOutcome(ctx, outcome); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := h.Outcomes.DeleteOutcomesBefore(ctx, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcomes, err := h.Outcomes.ListOutcomes(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].ID != "outcome-new" {
		t.Errorf("expected only the recent outcome to remain, got %+v", outcomes)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	seedUser(t, h, "user-1")

	err := h.Users.CreateUser(ctx, persistence.User{
		ID:    "user-2",
		Email: "USER-1@example.com", // normalized to the existing address
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestUserRepository_DeleteCascadesOwnedRows(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	seedUser(t, h, "user-1")
	seedTask(t, h, "task-1", "user-1")

	if err := h.Tasks.CreateSlot(ctx, persistence.ScheduledTimeSlot{
		ID: "slot-1", TaskID: "task-1",
		StartTime: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("failed to create slot: %v", err)
	}
	if err := h.Reminders.CreateReminder(ctx, persistence.Reminder{
		ID: "rem-1", UserID: "user-1", Text: "water the plants",
		StartDate: "2024-03-01", EndDate: "2024-03-03",
	}); err != nil {
		t.Fatalf("failed to create reminder: %v", err)
	}

	if err := h.Users.DeleteUser(ctx, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := h.Tasks.GetTask(ctx, "task-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected task removed, got %v", err)
	}
	if _, err := h.Tasks.GetSlot(ctx, "slot-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected slot removed, got %v", err)
	}
	if _, err := h.Reminders.GetReminder(ctx, "rem-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected reminder removed, got %v", err)
	}
}
