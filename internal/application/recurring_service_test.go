package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/timebox/internal/application"
	"github.com/example/timebox/internal/persistence"
	"github.com/example/timebox/internal/testfixtures"
)

func newRecurringService(t *testing.T) *application.RecurringEventService {
	t.Helper()

	harness := testfixtures.NewSQLiteHarness(t)
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("tmpl")

	if err := harness.Users.CreateUser(context.Background(), persistence.User{ID: "user-owner", Email: "owner@example.com"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return application.NewRecurringEventService(harness.Recurring, nil, ids.NextFunc(), clock.NowFunc(), nil)
}

func TestRecurringEventValidation(t *testing.T) {
	t.Parallel()

	service := newRecurringService(t)
	_, err := service.CreateRecurringEvent(context.Background(), application.Principal{UserID: "user-owner"}, application.RecurringEventInput{
		Title:           "",
		TimeOfDay:       "25:99",
		DurationMinutes: 0,
	})
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	for _, field := range []string{"title", "timeOfDay", "durationMinutes"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Errorf("expected a field error for %s", field)
		}
	}
}

func TestPreviewOccurrencesSkipsDisabledTemplates(t *testing.T) {
	t.Parallel()

	service := newRecurringService(t)
	ctx := context.Background()
	owner := application.Principal{UserID: "user-owner"}

	if _, err := service.CreateRecurringEvent(ctx, owner, application.RecurringEventInput{
		Title: "Morning review", TimeOfDay: "08:30", DurationMinutes: 15,
	}); err != nil {
		t.Fatalf("create enabled: %v", err)
	}
	disabled := false
	if _, err := service.CreateRecurringEvent(ctx, owner, application.RecurringEventInput{
		Title: "Paused habit", TimeOfDay: "20:00", DurationMinutes: 30, Enabled: &disabled,
	}); err != nil {
		t.Fatalf("create disabled: %v", err)
	}

	occurrences, err := service.PreviewOccurrences(ctx, owner, "2024-03-01", "2024-03-03")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(occurrences) != 3 {
		t.Fatalf("expected 3 occurrences from the enabled template, got %d", len(occurrences))
	}
	if !occurrences[0].Start.Equal(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected first occurrence %+v", occurrences[0])
	}
}

func TestPreviewOccurrencesRejectsReversedWindow(t *testing.T) {
	t.Parallel()

	service := newRecurringService(t)
	_, err := service.PreviewOccurrences(context.Background(), application.Principal{UserID: "user-owner"}, "2024-03-05", "2024-03-01")
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestToggleRecurringEvent(t *testing.T) {
	t.Parallel()

	service := newRecurringService(t)
	ctx := context.Background()
	owner := application.Principal{UserID: "user-owner"}

	created, err := service.CreateRecurringEvent(ctx, owner, application.RecurringEventInput{
		Title: "Morning review", TimeOfDay: "08:30", DurationMinutes: 15,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.Enabled {
		t.Error("expected templates enabled by default")
	}

	disabled := false
	updated, err := service.UpdateRecurringEvent(ctx, owner, created.ID, application.RecurringEventPatch{Enabled: &disabled})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Enabled {
		t.Error("expected template disabled")
	}
}
