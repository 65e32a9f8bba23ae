package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/timebox/internal/application"
	"github.com/example/timebox/internal/persistence"
	"github.com/example/timebox/internal/testfixtures"
)

func newReminderService(t *testing.T) (*application.ReminderService, *testfixtures.SQLiteHarness) {
	t.Helper()

	harness := testfixtures.NewSQLiteHarness(t)
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("rem")

	ctx := context.Background()
	for _, user := range []persistence.User{
		{ID: "user-owner", Email: "owner@example.com"},
		{ID: "user-other", Email: "other@example.com"},
	} {
		if err := harness.Users.CreateUser(ctx, user); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	return application.NewReminderService(harness.Reminders, ids.NextFunc(), clock.NowFunc(), nil), harness
}

func TestReminderCRUD(t *testing.T) {
	t.Parallel()

	service, _ := newReminderService(t)
	ctx := context.Background()
	owner := application.Principal{UserID: "user-owner"}

	created, err := service.CreateReminder(ctx, owner, application.ReminderInput{
		Text:      "water the plants",
		StartDate: "2024-03-01",
		EndDate:   "2024-03-03",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	text := "water the plants twice"
	updated, err := service.UpdateReminder(ctx, owner, created.ID, application.ReminderPatch{Text: &text})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Text != text {
		t.Errorf("unexpected text %q", updated.Text)
	}

	if err := service.DeleteReminder(ctx, owner, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.UpdateReminder(ctx, owner, created.ID, application.ReminderPatch{}); !errors.Is(err, application.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestReminderValidation(t *testing.T) {
	t.Parallel()

	service, _ := newReminderService(t)
	_, err := service.CreateReminder(context.Background(), application.Principal{UserID: "user-owner"}, application.ReminderInput{
		Text:      "",
		StartDate: "2024-03-05",
		EndDate:   "2024-03-01",
	})
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if _, ok := vErr.FieldErrors["text"]; !ok {
		t.Error("expected a text field error")
	}
	if _, ok := vErr.FieldErrors["endDate"]; !ok {
		t.Error("expected an endDate field error")
	}
}

func TestReminderOwnership(t *testing.T) {
	t.Parallel()

	service, _ := newReminderService(t)
	ctx := context.Background()
	owner := application.Principal{UserID: "user-owner"}
	other := application.Principal{UserID: "user-other"}

	created, err := service.CreateReminder(ctx, owner, application.ReminderInput{
		Text: "standup notes", StartDate: "2024-03-01", EndDate: "2024-03-01",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := service.DeleteReminder(ctx, other, created.ID); !errors.Is(err, application.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestActiveRemindersFiltersByDate(t *testing.T) {
	t.Parallel()

	service, _ := newReminderService(t)
	ctx := context.Background()
	owner := application.Principal{UserID: "user-owner"}

	for _, input := range []application.ReminderInput{
		{Text: "covers the day", StartDate: "2024-03-01", EndDate: "2024-03-05"},
		{Text: "already over", StartDate: "2024-02-01", EndDate: "2024-02-05"},
	} {
		if _, err := service.CreateReminder(ctx, owner, input); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	active, err := service.ActiveReminders(ctx, owner, "2024-03-03")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].Text != "covers the day" {
		t.Errorf("unexpected active set %+v", active)
	}

	// The clock is pinned inside the first reminder's range, so the default
	// date resolves to it as well.
	today, err := service.ActiveReminders(ctx, owner, "")
	if err != nil {
		t.Fatalf("active today: %v", err)
	}
	if len(today) != 1 {
		t.Errorf("expected one reminder active today, got %+v", today)
	}
}
