package client_test

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/timebox/client"
	"github.com/example/timebox/internal/application"
	apphttp "github.com/example/timebox/internal/http"
	"github.com/example/timebox/internal/outbox"
	"github.com/example/timebox/internal/testfixtures"
)

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(outbox.Job) bool { return true }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	harness := testfixtures.NewSQLiteHarness(t)
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("id")
	tokens := testfixtures.NewIDGenerator("token")

	auth := application.NewAuthService(
		harness.Users, harness.Sessions,
		nil, nil,
		ids.NextFunc(), tokens.NextFunc(), clock.NowFunc(),
		24*time.Hour, nil,
	)
	tasks := application.NewTaskService(harness.Tasks, harness.History, noopEnqueuer{}, ids.NextFunc(), clock.NowFunc(), nil)

	router := apphttp.NewRouter(apphttp.RouterConfig{
		Auth:  apphttp.NewAuthHandler(auth, nil),
		Tasks: apphttp.NewTaskHandler(tasks, nil),
		Middleware: []func(nethttp.Handler) nethttp.Handler{
			apphttp.RequireSession(auth, nil, apphttp.PublicPaths...),
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func newSignedInClient(t *testing.T, server *httptest.Server) *client.Client {
	t.Helper()

	c := client.New(server.URL, server.Client())
	if _, err := c.Register(context.Background(), "alex@example.com", "correct horse", "Alex"); err != nil {
		t.Fatalf("register: %v", err)
	}
	return c
}

func TestCacheFollowsMutations(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	c := newSignedInClient(t, server)
	ctx := context.Background()

	task, err := c.CreateTask(ctx, client.TaskInput{
		Title:        "Write report",
		StartDate:    "2024-03-04",
		DueDate:      "2024-03-08",
		TimeRequired: 120,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	cached, ok := c.Task(task.ID)
	if !ok {
		t.Fatal("expected the new task cached")
	}
	if cached.Title != "Write report" {
		t.Errorf("unexpected cached title %q", cached.Title)
	}

	title := "Write the quarterly report"
	if _, err := c.UpdateTask(ctx, task.ID, client.TaskPatch{Title: &title}); err != nil {
		t.Fatalf("update task: %v", err)
	}
	if cached, _ := c.Task(task.ID); cached.Title != title {
		t.Errorf("expected the cache updated, got %q", cached.Title)
	}

	if err := c.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, ok := c.Task(task.ID); ok {
		t.Error("expected the task evicted from the cache")
	}
}

func TestScheduleRefreshesEstimate(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	c := newSignedInClient(t, server)
	ctx := context.Background()

	task, err := c.CreateTask(ctx, client.TaskInput{
		Title:        "Prepare slides",
		StartDate:    "2024-03-04",
		DueDate:      "2024-03-08",
		TimeRequired: 120,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	first, err := c.Schedule(ctx, task.ID, start, 30)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if cached, _ := c.Task(task.ID); cached.TimeRequired != 120 {
		t.Errorf("expected the first slot to keep the estimate, got %d", cached.TimeRequired)
	}

	if _, err := c.Schedule(ctx, task.ID, start.Add(2*time.Hour), 45); err != nil {
		t.Fatalf("schedule second: %v", err)
	}
	if cached, _ := c.Task(task.ID); cached.TimeRequired != 75 {
		t.Errorf("expected the estimate re-derived to 75, got %d", cached.TimeRequired)
	}

	if _, err := c.Reschedule(ctx, task.ID, first.ScheduledTime.ID, start, 60); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if cached, _ := c.Task(task.ID); cached.TimeRequired != 105 {
		t.Errorf("expected the estimate re-derived to 105, got %d", cached.TimeRequired)
	}

	if err := c.Unschedule(ctx, task.ID, first.ScheduledTime.ID); err != nil {
		t.Fatalf("unschedule: %v", err)
	}
	if cached, _ := c.Task(task.ID); cached.TimeRequired != 45 {
		t.Errorf("expected the estimate re-derived to 45, got %d", cached.TimeRequired)
	}
}

func TestRefreshDiscardsStaleCache(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	first := newSignedInClient(t, server)
	ctx := context.Background()

	task, err := first.CreateTask(ctx, client.TaskInput{
		Title:        "Shared task",
		StartDate:    "2024-03-04",
		DueDate:      "2024-03-08",
		TimeRequired: 30,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	// A second session for the same account mutates the task behind the
	// first session's back.
	second := client.New(server.URL, server.Client())
	if _, err := second.Login(ctx, "alex@example.com", "correct horse"); err != nil {
		t.Fatalf("second login: %v", err)
	}
	title := "Renamed elsewhere"
	if _, err := second.UpdateTask(ctx, task.ID, client.TaskPatch{Title: &title}); err != nil {
		t.Fatalf("second session update: %v", err)
	}

	if cached, _ := first.Task(task.ID); cached.Title != "Shared task" {
		t.Fatalf("expected the first session's cache untouched, got %q", cached.Title)
	}
	if err := first.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if cached, _ := first.Task(task.ID); cached.Title != title {
		t.Errorf("expected the refresh to adopt the server state, got %q", cached.Title)
	}
}

func TestAPIErrorsCarryDetails(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	c := newSignedInClient(t, server)

	_, err := c.CreateTask(context.Background(), client.TaskInput{Title: ""})
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError, got %v", err)
	}
	if apiErr.Status != nethttp.StatusBadRequest {
		t.Errorf("expected 400, got %d", apiErr.Status)
	}
	if _, ok := apiErr.FieldErrors["title"]; !ok {
		t.Errorf("expected a title field error, got %+v", apiErr.FieldErrors)
	}
}

func TestLogoutClearsLocalState(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	c := newSignedInClient(t, server)
	ctx := context.Background()

	if _, err := c.CreateTask(ctx, client.TaskInput{
		Title:        "Ephemeral",
		StartDate:    "2024-03-04",
		DueDate:      "2024-03-08",
		TimeRequired: 10,
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if tasks := c.Tasks(); len(tasks) != 0 {
		t.Errorf("expected an empty cache after logout, got %d tasks", len(tasks))
	}
	if user := c.User(); user.ID != "" {
		t.Error("expected the user cleared after logout")
	}
}
