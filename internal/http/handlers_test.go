package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/timebox/internal/application"
	apphttp "github.com/example/timebox/internal/http"
	"github.com/example/timebox/internal/outbox"
	"github.com/example/timebox/internal/testfixtures"
)

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(outbox.Job) bool { return true }

type serverFixture struct {
	server *httptest.Server
	clock  *testfixtures.Clock
}

func newServerFixture(t *testing.T) *serverFixture {
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
	reminders := application.NewReminderService(harness.Reminders, ids.NextFunc(), clock.NowFunc(), nil)
	recurring := application.NewRecurringEventService(harness.Recurring, nil, ids.NextFunc(), clock.NowFunc(), nil)
	outlook := application.NewOutlookService(
		harness.Integrations, harness.Tasks, harness.Outcomes, noopEnqueuer{},
		nil, nil, "",
		ids.NextFunc(), clock.NowFunc(), nil,
	)

	router := apphttp.NewRouter(apphttp.RouterConfig{
		Auth:      apphttp.NewAuthHandler(auth, nil),
		Tasks:     apphttp.NewTaskHandler(tasks, nil),
		Reminders: apphttp.NewReminderHandler(reminders, nil),
		Recurring: apphttp.NewRecurringHandler(recurring, nil),
		Outlook:   apphttp.NewOutlookHandler(outlook, nil),
		Middleware: []func(nethttp.Handler) nethttp.Handler{
			apphttp.RequireSession(auth, nil, apphttp.PublicPaths...),
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &serverFixture{server: server, clock: clock}
}

func (f *serverFixture) request(t *testing.T, method, path, token string, body any) (*nethttp.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := nethttp.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, raw
}

func (f *serverFixture) registerUser(t *testing.T, email string) string {
	t.Helper()

	resp, raw := f.request(t, nethttp.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct horse",
	})
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("register returned %d: %s", resp.StatusCode, raw)
	}

	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a session token")
	}
	return session.Token
}

func decodeInto(t *testing.T, raw []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode response %s: %v", raw, err)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	token := f.registerUser(t, "alex@example.com")

	resp, raw := f.request(t, nethttp.MethodPost, "/api/tasks", token, map[string]any{
		"title":        "Write report",
		"startDate":    "2024-03-04",
		"dueDate":      "2024-03-08",
		"timeRequired": 120,
	})
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("create task returned %d: %s", resp.StatusCode, raw)
	}

	var task struct {
		ID           string `json:"id"`
		TimeRequired int    `json:"timeRequired"`
	}
	decodeInto(t, raw, &task)
	if task.TimeRequired != 120 {
		t.Errorf("expected estimate 120, got %d", task.TimeRequired)
	}

	resp, raw = f.request(t, nethttp.MethodPost, "/api/tasks/"+task.ID+"/scheduled-times", token, map[string]any{
		"startTime":       "2024-03-04T09:00:00Z",
		"durationMinutes": 45,
	})
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("add slot returned %d: %s", resp.StatusCode, raw)
	}

	var slotResult struct {
		Slot struct {
			ID string `json:"id"`
		} `json:"scheduledTime"`
	}
	decodeInto(t, raw, &slotResult)
	if slotResult.Slot.ID == "" {
		t.Fatal("expected a scheduled time id")
	}

	// The first slot keeps the original estimate.
	resp, raw = f.request(t, nethttp.MethodGet, "/api/tasks/"+task.ID, token, nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("get task returned %d: %s", resp.StatusCode, raw)
	}
	var fetched struct {
		TimeRequired   int `json:"timeRequired"`
		ScheduledTimes []struct {
			ID string `json:"id"`
		} `json:"scheduledTimes"`
	}
	decodeInto(t, raw, &fetched)
	if fetched.TimeRequired != 120 {
		t.Errorf("expected estimate to stay 120, got %d", fetched.TimeRequired)
	}
	if len(fetched.ScheduledTimes) != 1 {
		t.Fatalf("expected one scheduled time, got %d", len(fetched.ScheduledTimes))
	}

	resp, raw = f.request(t, nethttp.MethodPost, "/api/tasks/"+task.ID+"/complete", token, nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("complete returned %d: %s", resp.StatusCode, raw)
	}
	var completed struct {
		Completed bool `json:"completed"`
	}
	decodeInto(t, raw, &completed)
	if !completed.Completed {
		t.Error("expected the task to be marked completed")
	}

	resp, raw = f.request(t, nethttp.MethodGet, "/api/tasks/history", token, nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("history returned %d: %s", resp.StatusCode, raw)
	}
	var history []struct {
		Date          string `json:"date"`
		MinutesWorked int    `json:"minutesWorked"`
	}
	decodeInto(t, raw, &history)
	if len(history) != 1 {
		t.Fatalf("expected one history bucket, got %d: %s", len(history), raw)
	}
	if history[0].Date != "2024-03-04" || history[0].MinutesWorked != 45 {
		t.Errorf("unexpected history bucket %+v", history[0])
	}
}

func TestTaskSlotListingOverHTTP(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	ownerToken := f.registerUser(t, "owner@example.com")
	otherToken := f.registerUser(t, "other@example.com")

	resp, raw := f.request(t, nethttp.MethodPost, "/api/tasks", ownerToken, map[string]any{
		"title":        "Write report",
		"startDate":    "2024-03-04",
		"dueDate":      "2024-03-08",
		"timeRequired": 120,
	})
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("create task returned %d: %s", resp.StatusCode, raw)
	}
	var task struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &task)

	for _, start := range []string{"2024-03-04T09:00:00Z", "2024-03-05T14:00:00Z"} {
		resp, raw = f.request(t, nethttp.MethodPost, "/api/tasks/"+task.ID+"/scheduled-times", ownerToken, map[string]any{
			"startTime":       start,
			"durationMinutes": 30,
		})
		if resp.StatusCode != nethttp.StatusCreated {
			t.Fatalf("add slot returned %d: %s", resp.StatusCode, raw)
		}
	}

	resp, raw = f.request(t, nethttp.MethodGet, "/api/tasks/"+task.ID+"/scheduled-times", ownerToken, nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("list slots returned %d: %s", resp.StatusCode, raw)
	}
	var slots []struct {
		TaskID    string    `json:"taskId"`
		StartTime time.Time `json:"startTime"`
	}
	decodeInto(t, raw, &slots)
	if len(slots) != 2 {
		t.Fatalf("expected two slots, got %d: %s", len(slots), raw)
	}
	if slots[0].TaskID != task.ID {
		t.Errorf("expected slots owned by the task, got %+v", slots[0])
	}
	if !slots[0].StartTime.Before(slots[1].StartTime) {
		t.Errorf("expected slots ordered by start time, got %s then %s", slots[0].StartTime, slots[1].StartTime)
	}

	resp, _ = f.request(t, nethttp.MethodGet, "/api/tasks/"+task.ID+"/scheduled-times", otherToken, nil)
	if resp.StatusCode != nethttp.StatusForbidden {
		t.Errorf("expected 403 for another user's slots, got %d", resp.StatusCode)
	}
}

func TestRequireSessionGuardsPrivateRoutes(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)

	resp, raw := f.request(t, nethttp.MethodGet, "/api/tasks", "", nil)
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", resp.StatusCode, raw)
	}
	var payload struct {
		ErrorCode string `json:"errorCode"`
	}
	decodeInto(t, raw, &payload)
	if payload.ErrorCode != "AUTH_REQUIRED" {
		t.Errorf("expected AUTH_REQUIRED, got %q", payload.ErrorCode)
	}

	resp, _ = f.request(t, nethttp.MethodGet, "/api/tasks", "token-forged", nil)
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Errorf("expected 401 for an unknown token, got %d", resp.StatusCode)
	}
}

func TestTaskOwnershipIsEnforced(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	ownerToken := f.registerUser(t, "owner@example.com")
	otherToken := f.registerUser(t, "other@example.com")

	resp, raw := f.request(t, nethttp.MethodPost, "/api/tasks", ownerToken, map[string]any{
		"title":        "Private work",
		"startDate":    "2024-03-04",
		"dueDate":      "2024-03-08",
		"timeRequired": 30,
	})
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("create task returned %d: %s", resp.StatusCode, raw)
	}
	var task struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &task)

	resp, _ = f.request(t, nethttp.MethodGet, "/api/tasks/"+task.ID, otherToken, nil)
	if resp.StatusCode != nethttp.StatusForbidden {
		t.Errorf("expected 403 for another user's task, got %d", resp.StatusCode)
	}

	resp, _ = f.request(t, nethttp.MethodGet, "/api/tasks/no-such-task", ownerToken, nil)
	if resp.StatusCode != nethttp.StatusNotFound {
		t.Errorf("expected 404 for an unknown task, got %d", resp.StatusCode)
	}
}

func TestValidationErrorsCarryFieldDetails(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	token := f.registerUser(t, "alex@example.com")

	resp, raw := f.request(t, nethttp.MethodPost, "/api/tasks", token, map[string]any{
		"title":        "",
		"startDate":    "2024-03-04",
		"dueDate":      "2024-03-08",
		"timeRequired": -30,
	})
	if resp.StatusCode != nethttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, raw)
	}

	var payload struct {
		ErrorCode string            `json:"errorCode"`
		Errors    map[string]string `json:"errors"`
	}
	decodeInto(t, raw, &payload)
	if _, ok := payload.Errors["title"]; !ok {
		t.Error("expected a title field error")
	}
	if _, ok := payload.Errors["timeRequired"]; !ok {
		t.Error("expected a timeRequired field error")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	token := f.registerUser(t, "alex@example.com")

	resp, raw := f.request(t, nethttp.MethodPost, "/api/auth/logout", token, nil)
	if resp.StatusCode != nethttp.StatusNoContent {
		t.Fatalf("logout returned %d: %s", resp.StatusCode, raw)
	}

	resp, _ = f.request(t, nethttp.MethodGet, "/api/profile", token, nil)
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestRemindersActiveFilter(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	token := f.registerUser(t, "alex@example.com")

	for _, window := range []struct{ text, start, end string }{
		{"Submit expenses", "2024-03-01", "2024-03-10"},
		{"Renew passport", "2024-04-01", "2024-04-30"},
	} {
		resp, raw := f.request(t, nethttp.MethodPost, "/api/reminders", token, map[string]string{
			"text":      window.text,
			"startDate": window.start,
			"endDate":   window.end,
		})
		if resp.StatusCode != nethttp.StatusCreated {
			t.Fatalf("create reminder returned %d: %s", resp.StatusCode, raw)
		}
	}

	resp, raw := f.request(t, nethttp.MethodGet, "/api/reminders/active?date=2024-03-05", token, nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("active reminders returned %d: %s", resp.StatusCode, raw)
	}
	var active []struct {
		Text string `json:"text"`
	}
	decodeInto(t, raw, &active)
	if len(active) != 1 || active[0].Text != "Submit expenses" {
		t.Errorf("unexpected active reminders: %s", raw)
	}
}

func TestRecurringOccurrencesOverHTTP(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	token := f.registerUser(t, "alex@example.com")

	resp, raw := f.request(t, nethttp.MethodPost, "/api/recurring-events", token, map[string]any{
		"title":           "Standup",
		"timeOfDay":       "09:30",
		"durationMinutes": 15,
	})
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("create template returned %d: %s", resp.StatusCode, raw)
	}

	resp, raw = f.request(t, nethttp.MethodGet, "/api/recurring-events/occurrences?from=2024-03-04&to=2024-03-05", token, nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("occurrences returned %d: %s", resp.StatusCode, raw)
	}
	var occurrences []struct {
		Title string    `json:"title"`
		Start time.Time `json:"start"`
	}
	decodeInto(t, raw, &occurrences)
	if len(occurrences) != 2 {
		t.Fatalf("expected two occurrences, got %d: %s", len(occurrences), raw)
	}
	if occurrences[0].Title != "Standup" {
		t.Errorf("unexpected occurrence title %q", occurrences[0].Title)
	}
}

func TestWebhookEchoesValidationToken(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)

	resp, err := f.server.Client().Post(f.server.URL+"/api/outlook/webhook?validationToken=proof-of-ownership", "text/plain", nil)
	if err != nil {
		t.Fatalf("webhook validation: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(raw) != "proof-of-ownership" {
		t.Errorf("expected the token echoed verbatim, got %q", raw)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "text/plain" {
		t.Errorf("expected text/plain, got %q", contentType)
	}
}

func TestWebhookAcknowledgesBatches(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)

	for _, body := range []string{
		`{"value":[{"subscriptionId":"sub-1","changeType":"updated","clientState":"bm90LWEtY2FsZW5kYXI=","resource":"me/events/evt-1"}]}`,
		`not json at all`,
	} {
		resp, err := f.server.Client().Post(f.server.URL+"/api/outlook/webhook", "application/json", bytes.NewReader([]byte(body)))
		if err != nil {
			t.Fatalf("webhook post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != nethttp.StatusAccepted {
			t.Errorf("expected 202 for %q, got %d", body, resp.StatusCode)
		}
	}
}

func TestOutlookRoutesReportNotConfigured(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	token := f.registerUser(t, "alex@example.com")

	resp, raw := f.request(t, nethttp.MethodGet, "/api/auth/outlook", token, nil)
	if resp.StatusCode != nethttp.StatusBadRequest {
		t.Fatalf("expected 400 without OAuth configuration, got %d: %s", resp.StatusCode, raw)
	}
	var payload struct {
		ErrorCode string `json:"errorCode"`
	}
	decodeInto(t, raw, &payload)
	if payload.ErrorCode != "OUTLOOK_NOT_CONFIGURED" {
		t.Errorf("expected OUTLOOK_NOT_CONFIGURED, got %q", payload.ErrorCode)
	}

	// Status is a plain read and never requires configuration.
	resp, raw = f.request(t, nethttp.MethodGet, "/api/outlook/status", token, nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status returned %d: %s", resp.StatusCode, raw)
	}
	var status struct {
		Connected bool `json:"connected"`
	}
	decodeInto(t, raw, &status)
	if status.Connected {
		t.Error("expected connected=false for a fresh account")
	}
}

func TestMethodNotAllowedListsMethods(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	token := f.registerUser(t, "alex@example.com")

	resp, _ := f.request(t, nethttp.MethodPatch, "/api/tasks", token, nil)
	if resp.StatusCode != nethttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != fmt.Sprintf("%s, %s", nethttp.MethodGet, nethttp.MethodPost) {
		t.Errorf("unexpected Allow header %q", allow)
	}
}
