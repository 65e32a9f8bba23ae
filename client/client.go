// Package client provides a Go API client with a local task cache.
//
// The cache mirrors the signed-in user's tasks keyed by id. Mutations call
// the server first and then update the cache with the server's response, so
// the cache is never authoritative: concurrent sessions follow last-write-wins
// semantics and Refresh discards the cache in favour of the server state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Task is the API representation of a task and its scheduled times.
type Task struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	StartDate      string          `json:"startDate"`
	DueDate        string          `json:"dueDate"`
	TimeRequired   int             `json:"timeRequired"`
	Completed      bool            `json:"completed"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	ScheduledTimes []ScheduledTime `json:"scheduledTimes"`
}

// ScheduledTime is a concrete calendar placement for part of a task.
type ScheduledTime struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"taskId"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
	OutlookEventID  string    `json:"outlookEventId,omitempty"`
}

// ScheduleResult carries the stored placement plus any advisory overlap
// warnings the server reported.
type ScheduleResult struct {
	ScheduledTime ScheduledTime `json:"scheduledTime"`
	Warnings      []Overlap     `json:"warnings,omitempty"`
}

// Overlap identifies an existing placement that collides with a new one.
type Overlap struct {
	SlotID string    `json:"slotId"`
	TaskID string    `json:"taskId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// TaskInput holds the fields for creating a task.
type TaskInput struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	StartDate    string `json:"startDate"`
	DueDate      string `json:"dueDate"`
	TimeRequired int    `json:"timeRequired"`
}

// TaskPatch holds a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	StartDate    *string `json:"startDate,omitempty"`
	DueDate      *string `json:"dueDate,omitempty"`
	TimeRequired *int    `json:"timeRequired,omitempty"`
}

// User describes the signed-in account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type sessionPayload struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	User      User   `json:"user"`
}

// APIError is returned when the server responds with an error payload.
type APIError struct {
	Status      int
	Code        string
	Message     string
	FieldErrors map[string]string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return fmt.Sprintf("client: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("client: server returned %d", e.Status)
}

// Client talks to the timebox API and keeps a cache of the user's tasks.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
	user  User
	tasks map[string]Task
}

// New constructs a Client for the given base URL, e.g. "http://localhost:8080".
// If httpClient is nil, http.DefaultClient is used.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tasks:   make(map[string]Task),
	}
}

// Register creates an account, stores the session, and loads the (empty)
// task cache.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (User, error) {
	body := map[string]string{"email": email, "password": password, "displayName": displayName}
	var session sessionPayload
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &session); err != nil {
		return User{}, err
	}
	return c.adoptSession(ctx, session)
}

// Login authenticates, stores the session token, and populates the task cache.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	body := map[string]string{"email": email, "password": password}
	var session sessionPayload
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &session); err != nil {
		return User{}, err
	}
	return c.adoptSession(ctx, session)
}

func (c *Client) adoptSession(ctx context.Context, session sessionPayload) (User, error) {
	c.mu.Lock()
	c.token = session.Token
	c.user = session.User
	c.mu.Unlock()

	if err := c.Refresh(ctx); err != nil {
		return User{}, err
	}
	return session.User, nil
}

// Logout revokes the session and clears all local state.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)

	c.mu.Lock()
	c.token = ""
	c.user = User{}
	c.tasks = make(map[string]Task)
	c.mu.Unlock()
	return err
}

// User returns the signed-in account, zero-valued when signed out.
func (c *Client) User() User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Refresh replaces the cache with the server's task list.
func (c *Client) Refresh(ctx context.Context) error {
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return err
	}

	fresh := make(map[string]Task, len(tasks))
	for _, task := range tasks {
		fresh[task.ID] = task
	}

	c.mu.Lock()
	c.tasks = fresh
	c.mu.Unlock()
	return nil
}

// Tasks returns a snapshot of the cached tasks.
func (c *Client) Tasks() []Task {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tasks := make([]Task, 0, len(c.tasks))
	for _, task := range c.tasks {
		tasks = append(tasks, task)
	}
	return tasks
}

// Task returns a cached task by id.
func (c *Client) Task(id string) (Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	task, ok := c.tasks[id]
	return task, ok
}

// CreateTask creates a task on the server and caches the result.
func (c *Client) CreateTask(ctx context.Context, input TaskInput) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", input, &task); err != nil {
		return Task{}, err
	}
	c.store(task)
	return task, nil
}

// UpdateTask applies a partial update and caches the server's view.
func (c *Client) UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+id, patch, &task); err != nil {
		return Task{}, err
	}
	c.store(task)
	return task, nil
}

// DeleteTask removes a task on the server and evicts it from the cache.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.tasks, id)
	c.mu.Unlock()
	return nil
}

// CompleteTask marks a task done and caches the result.
func (c *Client) CompleteTask(ctx context.Context, id string) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+id+"/complete", nil, &task); err != nil {
		return Task{}, err
	}
	c.store(task)
	return task, nil
}

// ReopenTask clears completion and caches the result.
func (c *Client) ReopenTask(ctx context.Context, id string) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+id+"/reopen", nil, &task); err != nil {
		return Task{}, err
	}
	c.store(task)
	return task, nil
}

// Schedule adds a scheduled time to a task and refetches the task so the
// cache reflects the re-derived estimate.
func (c *Client) Schedule(ctx context.Context, taskID string, start time.Time, durationMinutes int) (ScheduleResult, error) {
	body := map[string]any{"startTime": start, "durationMinutes": durationMinutes}
	var result ScheduleResult
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/scheduled-times", body, &result); err != nil {
		return ScheduleResult{}, err
	}
	return result, c.refetch(ctx, taskID)
}

// Reschedule moves or resizes an existing placement.
func (c *Client) Reschedule(ctx context.Context, taskID, slotID string, start time.Time, durationMinutes int) (ScheduleResult, error) {
	body := map[string]any{"startTime": start, "durationMinutes": durationMinutes}
	var result ScheduleResult
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+taskID+"/scheduled-times/"+slotID, body, &result); err != nil {
		return ScheduleResult{}, err
	}
	return result, c.refetch(ctx, taskID)
}

// Unschedule removes a placement.
func (c *Client) Unschedule(ctx context.Context, taskID, slotID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/tasks/"+taskID+"/scheduled-times/"+slotID, nil, nil); err != nil {
		return err
	}
	return c.refetch(ctx, taskID)
}

func (c *Client) refetch(ctx context.Context, taskID string) error {
	var task Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+taskID, nil, &task); err != nil {
		return err
	}
	c.store(task)
	return nil
}

func (c *Client) store(task Task) {
	c.mu.Lock()
	c.tasks[task.ID] = task
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			ErrorCode string            `json:"errorCode"`
			Message   string            `json:"message"`
			Errors    map[string]string `json:"errors"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil {
			apiErr.Code = payload.ErrorCode
			apiErr.Message = payload.Message
			apiErr.FieldErrors = payload.Errors
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
