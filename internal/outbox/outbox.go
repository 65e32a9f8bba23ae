// Package outbox mirrors scheduled-time slots to Outlook asynchronously.
// Mutations enqueue jobs; a background worker drains the queue, talks to
// Microsoft Graph, and records one outcome row per attempt so the API can
// report the latest sync status without blocking writes.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/timebox/internal/outlook"
	"github.com/example/timebox/internal/persistence"
)

// Job describes one mirror operation for a scheduled-time slot.
type Job struct {
	UserID    string
	TaskID    string
	SlotID    string
	Operation string
	EventID   string
	Event     outlook.Event
}

// TokenSource yields a usable access token for a user, refreshing if needed.
type TokenSource interface {
	ValidAccessToken(ctx context.Context, userID string) (string, error)
}

// Graph is the Microsoft Graph event surface the worker drives.
type Graph interface {
	CreateEvent(ctx context.Context, token, calendarID string, event outlook.Event) (string, error)
	UpdateEvent(ctx context.Context, token, eventID string, event outlook.Event) error
	DeleteEvent(ctx context.Context, token, eventID string) error
}

// Queue accepts jobs and processes them on a single background goroutine.
type Queue struct {
	jobs     chan Job
	tokens   TokenSource
	graph    Graph
	outlooks persistence.OutlookRepository
	tasks    persistence.TaskRepository
	outcomes persistence.SyncOutcomeRepository
	newID    func() string
	now      func() time.Time
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// NewQueue constructs a queue with a bounded buffer. Enqueue never blocks;
// when the buffer is full the job is dropped and reported to the caller.
func NewQueue(
	tokens TokenSource,
	graph Graph,
	outlooks persistence.OutlookRepository,
	tasks persistence.TaskRepository,
	outcomes persistence.SyncOutcomeRepository,
	newID func() string,
	now func() time.Time,
	logger *slog.Logger,
) *Queue {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:     make(chan Job, 256),
		tokens:   tokens,
		graph:    graph,
		outlooks: outlooks,
		tasks:    tasks,
		outcomes: outcomes,
		newID:    newID,
		now:      now,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Enqueue hands a job to the worker. It reports false when the buffer is
// full or the queue has been stopped; callers treat that as a failed sync
// attempt, not a failed mutation.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		q.logger.Warn("sync queue stopped, dropping job",
			slog.String("task_id", job.TaskID),
			slog.String("operation", job.Operation))
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		q.logger.Warn("sync queue full, dropping job",
			slog.String("task_id", job.TaskID),
			slog.String("operation", job.Operation))
		return false
	}
}

// Start launches the worker goroutine. It returns immediately; the worker
// runs until Stop is called or ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		go q.run(ctx)
	})
}

// Stop closes the queue and waits for in-flight jobs to finish. Requests
// that outlive the server's shutdown grace may still call Enqueue; the
// stopped flag keeps them off the closed channel.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
		close(q.jobs)
		<-q.done
	})
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	status, eventID, detail := q.execute(ctx, job)

	outcome := persistence.SyncOutcome{
		ID:         q.newID(),
		UserID:     job.UserID,
		TaskID:     job.TaskID,
		SlotID:     job.SlotID,
		Operation:  job.Operation,
		Status:     status,
		EventID:    eventID,
		Detail:     detail,
		RecordedAt: q.now().UTC(),
	}
	if err := q.outcomes.RecordOutcome(ctx, outcome); err != nil {
		q.logger.Error("record sync outcome", slog.String("task_id", job.TaskID), slog.Any("error", err))
	}

	if status == persistence.SyncStatusFailed {
		q.logger.Warn("outlook sync failed",
			slog.String("task_id", job.TaskID),
			slog.String("slot_id", job.SlotID),
			slog.String("operation", job.Operation),
			slog.String("detail", detail))
	}
}

// execute performs the Graph call for a job and classifies the result.
// Upstream failures are absorbed here; they never surface to API callers.
func (q *Queue) execute(ctx context.Context, job Job) (status, eventID, detail string) {
	integration, err := q.outlooks.GetIntegrationByUserID(ctx, job.UserID)
	if err != nil {
		return persistence.SyncStatusSkipped, "", "no outlook integration"
	}
	if !integration.SyncEnabled || integration.CalendarID == "" {
		return persistence.SyncStatusSkipped, "", "sync disabled"
	}

	token, err := q.tokens.ValidAccessToken(ctx, job.UserID)
	if err != nil {
		return persistence.SyncStatusFailed, "", fmt.Sprintf("access token: %v", err)
	}

	switch job.Operation {
	case persistence.SyncOpCreate:
		return q.createAndRecord(ctx, token, integration.CalendarID, job)

	case persistence.SyncOpUpdate:
		// Slots mirrored before the integration existed have no event id;
		// fall back to creating the event so the calendars converge.
		if job.EventID == "" {
			return q.createAndRecord(ctx, token, integration.CalendarID, job)
		}
		if err := q.graph.UpdateEvent(ctx, token, job.EventID, job.Event); err != nil {
			return persistence.SyncStatusFailed, job.EventID, err.Error()
		}
		return persistence.SyncStatusSynced, job.EventID, ""

	case persistence.SyncOpDelete:
		// Nothing was ever mirrored for this slot.
		if job.EventID == "" {
			return persistence.SyncStatusSkipped, "", "slot has no outlook event"
		}
		if err := q.graph.DeleteEvent(ctx, token, job.EventID); err != nil {
			return persistence.SyncStatusFailed, job.EventID, err.Error()
		}
		return persistence.SyncStatusSynced, job.EventID, ""

	default:
		return persistence.SyncStatusFailed, "", fmt.Sprintf("unknown operation %q", job.Operation)
	}
}

func (q *Queue) createAndRecord(ctx context.Context, token, calendarID string, job Job) (status, eventID, detail string) {
	created, err := q.graph.CreateEvent(ctx, token, calendarID, job.Event)
	if err != nil {
		return persistence.SyncStatusFailed, "", err.Error()
	}
	if job.SlotID != "" {
		if err := q.tasks.SetSlotEventID(ctx, job.SlotID, created); err != nil {
			// The event exists remotely; record it even if the slot row is gone.
			return persistence.SyncStatusSynced, created, fmt.Sprintf("event created but slot update failed: %v", err)
		}
	}
	return persistence.SyncStatusSynced, created, ""
}
