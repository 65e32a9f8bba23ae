package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/timebox/internal/outbox"
	"github.com/example/timebox/internal/outlook"
	"github.com/example/timebox/internal/persistence"
	"github.com/example/timebox/internal/scheduler"
)

// SyncEnqueuer accepts Outlook mirror jobs. Enqueue reports false when the
// job was dropped; task mutations succeed regardless.
type SyncEnqueuer interface {
	Enqueue(job outbox.Job) bool
}

// TaskService orchestrates task, slot, and history operations.
type TaskService struct {
	tasks       persistence.TaskRepository
	history     persistence.HistoryRepository
	sync        SyncEnqueuer
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTaskService wires dependencies for task operations. sync may be nil when
// Outlook mirroring is not configured.
func NewTaskService(
	tasks persistence.TaskRepository,
	history persistence.HistoryRepository,
	sync SyncEnqueuer,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *TaskService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		tasks:       tasks,
		history:     history,
		sync:        sync,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *TaskService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TaskService", operation, attrs...)
}

func validateTaskInput(input TaskInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.TimeRequired < 0 {
		vErr.add("timeRequired", "timeRequired must not be negative")
	}
	validateDate(vErr, "startDate", input.StartDate)
	validateDate(vErr, "dueDate", input.DueDate)
	if !vErr.HasErrors() && input.DueDate < input.StartDate {
		vErr.add("dueDate", "dueDate must not precede startDate")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// CreateTask validates the input and persists a new task for the principal.
func (s *TaskService) CreateTask(ctx context.Context, principal Principal, input TaskInput) (persistence.Task, error) {
	if s == nil {
		return persistence.Task{}, fmt.Errorf("TaskService is nil")
	}

	if vErr := validateTaskInput(input); vErr != nil {
		return persistence.Task{}, vErr
	}

	now := s.now()
	task := persistence.Task{
		ID:           s.idGenerator(),
		UserID:       principal.UserID,
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		StartDate:    input.StartDate,
		DueDate:      input.DueDate,
		TimeRequired: input.TimeRequired,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return persistence.Task{}, err
	}

	s.loggerWith(ctx, "CreateTask", "task_id", task.ID, "user_id", principal.UserID).
		InfoContext(ctx, "task created")
	return task, nil
}

// ownedTask loads a task and enforces ownership.
func (s *TaskService) ownedTask(ctx context.Context, principal Principal, id string) (persistence.Task, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Task{}, ErrNotFound
		}
		return persistence.Task{}, err
	}
	if task.UserID != principal.UserID {
		return persistence.Task{}, ErrForbidden
	}
	return task, nil
}

// GetTask returns one of the principal's tasks with its slots.
func (s *TaskService) GetTask(ctx context.Context, principal Principal, id string) (persistence.Task, error) {
	if s == nil {
		return persistence.Task{}, fmt.Errorf("TaskService is nil")
	}
	task, err := s.ownedTask(ctx, principal, id)
	if err != nil {
		return persistence.Task{}, err
	}
	if task.Slots == nil {
		slots, err := s.tasks.ListSlotsForTask(ctx, id)
		if err != nil {
			return persistence.Task{}, err
		}
		task.Slots = slots
	}
	return task, nil
}

// ListTasks returns the principal's tasks, newest first, slots attached.
func (s *TaskService) ListTasks(ctx context.Context, principal Principal) ([]persistence.Task, error) {
	if s == nil {
		return nil, fmt.Errorf("TaskService is nil")
	}
	return s.tasks.ListTasks(ctx, principal.UserID)
}

// UpdateTask applies partial changes to one of the principal's tasks. When the
// title or description change, mirrored Outlook events are updated as well.
// Flipping completed carries the same history side effects as CompleteTask and
// ReopenTask.
func (s *TaskService) UpdateTask(ctx context.Context, principal Principal, id string, patch TaskPatch) (persistence.Task, error) {
	if s == nil {
		return persistence.Task{}, fmt.Errorf("TaskService is nil")
	}

	task, err := s.ownedTask(ctx, principal, id)
	if err != nil {
		return persistence.Task{}, err
	}

	contentChanged := false
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			vErr := &ValidationError{}
			vErr.add("title", "title is required")
			return persistence.Task{}, vErr
		}
		contentChanged = contentChanged || title != task.Title
		task.Title = title
	}
	if patch.Description != nil {
		contentChanged = contentChanged || *patch.Description != task.Description
		task.Description = *patch.Description
	}

	vErr := &ValidationError{}
	if patch.StartDate != nil {
		validateDate(vErr, "startDate", *patch.StartDate)
		task.StartDate = *patch.StartDate
	}
	if patch.DueDate != nil {
		validateDate(vErr, "dueDate", *patch.DueDate)
		task.DueDate = *patch.DueDate
	}
	if patch.TimeRequired != nil {
		if *patch.TimeRequired < 0 {
			vErr.add("timeRequired", "timeRequired must not be negative")
		}
		task.TimeRequired = *patch.TimeRequired
	}
	if !vErr.HasErrors() && task.DueDate < task.StartDate {
		vErr.add("dueDate", "dueDate must not precede startDate")
	}
	if vErr.HasErrors() {
		return persistence.Task{}, vErr
	}

	completionChanged := patch.Completed != nil && *patch.Completed != task.Completed
	now := s.now()
	if completionChanged {
		if *patch.Completed {
			task.Completed = true
			task.CompletedAt = &now
		} else {
			task.Completed = false
			task.CompletedAt = nil
		}
	}

	task.UpdatedAt = now
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return persistence.Task{}, err
	}

	if completionChanged {
		if task.Completed {
			slots, err := s.tasks.ListSlotsForTask(ctx, id)
			if err != nil {
				return persistence.Task{}, err
			}
			if err := s.history.ReplaceHistoryForTask(ctx, id, s.historyRows(task, slots)); err != nil {
				return persistence.Task{}, err
			}
			task.Slots = slots
		} else {
			if err := s.history.DeleteHistoryForTask(ctx, id); err != nil {
				return persistence.Task{}, err
			}
		}
	}

	if contentChanged {
		slots, err := s.tasks.ListSlotsForTask(ctx, id)
		if err == nil {
			for _, slot := range slots {
				s.enqueue(ctx, task, slot, persistence.SyncOpUpdate)
			}
			task.Slots = slots
		}
	}

	return task, nil
}

// DeleteTask removes a task, its slots, and its history. Mirrored Outlook
// events are deleted asynchronously.
func (s *TaskService) DeleteTask(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("TaskService is nil")
	}

	task, err := s.ownedTask(ctx, principal, id)
	if err != nil {
		return err
	}

	slots, err := s.tasks.ListSlotsForTask(ctx, id)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		s.enqueue(ctx, task, slot, persistence.SyncOpDelete)
	}

	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.loggerWith(ctx, "DeleteTask", "task_id", id, "user_id", principal.UserID).
		InfoContext(ctx, "task deleted")
	return nil
}

// CompleteTask marks a task done and rebuilds its per-day history from the
// task's slots. A task with no slots yields a single history row on its due
// date covering the full estimate.
func (s *TaskService) CompleteTask(ctx context.Context, principal Principal, id string) (persistence.Task, error) {
	if s == nil {
		return persistence.Task{}, fmt.Errorf("TaskService is nil")
	}

	task, err := s.ownedTask(ctx, principal, id)
	if err != nil {
		return persistence.Task{}, err
	}

	now := s.now()
	task.Completed = true
	task.CompletedAt = &now
	task.UpdatedAt = now
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return persistence.Task{}, err
	}

	slots, err := s.tasks.ListSlotsForTask(ctx, id)
	if err != nil {
		return persistence.Task{}, err
	}

	rows := s.historyRows(task, slots)
	if err := s.history.ReplaceHistoryForTask(ctx, id, rows); err != nil {
		return persistence.Task{}, err
	}

	s.loggerWith(ctx, "CompleteTask", "task_id", id, "history_rows", len(rows)).
		InfoContext(ctx, "task completed")
	task.Slots = slots
	return task, nil
}

// historyRows derives per-day activity from slots, falling back to a single
// due-date row when the task was never placed on the calendar.
func (s *TaskService) historyRows(task persistence.Task, slots []persistence.ScheduledTimeSlot) []persistence.TaskHistory {
	now := s.now()
	if len(slots) == 0 {
		return []persistence.TaskHistory{{
			ID:            s.idGenerator(),
			TaskID:        task.ID,
			UserID:        task.UserID,
			Date:          task.DueDate,
			MinutesWorked: task.TimeRequired,
			CreatedAt:     now,
		}}
	}

	minutesByDate := make(map[string]int)
	order := make([]string, 0, len(slots))
	for _, slot := range slots {
		date := slot.StartTime.UTC().Format(persistence.DateLayout)
		if _, seen := minutesByDate[date]; !seen {
			order = append(order, date)
		}
		minutesByDate[date] += slot.DurationMinutes
	}

	rows := make([]persistence.TaskHistory, 0, len(order))
	for _, date := range order {
		rows = append(rows, persistence.TaskHistory{
			ID:            s.idGenerator(),
			TaskID:        task.ID,
			UserID:        task.UserID,
			Date:          date,
			MinutesWorked: minutesByDate[date],
			CreatedAt:     now,
		})
	}
	return rows
}

// ReopenTask clears completion state and removes the derived history rows.
func (s *TaskService) ReopenTask(ctx context.Context, principal Principal, id string) (persistence.Task, error) {
	if s == nil {
		return persistence.Task{}, fmt.Errorf("TaskService is nil")
	}

	task, err := s.ownedTask(ctx, principal, id)
	if err != nil {
		return persistence.Task{}, err
	}

	task.Completed = false
	task.CompletedAt = nil
	task.UpdatedAt = s.now()
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return persistence.Task{}, err
	}
	if err := s.history.DeleteHistoryForTask(ctx, id); err != nil {
		return persistence.Task{}, err
	}
	return task, nil
}

func validateSlotInput(input SlotInput) *ValidationError {
	vErr := &ValidationError{}
	if input.StartTime.IsZero() {
		vErr.add("startTime", "startTime is required")
	}
	if input.DurationMinutes <= 0 {
		vErr.add("durationMinutes", "durationMinutes must be a positive number of minutes")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// AddSlot places part of a task on the calendar. The first slot leaves the
// task's estimate untouched; once a task has more than one slot the estimate
// is derived as the sum of all slot durations.
func (s *TaskService) AddSlot(ctx context.Context, principal Principal, taskID string, input SlotInput) (SlotResult, error) {
	if s == nil {
		return SlotResult{}, fmt.Errorf("TaskService is nil")
	}

	task, err := s.ownedTask(ctx, principal, taskID)
	if err != nil {
		return SlotResult{}, err
	}
	if vErr := validateSlotInput(input); vErr != nil {
		return SlotResult{}, vErr
	}

	now := s.now()
	slot := persistence.ScheduledTimeSlot{
		ID:              s.idGenerator(),
		TaskID:          taskID,
		StartTime:       input.StartTime,
		DurationMinutes: input.DurationMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	existingCount := len(task.Slots)
	if task.Slots == nil {
		existing, err := s.tasks.ListSlotsForTask(ctx, taskID)
		if err != nil {
			return SlotResult{}, err
		}
		existingCount = len(existing)
	}

	overlaps, err := s.overlapWarnings(ctx, principal.UserID, slot)
	if err != nil {
		return SlotResult{}, err
	}

	if err := s.tasks.CreateSlot(ctx, slot); err != nil {
		return SlotResult{}, err
	}

	if existingCount > 0 {
		if err := s.recalcTimeRequired(ctx, task); err != nil {
			return SlotResult{}, err
		}
	}

	s.enqueue(ctx, task, slot, persistence.SyncOpCreate)
	return SlotResult{Slot: slot, Overlaps: overlaps}, nil
}

// UpdateSlot moves or resizes a placement and re-derives the task estimate.
func (s *TaskService) UpdateSlot(ctx context.Context, principal Principal, taskID, slotID string, input SlotInput) (SlotResult, error) {
	if s == nil {
		return SlotResult{}, fmt.Errorf("TaskService is nil")
	}

	task, err := s.ownedTask(ctx, principal, taskID)
	if err != nil {
		return SlotResult{}, err
	}
	slot, err := s.ownedSlot(ctx, taskID, slotID)
	if err != nil {
		return SlotResult{}, err
	}
	if vErr := validateSlotInput(input); vErr != nil {
		return SlotResult{}, vErr
	}

	slot.StartTime = input.StartTime
	slot.DurationMinutes = input.DurationMinutes
	slot.UpdatedAt = s.now()

	overlaps, err := s.overlapWarnings(ctx, principal.UserID, slot)
	if err != nil {
		return SlotResult{}, err
	}

	if err := s.tasks.UpdateSlot(ctx, slot); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return SlotResult{}, ErrNotFound
		}
		return SlotResult{}, err
	}
	if err := s.recalcTimeRequired(ctx, task); err != nil {
		return SlotResult{}, err
	}

	s.enqueue(ctx, task, slot, persistence.SyncOpUpdate)
	return SlotResult{Slot: slot, Overlaps: overlaps}, nil
}

// DeleteSlot removes a placement. The task estimate is re-derived from the
// remaining slots, dropping to zero when none remain.
func (s *TaskService) DeleteSlot(ctx context.Context, principal Principal, taskID, slotID string) error {
	if s == nil {
		return fmt.Errorf("TaskService is nil")
	}

	task, err := s.ownedTask(ctx, principal, taskID)
	if err != nil {
		return err
	}
	slot, err := s.ownedSlot(ctx, taskID, slotID)
	if err != nil {
		return err
	}

	if err := s.tasks.DeleteSlot(ctx, slotID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.recalcTimeRequired(ctx, task); err != nil {
		return err
	}

	s.enqueue(ctx, task, slot, persistence.SyncOpDelete)
	return nil
}

// ListSlots returns every placement across the principal's tasks, ordered by
// start time. This backs the calendar view.
func (s *TaskService) ListSlots(ctx context.Context, principal Principal) ([]persistence.ScheduledTimeSlot, error) {
	if s == nil {
		return nil, fmt.Errorf("TaskService is nil")
	}
	return s.tasks.ListSlotsForUser(ctx, principal.UserID)
}

// TaskSlots returns the placements of one task, ownership-checked.
func (s *TaskService) TaskSlots(ctx context.Context, principal Principal, taskID string) ([]persistence.ScheduledTimeSlot, error) {
	if s == nil {
		return nil, fmt.Errorf("TaskService is nil")
	}
	if _, err := s.ownedTask(ctx, principal, taskID); err != nil {
		return nil, err
	}
	return s.tasks.ListSlotsForTask(ctx, taskID)
}

// History returns per-day totals of minutes worked across completed tasks.
func (s *TaskService) History(ctx context.Context, principal Principal) ([]persistence.DateMinutes, error) {
	if s == nil {
		return nil, fmt.Errorf("TaskService is nil")
	}
	return s.history.AggregateHistory(ctx, principal.UserID)
}

func (s *TaskService) ownedSlot(ctx context.Context, taskID, slotID string) (persistence.ScheduledTimeSlot, error) {
	slot, err := s.tasks.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.ScheduledTimeSlot{}, ErrNotFound
		}
		return persistence.ScheduledTimeSlot{}, err
	}
	if slot.TaskID != taskID {
		return persistence.ScheduledTimeSlot{}, ErrNotFound
	}
	return slot, nil
}

// recalcTimeRequired rewrites the task estimate as the sum of its slots.
func (s *TaskService) recalcTimeRequired(ctx context.Context, task persistence.Task) error {
	slots, err := s.tasks.ListSlotsForTask(ctx, task.ID)
	if err != nil {
		return err
	}
	total := 0
	for _, slot := range slots {
		total += slot.DurationMinutes
	}
	if total == task.TimeRequired {
		return nil
	}
	task.TimeRequired = total
	task.UpdatedAt = s.now()
	return s.tasks.UpdateTask(ctx, task)
}

// overlapWarnings compares a candidate placement against every other slot the
// user owns. Overlaps are advisory and never block the mutation.
func (s *TaskService) overlapWarnings(ctx context.Context, userID string, candidate persistence.ScheduledTimeSlot) ([]scheduler.Overlap, error) {
	all, err := s.tasks.ListSlotsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	existing := make([]scheduler.Slot, 0, len(all))
	for _, slot := range all {
		existing = append(existing, scheduler.Slot{
			ID:     slot.ID,
			TaskID: slot.TaskID,
			Start:  slot.StartTime,
			End:    slot.StartTime.Add(time.Duration(slot.DurationMinutes) * time.Minute),
		})
	}
	return scheduler.DetectOverlaps(existing, scheduler.Slot{
		ID:     candidate.ID,
		TaskID: candidate.TaskID,
		Start:  candidate.StartTime,
		End:    candidate.StartTime.Add(time.Duration(candidate.DurationMinutes) * time.Minute),
	}), nil
}

// enqueue hands a mirror job to the sync queue when one is configured.
func (s *TaskService) enqueue(ctx context.Context, task persistence.Task, slot persistence.ScheduledTimeSlot, operation string) {
	if s.sync == nil {
		return
	}
	job := outbox.Job{
		UserID:    task.UserID,
		TaskID:    task.ID,
		SlotID:    slot.ID,
		Operation: operation,
		EventID:   slot.OutlookEventID,
		Event: outlook.Event{
			Subject: task.Title,
			Body:    task.Description,
			Start:   slot.StartTime,
			End:     slot.StartTime.Add(time.Duration(slot.DurationMinutes) * time.Minute),
		},
	}
	if !s.sync.Enqueue(job) {
		s.loggerWith(ctx, "enqueue", "task_id", task.ID, "slot_id", slot.ID).
			WarnContext(ctx, "sync job dropped")
	}
}
