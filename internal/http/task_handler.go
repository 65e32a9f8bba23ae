package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/timebox/internal/application"
	"github.com/example/timebox/internal/persistence"
	"github.com/example/timebox/internal/scheduler"
)

type taskService interface {
	CreateTask(ctx context.Context, principal application.Principal, input application.TaskInput) (persistence.Task, error)
	GetTask(ctx context.Context, principal application.Principal, id string) (persistence.Task, error)
	ListTasks(ctx context.Context, principal application.Principal) ([]persistence.Task, error)
	UpdateTask(ctx context.Context, principal application.Principal, id string, patch application.TaskPatch) (persistence.Task, error)
	DeleteTask(ctx context.Context, principal application.Principal, id string) error
	CompleteTask(ctx context.Context, principal application.Principal, id string) (persistence.Task, error)
	ReopenTask(ctx context.Context, principal application.Principal, id string) (persistence.Task, error)
	AddSlot(ctx context.Context, principal application.Principal, taskID string, input application.SlotInput) (application.SlotResult, error)
	UpdateSlot(ctx context.Context, principal application.Principal, taskID, slotID string, input application.SlotInput) (application.SlotResult, error)
	DeleteSlot(ctx context.Context, principal application.Principal, taskID, slotID string) error
	ListSlots(ctx context.Context, principal application.Principal) ([]persistence.ScheduledTimeSlot, error)
	TaskSlots(ctx context.Context, principal application.Principal, taskID string) ([]persistence.ScheduledTimeSlot, error)
	History(ctx context.Context, principal application.Principal) ([]persistence.DateMinutes, error)
}

type TaskHandler struct {
	service   taskService
	responder responder
	logger    *slog.Logger
}

func NewTaskHandler(service taskService, logger *slog.Logger) *TaskHandler {
	base := defaultLogger(logger)
	return &TaskHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TaskHandler) principal(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthenticated)
	}
	return principal, ok
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, toTaskView(task))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, views)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	task, err := h.service.CreateTask(r.Context(), principal, application.TaskInput{
		Title:        req.Title,
		Description:  req.Description,
		StartDate:    req.StartDate,
		DueDate:      req.DueDate,
		TimeRequired: req.TimeRequired,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTaskView(task))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, _ := TaskIDFromContext(r.Context())

	task, err := h.service.GetTask(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskView(task))
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, _ := TaskIDFromContext(r.Context())

	var req taskPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	task, err := h.service.UpdateTask(r.Context(), principal, id, application.TaskPatch{
		Title:        req.Title,
		Description:  req.Description,
		StartDate:    req.StartDate,
		DueDate:      req.DueDate,
		TimeRequired: req.TimeRequired,
		Completed:    req.Completed,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskView(task))
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, _ := TaskIDFromContext(r.Context())

	if err := h.service.DeleteTask(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, _ := TaskIDFromContext(r.Context())

	task, err := h.service.CompleteTask(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskView(task))
}

func (h *TaskHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, _ := TaskIDFromContext(r.Context())

	task, err := h.service.ReopenTask(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskView(task))
}

func (h *TaskHandler) AddSlot(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	taskID, _ := TaskIDFromContext(r.Context())

	input, ok := h.decodeSlot(w, r)
	if !ok {
		return
	}

	result, err := h.service.AddSlot(r.Context(), principal, taskID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSlotResultView(result))
}

func (h *TaskHandler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	taskID, _ := TaskIDFromContext(r.Context())
	slotID, _ := SlotIDFromContext(r.Context())

	input, ok := h.decodeSlot(w, r)
	if !ok {
		return
	}

	result, err := h.service.UpdateSlot(r.Context(), principal, taskID, slotID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSlotResultView(result))
}

func (h *TaskHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	taskID, _ := TaskIDFromContext(r.Context())
	slotID, _ := SlotIDFromContext(r.Context())

	if err := h.service.DeleteSlot(r.Context(), principal, taskID, slotID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *TaskHandler) Slots(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	taskID, _ := TaskIDFromContext(r.Context())

	slots, err := h.service.TaskSlots(r.Context(), principal, taskID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]slotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, toSlotView(slot))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, views)
}

func (h *TaskHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	slots, err := h.service.ListSlots(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]slotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, toSlotView(slot))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, views)
}

func (h *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	buckets, err := h.service.History(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]historyView, 0, len(buckets))
	for _, bucket := range buckets {
		views = append(views, historyView{Date: bucket.Date, MinutesWorked: bucket.MinutesWorked})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, views)
}

func (h *TaskHandler) decodeSlot(w http.ResponseWriter, r *http.Request) (application.SlotInput, bool) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return application.SlotInput{}, false
	}
	return application.SlotInput{
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	}, true
}

type taskRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	StartDate    string `json:"startDate"`
	DueDate      string `json:"dueDate"`
	TimeRequired int    `json:"timeRequired"`
}

type taskPatchRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	StartDate    *string `json:"startDate"`
	DueDate      *string `json:"dueDate"`
	TimeRequired *int    `json:"timeRequired"`
	Completed    *bool   `json:"completed"`
}

type slotRequest struct {
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
}

type taskView struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	StartDate      string     `json:"startDate"`
	DueDate        string     `json:"dueDate"`
	TimeRequired   int        `json:"timeRequired"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ScheduledTimes []slotView `json:"scheduledTimes"`
}

type slotView struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"taskId"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
	OutlookEventID  string    `json:"outlookEventId,omitempty"`
}

type overlapView struct {
	SlotID string    `json:"slotId"`
	TaskID string    `json:"taskId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type slotResultView struct {
	Slot     slotView      `json:"scheduledTime"`
	Warnings []overlapView `json:"warnings,omitempty"`
}

type historyView struct {
	Date          string `json:"date"`
	MinutesWorked int    `json:"minutesWorked"`
}

func toTaskView(task persistence.Task) taskView {
	slots := make([]slotView, 0, len(task.Slots))
	for _, slot := range task.Slots {
		slots = append(slots, toSlotView(slot))
	}
	return taskView{
		ID:             task.ID,
		Title:          task.Title,
		Description:    task.Description,
		StartDate:      task.StartDate,
		DueDate:        task.DueDate,
		TimeRequired:   task.TimeRequired,
		Completed:      task.Completed,
		CompletedAt:    task.CompletedAt,
		ScheduledTimes: slots,
	}
}

func toSlotView(slot persistence.ScheduledTimeSlot) slotView {
	return slotView{
		ID:              slot.ID,
		TaskID:          slot.TaskID,
		StartTime:       slot.StartTime,
		DurationMinutes: slot.DurationMinutes,
		OutlookEventID:  slot.OutlookEventID,
	}
}

func toSlotResultView(result application.SlotResult) slotResultView {
	warnings := make([]overlapView, 0, len(result.Overlaps))
	for _, overlap := range result.Overlaps {
		warnings = append(warnings, toOverlapView(overlap))
	}
	if len(warnings) == 0 {
		warnings = nil
	}
	return slotResultView{Slot: toSlotView(result.Slot), Warnings: warnings}
}

func toOverlapView(overlap scheduler.Overlap) overlapView {
	return overlapView{
		SlotID: overlap.SlotID,
		TaskID: overlap.TaskID,
		Start:  overlap.Start,
		End:    overlap.End,
	}
}
