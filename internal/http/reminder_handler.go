package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/timebox/internal/application"
	"github.com/example/timebox/internal/persistence"
)

type reminderService interface {
	CreateReminder(ctx context.Context, principal application.Principal, input application.ReminderInput) (persistence.Reminder, error)
	GetReminder(ctx context.Context, principal application.Principal, id string) (persistence.Reminder, error)
	ListReminders(ctx context.Context, principal application.Principal) ([]persistence.Reminder, error)
	ActiveReminders(ctx context.Context, principal application.Principal, date string) ([]persistence.Reminder, error)
	UpdateReminder(ctx context.Context, principal application.Principal, id string, patch application.ReminderPatch) (persistence.Reminder, error)
	DeleteReminder(ctx context.Context, principal application.Principal, id string) error
}

type ReminderHandler struct {
	service   reminderService
	responder responder
	logger    *slog.Logger
}

func NewReminderHandler(service reminderService, logger *slog.Logger) *ReminderHandler {
	base := defaultLogger(logger)
	return &ReminderHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReminderHandler) principal(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthenticated)
	}
	return principal, ok
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	reminders, err := h.service.ListReminders(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReminderViews(reminders))
}

func (h *ReminderHandler) Active(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	reminders, err := h.service.ActiveReminders(r.Context(), principal, r.URL.Query().Get("date"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReminderViews(reminders))
}

func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	reminder, err := h.service.GetReminder(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReminderView(reminder))
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	reminder, err := h.service.CreateReminder(r.Context(), principal, application.ReminderInput{
		Text:      req.Text,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toReminderView(reminder))
}

func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req reminderPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	reminder, err := h.service.UpdateReminder(r.Context(), principal, id, application.ReminderPatch{
		Text:      req.Text,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReminderView(reminder))
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteReminder(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type reminderRequest struct {
	Text      string `json:"text"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type reminderPatchRequest struct {
	Text      *string `json:"text"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

type reminderView struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func toReminderView(reminder persistence.Reminder) reminderView {
	return reminderView{
		ID:        reminder.ID,
		Text:      reminder.Text,
		StartDate: reminder.StartDate,
		EndDate:   reminder.EndDate,
	}
}

func toReminderViews(reminders []persistence.Reminder) []reminderView {
	views := make([]reminderView, 0, len(reminders))
	for _, reminder := range reminders {
		views = append(views, toReminderView(reminder))
	}
	return views
}
