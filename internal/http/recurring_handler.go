package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/timebox/internal/application"
	"github.com/example/timebox/internal/persistence"
	"github.com/example/timebox/internal/recurrence"
)

type recurringService interface {
	CreateRecurringEvent(ctx context.Context, principal application.Principal, input application.RecurringEventInput) (persistence.RecurringEvent, error)
	ListRecurringEvents(ctx context.Context, principal application.Principal) ([]persistence.RecurringEvent, error)
	UpdateRecurringEvent(ctx context.Context, principal application.Principal, id string, patch application.RecurringEventPatch) (persistence.RecurringEvent, error)
	DeleteRecurringEvent(ctx context.Context, principal application.Principal, id string) error
	PreviewOccurrences(ctx context.Context, principal application.Principal, fromDate, toDate string) ([]recurrence.Occurrence, error)
}

type RecurringHandler struct {
	service   recurringService
	responder responder
	logger    *slog.Logger
}

func NewRecurringHandler(service recurringService, logger *slog.Logger) *RecurringHandler {
	base := defaultLogger(logger)
	return &RecurringHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RecurringHandler) principal(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthenticated)
	}
	return principal, ok
}

func (h *RecurringHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	events, err := h.service.ListRecurringEvents(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]recurringEventView, 0, len(events))
	for _, event := range events {
		views = append(views, toRecurringEventView(event))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, views)
}

func (h *RecurringHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req recurringEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	event, err := h.service.CreateRecurringEvent(r.Context(), principal, application.RecurringEventInput{
		Title:           req.Title,
		TimeOfDay:       req.TimeOfDay,
		DurationMinutes: req.DurationMinutes,
		Enabled:         req.Enabled,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toRecurringEventView(event))
}

func (h *RecurringHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req recurringEventPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	event, err := h.service.UpdateRecurringEvent(r.Context(), principal, id, application.RecurringEventPatch{
		Title:           req.Title,
		TimeOfDay:       req.TimeOfDay,
		DurationMinutes: req.DurationMinutes,
		Enabled:         req.Enabled,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRecurringEventView(event))
}

func (h *RecurringHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRecurringEvent(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RecurringHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	occurrences, err := h.service.PreviewOccurrences(r.Context(), principal, query.Get("from"), query.Get("to"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]occurrenceView, 0, len(occurrences))
	for _, occurrence := range occurrences {
		views = append(views, occurrenceView{
			TemplateID: occurrence.TemplateID,
			Title:      occurrence.Title,
			Start:      occurrence.Start,
			End:        occurrence.End,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, views)
}

type recurringEventRequest struct {
	Title           string `json:"title"`
	TimeOfDay       string `json:"timeOfDay"`
	DurationMinutes int    `json:"durationMinutes"`
	Enabled         *bool  `json:"enabled"`
}

type recurringEventPatchRequest struct {
	Title           *string `json:"title"`
	TimeOfDay       *string `json:"timeOfDay"`
	DurationMinutes *int    `json:"durationMinutes"`
	Enabled         *bool   `json:"enabled"`
}

type recurringEventView struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	TimeOfDay       string `json:"timeOfDay"`
	DurationMinutes int    `json:"durationMinutes"`
	Enabled         bool   `json:"enabled"`
}

type occurrenceView struct {
	TemplateID string    `json:"templateId"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

func toRecurringEventView(event persistence.RecurringEvent) recurringEventView {
	return recurringEventView{
		ID:              event.ID,
		Title:           event.Title,
		TimeOfDay:       event.TimeOfDay,
		DurationMinutes: event.DurationMinutes,
		Enabled:         event.Enabled,
	}
}
