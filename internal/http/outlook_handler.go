package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/timebox/internal/application"
	"github.com/example/timebox/internal/outlook"
	"github.com/example/timebox/internal/persistence"
)

type outlookService interface {
	BeginConnect(ctx context.Context, principal application.Principal) (string, error)
	CompleteConnect(ctx context.Context, state, code string) (application.OutlookStatus, error)
	Disconnect(ctx context.Context, principal application.Principal) error
	Status(ctx context.Context, principal application.Principal) (application.OutlookStatus, error)
	SetSyncEnabled(ctx context.Context, principal application.Principal, enabled bool) (application.OutlookStatus, error)
	Subscribe(ctx context.Context, principal application.Principal) (application.OutlookStatus, error)
	SyncNow(ctx context.Context, principal application.Principal) (int, error)
	Events(ctx context.Context, principal application.Principal) ([]outlook.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error
	ListSyncOutcomes(ctx context.Context, principal application.Principal, limit int) ([]persistence.SyncOutcome, error)
	ProcessNotifications(ctx context.Context, batch outlook.NotificationBatch)
}

type OutlookHandler struct {
	service   outlookService
	responder responder
	logger    *slog.Logger
}

func NewOutlookHandler(service outlookService, logger *slog.Logger) *OutlookHandler {
	base := defaultLogger(logger)
	return &OutlookHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *OutlookHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "OutlookHandler", operation, attrs...)
}

func (h *OutlookHandler) principal(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthenticated)
	}
	return principal, ok
}

// Connect redirects the browser to the Microsoft consent page.
func (h *OutlookHandler) Connect(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	consentURL, err := h.service.BeginConnect(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// Callback handles the OAuth redirect. It is unauthenticated; the state nonce
// issued by Connect identifies the user.
func (h *OutlookHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "state and code are required"})
		return
	}

	status, err := h.service.CompleteConnect(r.Context(), state, code)
	if err != nil {
		h.log(r.Context(), "Callback").ErrorContext(r.Context(), "outlook callback failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toStatusView(status))
}

func (h *OutlookHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	if err := h.service.Disconnect(r.Context(), principal); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *OutlookHandler) Status(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	status, err := h.service.Status(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toStatusView(status))
}

func (h *OutlookHandler) SetSyncEnabled(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req syncEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	status, err := h.service.SetSyncEnabled(r.Context(), principal, req.Enabled)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toStatusView(status))
}

func (h *OutlookHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	status, err := h.service.Subscribe(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toStatusView(status))
}

func (h *OutlookHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	queued, err := h.service.SyncNow(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, syncNowResponse{Queued: queued})
}

func (h *OutlookHandler) Events(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	events, err := h.service.Events(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]eventView, 0, len(events))
	for _, event := range events {
		views = append(views, eventView{
			ID:      event.ID,
			Subject: event.Subject,
			Body:    event.Body,
			Start:   event.Start,
			End:     event.End,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, views)
}

func (h *OutlookHandler) DeleteEvent(w http.ResponseWriter, r *http.Request, eventID string) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteEvent(r.Context(), principal, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *OutlookHandler) Outcomes(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	outcomes, err := h.service.ListSyncOutcomes(r.Context(), principal, limit)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]outcomeView, 0, len(outcomes))
	for _, outcome := range outcomes {
		views = append(views, outcomeView{
			TaskID:     outcome.TaskID,
			SlotID:     outcome.SlotID,
			Operation:  outcome.Operation,
			Status:     outcome.Status,
			EventID:    outcome.EventID,
			Detail:     outcome.Detail,
			RecordedAt: outcome.RecordedAt,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, views)
}

// Webhook receives Graph change notifications. Graph first validates the
// endpoint by passing a validationToken query parameter that must be echoed
// back verbatim as plain text. Real notification batches are acknowledged
// with 202 regardless of content so Graph does not retry forever.
func (h *OutlookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("validationToken"); token != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(token)); err != nil {
			h.log(r.Context(), "Webhook").ErrorContext(r.Context(), "failed to echo validation token", "error", err)
		}
		return
	}

	var batch outlook.NotificationBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.log(r.Context(), "Webhook").WarnContext(r.Context(), "malformed notification batch", "error", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	h.service.ProcessNotifications(r.Context(), batch)
	w.WriteHeader(http.StatusAccepted)
}

type syncEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type syncNowResponse struct {
	Queued int `json:"queued"`
}

type statusView struct {
	Connected             bool       `json:"connected"`
	SyncEnabled           bool       `json:"syncEnabled"`
	CalendarID            string     `json:"calendarId,omitempty"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`
	LastSyncAt            *time.Time `json:"lastSyncAt,omitempty"`
}

type eventView struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	Body    string    `json:"body,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type outcomeView struct {
	TaskID     string    `json:"taskId"`
	SlotID     string    `json:"slotId"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	EventID    string    `json:"eventId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

func toStatusView(status application.OutlookStatus) statusView {
	return statusView{
		Connected:             status.Connected,
		SyncEnabled:           status.SyncEnabled,
		CalendarID:            status.CalendarID,
		SubscriptionExpiresAt: status.SubscriptionExpiresAt,
		LastSyncAt:            status.LastSyncAt,
	}
}
