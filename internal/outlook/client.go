package outlook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Graph caps calendar subscription lifetimes; renewals must stay below it.
const maxSubscriptionLifetime = 4200 * time.Minute

// Client wraps the Microsoft Graph calendar surface. Every call is an
// independent REST request authenticated by the bearer token supplied per
// operation; the client holds no per-user state.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a Graph client with the default endpoint.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Calendar is a Graph calendar list entry.
type Calendar struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefaultCalendar"`
}

// Event is the subset of a Graph calendar event the service exchanges.
type Event struct {
	ID      string
	Subject string
	Body    string
	Start   time.Time
	End     time.Time
}

// Subscription is a Graph change-notification subscription.
type Subscription struct {
	ID          string    `json:"id"`
	Resource    string    `json:"resource"`
	ClientState string    `json:"clientState"`
	Expiration  time.Time `json:"expirationDateTime"`
}

// ListCalendars fetches the signed-in user's calendar list.
func (c *Client) ListCalendars(ctx context.Context, token string) ([]Calendar, error) {
	var out struct {
		Value []Calendar `json:"value"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/me/calendars", nil, &out); err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return out.Value, nil
}

// DefaultCalendarID returns the calendar flagged as default, falling back to
// the first entry when Graph reports none.
func (c *Client) DefaultCalendarID(ctx context.Context, token string) (string, error) {
	calendars, err := c.ListCalendars(ctx, token)
	if err != nil {
		return "", err
	}
	if len(calendars) == 0 {
		return "", fmt.Errorf("default calendar: account has no calendars")
	}
	for _, calendar := range calendars {
		if calendar.IsDefault {
			return calendar.ID, nil
		}
	}
	return calendars[0].ID, nil
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	ID      string `json:"id,omitempty"`
	Subject string `json:"subject"`
	Body    *struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body,omitempty"`
	Start graphDateTime `json:"start"`
	End   graphDateTime `json:"end"`
}

func toGraphEvent(event Event) graphEvent {
	out := graphEvent{
		Subject: event.Subject,
		Start:   graphDateTime{DateTime: event.Start.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		End:     graphDateTime{DateTime: event.End.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
	}
	if event.Body != "" {
		out.Body = &struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		}{ContentType: "text", Content: event.Body}
	}
	return out
}

func fromGraphEvent(event graphEvent) Event {
	out := Event{ID: event.ID, Subject: event.Subject}
	if event.Body != nil {
		out.Body = event.Body.Content
	}
	out.Start, _ = time.Parse("2006-01-02T15:04:05", event.Start.DateTime)
	out.End, _ = time.Parse("2006-01-02T15:04:05", event.End.DateTime)
	return out
}

// CreateEvent creates an event on the given calendar and returns its Graph id.
func (c *Client) CreateEvent(ctx context.Context, token, calendarID string, event Event) (string, error) {
	var out graphEvent
	path := fmt.Sprintf("/me/calendars/%s/events", url.PathEscape(calendarID))
	if err := c.do(ctx, token, http.MethodPost, path, toGraphEvent(event), &out); err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	return out.ID, nil
}

// UpdateEvent patches an existing event.
func (c *Client) UpdateEvent(ctx context.Context, token, eventID string, event Event) error {
	path := fmt.Sprintf("/me/events/%s", url.PathEscape(eventID))
	if err := c.do(ctx, token, http.MethodPatch, path, toGraphEvent(event), nil); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// DeleteEvent removes an event by id.
func (c *Client) DeleteEvent(ctx context.Context, token, eventID string) error {
	path := fmt.Sprintf("/me/events/%s", url.PathEscape(eventID))
	if err := c.do(ctx, token, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// ListEvents fetches events from the given calendar.
func (c *Client) ListEvents(ctx context.Context, token, calendarID string) ([]Event, error) {
	var out struct {
		Value []graphEvent `json:"value"`
	}
	path := fmt.Sprintf("/me/calendars/%s/events", url.PathEscape(calendarID))
	if err := c.do(ctx, token, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]Event, 0, len(out.Value))
	for _, event := range out.Value {
		events = append(events, fromGraphEvent(event))
	}
	return events, nil
}

type subscriptionRequest struct {
	ChangeType         string `json:"changeType"`
	NotificationURL    string `json:"notificationUrl"`
	Resource           string `json:"resource"`
	ExpirationDateTime string `json:"expirationDateTime"`
	ClientState        string `json:"clientState,omitempty"`
}

type subscriptionResponse struct {
	ID                 string `json:"id"`
	Resource           string `json:"resource"`
	ClientState        string `json:"clientState"`
	ExpirationDateTime string `json:"expirationDateTime"`
}

// CreateSubscription registers a webhook subscription for the calendar's
// events. The calendar id travels base64-encoded as Graph's opaque client
// state so webhook notifications can be correlated later.
func (c *Client) CreateSubscription(ctx context.Context, token, notificationURL, calendarID string) (Subscription, error) {
	req := subscriptionRequest{
		ChangeType:         "created,updated,deleted",
		NotificationURL:    notificationURL,
		Resource:           fmt.Sprintf("/me/calendars/%s/events", calendarID),
		ExpirationDateTime: time.Now().Add(maxSubscriptionLifetime).UTC().Format(time.RFC3339),
		ClientState:        EncodeClientState(calendarID),
	}
	var out subscriptionResponse
	if err := c.do(ctx, token, http.MethodPost, "/subscriptions", req, &out); err != nil {
		return Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	return toSubscription(out), nil
}

// RenewSubscription pushes a subscription's expiry out to the Graph ceiling.
func (c *Client) RenewSubscription(ctx context.Context, token, subscriptionID string) (Subscription, error) {
	req := struct {
		ExpirationDateTime string `json:"expirationDateTime"`
	}{ExpirationDateTime: time.Now().Add(maxSubscriptionLifetime).UTC().Format(time.RFC3339)}

	var out subscriptionResponse
	path := fmt.Sprintf("/subscriptions/%s", url.PathEscape(subscriptionID))
	if err := c.do(ctx, token, http.MethodPatch, path, req, &out); err != nil {
		return Subscription{}, fmt.Errorf("renew subscription: %w", err)
	}
	return toSubscription(out), nil
}

// DeleteSubscription removes a webhook subscription.
func (c *Client) DeleteSubscription(ctx context.Context, token, subscriptionID string) error {
	path := fmt.Sprintf("/subscriptions/%s", url.PathEscape(subscriptionID))
	if err := c.do(ctx, token, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func toSubscription(resp subscriptionResponse) Subscription {
	sub := Subscription{ID: resp.ID, Resource: resp.Resource, ClientState: resp.ClientState}
	if ts, err := time.Parse(time.RFC3339, resp.ExpirationDateTime); err == nil {
		sub.Expiration = ts
	}
	return sub
}

// EncodeClientState wraps a calendar id for Graph's opaque clientState field.
func EncodeClientState(calendarID string) string {
	return base64.StdEncoding.EncodeToString([]byte(calendarID))
}

// DecodeClientState recovers the calendar id from a notification's clientState.
func DecodeClientState(state string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		return "", fmt.Errorf("decode client state: %w", err)
	}
	return string(decoded), nil
}

// Notification is one entry of a Graph change-notification batch.
type Notification struct {
	SubscriptionID string `json:"subscriptionId"`
	ChangeType     string `json:"changeType"`
	ClientState    string `json:"clientState"`
	Resource       string `json:"resource"`
}

// NotificationBatch is the body Graph posts to the webhook receiver.
type NotificationBatch struct {
	Value []Notification `json:"value"`
}

func (c *Client) do(ctx context.Context, token, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph returned %d: %s", resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
