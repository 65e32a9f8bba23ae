package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/timebox/internal/outbox"
	"github.com/example/timebox/internal/outlook"
	"github.com/example/timebox/internal/persistence"
)

// Stored access tokens are refreshed when they expire within this window so
// background jobs never start with a token about to lapse.
const tokenRefreshBuffer = 5 * time.Minute

const oauthStateTTL = 10 * time.Minute

// GraphClient is the Microsoft Graph surface the service drives directly.
// Event mirroring goes through the sync queue instead.
type GraphClient interface {
	DefaultCalendarID(ctx context.Context, token string) (string, error)
	ListEvents(ctx context.Context, token, calendarID string) ([]outlook.Event, error)
	DeleteEvent(ctx context.Context, token, eventID string) error
	CreateSubscription(ctx context.Context, token, notificationURL, calendarID string) (outlook.Subscription, error)
	RenewSubscription(ctx context.Context, token, subscriptionID string) (outlook.Subscription, error)
	DeleteSubscription(ctx context.Context, token, subscriptionID string) error
}

// stateStore holds short-lived OAuth state nonces. Entries are evicted lazily
// on lookup; losing them on restart only forces the user to restart consent.
type stateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
}

type stateEntry struct {
	userID    string
	expiresAt time.Time
}

func newStateStore() *stateStore {
	return &stateStore{entries: make(map[string]stateEntry)}
}

func (s *stateStore) put(state, userID string, expiresAt time.Time) {
	s.mu.Lock()
	s.entries[state] = stateEntry{userID: userID, expiresAt: expiresAt}
	s.mu.Unlock()
}

// consume removes and returns the entry for a state nonce. Each nonce is
// usable exactly once.
func (s *stateStore) consume(state string, now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[state]
	if !ok {
		return "", false
	}
	delete(s.entries, state)
	if now.After(entry.expiresAt) {
		return "", false
	}
	return entry.userID, true
}

// OutlookService manages Microsoft account linkage and calendar sync state.
type OutlookService struct {
	integrations persistence.OutlookRepository
	tasks        persistence.TaskRepository
	outcomes     persistence.SyncOutcomeRepository
	sync         SyncEnqueuer
	oauth        *oauth2.Config
	graph        GraphClient
	webhookURL   string
	states       *stateStore
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewOutlookService wires dependencies for the Outlook integration. oauth may
// be nil when the integration is not configured; every operation then returns
// ErrNotConfigured.
func NewOutlookService(
	integrations persistence.OutlookRepository,
	tasks persistence.TaskRepository,
	outcomes persistence.SyncOutcomeRepository,
	sync SyncEnqueuer,
	oauth *oauth2.Config,
	graph GraphClient,
	webhookURL string,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *OutlookService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &OutlookService{
		integrations: integrations,
		tasks:        tasks,
		outcomes:     outcomes,
		sync:         sync,
		oauth:        oauth,
		graph:        graph,
		webhookURL:   webhookURL,
		states:       newStateStore(),
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *OutlookService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "OutlookService", operation, attrs...)
}

func (s *OutlookService) configured() error {
	if s == nil {
		return fmt.Errorf("OutlookService is nil")
	}
	if s.oauth == nil || s.graph == nil {
		return ErrNotConfigured
	}
	return nil
}

// BeginConnect starts the authorization-code flow and returns the consent URL
// the caller should redirect the user to.
func (s *OutlookService) BeginConnect(ctx context.Context, principal Principal) (string, error) {
	if err := s.configured(); err != nil {
		return "", err
	}

	state := s.idGenerator()
	s.states.put(state, principal.UserID, s.now().Add(oauthStateTTL))
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// CompleteConnect finishes the consent flow: it validates the state nonce,
// exchanges the code, resolves the default calendar, and stores the linkage.
func (s *OutlookService) CompleteConnect(ctx context.Context, state, code string) (status OutlookStatus, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CompleteConnect")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "outlook connect failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	userID, ok := s.states.consume(strings.TrimSpace(state), s.now())
	if !ok {
		err = ErrUnauthenticated
		return
	}
	logger = logger.With("user_id", userID)

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		err = fmt.Errorf("exchange authorization code: %w", err)
		return
	}

	calendarID, err := s.graph.DefaultCalendarID(ctx, token.AccessToken)
	if err != nil {
		return
	}

	now := s.now()
	integration := persistence.OutlookIntegration{
		ID:             s.idGenerator(),
		UserID:         userID,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: token.Expiry,
		CalendarID:     calendarID,
		SyncEnabled:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err = s.integrations.UpsertIntegration(ctx, integration); err != nil {
		return
	}

	// The webhook subscription is best-effort here; a failure leaves the
	// account linked and the user can retry through Subscribe.
	if sub, serr := s.graph.CreateSubscription(ctx, token.AccessToken, s.webhookURL, calendarID); serr != nil {
		logger.WarnContext(ctx, "failed to create webhook subscription", "error", serr)
	} else {
		integration.SubscriptionID = sub.ID
		expiry := sub.Expiration
		integration.SubscriptionExpiresAt = &expiry
		integration.UpdatedAt = s.now()
		if uerr := s.integrations.UpsertIntegration(ctx, integration); uerr != nil {
			logger.WarnContext(ctx, "failed to persist webhook subscription", "error", uerr)
		}
	}

	logger.InfoContext(ctx, "outlook account connected", "calendar_id", calendarID)
	return s.Status(ctx, Principal{UserID: userID})
}

// Disconnect removes the linkage. The remote webhook subscription is deleted
// best-effort; a Graph failure does not keep the account linked.
func (s *OutlookService) Disconnect(ctx context.Context, principal Principal) error {
	if err := s.configured(); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "Disconnect", "user_id", principal.UserID)

	integration, err := s.integrations.GetIntegrationByUserID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotConnected
		}
		return err
	}

	if integration.SubscriptionID != "" {
		token, terr := s.ValidAccessToken(ctx, principal.UserID)
		if terr == nil {
			if derr := s.graph.DeleteSubscription(ctx, token, integration.SubscriptionID); derr != nil {
				logger.WarnContext(ctx, "failed to delete remote subscription", "error", derr)
			}
		}
	}

	if err := s.integrations.DeleteIntegration(ctx, principal.UserID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotConnected
		}
		return err
	}
	logger.InfoContext(ctx, "outlook account disconnected")
	return nil
}

// Status summarises the principal's linkage. An unlinked account is a normal
// status, not an error.
func (s *OutlookService) Status(ctx context.Context, principal Principal) (OutlookStatus, error) {
	if s == nil {
		return OutlookStatus{}, fmt.Errorf("OutlookService is nil")
	}

	integration, err := s.integrations.GetIntegrationByUserID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return OutlookStatus{}, nil
		}
		return OutlookStatus{}, err
	}
	return OutlookStatus{
		Connected:             true,
		SyncEnabled:           integration.SyncEnabled,
		CalendarID:            integration.CalendarID,
		SubscriptionExpiresAt: integration.SubscriptionExpiresAt,
		LastSyncAt:            integration.LastSyncAt,
	}, nil
}

// SetSyncEnabled toggles outbound mirroring without unlinking the account.
func (s *OutlookService) SetSyncEnabled(ctx context.Context, principal Principal, enabled bool) (OutlookStatus, error) {
	if s == nil {
		return OutlookStatus{}, fmt.Errorf("OutlookService is nil")
	}

	integration, err := s.integrations.GetIntegrationByUserID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return OutlookStatus{}, ErrNotConnected
		}
		return OutlookStatus{}, err
	}
	integration.SyncEnabled = enabled
	integration.UpdatedAt = s.now()
	if err := s.integrations.UpsertIntegration(ctx, integration); err != nil {
		return OutlookStatus{}, err
	}
	return s.Status(ctx, principal)
}

// Subscribe registers (or renews) the webhook subscription for the linked
// calendar and persists its identity and expiry.
func (s *OutlookService) Subscribe(ctx context.Context, principal Principal) (OutlookStatus, error) {
	if err := s.configured(); err != nil {
		return OutlookStatus{}, err
	}

	integration, err := s.integrations.GetIntegrationByUserID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return OutlookStatus{}, ErrNotConnected
		}
		return OutlookStatus{}, err
	}

	token, err := s.ValidAccessToken(ctx, principal.UserID)
	if err != nil {
		return OutlookStatus{}, err
	}

	var sub outlook.Subscription
	if integration.SubscriptionID != "" {
		sub, err = s.graph.RenewSubscription(ctx, token, integration.SubscriptionID)
	} else {
		sub, err = s.graph.CreateSubscription(ctx, token, s.webhookURL, integration.CalendarID)
	}
	if err != nil {
		return OutlookStatus{}, err
	}

	integration.SubscriptionID = sub.ID
	expiry := sub.Expiration
	integration.SubscriptionExpiresAt = &expiry
	integration.UpdatedAt = s.now()
	if err := s.integrations.UpsertIntegration(ctx, integration); err != nil {
		return OutlookStatus{}, err
	}
	return s.Status(ctx, principal)
}

// SyncNow enqueues a mirror job for every slot the principal owns: creates
// for slots never mirrored, updates for the rest.
func (s *OutlookService) SyncNow(ctx context.Context, principal Principal) (queued int, err error) {
	if s == nil {
		return 0, fmt.Errorf("OutlookService is nil")
	}
	if s.sync == nil {
		return 0, ErrNotConfigured
	}

	integration, err := s.integrations.GetIntegrationByUserID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return 0, ErrNotConnected
		}
		return 0, err
	}

	tasks, err := s.tasks.ListTasks(ctx, principal.UserID)
	if err != nil {
		return 0, err
	}

	for _, task := range tasks {
		for _, slot := range task.Slots {
			operation := persistence.SyncOpUpdate
			if slot.OutlookEventID == "" {
				operation = persistence.SyncOpCreate
			}
			job := outbox.Job{
				UserID:    principal.UserID,
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
			if s.sync.Enqueue(job) {
				queued++
			}
		}
	}

	now := s.now()
	integration.LastSyncAt = &now
	integration.UpdatedAt = now
	if err := s.integrations.UpsertIntegration(ctx, integration); err != nil {
		return queued, err
	}

	s.loggerWith(ctx, "SyncNow", "user_id", principal.UserID, "queued", queued).
		InfoContext(ctx, "manual sync queued")
	return queued, nil
}

// Events pulls the current events from the linked calendar.
func (s *OutlookService) Events(ctx context.Context, principal Principal) ([]outlook.Event, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}

	integration, err := s.integrations.GetIntegrationByUserID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}

	token, err := s.ValidAccessToken(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	return s.graph.ListEvents(ctx, token, integration.CalendarID)
}

// DeleteEvent removes one event from the linked calendar directly.
func (s *OutlookService) DeleteEvent(ctx context.Context, principal Principal, eventID string) error {
	if err := s.configured(); err != nil {
		return err
	}
	if strings.TrimSpace(eventID) == "" {
		vErr := &ValidationError{}
		vErr.add("eventId", "eventId is required")
		return vErr
	}

	token, err := s.ValidAccessToken(ctx, principal.UserID)
	if err != nil {
		return err
	}
	return s.graph.DeleteEvent(ctx, token, eventID)
}

// ListSyncOutcomes reports the latest recorded mirror attempts.
func (s *OutlookService) ListSyncOutcomes(ctx context.Context, principal Principal, limit int) ([]persistence.SyncOutcome, error) {
	if s == nil {
		return nil, fmt.Errorf("OutlookService is nil")
	}
	return s.outcomes.ListOutcomes(ctx, principal.UserID, limit)
}

// ValidAccessToken returns a stored access token, refreshing and persisting a
// new pair when the stored one expires within the refresh buffer. It also
// serves the sync queue as its token source.
func (s *OutlookService) ValidAccessToken(ctx context.Context, userID string) (string, error) {
	if err := s.configured(); err != nil {
		return "", err
	}

	integration, err := s.integrations.GetIntegrationByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return "", ErrNotConnected
		}
		return "", err
	}

	now := s.now()
	if integration.TokenExpiresAt.After(now.Add(tokenRefreshBuffer)) {
		return integration.AccessToken, nil
	}

	access, refresh, expiry, err := outlook.Refresh(ctx, s.oauth, integration.RefreshToken)
	if err != nil {
		return "", err
	}

	integration.AccessToken = access
	integration.RefreshToken = refresh
	integration.TokenExpiresAt = expiry
	integration.UpdatedAt = now
	if err := s.integrations.UpsertIntegration(ctx, integration); err != nil {
		return "", err
	}

	s.loggerWith(ctx, "ValidAccessToken", "user_id", userID).
		InfoContext(ctx, "access token refreshed")
	return access, nil
}

// ProcessNotifications handles a webhook notification batch. Notifications
// carry no event payload; they only prove the subscription is alive, so each
// one stamps the matching integration's last-sync marker. Failures are logged
// and swallowed because Graph retries on non-2xx responses.
func (s *OutlookService) ProcessNotifications(ctx context.Context, batch outlook.NotificationBatch) {
	if s == nil {
		return
	}
	logger := s.loggerWith(ctx, "ProcessNotifications", "count", len(batch.Value))

	now := s.now()
	for _, notification := range batch.Value {
		calendarID, err := outlook.DecodeClientState(notification.ClientState)
		if err != nil {
			logger.WarnContext(ctx, "notification with malformed client state", "error", err)
			continue
		}

		integration, err := s.integrations.GetIntegrationByCalendarID(ctx, calendarID)
		if err != nil {
			logger.WarnContext(ctx, "notification for unknown calendar", "calendar_id", calendarID)
			continue
		}

		integration.LastSyncAt = &now
		integration.UpdatedAt = now
		if err := s.integrations.UpsertIntegration(ctx, integration); err != nil {
			logger.ErrorContext(ctx, "failed to stamp last sync", "error", err)
		}
	}
}
