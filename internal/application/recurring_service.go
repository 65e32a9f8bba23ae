package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/timebox/internal/persistence"
	"github.com/example/timebox/internal/recurrence"
)

// RecurringEventService manages daily templates and their occurrence previews.
type RecurringEventService struct {
	events      persistence.RecurringEventRepository
	engine      *recurrence.Engine
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRecurringEventService wires dependencies for recurring-event operations.
func NewRecurringEventService(events persistence.RecurringEventRepository, engine *recurrence.Engine, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RecurringEventService {
	if engine == nil {
		engine = recurrence.NewEngine(time.UTC)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RecurringEventService{
		events:      events,
		engine:      engine,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func validateRecurringInput(title, timeOfDay string, durationMinutes int) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(title) == "" {
		vErr.add("title", "title is required")
	}
	if _, _, err := recurrence.ParseTimeOfDay(timeOfDay); err != nil {
		vErr.add("timeOfDay", "timeOfDay must be formatted as HH:mm")
	}
	if durationMinutes <= 0 {
		vErr.add("durationMinutes", "durationMinutes must be a positive number of minutes")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// CreateRecurringEvent validates and persists a daily template.
func (s *RecurringEventService) CreateRecurringEvent(ctx context.Context, principal Principal, input RecurringEventInput) (persistence.RecurringEvent, error) {
	if s == nil {
		return persistence.RecurringEvent{}, fmt.Errorf("RecurringEventService is nil")
	}
	if vErr := validateRecurringInput(input.Title, input.TimeOfDay, input.DurationMinutes); vErr != nil {
		return persistence.RecurringEvent{}, vErr
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	now := s.now()
	event := persistence.RecurringEvent{
		ID:              s.idGenerator(),
		UserID:          principal.UserID,
		Title:           strings.TrimSpace(input.Title),
		TimeOfDay:       input.TimeOfDay,
		DurationMinutes: input.DurationMinutes,
		Enabled:         enabled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.events.CreateRecurringEvent(ctx, event); err != nil {
		return persistence.RecurringEvent{}, err
	}
	return event, nil
}

// ListRecurringEvents returns every template the principal owns.
func (s *RecurringEventService) ListRecurringEvents(ctx context.Context, principal Principal) ([]persistence.RecurringEvent, error) {
	if s == nil {
		return nil, fmt.Errorf("RecurringEventService is nil")
	}
	return s.events.ListRecurringEvents(ctx, principal.UserID)
}

func (s *RecurringEventService) ownedEvent(ctx context.Context, principal Principal, id string) (persistence.RecurringEvent, error) {
	event, err := s.events.GetRecurringEvent(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.RecurringEvent{}, ErrNotFound
		}
		return persistence.RecurringEvent{}, err
	}
	if event.UserID != principal.UserID {
		return persistence.RecurringEvent{}, ErrForbidden
	}
	return event, nil
}

// UpdateRecurringEvent applies partial changes to one of the principal's templates.
func (s *RecurringEventService) UpdateRecurringEvent(ctx context.Context, principal Principal, id string, patch RecurringEventPatch) (persistence.RecurringEvent, error) {
	if s == nil {
		return persistence.RecurringEvent{}, fmt.Errorf("RecurringEventService is nil")
	}

	event, err := s.ownedEvent(ctx, principal, id)
	if err != nil {
		return persistence.RecurringEvent{}, err
	}

	if patch.Title != nil {
		event.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.TimeOfDay != nil {
		event.TimeOfDay = *patch.TimeOfDay
	}
	if patch.DurationMinutes != nil {
		event.DurationMinutes = *patch.DurationMinutes
	}
	if patch.Enabled != nil {
		event.Enabled = *patch.Enabled
	}
	if vErr := validateRecurringInput(event.Title, event.TimeOfDay, event.DurationMinutes); vErr != nil {
		return persistence.RecurringEvent{}, vErr
	}

	event.UpdatedAt = s.now()
	if err := s.events.UpdateRecurringEvent(ctx, event); err != nil {
		return persistence.RecurringEvent{}, err
	}
	return event, nil
}

// DeleteRecurringEvent removes one of the principal's templates.
func (s *RecurringEventService) DeleteRecurringEvent(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("RecurringEventService is nil")
	}
	if _, err := s.ownedEvent(ctx, principal, id); err != nil {
		return err
	}
	if err := s.events.DeleteRecurringEvent(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// PreviewOccurrences expands the principal's enabled templates over an
// inclusive date window. Occurrences are previews; nothing is persisted.
func (s *RecurringEventService) PreviewOccurrences(ctx context.Context, principal Principal, fromDate, toDate string) ([]recurrence.Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("RecurringEventService is nil")
	}

	vErr := &ValidationError{}
	validateDate(vErr, "from", fromDate)
	validateDate(vErr, "to", toDate)
	if vErr.HasErrors() {
		return nil, vErr
	}
	from, _ := time.Parse(persistence.DateLayout, fromDate)
	to, _ := time.Parse(persistence.DateLayout, toDate)
	if to.Before(from) {
		vErr.add("to", "to must not precede from")
		return nil, vErr
	}

	events, err := s.events.ListRecurringEvents(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	occurrences := make([]recurrence.Occurrence, 0)
	for _, event := range events {
		generated, err := s.engine.GenerateOccurrences(recurrence.Template{
			ID:              event.ID,
			Title:           event.Title,
			TimeOfDay:       event.TimeOfDay,
			DurationMinutes: event.DurationMinutes,
			Enabled:         event.Enabled,
		}, from, to)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, generated...)
	}
	if len(occurrences) == 0 {
		return nil, nil
	}
	return occurrences, nil
}
