package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/timebox/internal/persistence"
)

// ReminderService orchestrates free-text date-range reminders.
type ReminderService struct {
	reminders   persistence.ReminderRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewReminderService wires dependencies for reminder operations.
func NewReminderService(reminders persistence.ReminderRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReminderService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		reminders:   reminders,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func validateReminderInput(input ReminderInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Text) == "" {
		vErr.add("text", "text is required")
	}
	validateDate(vErr, "startDate", input.StartDate)
	validateDate(vErr, "endDate", input.EndDate)
	if !vErr.HasErrors() && input.EndDate < input.StartDate {
		vErr.add("endDate", "endDate must not precede startDate")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// CreateReminder validates the input and persists a reminder for the principal.
func (s *ReminderService) CreateReminder(ctx context.Context, principal Principal, input ReminderInput) (persistence.Reminder, error) {
	if s == nil {
		return persistence.Reminder{}, fmt.Errorf("ReminderService is nil")
	}
	if vErr := validateReminderInput(input); vErr != nil {
		return persistence.Reminder{}, vErr
	}

	now := s.now()
	reminder := persistence.Reminder{
		ID:        s.idGenerator(),
		UserID:    principal.UserID,
		Text:      strings.TrimSpace(input.Text),
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reminders.CreateReminder(ctx, reminder); err != nil {
		return persistence.Reminder{}, err
	}
	return reminder, nil
}

// ListReminders returns every reminder the principal owns.
func (s *ReminderService) ListReminders(ctx context.Context, principal Principal) ([]persistence.Reminder, error) {
	if s == nil {
		return nil, fmt.Errorf("ReminderService is nil")
	}
	return s.reminders.ListReminders(ctx, principal.UserID)
}

// GetReminder returns one of the principal's reminders.
func (s *ReminderService) GetReminder(ctx context.Context, principal Principal, id string) (persistence.Reminder, error) {
	if s == nil {
		return persistence.Reminder{}, fmt.Errorf("ReminderService is nil")
	}
	return s.ownedReminder(ctx, principal, id)
}

// ActiveReminders returns the principal's reminders whose date range covers
// the given day. An empty date means today.
func (s *ReminderService) ActiveReminders(ctx context.Context, principal Principal, date string) ([]persistence.Reminder, error) {
	if s == nil {
		return nil, fmt.Errorf("ReminderService is nil")
	}
	if date == "" {
		date = s.now().UTC().Format(persistence.DateLayout)
	} else if _, err := time.Parse(persistence.DateLayout, date); err != nil {
		vErr := &ValidationError{}
		vErr.add("date", "date must be formatted as YYYY-MM-DD")
		return nil, vErr
	}

	all, err := s.reminders.ListReminders(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	active := make([]persistence.Reminder, 0, len(all))
	for _, reminder := range all {
		if reminder.StartDate <= date && date <= reminder.EndDate {
			active = append(active, reminder)
		}
	}
	return active, nil
}

func (s *ReminderService) ownedReminder(ctx context.Context, principal Principal, id string) (persistence.Reminder, error) {
	reminder, err := s.reminders.GetReminder(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Reminder{}, ErrNotFound
		}
		return persistence.Reminder{}, err
	}
	if reminder.UserID != principal.UserID {
		return persistence.Reminder{}, ErrForbidden
	}
	return reminder, nil
}

// UpdateReminder applies partial changes to one of the principal's reminders.
func (s *ReminderService) UpdateReminder(ctx context.Context, principal Principal, id string, patch ReminderPatch) (persistence.Reminder, error) {
	if s == nil {
		return persistence.Reminder{}, fmt.Errorf("ReminderService is nil")
	}

	reminder, err := s.ownedReminder(ctx, principal, id)
	if err != nil {
		return persistence.Reminder{}, err
	}

	if patch.Text != nil {
		reminder.Text = strings.TrimSpace(*patch.Text)
	}
	if patch.StartDate != nil {
		reminder.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		reminder.EndDate = *patch.EndDate
	}
	if vErr := validateReminderInput(ReminderInput{
		Text:      reminder.Text,
		StartDate: reminder.StartDate,
		EndDate:   reminder.EndDate,
	}); vErr != nil {
		return persistence.Reminder{}, vErr
	}

	reminder.UpdatedAt = s.now()
	if err := s.reminders.UpdateReminder(ctx, reminder); err != nil {
		return persistence.Reminder{}, err
	}
	return reminder, nil
}

// DeleteReminder removes one of the principal's reminders.
func (s *ReminderService) DeleteReminder(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("ReminderService is nil")
	}
	if _, err := s.ownedReminder(ctx, principal, id); err != nil {
		return err
	}
	if err := s.reminders.DeleteReminder(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
