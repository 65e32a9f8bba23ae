package persistence

import (
	"context"
	"time"
)

// UserRepository exposes account persistence operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSessionByToken(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// TaskRepository stores tasks and their scheduled-time slots.
type TaskRepository interface {
	CreateTask(ctx context.Context, task Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, userID string) ([]Task, error)
	UpdateTask(ctx context.Context, task Task) error
	DeleteTask(ctx context.Context, id string) error

	CreateSlot(ctx context.Context, slot ScheduledTimeSlot) error
	GetSlot(ctx context.Context, id string) (ScheduledTimeSlot, error)
	ListSlotsForTask(ctx context.Context, taskID string) ([]ScheduledTimeSlot, error)
	ListSlotsForUser(ctx context.Context, userID string) ([]ScheduledTimeSlot, error)
	UpdateSlot(ctx context.Context, slot ScheduledTimeSlot) error
	DeleteSlot(ctx context.Context, id string) error
	SetSlotEventID(ctx context.Context, slotID, eventID string) error
}

// HistoryRepository stores per-day activity rows derived from completed tasks.
type HistoryRepository interface {
	ReplaceHistoryForTask(ctx context.Context, taskID string, rows []TaskHistory) error
	DeleteHistoryForTask(ctx context.Context, taskID string) error
	AggregateHistory(ctx context.Context, userID string) ([]DateMinutes, error)
}

// ReminderRepository stores free-text date-range reminders.
type ReminderRepository interface {
	CreateReminder(ctx context.Context, reminder Reminder) error
	GetReminder(ctx context.Context, id string) (Reminder, error)
	ListReminders(ctx context.Context, userID string) ([]Reminder, error)
	UpdateReminder(ctx context.Context, reminder Reminder) error
	DeleteReminder(ctx context.Context, id string) error
}

// RecurringEventRepository stores daily recurring-event templates.
type RecurringEventRepository interface {
	CreateRecurringEvent(ctx context.Context, event RecurringEvent) error
	GetRecurringEvent(ctx context.Context, id string) (RecurringEvent, error)
	ListRecurringEvents(ctx context.Context, userID string) ([]RecurringEvent, error)
	UpdateRecurringEvent(ctx context.Context, event RecurringEvent) error
	DeleteRecurringEvent(ctx context.Context, id string) error
}

// OutlookRepository stores per-user Microsoft account linkage.
type OutlookRepository interface {
	UpsertIntegration(ctx context.Context, integration OutlookIntegration) error
	GetIntegrationByUserID(ctx context.Context, userID string) (OutlookIntegration, error)
	GetIntegrationByCalendarID(ctx context.Context, calendarID string) (OutlookIntegration, error)
	DeleteIntegration(ctx context.Context, userID string) error
}

// SyncOutcomeRepository records outbound sync attempts for inspection.
type SyncOutcomeRepository interface {
	RecordOutcome(ctx context.Context, outcome SyncOutcome) error
	ListOutcomes(ctx context.Context, userID string, limit int) ([]SyncOutcome, error)
	DeleteOutcomesBefore(ctx context.Context, cutoff time.Time) error
}
