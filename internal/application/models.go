package application

import (
	"time"

	"github.com/example/timebox/internal/persistence"
	"github.com/example/timebox/internal/scheduler"
)

// Principal identifies the authenticated user behind a request.
type Principal struct {
	UserID string
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// AuthResult is returned after a successful registration or login.
type AuthResult struct {
	User      persistence.User
	Token     string
	ExpiresAt time.Time
}

// ProfilePatch carries optional profile updates. Nil fields are left unchanged.
type ProfilePatch struct {
	DisplayName *string
	AvatarURL   *string
}

// TaskInput carries the fields needed to create a task.
type TaskInput struct {
	Title        string
	Description  string
	StartDate    string
	DueDate      string
	TimeRequired int
}

// TaskPatch carries optional task updates. Nil fields are left unchanged.
type TaskPatch struct {
	Title        *string
	Description  *string
	StartDate    *string
	DueDate      *string
	TimeRequired *int
	Completed    *bool
}

// SlotInput places part of a task on the calendar.
type SlotInput struct {
	StartTime       time.Time
	DurationMinutes int
}

// SlotResult pairs a persisted slot with advisory overlap warnings against the
// owner's other placements.
type SlotResult struct {
	Slot     persistence.ScheduledTimeSlot
	Overlaps []scheduler.Overlap
}

// ReminderInput carries the fields needed to create a reminder.
type ReminderInput struct {
	Text      string
	StartDate string
	EndDate   string
}

// ReminderPatch carries optional reminder updates. Nil fields are left unchanged.
type ReminderPatch struct {
	Text      *string
	StartDate *string
	EndDate   *string
}

// RecurringEventInput carries the fields needed to create a recurring template.
type RecurringEventInput struct {
	Title           string
	TimeOfDay       string
	DurationMinutes int
	Enabled         *bool
}

// RecurringEventPatch carries optional template updates. Nil fields are left unchanged.
type RecurringEventPatch struct {
	Title           *string
	TimeOfDay       *string
	DurationMinutes *int
	Enabled         *bool
}

// OutlookStatus summarises a user's Microsoft account linkage.
type OutlookStatus struct {
	Connected             bool
	SyncEnabled           bool
	CalendarID            string
	SubscriptionExpiresAt *time.Time
	LastSyncAt            *time.Time
}

// validateDate records a field error unless value is a well-formed calendar date.
func validateDate(vErr *ValidationError, field, value string) {
	if value == "" {
		vErr.add(field, field+" is required")
		return
	}
	if _, err := time.Parse(persistence.DateLayout, value); err != nil {
		vErr.add(field, field+" must be formatted as YYYY-MM-DD")
	}
}
