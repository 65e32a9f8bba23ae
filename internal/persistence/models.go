package persistence

import "time"

// Calendar dates (start/due/history dates) are stored as "YYYY-MM-DD" strings.
// SQLite has no date type and the API exchanges plain dates, so keeping the
// textual form avoids timezone drift when grouping history rows by day.
const DateLayout = "2006-01-02"

// User represents an account. PasswordHash is nil for OAuth identities.
type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex"`
	PasswordHash *string
	DisplayName  string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an issued authentication session.
type Session struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Token     string `gorm:"uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// Task is a unit of work with an estimated duration and a due date.
// Completed == true holds exactly when CompletedAt is non-nil.
type Task struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"index"`
	Title         string
	Description   string
	StartDate     string
	DueDate       string
	TimeRequired  int
	ScheduledTime *time.Time // legacy single placement, kept for older rows
	Completed     bool       `gorm:"default:false"`
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Slots []ScheduledTimeSlot `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

// ScheduledTimeSlot is a concrete calendar placement for part of a task.
// OutlookEventID correlates the mirrored Graph event when one was recorded.
type ScheduledTimeSlot struct {
	ID              string `gorm:"primaryKey"`
	TaskID          string `gorm:"index"`
	StartTime       time.Time
	DurationMinutes int
	OutlookEventID  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TaskHistory records minutes actually worked on a task on one calendar day.
// Rows exist only while the owning task is marked completed.
type TaskHistory struct {
	ID            string `gorm:"primaryKey"`
	TaskID        string `gorm:"index"`
	UserID        string `gorm:"index"`
	Date          string `gorm:"index"`
	MinutesWorked int
	CreatedAt     time.Time
}

// RecurringEvent is a daily template owned by a user. Templates are never
// materialized into tasks; they only feed occurrence previews.
type RecurringEvent struct {
	ID              string `gorm:"primaryKey"`
	UserID          string `gorm:"index"`
	Title           string
	TimeOfDay       string // "HH:mm"
	DurationMinutes int
	Enabled         bool `gorm:"default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Reminder is a free-text note spanning an inclusive date range.
type Reminder struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Text      string
	StartDate string
	EndDate   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OutlookIntegration holds a user's linked Microsoft account state.
type OutlookIntegration struct {
	ID                    string `gorm:"primaryKey"`
	UserID                string `gorm:"uniqueIndex"`
	AccessToken           string
	RefreshToken          string
	TokenExpiresAt        time.Time
	CalendarID            string
	SubscriptionID        string
	SubscriptionExpiresAt *time.Time
	SyncEnabled           bool `gorm:"default:true"`
	LastSyncAt            *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// SyncOutcome records the latest outbound Outlook sync attempt for a
// (task, slot, operation) triple so background failures stay inspectable.
type SyncOutcome struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"index"`
	TaskID     string `gorm:"index"`
	SlotID     string `gorm:"index"`
	Operation  string
	Status     string
	EventID    string
	Detail     string
	RecordedAt time.Time
}

// Sync outcome statuses.
const (
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
	SyncStatusSkipped = "skipped"
)

// Sync operations.
const (
	SyncOpCreate = "create"
	SyncOpUpdate = "update"
	SyncOpDelete = "delete"
)

// DateMinutes is an aggregated activity bucket for one calendar day.
type DateMinutes struct {
	Date          string
	MinutesWorked int
}
