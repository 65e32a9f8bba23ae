package testfixtures

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/example/timebox/internal/persistence"
	"github.com/example/timebox/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite file
// for integration-style persistence tests.
type SQLiteHarness struct {
	DB           *gorm.DB
	Users        persistence.UserRepository
	Sessions     persistence.SessionRepository
	Tasks        persistence.TaskRepository
	History      persistence.HistoryRepository
	Reminders    persistence.ReminderRepository
	Recurring    persistence.RecurringEventRepository
	Integrations persistence.OutlookRepository
	Outcomes     persistence.SyncOutcomeRepository
}

// NewSQLiteHarness constructs a harness over a migrated temporary database.
// The file lives in tb.TempDir so cleanup is automatic.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "timebox.db")
	db, err := sqlite.NewDB(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	return &SQLiteHarness{
		DB:           db,
		Users:        sqlite.NewUserRepository(db),
		Sessions:     sqlite.NewSessionRepository(db),
		Tasks:        sqlite.NewTaskRepository(db),
		History:      sqlite.NewHistoryRepository(db),
		Reminders:    sqlite.NewReminderRepository(db),
		Recurring:    sqlite.NewRecurringEventRepository(db),
		Integrations: sqlite.NewOutlookRepository(db),
		Outcomes:     sqlite.NewSyncOutcomeRepository(db),
	}
}
