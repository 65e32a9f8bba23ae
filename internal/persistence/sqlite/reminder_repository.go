package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/timebox/internal/persistence"
)

// ReminderRepository implements persistence.ReminderRepository using GORM.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) CreateReminder(ctx context.Context, reminder persistence.Reminder) error {
	if err := r.db.WithContext(ctx).Create(&reminder).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *ReminderRepository) GetReminder(ctx context.Context, id string) (persistence.Reminder, error) {
	var reminder persistence.Reminder
	if err := r.db.WithContext(ctx).First(&reminder, "id = ?", id).Error; err != nil {
		return persistence.Reminder{}, translate(err)
	}
	return reminder, nil
}

func (r *ReminderRepository) ListReminders(ctx context.Context, userID string) ([]persistence.Reminder, error) {
	var reminders []persistence.Reminder
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("start_date ASC, id ASC").
		Find(&reminders).Error; err != nil {
		return nil, translate(err)
	}
	return reminders, nil
}

func (r *ReminderRepository) UpdateReminder(ctx context.Context, reminder persistence.Reminder) error {
	res := r.db.WithContext(ctx).Model(&persistence.Reminder{}).Where("id = ?", reminder.ID).
		Updates(map[string]any{
			"text":       reminder.Text,
			"start_date": reminder.StartDate,
			"end_date":   reminder.EndDate,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *ReminderRepository) DeleteReminder(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&persistence.Reminder{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

var _ persistence.ReminderRepository = (*ReminderRepository)(nil)
