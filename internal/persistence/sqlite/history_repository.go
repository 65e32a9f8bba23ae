package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/timebox/internal/persistence"
)

// HistoryRepository implements persistence.HistoryRepository using GORM.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// ReplaceHistoryForTask swaps the task's history rows atomically.
func (r *HistoryRepository) ReplaceHistoryForTask(ctx context.Context, taskID string, rows []persistence.TaskHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&persistence.TaskHistory{}).Error; err != nil {
			return translate(err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return translate(err)
		}
		return nil
	})
}

func (r *HistoryRepository) DeleteHistoryForTask(ctx context.Context, taskID string) error {
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Delete(&persistence.TaskHistory{}).Error; err != nil {
		return translate(err)
	}
	return nil
}

// AggregateHistory sums minutes per calendar day across the user's rows.
func (r *HistoryRepository) AggregateHistory(ctx context.Context, userID string) ([]persistence.DateMinutes, error) {
	var buckets []persistence.DateMinutes
	if err := r.db.WithContext(ctx).Model(&persistence.TaskHistory{}).
		Select("date, SUM(minutes_worked) AS minutes_worked").
		Where("user_id = ?", userID).
		Group("date").
		Order("date ASC").
		Scan(&buckets).Error; err != nil {
		return nil, translate(err)
	}
	return buckets, nil
}

var _ persistence.HistoryRepository = (*HistoryRepository)(nil)
