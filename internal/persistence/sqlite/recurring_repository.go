package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/timebox/internal/persistence"
)

// RecurringEventRepository implements persistence.RecurringEventRepository.
type RecurringEventRepository struct {
	db *gorm.DB
}

func NewRecurringEventRepository(db *gorm.DB) *RecurringEventRepository {
	return &RecurringEventRepository{db: db}
}

func (r *RecurringEventRepository) CreateRecurringEvent(ctx context.Context, event persistence.RecurringEvent) error {
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *RecurringEventRepository) GetRecurringEvent(ctx context.Context, id string) (persistence.RecurringEvent, error) {
	var event persistence.RecurringEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return persistence.RecurringEvent{}, translate(err)
	}
	return event, nil
}

func (r *RecurringEventRepository) ListRecurringEvents(ctx context.Context, userID string) ([]persistence.RecurringEvent, error) {
	var events []persistence.RecurringEvent
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("time_of_day ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, translate(err)
	}
	return events, nil
}

func (r *RecurringEventRepository) UpdateRecurringEvent(ctx context.Context, event persistence.RecurringEvent) error {
	res := r.db.WithContext(ctx).Model(&persistence.RecurringEvent{}).Where("id = ?", event.ID).
		Updates(map[string]any{
			"title":            event.Title,
			"time_of_day":      event.TimeOfDay,
			"duration_minutes": event.DurationMinutes,
			"enabled":          event.Enabled,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *RecurringEventRepository) DeleteRecurringEvent(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&persistence.RecurringEvent{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

var _ persistence.RecurringEventRepository = (*RecurringEventRepository)(nil)
