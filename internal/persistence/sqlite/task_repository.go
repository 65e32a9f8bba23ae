package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/timebox/internal/persistence"
)

// TaskRepository implements persistence.TaskRepository using GORM.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTask(ctx context.Context, task persistence.Task) error {
	task.Slots = nil
	if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id string) (persistence.Task, error) {
	var task persistence.Task
	if err := r.db.WithContext(ctx).Preload("Slots", slotOrder).First(&task, "id = ?", id).Error; err != nil {
		return persistence.Task{}, translate(err)
	}
	return task, nil
}

// ListTasks returns the user's tasks, slots attached, creation-descending.
func (r *TaskRepository) ListTasks(ctx context.Context, userID string) ([]persistence.Task, error) {
	var tasks []persistence.Task
	if err := r.db.WithContext(ctx).Preload("Slots", slotOrder).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&tasks).Error; err != nil {
		return nil, translate(err)
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateTask(ctx context.Context, task persistence.Task) error {
	res := r.db.WithContext(ctx).Model(&persistence.Task{}).Where("id = ?", task.ID).
		Updates(map[string]any{
			"title":          task.Title,
			"description":    task.Description,
			"start_date":     task.StartDate,
			"due_date":       task.DueDate,
			"time_required":  task.TimeRequired,
			"scheduled_time": task.ScheduledTime,
			"completed":      task.Completed,
			"completed_at":   task.CompletedAt,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteTask removes the task together with its slots and history rows.
func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&persistence.ScheduledTimeSlot{}).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("task_id = ?", id).Delete(&persistence.TaskHistory{}).Error; err != nil {
			return translate(err)
		}
		res := tx.Delete(&persistence.Task{}, "id = ?", id)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func (r *TaskRepository) CreateSlot(ctx context.Context, slot persistence.ScheduledTimeSlot) error {
	if err := r.db.WithContext(ctx).Create(&slot).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *TaskRepository) GetSlot(ctx context.Context, id string) (persistence.ScheduledTimeSlot, error) {
	var slot persistence.ScheduledTimeSlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return persistence.ScheduledTimeSlot{}, translate(err)
	}
	return slot, nil
}

func (r *TaskRepository) ListSlotsForTask(ctx context.Context, taskID string) ([]persistence.ScheduledTimeSlot, error) {
	var slots []persistence.ScheduledTimeSlot
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Order("start_time ASC, id ASC").
		Find(&slots).Error; err != nil {
		return nil, translate(err)
	}
	return slots, nil
}

// ListSlotsForUser returns every slot belonging to any of the user's tasks.
func (r *TaskRepository) ListSlotsForUser(ctx context.Context, userID string) ([]persistence.ScheduledTimeSlot, error) {
	var slots []persistence.ScheduledTimeSlot
	if err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = scheduled_time_slots.task_id").
		Where("tasks.user_id = ?", userID).
		Order("scheduled_time_slots.start_time ASC, scheduled_time_slots.id ASC").
		Find(&slots).Error; err != nil {
		return nil, translate(err)
	}
	return slots, nil
}

func (r *TaskRepository) UpdateSlot(ctx context.Context, slot persistence.ScheduledTimeSlot) error {
	res := r.db.WithContext(ctx).Model(&persistence.ScheduledTimeSlot{}).Where("id = ?", slot.ID).
		Updates(map[string]any{
			"start_time":       slot.StartTime,
			"duration_minutes": slot.DurationMinutes,
			"outlook_event_id": slot.OutlookEventID,
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

func (r *TaskRepository) DeleteSlot(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&persistence.ScheduledTimeSlot{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// SetSlotEventID writes back the Outlook event id after a mirrored create.
func (r *TaskRepository) SetSlotEventID(ctx context.Context, slotID, eventID string) error {
	res := r.db.WithContext(ctx).Model(&persistence.ScheduledTimeSlot{}).Where("id = ?", slotID).
		Updates(map[string]any{"outlook_event_id": eventID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func slotOrder(db *gorm.DB) *gorm.DB {
	return db.Order("scheduled_time_slots.start_time ASC")
}

var _ persistence.TaskRepository = (*TaskRepository)(nil)
