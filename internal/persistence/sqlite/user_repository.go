package sqlite

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/example/timebox/internal/persistence"
)

// UserRepository implements persistence.UserRepository using GORM.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	user.Email = normalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	var user persistence.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return persistence.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	var user persistence.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", normalizeEmail(email)).Error; err != nil {
		return persistence.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	user.Email = normalizeEmail(user.Email)
	res := r.db.WithContext(ctx).Model(&persistence.User{}).Where("id = ?", user.ID).
		Select("Email", "PasswordHash", "DisplayName", "AvatarURL", "UpdatedAt").
		Updates(map[string]any{
			"email":         user.Email,
			"password_hash": user.PasswordHash,
			"display_name":  user.DisplayName,
			"avatar_url":    user.AvatarURL,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteUser removes the user and every dependent row.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taskIDs []string
		if err := tx.Model(&persistence.Task{}).Where("user_id = ?", id).Pluck("id", &taskIDs).Error; err != nil {
			return translate(err)
		}
		if len(taskIDs) > 0 {
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&persistence.ScheduledTimeSlot{}).Error; err != nil {
				return translate(err)
			}
		}
		for _, model := range []any{
			&persistence.TaskHistory{},
			&persistence.Task{},
			&persistence.Reminder{},
			&persistence.RecurringEvent{},
			&persistence.OutlookIntegration{},
			&persistence.SyncOutcome{},
			&persistence.Session{},
		} {
			if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return translate(err)
			}
		}

		res := tx.Delete(&persistence.User{}, "id = ?", id)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ persistence.UserRepository = (*UserRepository)(nil)
