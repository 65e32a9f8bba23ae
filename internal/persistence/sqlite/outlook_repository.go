package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/timebox/internal/persistence"
)

// OutlookRepository implements persistence.OutlookRepository using GORM.
type OutlookRepository struct {
	db *gorm.DB
}

func NewOutlookRepository(db *gorm.DB) *OutlookRepository {
	return &OutlookRepository{db: db}
}

// UpsertIntegration inserts or replaces the user's integration row. A user
// holds at most one linked Microsoft account, so the existing row is updated
// in place regardless of the id the caller supplied.
func (r *OutlookRepository) UpsertIntegration(ctx context.Context, integration persistence.OutlookIntegration) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&persistence.OutlookIntegration{}).
			Where("user_id = ?", integration.UserID).
			Updates(map[string]any{
				"access_token":            integration.AccessToken,
				"refresh_token":           integration.RefreshToken,
				"token_expires_at":        integration.TokenExpiresAt,
				"calendar_id":             integration.CalendarID,
				"subscription_id":         integration.SubscriptionID,
				"subscription_expires_at": integration.SubscriptionExpiresAt,
				"sync_enabled":            integration.SyncEnabled,
				"last_sync_at":            integration.LastSyncAt,
				"updated_at":              integration.UpdatedAt,
			})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		if err := tx.Create(&integration).Error; err != nil {
			return translate(err)
		}
		return nil
	})
}

func (r *OutlookRepository) GetIntegrationByUserID(ctx context.Context, userID string) (persistence.OutlookIntegration, error) {
	var integration persistence.OutlookIntegration
	if err := r.db.WithContext(ctx).First(&integration, "user_id = ?", userID).Error; err != nil {
		return persistence.OutlookIntegration{}, translate(err)
	}
	return integration, nil
}

func (r *OutlookRepository) GetIntegrationByCalendarID(ctx context.Context, calendarID string) (persistence.OutlookIntegration, error) {
	var integration persistence.OutlookIntegration
	if err := r.db.WithContext(ctx).First(&integration, "calendar_id = ?", calendarID).Error; err != nil {
		return persistence.OutlookIntegration{}, translate(err)
	}
	return integration, nil
}

func (r *OutlookRepository) DeleteIntegration(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).Delete(&persistence.OutlookIntegration{}, "user_id = ?", userID)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

var _ persistence.OutlookRepository = (*OutlookRepository)(nil)

// SyncOutcomeRepository implements persistence.SyncOutcomeRepository.
type SyncOutcomeRepository struct {
	db *gorm.DB
}

func NewSyncOutcomeRepository(db *gorm.DB) *SyncOutcomeRepository {
	return &SyncOutcomeRepository{db: db}
}

// RecordOutcome keeps the latest attempt per (task, slot, operation).
func (r *SyncOutcomeRepository) RecordOutcome(ctx context.Context, outcome persistence.SyncOutcome) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND slot_id = ? AND operation = ?",
			outcome.TaskID, outcome.SlotID, outcome.Operation).
			Delete(&persistence.SyncOutcome{}).Error; err != nil {
			return translate(err)
		}
		if err := tx.Create(&outcome).Error; err != nil {
			return translate(err)
		}
		return nil
	})
}

func (r *SyncOutcomeRepository) ListOutcomes(ctx context.Context, userID string, limit int) ([]persistence.SyncOutcome, error) {
	if limit <= 0 {
		limit = 20
	}
	var outcomes []persistence.SyncOutcome
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("recorded_at DESC, id DESC").
		Limit(limit).
		Find(&outcomes).Error; err != nil {
		return nil, translate(err)
	}
	return outcomes, nil
}

func (r *SyncOutcomeRepository) DeleteOutcomesBefore(ctx context.Context, cutoff time.Time) error {
	if err := r.db.WithContext(ctx).Where("recorded_at < ?", cutoff).
		Delete(&persistence.SyncOutcome{}).Error; err != nil {
		return translate(err)
	}
	return nil
}

var _ persistence.SyncOutcomeRepository = (*SyncOutcomeRepository)(nil)
