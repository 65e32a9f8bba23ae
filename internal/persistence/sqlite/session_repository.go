package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/timebox/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using GORM.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if err := r.db.WithContext(ctx).Create(&session).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *SessionRepository) GetSessionByToken(ctx context.Context, token string) (persistence.Session, error) {
	var session persistence.Session
	if err := r.db.WithContext(ctx).First(&session, "token = ?", token).Error; err != nil {
		return persistence.Session{}, translate(err)
	}
	return session, nil
}

func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&persistence.Session{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Updates(map[string]any{"revoked_at": revokedAt, "updated_at": revokedAt})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	if err := r.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", reference).
		Delete(&persistence.Session{}).Error; err != nil {
		return translate(err)
	}
	return nil
}

var _ persistence.SessionRepository = (*SessionRepository)(nil)
