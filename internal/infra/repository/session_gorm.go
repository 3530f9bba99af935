package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	domainrepo "app/internal/repository"

	"gorm.io/gorm"
)

type sessionGormRepository struct {
	db *gorm.DB
}

// DI
func NewSessionGormRepository(db *gorm.DB) domainrepo.SessionRepository {
	return &sessionGormRepository{db: db}
}

func (r *sessionGormRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionGormRepository) FindByID(ctx context.Context, sessionID string) (*model.Session, error) {
	var s model.Session

	err := r.db.WithContext(ctx).
		Where("id = ?", sessionID).
		First(&s).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainrepo.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// 失効（logout・強制失効）
func (r *sessionGormRepository) Revoke(ctx context.Context, sessionID string, revokedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", revokedAt)

	if res.Error != nil {
		return res.Error
	}
	// 0件更新は「既に失効済み」なので成功扱い
	return nil
}

// 期限切れセッションの掃除
func (r *sessionGormRepository) DeleteExpired(ctx context.Context, now time.Time) error {
	return r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.Session{}).Error
}
