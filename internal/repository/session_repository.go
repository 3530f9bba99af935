package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// セッションの保存・取得・失効
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, sessionID string) (*model.Session, error)
	Revoke(ctx context.Context, sessionID string, revokedAt time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) error
}
