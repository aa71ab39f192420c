package repository

import (
	"context"
	"errors"

	"nbl_training_backend/internal/model"
	"nbl_training_backend/internal/util"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.TrainingSession) error {
	return r.DB.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) Update(ctx context.Context, session *model.TrainingSession) error {
	return r.DB.WithContext(ctx).Save(session).Error
}

func (r *SessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*model.TrainingSession, error) {
	var s model.TrainingSession
	err := r.DB.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListRecentByUser 按创建时间倒序返回最近 limit 条
func (r *SessionRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.TrainingSession, error) {
	var sessions []model.TrainingSession
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}
