package repository

import (
	"context"
	"errors"
	"fmt"

	"nbl_training_backend/internal/model"
	"nbl_training_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) FindByUserID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FirstOrCreate 已存在时返回原记录，不覆盖档案
func (r *UserRepository) FirstOrCreate(ctx context.Context, user *model.User) (*model.User, error) {
	db := r.DB.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error; err != nil {
		return nil, err
	}

	stored, err := r.FindByUserID(ctx, user.UserID)
	if err != nil {
		// 插入被忽略且按 user_id 查不到，说明用户名已被占用
		if errors.Is(err, util.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: username %q already taken", util.ErrInvalidInput, user.Username)
		}
		return nil, err
	}
	return stored, nil
}
