package service

import (
	"context"
	"errors"
	"strings"

	"samco-studio/app/model"

	"gorm.io/gorm"
)

// PreferencesService 会话偏好
type PreferencesService struct {
	db *gorm.DB
}

func NewPreferencesService(db *gorm.DB) *PreferencesService {
	return &PreferencesService{db: db}
}

// Get 查询会话偏好，不存在时返回未保存的默认值
func (s *PreferencesService) Get(ctx context.Context, sessionID string) (*model.UserPreferences, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, invalid("session_id", "不能为空")
	}
	var prefs model.UserPreferences
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultPreferences(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Upsert 创建或更新会话偏好
func (s *PreferencesService) Upsert(ctx context.Context, sessionID string, update model.PreferencesUpdate) (*model.UserPreferences, error) {
	var out *model.UserPreferences
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prefs, err := (&PreferencesService{db: tx}).Get(ctx, sessionID)
		if err != nil {
			return err
		}
		prefs.ApplyUpdate(update)
		if err := tx.Save(prefs).Error; err != nil {
			return err
		}
		out = prefs
		return nil
	})
	return out, err
}
