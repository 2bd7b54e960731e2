package model

import (
	"time"
)

// UserPreferences 按会话保存的用户偏好
type UserPreferences struct {
	ID                      uint      `gorm:"primarykey" json:"id"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
	SessionID               string    `gorm:"size:100;not null;uniqueIndex" json:"session_id"`
	FavoriteImageTool       *string   `gorm:"size:100" json:"favorite_image_tool"`
	FavoriteVideoTool       *string   `gorm:"size:100" json:"favorite_video_tool"`
	FavoriteVoiceTool       *string   `gorm:"size:100" json:"favorite_voice_tool"`
	DefaultImageAspectRatio string    `gorm:"size:10;default:'1:1'" json:"default_image_aspect_ratio"`
	DefaultVideoAspectRatio string    `gorm:"size:10;default:'9:16'" json:"default_video_aspect_ratio"`
	DefaultVideoDuration    string    `gorm:"size:5;default:'5'" json:"default_video_duration"`
	DefaultVoiceLocale      string    `gorm:"size:10;default:'ar-SA'" json:"default_voice_locale"`
	DefaultVoiceSpeed       string    `gorm:"size:10;default:'medium'" json:"default_voice_speed"`
	DefaultVoicePitch       string    `gorm:"size:10;default:'medium'" json:"default_voice_pitch"`
	Preferences             JSONMap   `gorm:"type:json" json:"preferences"`
}

// TableName 指定表名
func (UserPreferences) TableName() string {
	return "user_preferences"
}

// PreferencesUpdate 偏好更新内容，nil 字段保持不变
type PreferencesUpdate struct {
	FavoriteImageTool       *string `json:"favorite_image_tool"`
	FavoriteVideoTool       *string `json:"favorite_video_tool"`
	FavoriteVoiceTool       *string `json:"favorite_voice_tool"`
	DefaultImageAspectRatio *string `json:"default_image_aspect_ratio"`
	DefaultVideoAspectRatio *string `json:"default_video_aspect_ratio"`
	DefaultVideoDuration    *string `json:"default_video_duration"`
	DefaultVoiceLocale      *string `json:"default_voice_locale"`
	DefaultVoiceSpeed       *string `json:"default_voice_speed"`
	DefaultVoicePitch       *string `json:"default_voice_pitch"`
	Preferences             JSONMap `json:"preferences"`
}

// DefaultPreferences 返回新会话的默认偏好
func DefaultPreferences(sessionID string) *UserPreferences {
	return &UserPreferences{
		SessionID:               sessionID,
		DefaultImageAspectRatio: "1:1",
		DefaultVideoAspectRatio: "9:16",
		DefaultVideoDuration:    "5",
		DefaultVoiceLocale:      "ar-SA",
		DefaultVoiceSpeed:       "medium",
		DefaultVoicePitch:       "medium",
		Preferences:             JSONMap{},
	}
}

// ApplyUpdate 合并更新内容
func (p *UserPreferences) ApplyUpdate(u PreferencesUpdate) {
	if u.FavoriteImageTool != nil {
		p.FavoriteImageTool = u.FavoriteImageTool
	}
	if u.FavoriteVideoTool != nil {
		p.FavoriteVideoTool = u.FavoriteVideoTool
	}
	if u.FavoriteVoiceTool != nil {
		p.FavoriteVoiceTool = u.FavoriteVoiceTool
	}
	if u.DefaultImageAspectRatio != nil {
		p.DefaultImageAspectRatio = *u.DefaultImageAspectRatio
	}
	if u.DefaultVideoAspectRatio != nil {
		p.DefaultVideoAspectRatio = *u.DefaultVideoAspectRatio
	}
	if u.DefaultVideoDuration != nil {
		p.DefaultVideoDuration = *u.DefaultVideoDuration
	}
	if u.DefaultVoiceLocale != nil {
		p.DefaultVoiceLocale = *u.DefaultVoiceLocale
	}
	if u.DefaultVoiceSpeed != nil {
		p.DefaultVoiceSpeed = *u.DefaultVoiceSpeed
	}
	if u.DefaultVoicePitch != nil {
		p.DefaultVoicePitch = *u.DefaultVoicePitch
	}
	if u.Preferences != nil {
		p.Preferences = u.Preferences
	}
}
