package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GenerationType 生成内容类型
type GenerationType string

const (
	GenerationTypeImage GenerationType = "image"
	GenerationTypeVideo GenerationType = "video"
	GenerationTypeAudio GenerationType = "audio"
)

// GenerationMode 生成方式
type GenerationMode string

const (
	ModeTextToImage  GenerationMode = "text-to-image"
	ModeImageToImage GenerationMode = "image-to-image"
	ModeTextToVideo  GenerationMode = "text-to-video"
	ModeImageToVideo GenerationMode = "image-to-video"
	ModeTextToSpeech GenerationMode = "text-to-speech"
	ModeVoiceClone   GenerationMode = "voice-clone"
)

// JSONMap 以 JSON 文本存储的键值对
type JSONMap map[string]any

// Value 实现 driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (m *JSONMap) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("不支持的 JSON 字段类型: %T", value)
	}
	if len(raw) == 0 {
		*m = JSONMap{}
		return nil
	}
	out := JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Generation 生成历史记录
type Generation struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	Type         GenerationType `gorm:"size:10;not null;index;comment:内容类型" json:"type"`
	Mode         GenerationMode `gorm:"size:20;not null;index;comment:生成方式" json:"mode"`
	AITool       string         `gorm:"column:ai_tool;size:100;not null;index;comment:使用的模型" json:"ai_tool"`
	Prompt       *string        `gorm:"type:text" json:"prompt"`
	OutputURL    string         `gorm:"type:text;not null" json:"output_url"`
	ReferenceURL *string        `gorm:"type:text" json:"reference_url"`
	Settings     JSONMap        `gorm:"type:json" json:"settings"`
	Metadata     JSONMap        `gorm:"type:json" json:"metadata"`
}

// TableName 指定表名
func (Generation) TableName() string {
	return "generations"
}

// BeforeCreate 生成主键
func (g *Generation) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Settings == nil {
		g.Settings = JSONMap{}
	}
	if g.Metadata == nil {
		g.Metadata = JSONMap{}
	}
	return nil
}

// GenerationFilter 历史查询条件
type GenerationFilter struct {
	Type   GenerationType `form:"type"`
	Mode   GenerationMode `form:"mode"`
	AITool string         `form:"ai_tool"`
	Limit  int            `form:"limit"`
	Offset int            `form:"offset"`
}

// StringPtr 空字符串返回 nil
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
