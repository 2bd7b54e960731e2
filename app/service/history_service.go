package service

import (
	"context"
	"errors"
	"time"

	"samco-studio/app/logger"
	"samco-studio/app/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryService 生成历史记录
type HistoryService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewHistoryService 创建历史服务
func NewHistoryService(db *gorm.DB, log *logger.Logger) *HistoryService {
	if log == nil {
		log = logger.NewNop()
	}
	return &HistoryService{db: db, log: log}
}

// Create 写入一条记录
func (s *HistoryService) Create(ctx context.Context, g *model.Generation) error {
	if g.OutputURL == "" {
		return invalid("output_url", "不能为空")
	}
	return s.db.WithContext(ctx).Create(g).Error
}

// Record 写入记录，失败只记日志，不影响生成结果
func (s *HistoryService) Record(ctx context.Context, g *model.Generation) *model.Generation {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.Create(ctx, g); err != nil {
		s.log.Warn("保存生成记录失败",
			zap.String("type", string(g.Type)),
			zap.String("mode", string(g.Mode)),
			zap.Error(err))
		return nil
	}
	return g
}

// Get 按 ID 查询
func (s *HistoryService) Get(ctx context.Context, id string) (*model.Generation, error) {
	var g model.Generation
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// List 按条件分页查询，最新的在前
func (s *HistoryService) List(ctx context.Context, f model.GenerationFilter) ([]model.Generation, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Generation{})
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Mode != "" {
		query = query.Where("mode = ?", f.Mode)
	}
	if f.AITool != "" {
		query = query.Where("ai_tool = ?", f.AITool)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var items []model.Generation
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Delete 删除一条记录
func (s *HistoryService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Generation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll 清空历史
func (s *HistoryService) DeleteAll(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Generation{})
	return res.RowsAffected, res.Error
}

// DeleteOlderThan 删除早于指定时间的记录
func (s *HistoryService) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&model.Generation{})
	return res.RowsAffected, res.Error
}
