package server

import (
	"time"

	"samco-studio/app/config"
	"samco-studio/app/logger"
	"samco-studio/app/poller"
	"samco-studio/app/provider"
	"samco-studio/app/remux"
	"samco-studio/app/service"
	"samco-studio/app/storage"

	"gorm.io/gorm"
)

// Services 组装好的业务服务，HTTP 服务和命令行共用
type Services struct {
	Gateway     *provider.Gateway
	Remuxer     *remux.Remuxer
	Store       *storage.Store
	History     *service.HistoryService
	Preferences *service.PreferencesService
	Video       *service.VideoService
	Image       *service.ImageService
	Speech      *service.SpeechService
	log         *logger.Logger
}

// NewServices 按配置创建服务，db 为空时不记录历史
func NewServices(cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Services, error) {
	store, err := storage.New(cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Gateway: provider.New(cfg.Provider, log),
		Remuxer: remux.NewRemuxer(remux.Shared(cfg.Remux), time.Duration(cfg.Remux.Timeout)*time.Second, log),
		Store:   store,
		log:     log,
	}
	if db != nil {
		s.History = service.NewHistoryService(db, log)
		s.Preferences = service.NewPreferencesService(db)
	}

	remuxCfg := cfg.Remux
	s.Video = service.NewVideoService(
		s.Gateway,
		poller.New(s.Gateway, cfg.Poller, log),
		s.Remuxer,
		func() bool { return remux.IsRemuxSupported(remuxCfg) },
		store, s.History, log)
	s.Image = service.NewImageService(s.Gateway, store, s.History, log)
	s.Speech = service.NewSpeechService(s.Gateway, store, s.History, log)
	return s, nil
}

// Close 释放合成引擎和 HTTP 客户端
func (s *Services) Close() {
	if err := s.Remuxer.Handle().Close(); err != nil {
		s.log.Warnf("关闭合成引擎失败: %v", err)
	}
	if err := s.Gateway.Close(); err != nil {
		s.log.Warnf("关闭生成服务客户端失败: %v", err)
	}
}
