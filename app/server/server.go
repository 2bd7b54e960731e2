package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"samco-studio/app/config"
	"samco-studio/app/database"
	"samco-studio/app/handler"
	"samco-studio/app/logger"
	"samco-studio/app/middleware"
	"samco-studio/app/service"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器
type Server struct {
	Config   *config.Config
	Logger   *logger.Logger
	Services *Services
	gin      *gin.Engine
	http     *http.Server
	janitor  *service.Janitor
	videos   *handler.VideoHandler
	cancel   context.CancelFunc
}

// New 创建一个新的 Server 实例，数据库需要已经初始化
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log.Named("http")))

	svcs, err := NewServices(cfg, database.DB, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config:   cfg,
		Logger:   log,
		Services: svcs,
		cancel:   cancel,
	}
	if cfg.Janitor.Enabled {
		s.janitor = service.NewJanitor(cfg.Janitor, svcs.Store, svcs.History, log)
	}
	s.videos = handler.NewVideoHandler(ctx, svcs.Video, service.NewRunTracker(time.Duration(cfg.Runs.TTL)*time.Minute), cfg.Runs.MaxConcurrent, log)

	// 设置路由
	s.setupRoutes(
		handler.NewMediaHandler(svcs.Image, svcs.Speech),
		handler.NewHistoryHandler(svcs.History, svcs.Preferences))

	return s, nil
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	if s.janitor != nil {
		if err := s.janitor.Start(); err != nil {
			return fmt.Errorf("启动定期清理失败: %w", err)
		}
	}

	return s.http.ListenAndServe()
}

// Shutdown 关闭服务器并停止后台生成
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	if s.janitor != nil {
		s.janitor.Stop()
	}

	// 取消仍在进行的生成并等待退出
	s.cancel()
	s.videos.Wait()

	s.Services.Close()

	// 关闭数据库连接
	if cerr := database.Close(); cerr != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", cerr)
	}
	return err
}

// Handler 返回路由，用于测试
func (s *Server) Handler() http.Handler {
	return s.gin
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes(media *handler.MediaHandler, history *handler.HistoryHandler) {
	// 生成的产物
	s.gin.Static("/files", s.Config.Storage.Root)

	s.gin.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, handler.ApiResponse{Code: 0, Message: "ok"})
	})

	// API路由组
	api := s.gin.Group("/api")
	api.Use(middleware.Session())
	{
		api.POST("/videos", s.videos.CreateVideo)
		api.GET("/runs/:id", s.videos.GetRun)
		api.GET("/capabilities", s.videos.Capabilities)

		api.POST("/images", media.CreateImage)
		api.POST("/speech", media.CreateSpeech)
		api.POST("/voice-clone", media.CloneVoice)
		api.GET("/voices", media.GetVoices)

		generations := api.Group("/generations")
		{
			generations.GET("", history.ListGenerations)
			generations.DELETE("", history.ClearGenerations)
			generations.GET("/:id", history.GetGeneration)
			generations.DELETE("/:id", history.DeleteGeneration)
		}

		api.GET("/preferences", history.GetPreferences)
		api.PUT("/preferences", history.UpdatePreferences)
	}
}
