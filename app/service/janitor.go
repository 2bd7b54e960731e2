package service

import (
	"context"
	"time"

	"samco-studio/app/config"
	"samco-studio/app/logger"
	"samco-studio/app/storage"

	"github.com/robfig/cron/v3"
)

// Janitor 定期清理过期的产物文件和历史记录
type Janitor struct {
	cron      *cron.Cron
	schedule  string
	retention time.Duration
	store     *storage.Store
	history   *HistoryService
	log       *logger.Logger
}

// NewJanitor 创建清理任务
func NewJanitor(cfg config.JanitorConfig, store *storage.Store, history *HistoryService, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Named("janitor")
	return &Janitor{
		cron:      cron.New(cron.WithLogger(cron.PrintfLogger(log))),
		schedule:  cfg.Schedule,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		store:     store,
		history:   history,
		log:       log,
	}
}

// Start 注册并启动定时任务
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() {
		if _, _, err := j.RunOnce(context.Background()); err != nil {
			j.log.Errorf("定期清理失败: %v", err)
		}
	}); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Infof("定期清理已启动: %s，保留 %s", j.schedule, j.retention)
	return nil
}

// Stop 停止并等待正在执行的清理结束
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.log.Info("定期清理已停止")
}

// RunOnce 执行一次清理，返回删除的目录数和记录数
func (j *Janitor) RunOnce(ctx context.Context) (int, int64, error) {
	dirs := 0
	if j.store != nil {
		n, err := j.store.Cleanup(j.retention)
		if err != nil {
			return n, 0, err
		}
		dirs = n
	}

	var rows int64
	if j.history != nil {
		n, err := j.history.DeleteOlderThan(ctx, time.Now().Add(-j.retention))
		if err != nil {
			return dirs, n, err
		}
		rows = n
	}

	if dirs > 0 || rows > 0 {
		j.log.Infof("清理完成: 删除 %d 个目录, %d 条记录", dirs, rows)
	}
	return dirs, rows, nil
}
