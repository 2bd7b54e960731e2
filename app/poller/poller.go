package poller

import (
	"context"
	"errors"
	"time"

	"samco-studio/app/config"
	"samco-studio/app/logger"
	"samco-studio/app/model"
	"samco-studio/app/provider"

	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 120
	DefaultInterval    = 5 * time.Second
)

// Querier 查询任务状态，由 provider.Gateway 实现
type Querier interface {
	QueryTask(ctx context.Context, taskID string, kind model.TaskKind) (provider.TaskSnapshot, error)
}

// SleepFunc 等待 d，ctx 取消时提前返回错误
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller 把一个已提交的任务驱动到终态。Poller 本身没有可变状态，可被多个任务并发使用。
type Poller struct {
	Querier     Querier
	MaxAttempts int
	Interval    time.Duration
	Sleep       SleepFunc

	// TransportRetries 单次查询遇到网络错误时的额外重试次数，0 表示直接失败
	TransportRetries int

	Logger *logger.Logger

	// OnStatus 任务状态变化时回调，可为空
	OnStatus func(task *model.GenerationTask, attempt int)
}

// New 按配置创建 Poller
func New(q Querier, cfg config.PollerConfig, log *logger.Logger) *Poller {
	return &Poller{
		Querier:          q,
		MaxAttempts:      cfg.MaxAttempts,
		Interval:         cfg.PollInterval(),
		TransportRetries: cfg.TransportRetries,
		Logger:           log,
	}
}

// ContextSleep 默认等待实现
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Poller) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultInterval
	}
	return p.Interval
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return ContextSleep(ctx, d)
}

func (p *Poller) log() *logger.Logger {
	if p.Logger == nil {
		return logger.NewNop()
	}
	return p.Logger
}

// PollUntilDone 按次数轮询直到任务成功、失败或次数用尽。
// 每次查询严格串行，最后一次查询之后不再等待。
func (p *Poller) PollUntilDone(ctx context.Context, taskID string, kind model.TaskKind) (string, error) {
	maxAttempts := p.maxAttempts()
	interval := p.interval()
	task := model.NewGenerationTask(taskID, kind)
	log := p.log()
	var waited time.Duration

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		snap, err := p.query(ctx, taskID, kind)
		if err != nil {
			log.Warn("查询任务状态失败",
				zap.String("task_id", taskID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return "", err
		}

		prev := task.Status
		if err := task.Apply(snap.Status, snap.ResultURL, snap.FailureMessage); err != nil {
			log.Warnf("%v", err)
		}
		if task.Status != prev && p.OnStatus != nil {
			p.OnStatus(task, attempt)
		}

		switch task.Status {
		case model.TaskStatusSucceeded:
			if task.ResultURL == "" {
				return "", &MissingResultError{TaskID: taskID}
			}
			log.Info("视频任务完成",
				zap.String("task_id", taskID),
				zap.Int("attempts", attempt))
			return task.ResultURL, nil
		case model.TaskStatusFailed:
			return "", &JobFailedError{TaskID: taskID, Message: task.FailureReason}
		}

		if attempt == maxAttempts {
			break
		}
		if err := p.sleep(ctx, interval); err != nil {
			return "", err
		}
		waited += interval
	}

	return "", &PollTimeoutError{
		TaskID:   taskID,
		Attempts: maxAttempts,
		Waited:   waited,
	}
}

// query 执行一次查询；只有网络层错误会按 TransportRetries 重试
func (p *Poller) query(ctx context.Context, taskID string, kind model.TaskKind) (provider.TaskSnapshot, error) {
	var lastErr error
	for try := 0; try <= p.TransportRetries; try++ {
		if try > 0 {
			// 线性退避
			if err := p.sleep(ctx, time.Duration(try)*time.Second); err != nil {
				return provider.TaskSnapshot{}, err
			}
			p.log().Debugf("重试查询任务 %s (%d/%d)", taskID, try, p.TransportRetries)
		}
		snap, err := p.Querier.QueryTask(ctx, taskID, kind)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		var perr *provider.ProviderError
		if !errors.As(err, &perr) || !perr.IsTransport() {
			return provider.TaskSnapshot{}, err
		}
	}
	return provider.TaskSnapshot{}, lastErr
}
