package remux

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"samco-studio/app/config"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Loader 初始化引擎
type Loader func(ctx context.Context) (Engine, error)

// EngineHandle 进程级的懒加载引擎句柄。
// 并发调用 Get 时最多只有一次初始化在进行；初始化失败不会被缓存，下次调用会重试。
type EngineHandle struct {
	loader Loader
	group  singleflight.Group
	loads  atomic.Int32

	mu     sync.Mutex
	engine Engine

	// 同一时间只允许一个任务使用引擎，排队时可被 ctx 取消
	jobs *semaphore.Weighted
}

// NewEngineHandle 使用指定加载函数创建句柄
func NewEngineHandle(loader Loader) *EngineHandle {
	return &EngineHandle{loader: loader, jobs: semaphore.NewWeighted(1)}
}

// acquire 占用引擎，直到 ctx 结束
func (h *EngineHandle) acquire(ctx context.Context) error {
	return h.jobs.Acquire(ctx, 1)
}

func (h *EngineHandle) release() {
	h.jobs.Release(1)
}

var (
	sharedOnce   sync.Once
	sharedHandle *EngineHandle
)

// Shared 返回进程内共享的 ffmpeg 引擎句柄，首次调用时的配置生效
func Shared(cfg config.RemuxConfig) *EngineHandle {
	sharedOnce.Do(func() {
		sharedHandle = NewEngineHandle(FFmpegLoader(cfg))
	})
	return sharedHandle
}

func (h *EngineHandle) current() Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine
}

// Get 返回已初始化的引擎，必要时进行初始化
func (h *EngineHandle) Get(ctx context.Context) (Engine, error) {
	if e := h.current(); e != nil {
		return e, nil
	}

	ch := h.group.DoChan("engine", func() (any, error) {
		if e := h.current(); e != nil {
			return e, nil
		}
		h.loads.Add(1)
		// 初始化不跟随某个调用方的取消，其他等待者仍需要它的结果
		e, err := h.loader(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.engine = e
		h.mu.Unlock()
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Engine), nil
	}
}

// Loads 实际执行初始化的次数
func (h *EngineHandle) Loads() int {
	return int(h.loads.Load())
}

// Loaded 引擎是否已初始化
func (h *EngineHandle) Loaded() bool {
	return h.current() != nil
}

// Close 释放引擎，之后的 Get 会重新初始化
func (h *EngineHandle) Close() error {
	if err := h.acquire(context.Background()); err != nil {
		return err
	}
	defer h.release()

	h.mu.Lock()
	e := h.engine
	h.engine = nil
	h.mu.Unlock()

	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
