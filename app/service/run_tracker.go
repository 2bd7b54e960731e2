package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// RunState 异步生成的整体状态
type RunState string

const (
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// RunStage 当前所处阶段
type RunStage string

const (
	StageSubmitting   RunStage = "submitting"
	StagePolling      RunStage = "polling"
	StageSynthesizing RunStage = "synthesizing"
	StageRemuxing     RunStage = "remuxing"
	StageStoring      RunStage = "storing"
	StageDone         RunStage = "done"
)

// Run 一次服务端生成流程的快照
type Run struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	State        RunState  `json:"state"`
	Stage        RunStage  `json:"stage"`
	Progress     float64   `json:"progress"`
	TaskID       string    `json:"task_id,omitempty"`
	OutputURL    string    `json:"output_url,omitempty"`
	GenerationID string    `json:"generation_id,omitempty"`
	Note         string    `json:"note,omitempty"`
	Error        string    `json:"error,omitempty"`
	StatusCode   int       `json:"status_code,omitempty"` // 失败时对应的 HTTP 状态码
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RunTracker 内存中的生成流程登记表，过期自动清除
type RunTracker struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewRunTracker 创建登记表，ttl 为记录保留时间
func NewRunTracker(ttl time.Duration) *RunTracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RunTracker{cache: cache.New(ttl, 10*time.Minute)}
}

// Start 登记一个新流程
func (t *RunTracker) Start(kind string) Run {
	now := time.Now()
	run := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		State:     RunRunning,
		Stage:     StageSubmitting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.mu.Lock()
	t.cache.SetDefault(run.ID, run)
	t.mu.Unlock()
	return *run
}

// Get 返回快照
func (t *RunTracker) Get(id string) (Run, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.cache.Get(id)
	if !ok {
		return Run{}, false
	}
	return *v.(*Run), true
}

// Update 修改流程状态。终态之后不再变化，进度不会回退。
func (t *RunTracker) Update(id string, fn func(r *Run)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.cache.Get(id)
	if !ok {
		return false
	}
	run := v.(*Run)
	if run.State != RunRunning {
		return false
	}
	prev := run.Progress
	fn(run)
	if run.Progress < prev {
		run.Progress = prev
	}
	run.UpdatedAt = time.Now()
	return true
}

// Progress 更新阶段和进度
func (t *RunTracker) Progress(id string, stage RunStage, progress float64) {
	t.Update(id, func(r *Run) {
		r.Stage = stage
		r.Progress = progress
	})
}

// Count 当前登记的流程数
func (t *RunTracker) Count() int {
	return t.cache.ItemCount()
}
