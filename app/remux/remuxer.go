package remux

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"samco-studio/app/logger"

	"go.uber.org/zap"
)

// 暂存到引擎工作目录的固定文件名
const (
	videoInputName = "input_video.mp4"
	audioInputBase = "input_audio"
	outputName     = "output.mp4"

	defaultAudioExt = "webm"
)

// 各阶段完成后报告的进度
const (
	progressEngineRequested = 5
	progressEngineReady     = 10
	progressVideoFetched    = 30
	progressAudioFetched    = 50
	progressStaged          = 60
	progressExecuted        = 90
	progressReadBack        = 95
	progressDone            = 100
)

// ProgressFunc 进度回调，取值 0~100 且单调不减
type ProgressFunc func(progress float64)

// Remuxer 把无声视频和音频合成为一个文件：视频流直接复制，音频转码为 AAC，时长取两者较短者
type Remuxer struct {
	handle  *EngineHandle
	logger  *logger.Logger
	timeout time.Duration
}

// NewRemuxer 创建 Remuxer，timeout 为 0 表示不限制
func NewRemuxer(handle *EngineHandle, timeout time.Duration, log *logger.Logger) *Remuxer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Remuxer{handle: handle, logger: log.Named("remux"), timeout: timeout}
}

// Handle 底层引擎句柄
func (r *Remuxer) Handle() *EngineHandle {
	return r.handle
}

// NewJob 创建一次性的合成任务
func (r *Remuxer) NewJob(video, audio Source) *RemuxJob {
	return &RemuxJob{remuxer: r, video: video, audio: audio}
}

// Combine 创建并执行一个合成任务
func (r *Remuxer) Combine(ctx context.Context, video, audio Source, onProgress ProgressFunc) ([]byte, error) {
	return r.NewJob(video, audio).Run(ctx, onProgress)
}

// RemuxJob 一次合成操作，只能执行一次，重试需要创建新任务
type RemuxJob struct {
	remuxer *Remuxer
	video   Source
	audio   Source

	used atomic.Bool

	mu       sync.Mutex
	progress float64
	output   []byte
}

// Progress 当前进度
func (j *RemuxJob) Progress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Output 成功后的输出，失败或未完成时为 nil
func (j *RemuxJob) Output() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output
}

func (j *RemuxJob) report(onProgress ProgressFunc, p float64) {
	j.mu.Lock()
	if p <= j.progress {
		j.mu.Unlock()
		return
	}
	j.progress = p
	j.mu.Unlock()
	if onProgress != nil {
		onProgress(p)
	}
}

// Run 执行合成。任何一步失败都返回 *RemuxError，不会返回部分数据。
func (j *RemuxJob) Run(ctx context.Context, onProgress ProgressFunc) ([]byte, error) {
	if !j.used.CompareAndSwap(false, true) {
		return nil, &RemuxError{Stage: "start", Err: ErrJobUsed}
	}

	r := j.remuxer
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	j.report(onProgress, progressEngineRequested)
	engine, err := r.handle.Get(ctx)
	if err != nil {
		return nil, &RemuxError{Stage: "load_engine", Err: err}
	}
	j.report(onProgress, progressEngineReady)

	videoData, err := j.video.Fetch(ctx)
	if err != nil {
		return nil, &RemuxError{Stage: "fetch_video", Err: err}
	}
	j.report(onProgress, progressVideoFetched)

	audioData, err := j.audio.Fetch(ctx)
	if err != nil {
		return nil, &RemuxError{Stage: "fetch_audio", Err: err}
	}
	j.report(onProgress, progressAudioFetched)

	audioExt := j.audio.Ext()
	if audioExt == "" {
		audioExt = defaultAudioExt
	}
	audioName := audioInputBase + "." + audioExt

	// 文件名固定，同一时间只能有一个任务使用引擎
	if err := r.handle.acquire(ctx); err != nil {
		return nil, &RemuxError{Stage: "wait_engine", Err: err}
	}
	defer r.handle.release()

	if err := ctx.Err(); err != nil {
		return nil, &RemuxError{Stage: "wait_engine", Err: err}
	}

	defer r.cleanup(engine, videoInputName, audioName, outputName)

	if err := engine.WriteFile(videoInputName, videoData); err != nil {
		return nil, &RemuxError{Stage: "stage_video", Err: err}
	}
	if err := engine.WriteFile(audioName, audioData); err != nil {
		return nil, &RemuxError{Stage: "stage_audio", Err: err}
	}
	j.report(onProgress, progressStaged)

	if err := engine.Exec(ctx, Args(audioName)...); err != nil {
		return nil, &RemuxError{Stage: "exec", Err: err}
	}
	j.report(onProgress, progressExecuted)

	out, err := engine.ReadFile(outputName)
	if err != nil {
		return nil, &RemuxError{Stage: "read_output", Err: err}
	}
	if len(out) == 0 {
		return nil, &RemuxError{Stage: "read_output", Err: errEmptyOutput}
	}
	j.report(onProgress, progressReadBack)

	j.mu.Lock()
	j.output = out
	j.mu.Unlock()
	j.report(onProgress, progressDone)

	r.logger.Info("音视频合成完成",
		zap.Int("video_bytes", len(videoData)),
		zap.Int("audio_bytes", len(audioData)),
		zap.Int("output_bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Args ffmpeg 参数：复制视频流，音频转 AAC，按较短的流截断
func Args(audioName string) []string {
	return []string{
		"-y",
		"-i", videoInputName,
		"-i", audioName,
		"-c:v", "copy",
		"-c:a", "aac",
		"-strict", "experimental",
		"-shortest",
		outputName,
	}
}

// cleanup 尽力删除暂存文件，失败只记录日志
func (r *Remuxer) cleanup(engine Engine, names ...string) {
	for _, name := range names {
		if err := engine.DeleteFile(name); err != nil {
			r.logger.Debugf("清理暂存文件 %s 失败: %v", name, err)
		}
	}
}
