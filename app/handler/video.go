package handler

import (
	"context"
	"net/http"
	"sync"

	"samco-studio/app/logger"
	"samco-studio/app/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VideoGenerator 视频生成服务
type VideoGenerator interface {
	Generate(ctx context.Context, job service.VideoJob, progress service.ProgressFunc) (*service.VideoResult, error)
	RemuxSupported() bool
}

// VideoHandler 视频生成处理器，生成在后台执行，通过 run 查询进度
type VideoHandler struct {
	svc   VideoGenerator
	runs  *service.RunTracker
	log   *logger.Logger
	ctx   context.Context
	wg    sync.WaitGroup
	slots chan struct{} // 限制同时执行的生成数
}

// NewVideoHandler 创建视频处理器，ctx 为服务生命周期上下文
func NewVideoHandler(ctx context.Context, svc VideoGenerator, runs *service.RunTracker, maxConcurrent int, log *logger.Logger) *VideoHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &VideoHandler{
		svc:   svc,
		runs:  runs,
		log:   log.Named("video-handler"),
		ctx:   ctx,
		slots: make(chan struct{}, maxConcurrent),
	}
}

type voiceOverRequest struct {
	Audio     string `json:"audio"` // base64 或 data URI
	AudioMIME string `json:"audio_mime"`
	Text      string `json:"text"`
	VoiceName string `json:"voice_name"`
	Locale    string `json:"locale"`
	Speed     string `json:"speed"`
	Pitch     string `json:"pitch"`
	Style     string `json:"style"`
}

type videoRequest struct {
	Prompt         string            `json:"prompt"`
	NegativePrompt string            `json:"negative_prompt"`
	AspectRatio    string            `json:"aspect_ratio"`
	Duration       string            `json:"duration"`
	ModelName      string            `json:"model_name"`
	Image          string            `json:"image"` // base64 或 data URI
	ReferenceURL   string            `json:"reference_url"`
	VoiceOver      *voiceOverRequest `json:"voice_over"`
}

func (r *videoRequest) job() (service.VideoJob, error) {
	job := service.VideoJob{
		Prompt:         r.Prompt,
		NegativePrompt: r.NegativePrompt,
		AspectRatio:    r.AspectRatio,
		Duration:       r.Duration,
		ModelName:      r.ModelName,
		ReferenceURL:   r.ReferenceURL,
	}
	img, _, err := decodeBinary("image", r.Image)
	if err != nil {
		return job, err
	}
	job.Image = img

	if v := r.VoiceOver; v != nil {
		audio, mimeType, err := decodeBinary("voice_over.audio", v.Audio)
		if err != nil {
			return job, err
		}
		if v.AudioMIME != "" {
			mimeType = v.AudioMIME
		}
		job.VoiceOver = &service.VoiceOver{
			Audio:     audio,
			AudioMIME: mimeType,
			Text:      v.Text,
			VoiceName: v.VoiceName,
			Locale:    v.Locale,
			Speed:     v.Speed,
			Pitch:     v.Pitch,
			Style:     v.Style,
		}
	}
	return job, nil
}

// CreateVideo 提交视频生成，立即返回 run
func (h *VideoHandler) CreateVideo(c *gin.Context) {
	var req videoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	job, err := req.job()
	if err == nil {
		err = job.Validate()
	}
	if err != nil {
		failWith(c, err)
		return
	}

	run := h.runs.Start("video")
	h.wg.Add(1)
	go h.execute(run.ID, job)

	c.JSON(http.StatusAccepted, ApiResponse{Code: 0, Message: "已提交", Data: run})
}

func (h *VideoHandler) execute(runID string, job service.VideoJob) {
	defer h.wg.Done()

	// 超出并发上限时排队
	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	case <-h.ctx.Done():
		h.fail(runID, h.ctx.Err())
		return
	}

	res, err := h.svc.Generate(h.ctx, job, func(stage service.RunStage, p float64) {
		h.runs.Progress(runID, stage, p)
	})
	if err != nil {
		h.log.Warn("视频生成失败", zap.String("run_id", runID), zap.Error(err))
		h.fail(runID, err)
		return
	}
	h.runs.Update(runID, func(r *service.Run) {
		r.State = service.RunSucceeded
		r.Stage = service.StageDone
		r.Progress = 100
		r.TaskID = res.TaskID
		r.OutputURL = res.OutputURL
		r.Note = res.Note
		if res.Generation != nil {
			r.GenerationID = res.Generation.ID
		}
	})
}

func (h *VideoHandler) fail(runID string, err error) {
	h.runs.Update(runID, func(r *service.Run) {
		r.State = service.RunFailed
		r.Error = err.Error()
		r.StatusCode = StatusFor(err)
	})
}

// Wait 等待后台生成结束
func (h *VideoHandler) Wait() {
	h.wg.Wait()
}

// GetRun 查询生成进度
func (h *VideoHandler) GetRun(c *gin.Context) {
	run, ok := h.runs.Get(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "生成任务不存在或已过期")
		return
	}
	success(c, run, "获取成功")
}

// Capabilities 当前环境能力
func (h *VideoHandler) Capabilities(c *gin.Context) {
	success(c, gin.H{"remux": h.svc.RemuxSupported()}, "获取成功")
}
