package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"samco-studio/app/logger"
	"samco-studio/app/model"
	"samco-studio/app/provider"
	"samco-studio/app/remux"
	"samco-studio/app/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 回退时给调用方的提示
const (
	noteRemuxUnsupported = "视频已生成，但当前环境不支持音视频合成，请手动合并配音"
	noteSpeechFailed     = "视频已生成，但配音合成失败，已返回无声视频"
	noteRemuxFailed      = "视频已生成，但合并音频失败，已返回无声视频"
)

// VideoGateway 视频流程需要的服务商能力
type VideoGateway interface {
	SubmitTextToVideo(ctx context.Context, req provider.TextToVideoRequest) (string, error)
	SubmitImageToVideo(ctx context.Context, req provider.ImageToVideoRequest) (string, error)
	SynthesizeSpeech(ctx context.Context, req provider.SpeechRequest) (*provider.Audio, error)
	VideoModel() string
}

// TaskPoller 轮询任务直到终态
type TaskPoller interface {
	PollUntilDone(ctx context.Context, taskID string, kind model.TaskKind) (string, error)
}

// Combiner 音视频合成
type Combiner interface {
	Combine(ctx context.Context, video, audio remux.Source, onProgress remux.ProgressFunc) ([]byte, error)
}

// ProgressFunc 流程进度回调
type ProgressFunc func(stage RunStage, progress float64)

// VoiceOver 配音：直接提供音频，或者提供文本由语音合成生成
type VoiceOver struct {
	Audio     []byte `json:"-"`
	AudioMIME string `json:"audio_mime,omitempty"`
	Text      string `json:"text,omitempty"`
	VoiceName string `json:"voice_name,omitempty"`
	Locale    string `json:"locale,omitempty"`
	Speed     string `json:"speed,omitempty"`
	Pitch     string `json:"pitch,omitempty"`
	Style     string `json:"style,omitempty"`
}

func (v *VoiceOver) requested() bool {
	return v != nil && (len(v.Audio) > 0 || strings.TrimSpace(v.Text) != "")
}

// VideoJob 一次视频生成请求
type VideoJob struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Duration       string
	ModelName      string
	Image          []byte // 有参考图时走图生视频
	ReferenceURL   string
	VoiceOver      *VoiceOver
}

// VideoResult 视频生成结果
type VideoResult struct {
	TaskID     string            `json:"task_id"`
	SourceURL  string            `json:"source_url"`
	OutputURL  string            `json:"output_url"`
	Remuxed    bool              `json:"remuxed"`
	Note       string            `json:"note,omitempty"`
	Generation *model.Generation `json:"generation,omitempty"`
}

// VideoService 视频生成编排：提交、轮询、可选配音合成、保存、写历史
type VideoService struct {
	gateway   VideoGateway
	poller    TaskPoller
	combiner  Combiner
	supported func() bool
	store     *storage.Store
	history   *HistoryService
	log       *logger.Logger
}

// NewVideoService 创建视频服务。combiner 为空或 supported 返回 false 时不做合成。
func NewVideoService(gw VideoGateway, p TaskPoller, combiner Combiner, supported func() bool, store *storage.Store, history *HistoryService, log *logger.Logger) *VideoService {
	if log == nil {
		log = logger.NewNop()
	}
	if supported == nil {
		supported = func() bool { return combiner != nil }
	}
	return &VideoService{
		gateway:   gw,
		poller:    p,
		combiner:  combiner,
		supported: supported,
		store:     store,
		history:   history,
		log:       log.Named("video"),
	}
}

// RemuxSupported 当前是否可以合成音视频
func (s *VideoService) RemuxSupported() bool {
	return s.combiner != nil && s.supported()
}

func (j *VideoJob) mode() model.GenerationMode {
	if len(j.Image) > 0 {
		return model.ModeImageToVideo
	}
	return model.ModeTextToVideo
}

// Validate 检查请求参数
func (j *VideoJob) Validate() error {
	if len(j.Image) == 0 && strings.TrimSpace(j.Prompt) == "" {
		return invalid("prompt", "文生视频需要提示词")
	}
	switch j.Duration {
	case "", "5", "10":
	default:
		return invalid("duration", "只支持 5 或 10 秒")
	}
	if j.VoiceOver != nil && len(j.VoiceOver.Audio) == 0 && strings.TrimSpace(j.VoiceOver.Text) != "" && j.VoiceOver.VoiceName == "" {
		return invalid("voice_over.voice_name", "配音文本需要指定发音人")
	}
	return nil
}

// Generate 执行完整的视频生成流程
func (s *VideoService) Generate(ctx context.Context, job VideoJob, progress ProgressFunc) (*VideoResult, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	report := func(stage RunStage, p float64) {
		if progress != nil {
			progress(stage, p)
		}
	}

	modelName := job.ModelName
	if modelName == "" {
		modelName = s.gateway.VideoModel()
	}

	report(StageSubmitting, 2)
	var (
		taskID string
		kind   model.TaskKind
		err    error
	)
	if job.mode() == model.ModeImageToVideo {
		kind = model.TaskKindImageToVideo
		taskID, err = s.gateway.SubmitImageToVideo(ctx, provider.ImageToVideoRequest{
			ModelName: modelName,
			Image:     base64.StdEncoding.EncodeToString(job.Image),
			Prompt:    job.Prompt,
			Duration:  job.Duration,
		})
	} else {
		kind = model.TaskKindTextToVideo
		taskID, err = s.gateway.SubmitTextToVideo(ctx, provider.TextToVideoRequest{
			ModelName:      modelName,
			Prompt:         job.Prompt,
			NegativePrompt: job.NegativePrompt,
			AspectRatio:    job.AspectRatio,
			Duration:       job.Duration,
		})
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("视频任务已提交", zap.String("task_id", taskID), zap.String("kind", string(kind)))
	report(StagePolling, 10)

	// 配音合成与轮询并行，配音失败不影响视频本身
	var (
		videoURL  string
		audio     *provider.Audio
		speechErr error
	)
	voice := job.VoiceOver
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := s.poller.PollUntilDone(gctx, taskID, kind)
		if err != nil {
			return err
		}
		videoURL = url
		return nil
	})
	if voice.requested() && len(voice.Audio) == 0 && s.RemuxSupported() {
		g.Go(func() error {
			// 与轮询并行，进度沿用轮询开始时的值
			report(StageSynthesizing, 10)
			a, err := s.gateway.SynthesizeSpeech(gctx, provider.SpeechRequest{
				Text:      voice.Text,
				VoiceName: voice.VoiceName,
				Locale:    voice.Locale,
				Speed:     voice.Speed,
				Pitch:     voice.Pitch,
				Style:     voice.Style,
			})
			if err != nil {
				speechErr = err
				return nil
			}
			audio = a
			return nil
		})
	} else if voice.requested() && len(voice.Audio) > 0 {
		audio = &provider.Audio{Data: voice.Audio, MimeType: voice.AudioMIME}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report(StagePolling, 60)

	result := &VideoResult{TaskID: taskID, SourceURL: videoURL, OutputURL: videoURL}
	if voice.requested() {
		s.attachVoiceOver(ctx, result, audio, speechErr, report)
	}

	report(StageStoring, 97)
	settings := model.JSONMap{
		"aspect_ratio": job.AspectRatio,
		"duration":     job.Duration,
		"model_name":   modelName,
	}
	if voice.requested() {
		settings["voice_over"] = voiceSettings(voice)
	}
	metadata := model.JSONMap{
		"task_id":    taskID,
		"source_url": videoURL,
		"remuxed":    result.Remuxed,
	}
	if result.Note != "" {
		metadata["note"] = result.Note
	}
	result.Generation = s.history.Record(ctx, &model.Generation{
		Type:         model.GenerationTypeVideo,
		Mode:         job.mode(),
		AITool:       modelName,
		Prompt:       model.StringPtr(job.Prompt),
		OutputURL:    result.OutputURL,
		ReferenceURL: model.StringPtr(job.ReferenceURL),
		Settings:     settings,
		Metadata:     metadata,
	})
	report(StageDone, 100)
	return result, nil
}

// attachVoiceOver 尝试把配音合进视频，失败时保留无声视频并写入提示
func (s *VideoService) attachVoiceOver(ctx context.Context, result *VideoResult, audio *provider.Audio, speechErr error, report ProgressFunc) {
	switch {
	case !s.RemuxSupported():
		result.Note = noteRemuxUnsupported
		return
	case speechErr != nil:
		s.log.Warn("配音合成失败，返回无声视频", zap.String("task_id", result.TaskID), zap.Error(speechErr))
		result.Note = noteSpeechFailed
		return
	case audio == nil || len(audio.Data) == 0:
		result.Note = noteSpeechFailed
		return
	case s.store == nil:
		result.Note = noteRemuxUnsupported
		return
	}

	report(StageRemuxing, 60)
	out, err := s.combiner.Combine(ctx,
		remux.URLSource{URL: result.SourceURL},
		remux.BlobSource{Data: audio.Data, Extension: remux.ExtFromMIME(audio.MimeType)},
		func(p float64) { report(StageRemuxing, 60+p*0.35) })
	if err != nil {
		var rerr *remux.RemuxError
		if errors.As(err, &rerr) {
			s.log.Warn("音视频合成失败，返回无声视频", zap.String("task_id", result.TaskID), zap.String("stage", rerr.Stage), zap.Error(rerr.Err))
		} else {
			s.log.Warn("音视频合成失败，返回无声视频", zap.String("task_id", result.TaskID), zap.Error(err))
		}
		result.Note = noteRemuxFailed
		return
	}

	report(StageStoring, 96)
	artifact, err := s.store.Save(storage.KindVideo, "mp4", out)
	if err != nil {
		s.log.Warn("保存合成视频失败，返回无声视频", zap.Error(err))
		result.Note = noteRemuxFailed
		return
	}
	result.OutputURL = artifact.URL
	result.Remuxed = true
}

func voiceSettings(v *VoiceOver) model.JSONMap {
	m := model.JSONMap{"uploaded": len(v.Audio) > 0}
	if v.VoiceName != "" {
		m["voice_name"] = v.VoiceName
	}
	if v.Locale != "" {
		m["locale"] = v.Locale
	}
	if v.Style != "" {
		m["style"] = v.Style
	}
	return m
}
