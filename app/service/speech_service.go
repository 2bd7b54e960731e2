package service

import (
	"context"
	"strings"

	"samco-studio/app/logger"
	"samco-studio/app/model"
	"samco-studio/app/provider"
	"samco-studio/app/remux"
	"samco-studio/app/storage"

	"go.uber.org/zap"
)

const speechTool = "gemini-tts"

// SpeechSynthesizer 语音能力
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req provider.SpeechRequest) (*provider.Audio, error)
	CloneVoice(ctx context.Context, sample []byte, text string) (*provider.Audio, error)
}

// SpeechResult 语音合成结果
type SpeechResult struct {
	URL         string            `json:"url"`
	WaveformURL string            `json:"waveform_url,omitempty"`
	MimeType    string            `json:"mime_type"`
	Size        int64             `json:"size"`
	Generation  *model.Generation `json:"generation,omitempty"`
}

// SpeechService 语音合成编排
type SpeechService struct {
	gateway SpeechSynthesizer
	store   *storage.Store
	history *HistoryService
	log     *logger.Logger
}

func NewSpeechService(gw SpeechSynthesizer, store *storage.Store, history *HistoryService, log *logger.Logger) *SpeechService {
	if log == nil {
		log = logger.NewNop()
	}
	return &SpeechService{gateway: gw, store: store, history: history, log: log.Named("speech")}
}

// Synthesize 合成语音并保存
func (s *SpeechService) Synthesize(ctx context.Context, req provider.SpeechRequest) (*SpeechResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, invalid("text", "不能为空")
	}
	if req.VoiceName == "" {
		return nil, invalid("voice_name", "不能为空")
	}
	if req.Locale == "" {
		req.Locale = "ar-SA"
	}

	audio, err := s.gateway.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}

	ext := remux.ExtFromMIME(audio.MimeType)
	if ext == "" {
		ext = "wav"
	}
	artifact, err := s.store.Save(storage.KindAudio, ext, audio.Data)
	if err != nil {
		return nil, err
	}
	result := &SpeechResult{URL: artifact.URL, MimeType: audio.MimeType, Size: artifact.Size}

	if ext == "wav" {
		if wave, err := s.store.Waveform(artifact, audio.Data); err != nil {
			s.log.Debug("生成波形图失败", zap.Error(err))
		} else {
			result.WaveformURL = wave.URL
		}
	}

	metadata := model.JSONMap{"mime_type": audio.MimeType, "size": artifact.Size}
	if audio.SampleRate > 0 {
		metadata["sample_rate"] = audio.SampleRate
	}
	if result.WaveformURL != "" {
		metadata["waveform_url"] = result.WaveformURL
	}
	result.Generation = s.history.Record(ctx, &model.Generation{
		Type:      model.GenerationTypeAudio,
		Mode:      model.ModeTextToSpeech,
		AITool:    speechTool,
		Prompt:    model.StringPtr(req.Text),
		OutputURL: result.URL,
		Settings: model.JSONMap{
			"voice_name": req.VoiceName,
			"locale":     req.Locale,
			"speed":      req.Speed,
			"pitch":      req.Pitch,
			"style":      req.Style,
		},
		Metadata: metadata,
	})
	return result, nil
}

// CloneVoice 声音克隆，服务商不支持时原样返回 provider.ErrVoiceCloneUnsupported
func (s *SpeechService) CloneVoice(ctx context.Context, sample []byte, text string) (*SpeechResult, error) {
	if len(sample) == 0 {
		return nil, invalid("sample", "需要上传声音样本")
	}
	if strings.TrimSpace(text) == "" {
		return nil, invalid("text", "不能为空")
	}
	audio, err := s.gateway.CloneVoice(ctx, sample, text)
	if err != nil {
		return nil, err
	}
	artifact, err := s.store.Save(storage.KindAudio, "wav", audio.Data)
	if err != nil {
		return nil, err
	}
	result := &SpeechResult{URL: artifact.URL, MimeType: audio.MimeType, Size: artifact.Size}
	result.Generation = s.history.Record(ctx, &model.Generation{
		Type:      model.GenerationTypeAudio,
		Mode:      model.ModeVoiceClone,
		AITool:    speechTool,
		Prompt:    model.StringPtr(text),
		OutputURL: result.URL,
	})
	return result, nil
}
