package handler

import (
	"context"
	"net/http"

	"samco-studio/app/provider"
	"samco-studio/app/service"

	"github.com/gin-gonic/gin"
)

// ImageGenerator 图片生成服务
type ImageGenerator interface {
	Generate(ctx context.Context, job service.ImageJob) (*service.ImageResult, error)
}

// SpeechGenerator 语音服务
type SpeechGenerator interface {
	Synthesize(ctx context.Context, req provider.SpeechRequest) (*service.SpeechResult, error)
	CloneVoice(ctx context.Context, sample []byte, text string) (*service.SpeechResult, error)
}

// MediaHandler 图片与语音处理器
type MediaHandler struct {
	images ImageGenerator
	speech SpeechGenerator
}

// NewMediaHandler 创建图片与语音处理器
func NewMediaHandler(images ImageGenerator, speech SpeechGenerator) *MediaHandler {
	return &MediaHandler{images: images, speech: speech}
}

type imageRequest struct {
	Prompt       string `json:"prompt"`
	AspectRatio  string `json:"aspect_ratio"`
	Reference    string `json:"reference"` // base64 或 data URI
	ReferenceURL string `json:"reference_url"`
}

// CreateImage 生成图片
func (h *MediaHandler) CreateImage(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	ref, _, err := decodeBinary("reference", req.Reference)
	if err != nil {
		failWith(c, err)
		return
	}
	res, err := h.images.Generate(c.Request.Context(), service.ImageJob{
		Prompt:       req.Prompt,
		AspectRatio:  req.AspectRatio,
		Reference:    ref,
		ReferenceURL: req.ReferenceURL,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, res, "生成成功")
}

type speechRequest struct {
	Text      string `json:"text"`
	VoiceName string `json:"voice_name"`
	Locale    string `json:"locale"`
	Speed     string `json:"speed"`
	Pitch     string `json:"pitch"`
	Style     string `json:"style"`
}

// CreateSpeech 合成语音
func (h *MediaHandler) CreateSpeech(c *gin.Context) {
	var req speechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	res, err := h.speech.Synthesize(c.Request.Context(), provider.SpeechRequest{
		Text:      req.Text,
		VoiceName: req.VoiceName,
		Locale:    req.Locale,
		Speed:     req.Speed,
		Pitch:     req.Pitch,
		Style:     req.Style,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, res, "合成成功")
}

type voiceCloneRequest struct {
	Sample string `json:"sample"` // base64 或 data URI
	Text   string `json:"text"`
}

// CloneVoice 声音克隆
func (h *MediaHandler) CloneVoice(c *gin.Context) {
	var req voiceCloneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	sample, _, err := decodeBinary("sample", req.Sample)
	if err != nil {
		failWith(c, err)
		return
	}
	res, err := h.speech.CloneVoice(c.Request.Context(), sample, req.Text)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, res, "克隆成功")
}

// GetVoices 发音人列表，不带 locale 时返回支持的语言
func (h *MediaHandler) GetVoices(c *gin.Context) {
	locale := c.Query("locale")
	if locale == "" {
		success(c, gin.H{"locales": provider.Locales()}, "获取成功")
		return
	}
	voices := provider.Voices(locale)
	if len(voices) == 0 {
		fail(c, http.StatusNotFound, "不支持的语言: "+locale)
		return
	}
	success(c, gin.H{"locale": locale, "voices": voices}, "获取成功")
}
