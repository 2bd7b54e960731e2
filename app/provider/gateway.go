package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"samco-studio/app/config"
	"samco-studio/app/logger"

	"resty.dev/v3"
)

// Gateway 外部生成服务的无状态封装。每个方法只发一次请求，不做重试。
type Gateway struct {
	cfg    config.ProviderConfig
	client *resty.Client
	logger *logger.Logger
}

// New 创建网关
func New(cfg config.ProviderConfig, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.VideoModel == "" {
		cfg.VideoModel = "kling-v2-5-turbo"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-3-pro-image-preview"
	}
	if cfg.TextVideoPath == "" {
		cfg.TextVideoPath = "/v1/videos/text2video"
	}
	if cfg.ImgVideoPath == "" {
		cfg.ImgVideoPath = "/v1/videos/image2video"
	}
	if cfg.SpeechPath == "" {
		cfg.SpeechPath = "/tts"
	}
	if cfg.ImagePath == "" {
		cfg.ImagePath = "/v1beta/models/" + cfg.ImageModel + ":generateContent"
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Content-Type", "application/json")
	if cfg.AppID != "" {
		client.SetHeader("X-App-Id", cfg.AppID)
	}
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(time.Duration(cfg.RequestTimeout) * time.Second)
	}

	return &Gateway{
		cfg:    cfg,
		client: client,
		logger: log.Named("provider"),
	}
}

// Close 释放底层 HTTP 客户端
func (g *Gateway) Close() error {
	return g.client.Close()
}

// VideoModel 默认视频模型
func (g *Gateway) VideoModel() string {
	return g.cfg.VideoModel
}

// ImageModel 图片模型
func (g *Gateway) ImageModel() string {
	return g.cfg.ImageModel
}

// request 创建带超时的请求，timeout 为 0 时沿用客户端默认值
func (g *Gateway) request(ctx context.Context, timeout time.Duration) (*resty.Request, context.CancelFunc) {
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	return g.client.R().SetContext(ctx), cancel
}

// transportError 包装网络层错误
func transportError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Message: err.Error(), Err: err}
}

// httpError 检查 HTTP 状态码
func httpError(op string, resp *resty.Response) *ProviderError {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}
	msg := strings.TrimSpace(resp.String())
	// 尽量取出服务商自带的 message
	var body struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(resp.Bytes(), &body) == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Msg != "":
			msg = body.Msg
		case body.Error != "":
			msg = body.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return &ProviderError{Op: op, StatusCode: resp.StatusCode(), Message: msg}
}

// decode 解析 JSON 响应
func decode(op string, resp *resty.Response, out any) error {
	if err := json.Unmarshal(resp.Bytes(), out); err != nil {
		return &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("响应解析失败: %v", err),
			Err:        err,
		}
	}
	return nil
}
