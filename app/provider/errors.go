package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImageFound 响应文本中没有内嵌的 data URI 图片
	ErrNoImageFound = errors.New("no image found")
	// ErrEmptyAudio 语音接口返回了空的音频
	ErrEmptyAudio = errors.New("empty audio payload")
	// ErrVoiceCloneUnsupported 当前服务商不支持声音克隆
	ErrVoiceCloneUnsupported = errors.New("voice cloning is not supported by the configured provider")
)

// ProviderError 单次请求失败：网络错误、HTTP 非 2xx、或服务商返回的业务错误码
type ProviderError struct {
	Op         string // 操作名，如 submit_text2video
	StatusCode int    // HTTP 状态码，网络错误时为 0
	Code       int    // 服务商业务码
	Message    string // 服务商返回的提示信息
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.StatusCode != 0 && e.Code != 0:
		return fmt.Sprintf("%s 失败 (HTTP %d, code %d): %s", e.Op, e.StatusCode, e.Code, msg)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s 失败 (HTTP %d): %s", e.Op, e.StatusCode, msg)
	default:
		return fmt.Sprintf("%s 失败: %s", e.Op, msg)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransport 是否为网络层错误（没有拿到任何 HTTP 响应）
func (e *ProviderError) IsTransport() bool {
	return e.StatusCode == 0 && e.Code == 0 && e.Err != nil
}
