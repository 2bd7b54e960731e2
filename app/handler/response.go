package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"samco-studio/app/poller"
	"samco-studio/app/provider"
	"samco-studio/app/remux"
	"samco-studio/app/service"
	"samco-studio/app/storage"

	"github.com/gin-gonic/gin"
)

// ApiResponse 统一的API响应格式
type ApiResponse struct {
	Code    int    `json:"code"`    // 状态码，0表示成功
	Message string `json:"message"` // 响应消息
	Data    any    `json:"data"`    // 响应数据
}

// 创建成功响应
func success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// 创建错误响应
func fail(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    statusCode,
		Message: message,
		Data:    nil,
	})
}

// StatusFor 错误对应的 HTTP 状态码
func StatusFor(err error) int {
	var (
		verr     *service.ValidationError
		perr     *provider.ProviderError
		jobErr   *poller.JobFailedError
		timeout  *poller.PollTimeoutError
		missing  *poller.MissingResultError
		remuxErr *remux.RemuxError
	)
	switch {
	case errors.Is(err, provider.ErrVoiceCloneUnsupported):
		return http.StatusNotImplemented
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &jobErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &missing), errors.As(err, &perr), errors.As(err, &remuxErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// failWith 按错误类型返回对应状态码
func failWith(c *gin.Context, err error) {
	_ = c.Error(err)
	fail(c, StatusFor(err), err.Error())
}

// decodeBinary 解码 base64 或 data URI 形式的上传内容
func decodeBinary(field, value string) ([]byte, string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, "", nil
	}
	if strings.HasPrefix(value, "data:") {
		mimeType, data, err := storage.DecodeDataURI(value)
		if err != nil {
			return nil, "", &service.ValidationError{Field: field, Message: err.Error()}
		}
		return data, mimeType, nil
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, "", &service.ValidationError{Field: field, Message: "base64 解码失败"}
	}
	return data, "", nil
}
