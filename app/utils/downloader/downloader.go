package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"resty.dev/v3"
)

// ErrTooLarge 响应体超过 MaxBytes
var ErrTooLarge = errors.New("响应过大")

// DownloadConfig 下载配置
type DownloadConfig struct {
	UserAgent     string        // User-Agent
	Timeout       time.Duration // 超时时间
	UseTemp       bool          // 是否使用临时文件
	OverwriteFile bool          // 是否覆盖已存在的文件
	MaxBytes      int64         // 最大允许的响应大小，0 表示不限制
}

// DefaultDownloadConfig 默认下载配置
func DefaultDownloadConfig() *DownloadConfig {
	return &DownloadConfig{
		UserAgent:     "samco-studio/1.0",
		Timeout:       time.Minute * 10,
		UseTemp:       true,
		OverwriteFile: false,
		MaxBytes:      1024 * 1024 * 1024, // 1GB
	}
}

// DownloadResult 下载结果
type DownloadResult struct {
	Size        int64         // 下载的文件大小
	Duration    time.Duration // 下载耗时
	Speed       float64       // 下载速度 (MB/s)
	Path        string        // 保存的文件路径，仅落盘时有值
	ContentType string
}

func newClient(config *DownloadConfig) *resty.Client {
	client := resty.New()
	client.SetTimeout(config.Timeout)
	client.SetHeader("User-Agent", config.UserAgent)
	client.SetHeader("Accept", "*/*")
	// 禁用压缩，避免 Content-Length 不匹配
	client.SetHeader("Accept-Encoding", "identity")
	// 允许最多 10 次重定向
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return client
}

// FetchBytes 把 URL 的完整内容读入内存
func FetchBytes(ctx context.Context, url string, config *DownloadConfig) ([]byte, *DownloadResult, error) {
	if config == nil {
		config = DefaultDownloadConfig()
	}

	client := newClient(config)
	defer client.Close()

	startTime := time.Now()
	// 不让 resty 读取响应体，边读边检查大小
	resp, err := client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode() != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, nil, fmt.Errorf("HTTP请求失败，状态码: %d, 响应: %s", resp.StatusCode(), body)
	}

	if cl := resp.RawResponse.ContentLength; config.MaxBytes > 0 && cl > config.MaxBytes {
		return nil, nil, fmt.Errorf("%w: %d bytes, 上限 %d bytes", ErrTooLarge, cl, config.MaxBytes)
	}

	var reader io.Reader = resp.Body
	if config.MaxBytes > 0 {
		// 多读一个字节用来判断是否超限
		reader = io.LimitReader(resp.Body, config.MaxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("读取响应失败: %w", err)
	}
	written := int64(len(data))
	if config.MaxBytes > 0 && written > config.MaxBytes {
		return nil, nil, fmt.Errorf("%w: 超过上限 %d bytes", ErrTooLarge, config.MaxBytes)
	}

	// 验证文件大小（如果服务器提供了Content-Length）
	if cl := resp.RawResponse.ContentLength; cl > 0 && written != cl {
		return nil, nil, fmt.Errorf("下载不完整: 期望 %d bytes, 实际 %d bytes", cl, written)
	}

	duration := time.Since(startTime)
	result := &DownloadResult{
		Size:        written,
		Duration:    duration,
		Speed:       speed(written, duration),
		ContentType: resp.Header().Get("Content-Type"),
	}
	return data, result, nil
}

// DownloadFromURL 下载到指定路径
func DownloadFromURL(ctx context.Context, url, savePath string, config *DownloadConfig) (*DownloadResult, error) {
	if config == nil {
		config = DefaultDownloadConfig()
	}

	// 检查文件是否已存在
	if !config.OverwriteFile {
		if _, err := os.Stat(savePath); err == nil {
			return nil, fmt.Errorf("文件已存在: %s", savePath)
		}
	}

	data, result, err := FetchBytes(ctx, url, config)
	if err != nil {
		return nil, err
	}

	// 确保保存目录存在
	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return nil, fmt.Errorf("创建保存目录失败: %w", err)
	}

	// 决定使用的文件路径
	targetPath := savePath
	if config.UseTemp {
		targetPath = savePath + ".tmp"
	}

	if err := os.WriteFile(targetPath, data, 0644); err != nil {
		os.Remove(targetPath)
		return nil, fmt.Errorf("写入文件内容失败: %w", err)
	}

	// 如果使用临时文件，重命名为最终文件名
	if config.UseTemp {
		if err := os.Rename(targetPath, savePath); err != nil {
			os.Remove(targetPath)
			return nil, fmt.Errorf("重命名文件失败: %w", err)
		}
	}

	result.Path = savePath
	return result, nil
}

func speed(written int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(written) / d.Seconds() / 1024 / 1024 // MB/s
}
