package remux

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"

	"samco-studio/app/utils/downloader"
)

// Source 可读取的媒体来源
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	// Ext 文件扩展名，不带点，未知时返回空
	Ext() string
	String() string
}

// URLSource 远程地址
type URLSource struct {
	URL    string
	Config *downloader.DownloadConfig
}

func (s URLSource) Fetch(ctx context.Context) ([]byte, error) {
	data, _, err := downloader.FetchBytes(ctx, s.URL, s.Config)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("下载内容为空")
	}
	return data, nil
}

func (s URLSource) Ext() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
}

func (s URLSource) String() string {
	return s.URL
}

// BlobSource 内存中的数据
type BlobSource struct {
	Data      []byte
	Extension string
}

func (s BlobSource) Fetch(ctx context.Context) ([]byte, error) {
	if len(s.Data) == 0 {
		return nil, errors.New("数据为空")
	}
	return s.Data, nil
}

func (s BlobSource) Ext() string {
	return strings.TrimPrefix(strings.ToLower(s.Extension), ".")
}

func (s BlobSource) String() string {
	return "blob"
}

// ExtFromMIME 常见音频 MIME 对应的扩展名
func ExtFromMIME(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	switch strings.TrimSpace(strings.ToLower(mime)) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4", "audio/aac", "audio/x-m4a":
		return "m4a"
	default:
		return ""
	}
}
