package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"samco-studio/app/config"
	"samco-studio/app/logger"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Kind 产物分类，对应存储根目录下的一级目录
type Kind string

const (
	KindImage Kind = "images"
	KindVideo Kind = "videos"
	KindAudio Kind = "audio"
)

// Artifact 已保存的产物
type Artifact struct {
	Path    string `json:"-"`
	RelPath string `json:"path"`
	URL     string `json:"url"`
	Size    int64  `json:"size"`
}

// Store 本地文件产物存储，按 <kind>/<日期>/<uuid>.<ext> 组织
type Store struct {
	root    string
	baseURL string
	logger  *logger.Logger
	now     func() time.Time
}

// New 创建存储
func New(cfg config.StorageConfig, log *logger.Logger) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("存储目录未设置")
	}
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		root:    cfg.Root,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:  log.Named("storage"),
		now:     time.Now,
	}, nil
}

// Root 存储根目录
func (s *Store) Root() string {
	return s.root
}

// Save 写入数据并返回可访问的地址
func (s *Store) Save(kind Kind, ext string, data []byte) (*Artifact, error) {
	if len(data) == 0 {
		return nil, errors.New("产物内容为空")
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	rel := path.Join(string(kind), s.now().Format(dateLayout), uuid.NewString()+"."+ext)
	return s.write(rel, data)
}

func (s *Store) write(rel string, data []byte) (*Artifact, error) {
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return nil, fmt.Errorf("写入产物失败: %w", err)
	}
	s.logger.Debugf("产物已保存: %s (%d 字节)", rel, len(data))
	return &Artifact{
		Path:    full,
		RelPath: rel,
		URL:     s.URLFor(rel),
		Size:    int64(len(data)),
	}, nil
}

// URLFor 相对路径对应的公开地址
func (s *Store) URLFor(rel string) string {
	if s.baseURL == "" {
		return "/" + rel
	}
	return s.baseURL + "/" + rel
}

// DecodeDataURI 解析 data:<mime>;base64,<data>
func DecodeDataURI(uri string) (mimeType string, data []byte, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, errors.New("不是 data URI")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return "", nil, errors.New("data URI 格式错误")
	}
	mimeType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return "", nil, errors.New("仅支持 base64 编码的 data URI")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("base64 解码失败: %w", err)
	}
	return mimeType, data, nil
}

// ExtForMIME MIME 对应的扩展名
func ExtForMIME(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "audio/wav", "audio/x-wav":
		return "wav"
	case "audio/mpeg":
		return "mp3"
	case "video/mp4":
		return "mp4"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

// SaveDataURI 保存图片生成返回的 data URI
func (s *Store) SaveDataURI(kind Kind, uri string) (*Artifact, string, error) {
	mimeType, data, err := DecodeDataURI(uri)
	if err != nil {
		return nil, "", err
	}
	a, err := s.Save(kind, ExtForMIME(mimeType), data)
	return a, mimeType, err
}

// Cleanup 删除早于 olderThan 的日期目录，返回删除的目录数
func (s *Store) Cleanup(olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, kind := range []Kind{KindImage, KindVideo, KindAudio} {
		kindDir := filepath.Join(s.root, string(kind))
		entries, err := os.ReadDir(kindDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("读取目录失败: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			day, err := time.ParseInLocation(dateLayout, entry.Name(), s.now().Location())
			if err != nil {
				continue
			}
			// 整天都早于截止时间才删除
			if !day.AddDate(0, 0, 1).Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(kindDir, entry.Name())); err != nil {
				s.logger.Warnf("删除过期目录失败: %s: %v", entry.Name(), err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
