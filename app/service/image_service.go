package service

import (
	"context"
	"net/http"
	"strings"

	"samco-studio/app/logger"
	"samco-studio/app/model"
	"samco-studio/app/provider"
	"samco-studio/app/storage"

	"go.uber.org/zap"
)

// ImageGenerator 图片生成能力
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req provider.ImageRequest) (string, error)
	ImageModel() string
}

// ImageJob 图片生成请求
type ImageJob struct {
	Prompt       string
	AspectRatio  string
	Reference    []byte
	ReferenceURL string
}

// ImageResult 图片生成结果
type ImageResult struct {
	URL          string            `json:"url"`
	ThumbnailURL string            `json:"thumbnail_url,omitempty"`
	MimeType     string            `json:"mime_type"`
	Generation   *model.Generation `json:"generation,omitempty"`
}

// ImageService 图片生成编排
type ImageService struct {
	gateway ImageGenerator
	store   *storage.Store
	history *HistoryService
	log     *logger.Logger
}

func NewImageService(gw ImageGenerator, store *storage.Store, history *HistoryService, log *logger.Logger) *ImageService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ImageService{gateway: gw, store: store, history: history, log: log.Named("image")}
}

var supportedReferenceTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// Generate 生成图片并保存
func (s *ImageService) Generate(ctx context.Context, job ImageJob) (*ImageResult, error) {
	if strings.TrimSpace(job.Prompt) == "" {
		return nil, invalid("prompt", "不能为空")
	}

	req := provider.ImageRequest{Prompt: job.Prompt, AspectRatio: job.AspectRatio}
	mode := model.ModeTextToImage
	if len(job.Reference) > 0 {
		mime := http.DetectContentType(job.Reference)
		if !supportedReferenceTypes[mime] {
			return nil, invalid("reference", "参考图只支持 PNG、JPEG、WEBP")
		}
		req.Reference = job.Reference
		req.ReferenceMIME = mime
		mode = model.ModeImageToImage
	}

	uri, err := s.gateway.GenerateImage(ctx, req)
	if err != nil {
		return nil, err
	}

	artifact, mimeType, err := s.store.SaveDataURI(storage.KindImage, uri)
	if err != nil {
		return nil, err
	}
	result := &ImageResult{URL: artifact.URL, MimeType: mimeType}

	if _, data, err := storage.DecodeDataURI(uri); err == nil {
		if thumb, err := s.store.Thumbnail(artifact, data); err != nil {
			s.log.Warn("生成缩略图失败", zap.Error(err))
		} else {
			result.ThumbnailURL = thumb.URL
		}
	}

	metadata := model.JSONMap{"mime_type": mimeType, "size": artifact.Size}
	if result.ThumbnailURL != "" {
		metadata["thumbnail_url"] = result.ThumbnailURL
	}
	result.Generation = s.history.Record(ctx, &model.Generation{
		Type:         model.GenerationTypeImage,
		Mode:         mode,
		AITool:       s.gateway.ImageModel(),
		Prompt:       model.StringPtr(job.Prompt),
		OutputURL:    result.URL,
		ReferenceURL: model.StringPtr(job.ReferenceURL),
		Settings:     model.JSONMap{"aspect_ratio": job.AspectRatio},
		Metadata:     metadata,
	})
	return result, nil
}
