package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var markdownImagePattern = regexp.MustCompile(`!\[.*?\]\((data:image/[^;]+;base64,[^)]+)\)`)

// 宽高比说明，服务商没有结构化的宽高比参数，只能写进提示词
var aspectRatioDescriptions = map[string]string{
	"1:1":  "square 1024×1024 pixels",
	"9:16": "portrait 1080×1920 pixels",
	"16:9": "landscape 1920×1080 pixels",
	"4:5":  "Instagram 1080×1350 pixels",
}

// ImageRequest 图片生成请求
type ImageRequest struct {
	Prompt        string
	Reference     []byte // 可选参考图
	ReferenceMIME string // image/png、image/jpeg 或 image/webp
	AspectRatio   string
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type contentPart struct {
	InlineData *inlineData `json:"inline_data,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type imageContent struct {
	Parts []contentPart `json:"parts"`
}

type imageGenerationRequest struct {
	Contents []imageContent `json:"contents"`
}

type imageGenerationResponse struct {
	Status     int    `json:"status"`
	Msg        string `json:"msg"`
	Candidates []struct {
		Content struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// AspectRatioInstruction 生成追加在提示词后面的宽高比说明，未知比例原样使用
func AspectRatioInstruction(aspectRatio string) string {
	if aspectRatio == "" {
		return ""
	}
	desc, ok := aspectRatioDescriptions[aspectRatio]
	if !ok {
		desc = aspectRatio
	}
	return fmt.Sprintf("\n\nVery important: the image must have an aspect ratio of exactly %s. The image must be %s.", desc, desc)
}

// ExtractImageFromMarkdown 从 markdown 图片链接中取出 data URI
func ExtractImageFromMarkdown(text string) (string, bool) {
	m := markdownImagePattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// GenerateImage 同步生成图片，返回 data:image/...;base64,... 形式的 URI
func (g *Gateway) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	const op = "generate_image"
	if strings.TrimSpace(req.Prompt) == "" {
		return "", &ProviderError{Op: op, Message: "提示词不能为空"}
	}

	parts := make([]contentPart, 0, 2)
	if len(req.Reference) > 0 {
		mime := req.ReferenceMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, contentPart{InlineData: &inlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(req.Reference),
		}})
	}
	parts = append(parts, contentPart{Text: req.Prompt + AspectRatioInstruction(req.AspectRatio)})

	r, cancel := g.request(ctx, time.Duration(g.cfg.ImageTimeout)*time.Second)
	defer cancel()

	resp, err := r.SetBody(imageGenerationRequest{Contents: []imageContent{{Parts: parts}}}).Post(g.cfg.ImagePath)
	if err != nil {
		return "", transportError(op, err)
	}
	if perr := httpError(op, resp); perr != nil {
		return "", perr
	}

	var out imageGenerationResponse
	if err := decode(op, resp, &out); err != nil {
		return "", err
	}
	if out.Status != 0 {
		msg := out.Msg
		if msg == "" {
			msg = "图片生成失败"
		}
		return "", &ProviderError{Op: op, StatusCode: resp.StatusCode(), Code: out.Status, Message: msg}
	}

	var text string
	if len(out.Candidates) > 0 && len(out.Candidates[0].Content.Parts) > 0 {
		text = out.Candidates[0].Content.Parts[0].Text
	}
	uri, ok := ExtractImageFromMarkdown(text)
	if !ok {
		return "", &ProviderError{Op: op, StatusCode: resp.StatusCode(), Message: "响应中未找到图片", Err: ErrNoImageFound}
	}

	g.logger.Debugf("图片生成完成，data URI 长度 %d", len(uri))
	return uri, nil
}
