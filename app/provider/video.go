package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"samco-studio/app/model"
)

// TextToVideoRequest 文生视频请求，字段名与服务商保持一致
type TextToVideoRequest struct {
	ModelName      string   `json:"model_name,omitempty"`
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	CfgScale       *float64 `json:"cfg_scale,omitempty"`
	AspectRatio    string   `json:"aspect_ratio,omitempty"`
	Duration       string   `json:"duration,omitempty"`
	CallbackURL    string   `json:"callback_url,omitempty"`
	ExternalTaskID string   `json:"external_task_id,omitempty"`
}

// ImageToVideoRequest 图生视频请求，Image 为不带前缀的 base64
type ImageToVideoRequest struct {
	ModelName string `json:"model_name,omitempty"`
	Image     string `json:"image"`
	Prompt    string `json:"prompt,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// TaskSnapshot 一次查询看到的任务状态
type TaskSnapshot struct {
	TaskID         string
	Status         model.TaskStatus
	RawStatus      string
	ResultURL      string
	FailureMessage string
}

// VideoResult 生成的视频
type VideoResult struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Duration string `json:"duration"`
}

type videoEnvelope struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Data      videoData `json:"data"`
}

type videoData struct {
	TaskID        string `json:"task_id"`
	TaskStatus    string `json:"task_status"`
	TaskStatusMsg string `json:"task_status_msg"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
	TaskResult    *struct {
		Videos []VideoResult `json:"videos"`
	} `json:"task_result"`
}

// SubmitTextToVideo 提交文生视频任务，返回服务商分配的 task_id
func (g *Gateway) SubmitTextToVideo(ctx context.Context, req TextToVideoRequest) (string, error) {
	const op = "submit_text2video"
	if strings.TrimSpace(req.Prompt) == "" {
		return "", &ProviderError{Op: op, Message: "提示词不能为空"}
	}
	if req.ModelName == "" {
		req.ModelName = g.cfg.VideoModel
	}
	return g.submitVideo(ctx, op, g.cfg.TextVideoPath, req)
}

// SubmitImageToVideo 提交图生视频任务
func (g *Gateway) SubmitImageToVideo(ctx context.Context, req ImageToVideoRequest) (string, error) {
	const op = "submit_image2video"
	if req.Image == "" {
		return "", &ProviderError{Op: op, Message: "参考图片不能为空"}
	}
	if req.ModelName == "" {
		req.ModelName = g.cfg.VideoModel
	}
	return g.submitVideo(ctx, op, g.cfg.ImgVideoPath, req)
}

func (g *Gateway) submitVideo(ctx context.Context, op, path string, body any) (string, error) {
	r, cancel := g.request(ctx, 0)
	defer cancel()

	resp, err := r.SetBody(body).Post(path)
	if err != nil {
		return "", transportError(op, err)
	}
	if perr := httpError(op, resp); perr != nil {
		return "", perr
	}

	var env videoEnvelope
	if err := decode(op, resp, &env); err != nil {
		return "", err
	}
	if env.Code != 0 {
		msg := env.Message
		if msg == "" {
			msg = "创建视频任务失败"
		}
		return "", &ProviderError{Op: op, StatusCode: resp.StatusCode(), Code: env.Code, Message: msg}
	}
	if env.Data.TaskID == "" {
		return "", &ProviderError{Op: op, StatusCode: resp.StatusCode(), Message: "响应中缺少 task_id"}
	}

	g.logger.Debugf("视频任务已提交: %s (%s)", env.Data.TaskID, env.Data.TaskStatus)
	return env.Data.TaskID, nil
}

// QueryTask 查询任务状态。网络或协议错误返回 ProviderError；
// 任务本身失败不是错误，而是 Status 为 Failed 的快照。
func (g *Gateway) QueryTask(ctx context.Context, taskID string, kind model.TaskKind) (TaskSnapshot, error) {
	const op = "query_task"
	var path string
	switch kind {
	case model.TaskKindTextToVideo:
		path = g.cfg.TextVideoPath
	case model.TaskKindImageToVideo:
		path = g.cfg.ImgVideoPath
	default:
		return TaskSnapshot{}, &ProviderError{Op: op, Message: fmt.Sprintf("未知任务类型: %s", kind)}
	}

	r, cancel := g.request(ctx, 0)
	defer cancel()

	resp, err := r.Get(strings.TrimRight(path, "/") + "/" + url.PathEscape(taskID))
	if err != nil {
		return TaskSnapshot{}, transportError(op, err)
	}
	if perr := httpError(op, resp); perr != nil {
		return TaskSnapshot{}, perr
	}

	var env videoEnvelope
	if err := decode(op, resp, &env); err != nil {
		return TaskSnapshot{}, err
	}
	if env.Code != 0 {
		msg := env.Message
		if msg == "" {
			msg = "查询视频任务失败"
		}
		return TaskSnapshot{}, &ProviderError{Op: op, StatusCode: resp.StatusCode(), Code: env.Code, Message: msg}
	}

	snap := TaskSnapshot{
		TaskID:    taskID,
		RawStatus: env.Data.TaskStatus,
		Status:    MapTaskStatus(env.Data.TaskStatus),
	}
	switch snap.Status {
	case model.TaskStatusSucceeded:
		if env.Data.TaskResult != nil && len(env.Data.TaskResult.Videos) > 0 {
			snap.ResultURL = env.Data.TaskResult.Videos[0].URL
		}
	case model.TaskStatusFailed:
		snap.FailureMessage = env.Data.TaskStatusMsg
	}
	return snap, nil
}

// MapTaskStatus 把服务商状态映射到内部四种状态，未知状态按处理中对待
func MapTaskStatus(raw string) model.TaskStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "submitted":
		return model.TaskStatusSubmitted
	case "processing":
		return model.TaskStatusProcessing
	case "succeed", "succeeded":
		return model.TaskStatusSucceeded
	case "failed":
		return model.TaskStatusFailed
	default:
		return model.TaskStatusProcessing
	}
}
