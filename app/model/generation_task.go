package model

import "fmt"

// TaskKind 异步视频任务类型，决定查询接口
type TaskKind string

const (
	TaskKindTextToVideo  TaskKind = "text2video"
	TaskKindImageToVideo TaskKind = "image2video"
)

// Valid 检查任务类型是否受支持
func (k TaskKind) Valid() bool {
	return k == TaskKindTextToVideo || k == TaskKindImageToVideo
}

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusSubmitted  TaskStatus = "submitted"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSucceeded  TaskStatus = "succeeded"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal 终态之后不再发生任何变化
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusSubmitted:
		return 0
	case TaskStatusProcessing:
		return 1
	default:
		return 2
	}
}

// GenerationTask 一次异步生成任务，只属于发起它的调用流程
type GenerationTask struct {
	TaskID        string
	Kind          TaskKind
	Status        TaskStatus
	ResultURL     string
	FailureReason string
}

// NewGenerationTask 创建刚提交的任务
func NewGenerationTask(taskID string, kind TaskKind) *GenerationTask {
	return &GenerationTask{
		TaskID: taskID,
		Kind:   kind,
		Status: TaskStatusSubmitted,
	}
}

// Apply 根据一次查询结果推进任务状态。状态只前进不后退，终态不可变。
func (t *GenerationTask) Apply(status TaskStatus, resultURL, failureReason string) error {
	if t.Status.IsTerminal() {
		if status == t.Status {
			return nil
		}
		return fmt.Errorf("任务 %s 已处于终态 %s，忽略状态 %s", t.TaskID, t.Status, status)
	}
	if status.rank() < t.Status.rank() {
		// 服务端偶尔会回报旧状态，保持当前状态
		return nil
	}

	t.Status = status
	switch status {
	case TaskStatusSucceeded:
		t.ResultURL = resultURL
	case TaskStatusFailed:
		t.FailureReason = failureReason
	}
	return nil
}
