package poller

import (
	"fmt"
	"time"
)

// JobFailedError 服务商明确报告任务失败，终态，不重试
type JobFailedError struct {
	TaskID  string
	Message string
}

func (e *JobFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "视频生成失败"
	}
	return fmt.Sprintf("任务 %s 失败: %s", e.TaskID, msg)
}

// PollTimeoutError 在尝试次数用尽前任务没有进入终态
type PollTimeoutError struct {
	TaskID   string
	Attempts int
	Waited   time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("任务 %s 超时: 已查询 %d 次，等待约 %s 仍未完成", e.TaskID, e.Attempts, e.Waited)
}

// MissingResultError 服务商声称成功却没有返回视频地址
type MissingResultError struct {
	TaskID string
}

func (e *MissingResultError) Error() string {
	return fmt.Sprintf("任务 %s 已成功但结果中没有视频地址", e.TaskID)
}
