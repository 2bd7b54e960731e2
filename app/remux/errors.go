package remux

import (
	"errors"
	"fmt"
)

var (
	// ErrJobUsed 任务只能执行一次
	ErrJobUsed = errors.New("job already used")

	errEmptyOutput = errors.New("合成结果为空")
)

// RemuxError 音视频合成过程中的任何失败。视频本身已经生成成功，只是配音没有合进去。
type RemuxError struct {
	Stage string
	Err   error
}

func (e *RemuxError) Error() string {
	return fmt.Sprintf("视频已生成成功，但合并音频失败 (%s): %v", e.Stage, e.Err)
}

func (e *RemuxError) Unwrap() error {
	return e.Err
}
