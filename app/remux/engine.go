package remux

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"samco-studio/app/config"
)

// Engine 媒体处理引擎：在私有工作目录里按文件名暂存数据并执行命令
type Engine interface {
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	DeleteFile(name string) error
	Exec(ctx context.Context, args ...string) error
}

// FFmpegEngine 通过 os/exec 调用 ffmpeg 的引擎实现
type FFmpegEngine struct {
	binary string
	dir    string
}

// NewFFmpegEngine 在 workDir 下创建私有工作目录，workDir 为空时使用系统临时目录
func NewFFmpegEngine(binary, workDir string) (*FFmpegEngine, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("未找到 ffmpeg 可执行文件 %q: %w", binary, err)
	}
	if workDir != "" {
		if err := os.MkdirAll(workDir, 0755); err != nil {
			return nil, fmt.Errorf("创建工作目录失败: %w", err)
		}
	}
	dir, err := os.MkdirTemp(workDir, "samco-remux-")
	if err != nil {
		return nil, fmt.Errorf("创建工作目录失败: %w", err)
	}
	return &FFmpegEngine{binary: path, dir: dir}, nil
}

// Dir 工作目录
func (e *FFmpegEngine) Dir() string {
	return e.dir
}

func (e *FFmpegEngine) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("非法的文件名: %q", name)
	}
	return filepath.Join(e.dir, name), nil
}

func (e *FFmpegEngine) WriteFile(name string, data []byte) error {
	p, err := e.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

func (e *FFmpegEngine) ReadFile(name string) ([]byte, error) {
	p, err := e.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (e *FFmpegEngine) DeleteFile(name string) error {
	p, err := e.path(name)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// Exec 在工作目录中执行 ffmpeg，失败时附带 stderr 的末尾几行
func (e *FFmpegEngine) Exec(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Dir = e.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg 执行失败: %w: %s", err, tailLines(stderr.String(), 5))
	}
	return nil
}

// Close 删除工作目录
func (e *FFmpegEngine) Close() error {
	return os.RemoveAll(e.dir)
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// FFmpegLoader 返回创建 FFmpegEngine 的加载函数，加载时会执行一次 -version 确认可用
func FFmpegLoader(cfg config.RemuxConfig) Loader {
	return func(ctx context.Context) (Engine, error) {
		engine, err := NewFFmpegEngine(ffmpegBinary(cfg), cfg.WorkDir)
		if err != nil {
			return nil, err
		}
		if err := engine.Exec(ctx, "-hide_banner", "-version"); err != nil {
			_ = engine.Close()
			return nil, err
		}
		return engine, nil
	}
}

func ffmpegBinary(cfg config.RemuxConfig) string {
	if cfg.FFmpegPath == "" {
		return "ffmpeg"
	}
	return cfg.FFmpegPath
}

// IsRemuxSupported 检查配置的 ffmpeg 是否可用
func IsRemuxSupported(cfg config.RemuxConfig) bool {
	if !cfg.Enabled {
		return false
	}
	_, err := exec.LookPath(ffmpegBinary(cfg))
	return err == nil
}
