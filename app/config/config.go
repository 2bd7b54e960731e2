package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Provider ProviderConfig `mapstructure:"provider"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Remux    RemuxConfig    `mapstructure:"remux"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Runs     RunsConfig     `mapstructure:"runs"`
	Janitor  JanitorConfig  `mapstructure:"janitor"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug 或 release
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	Dir        string `mapstructure:"dir"`         // 日志目录
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

// ProviderConfig 外部生成服务配置
type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	AppID          string `mapstructure:"app_id"`
	ImageModel     string `mapstructure:"image_model"`
	VideoModel     string `mapstructure:"video_model"`
	RequestTimeout int    `mapstructure:"request_timeout"` // 秒
	ImageTimeout   int    `mapstructure:"image_timeout"`   // 秒，图片生成为阻塞调用

	// 各接口路径，默认按网关约定拼接
	ImagePath     string `mapstructure:"image_path"`
	TextVideoPath string `mapstructure:"text_video_path"`
	ImgVideoPath  string `mapstructure:"image_video_path"`
	SpeechPath    string `mapstructure:"speech_path"`
}

// PollerConfig 任务轮询配置
type PollerConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"`
	IntervalMs       int `mapstructure:"interval_ms"`
	TransportRetries int `mapstructure:"transport_retries"` // 查询网络错误的重试次数，0 表示不重试
}

// RemuxConfig 音视频合成配置
type RemuxConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	WorkDir    string `mapstructure:"work_dir"` // 为空时使用系统临时目录
	Timeout    int    `mapstructure:"timeout"`  // 秒，0 表示不限制
}

// StorageConfig 产物存储配置
type StorageConfig struct {
	Root          string `mapstructure:"root"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RunsConfig 异步生成任务跟踪配置
type RunsConfig struct {
	TTL           int `mapstructure:"ttl"`            // 分钟
	MaxConcurrent int `mapstructure:"max_concurrent"` // 同时执行的视频生成数
}

// JanitorConfig 定期清理配置
type JanitorConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Schedule      string `mapstructure:"schedule"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// PollInterval 返回轮询间隔
func (p PollerConfig) PollInterval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// Budget 返回轮询的总等待预算
func (p PollerConfig) Budget() time.Duration {
	return time.Duration(p.MaxAttempts) * p.PollInterval()
}

func Load() *Config {
	setDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	cfg, err := Decode(viper.GetViper())
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

// Decode 从 viper 实例解析并校验配置
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解码配置: %w", err)
	}

	if config.Storage.PublicBaseURL == "" && config.Server.Port != "" {
		config.Storage.PublicBaseURL = "http://localhost:" + config.Server.Port + "/files"
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置
func setDefaults() {
	SetDefaults(viper.GetViper())
}

// SetDefaults 在指定 viper 实例上设置默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "release")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.dir", "data/logs")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	// 生成服务默认配置
	v.SetDefault("provider.base_url", "https://api-integrations.appmedo.com")
	v.SetDefault("provider.image_model", "gemini-3-pro-image-preview")
	v.SetDefault("provider.video_model", "kling-v2-5-turbo")
	v.SetDefault("provider.request_timeout", 60)
	v.SetDefault("provider.image_timeout", 300) // 5分钟
	v.SetDefault("provider.text_video_path", "/v1/videos/text2video")
	v.SetDefault("provider.image_video_path", "/v1/videos/image2video")
	v.SetDefault("provider.speech_path", "/tts")

	// 轮询默认 120 次 × 5 秒 = 10 分钟
	v.SetDefault("poller.max_attempts", 120)
	v.SetDefault("poller.interval_ms", 5000)
	v.SetDefault("poller.transport_retries", 0)

	v.SetDefault("remux.enabled", true)
	v.SetDefault("remux.ffmpeg_path", "ffmpeg")
	v.SetDefault("remux.timeout", 0)

	v.SetDefault("storage.root", "data/files")
	// 留空时按 server.port 生成
	v.SetDefault("storage.public_base_url", "")

	v.SetDefault("database.path", "data/samco-studio.db")

	v.SetDefault("runs.ttl", 60)
	v.SetDefault("runs.max_concurrent", 4)

	v.SetDefault("janitor.enabled", true)
	v.SetDefault("janitor.schedule", "@every 1h")
	v.SetDefault("janitor.retention_days", 7)
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if strings.TrimSpace(config.Provider.BaseURL) == "" {
		return fmt.Errorf("生成服务地址未设置")
	}
	if config.Poller.MaxAttempts <= 0 {
		return fmt.Errorf("轮询次数必须大于0")
	}
	if config.Poller.IntervalMs <= 0 {
		return fmt.Errorf("轮询间隔必须大于0")
	}
	if config.Poller.TransportRetries < 0 {
		return fmt.Errorf("网络重试次数不能为负数")
	}
	if config.Storage.Root == "" {
		return fmt.Errorf("产物存储目录未设置")
	}
	if config.Janitor.Enabled && config.Janitor.RetentionDays <= 0 {
		return fmt.Errorf("清理保留天数必须大于0")
	}
	return nil
}
