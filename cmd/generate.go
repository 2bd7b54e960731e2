package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"samco-studio/app/config"
	"samco-studio/app/database"
	"samco-studio/app/logger"
	"samco-studio/app/provider"
	"samco-studio/app/server"
	"samco-studio/app/service"
	"samco-studio/app/utils/downloader"
	"samco-studio/app/utils/pathhelper"

	"github.com/spf13/cobra"
)

// generateFlags 各子命令各自一份，避免默认值互相覆盖
type generateFlags struct {
	prompt         string
	negativePrompt string
	aspectRatio    string
	duration       string
	modelName      string
	image          string
	voiceText      string
	voiceAudio     string
	voiceName      string
	locale         string
	speed          string
	pitch          string
	style          string
	output         string
}

var videoFlags, imageFlags, speechFlags generateFlags

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "在命令行中生成内容",
}

var generateVideoCmd = &cobra.Command{
	Use:   "video",
	Short: "生成视频，可选合成配音",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, cfg *config.Config, svcs *server.Services, log *logger.Logger) error {
			job := service.VideoJob{
				Prompt:         videoFlags.prompt,
				NegativePrompt: videoFlags.negativePrompt,
				AspectRatio:    videoFlags.aspectRatio,
				Duration:       videoFlags.duration,
				ModelName:      videoFlags.modelName,
			}
			if videoFlags.image != "" {
				data, err := os.ReadFile(videoFlags.image)
				if err != nil {
					return fmt.Errorf("读取参考图失败: %w", err)
				}
				job.Image = data
				job.ReferenceURL = videoFlags.image
			}
			if videoFlags.voiceText != "" || videoFlags.voiceAudio != "" {
				job.VoiceOver = &service.VoiceOver{
					Text:      videoFlags.voiceText,
					VoiceName: videoFlags.voiceName,
					Locale:    videoFlags.locale,
					Speed:     videoFlags.speed,
					Pitch:     videoFlags.pitch,
					Style:     videoFlags.style,
				}
				if videoFlags.voiceAudio != "" {
					data, err := os.ReadFile(videoFlags.voiceAudio)
					if err != nil {
						return fmt.Errorf("读取配音文件失败: %w", err)
					}
					job.VoiceOver.Audio = data
					job.VoiceOver.AudioMIME = mimeForExt(filepath.Ext(videoFlags.voiceAudio))
				}
			}

			last := -1
			res, err := svcs.Video.Generate(ctx, job, func(stage service.RunStage, p float64) {
				if int(p) != last {
					last = int(p)
					log.Infof("[%s] %d%%", stage, last)
				}
			})
			if err != nil {
				return err
			}
			if res.Note != "" {
				log.Warnf("%s", res.Note)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task_id: %s\noutput_url: %s\n", res.TaskID, res.OutputURL)
			return saveOutput(ctx, cfg, cmd.OutOrStdout(), res.OutputURL, videoFlags.output)
		})
	},
}

var generateImageCmd = &cobra.Command{
	Use:   "image",
	Short: "生成图片",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, cfg *config.Config, svcs *server.Services, log *logger.Logger) error {
			job := service.ImageJob{Prompt: imageFlags.prompt, AspectRatio: imageFlags.aspectRatio}
			if imageFlags.image != "" {
				data, err := os.ReadFile(imageFlags.image)
				if err != nil {
					return fmt.Errorf("读取参考图失败: %w", err)
				}
				job.Reference = data
				job.ReferenceURL = imageFlags.image
			}
			res, err := svcs.Image.Generate(ctx, job)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "output_url: %s\n", res.URL)
			return saveOutput(ctx, cfg, cmd.OutOrStdout(), res.URL, imageFlags.output)
		})
	},
}

var generateSpeechCmd = &cobra.Command{
	Use:   "speech",
	Short: "合成语音",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, cfg *config.Config, svcs *server.Services, log *logger.Logger) error {
			res, err := svcs.Speech.Synthesize(ctx, provider.SpeechRequest{
				Text:      speechFlags.voiceText,
				VoiceName: speechFlags.voiceName,
				Locale:    speechFlags.locale,
				Speed:     speechFlags.speed,
				Pitch:     speechFlags.pitch,
				Style:     speechFlags.style,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "output_url: %s\n", res.URL)
			return saveOutput(ctx, cfg, cmd.OutOrStdout(), res.URL, speechFlags.output)
		})
	},
}

// withServices 加载配置并组装服务，Ctrl+C 会取消正在进行的生成
func withServices(fn func(ctx context.Context, cfg *config.Config, svcs *server.Services, log *logger.Logger) error) error {
	cfg := config.Load()
	log := logger.New(cfg.Log)
	defer log.Sync()

	if err := database.Init(cfg, log); err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	defer database.Close()

	svcs, err := server.NewServices(cfg, database.DB, log)
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, cfg, svcs, log)
}

// saveOutput 指定了 --output 时把结果保存到本地
func saveOutput(ctx context.Context, cfg *config.Config, out io.Writer, url, output string) error {
	if output == "" {
		return nil
	}
	dest := pathhelper.WithExt(output, pathhelper.URLExt(url))

	if local, ok := pathhelper.ArtifactPath(url, cfg.Storage.PublicBaseURL, cfg.Storage.Root); ok {
		if err := copyFile(local, dest); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved: %s\n", dest)
		return nil
	}

	dl := downloader.DefaultDownloadConfig()
	dl.OverwriteFile = true
	res, err := downloader.DownloadFromURL(ctx, url, dest, dl)
	if err != nil {
		return fmt.Errorf("下载结果失败: %w", err)
	}
	fmt.Fprintf(out, "saved: %s (%d bytes, %.2f MB/s)\n", res.Path, res.Size, res.Speed)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("打开产物失败: %w", err)
	}
	defer in.Close()
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func mimeForExt(ext string) string {
	switch ext {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	default:
		return "audio/webm"
	}
}

func init() {
	f := generateVideoCmd.Flags()
	f.StringVarP(&videoFlags.output, "output", "o", "", "把结果保存到本地文件")
	f.StringVarP(&videoFlags.prompt, "prompt", "p", "", "提示词")
	f.StringVar(&videoFlags.negativePrompt, "negative-prompt", "", "反向提示词")
	f.StringVar(&videoFlags.aspectRatio, "aspect-ratio", "9:16", "画面比例")
	f.StringVar(&videoFlags.duration, "duration", "5", "时长（5 或 10 秒）")
	f.StringVar(&videoFlags.modelName, "model", "", "视频模型")
	f.StringVar(&videoFlags.image, "image", "", "参考图，提供时走图生视频")
	f.StringVar(&videoFlags.voiceText, "voice-text", "", "配音文本")
	f.StringVar(&videoFlags.voiceAudio, "voice-audio", "", "配音音频文件")
	f.StringVar(&videoFlags.voiceName, "voice", "", "发音人")
	f.StringVar(&videoFlags.locale, "locale", "ar-SA", "配音语言")
	f.StringVar(&videoFlags.speed, "speed", "medium", "语速")
	f.StringVar(&videoFlags.pitch, "pitch", "medium", "音调")
	f.StringVar(&videoFlags.style, "style", "", "风格：cinematic、calm、energetic、child")

	f = generateImageCmd.Flags()
	f.StringVarP(&imageFlags.output, "output", "o", "", "把结果保存到本地文件")
	f.StringVarP(&imageFlags.prompt, "prompt", "p", "", "提示词")
	f.StringVar(&imageFlags.aspectRatio, "aspect-ratio", "1:1", "画面比例")
	f.StringVar(&imageFlags.image, "reference", "", "参考图")

	f = generateSpeechCmd.Flags()
	f.StringVarP(&speechFlags.output, "output", "o", "", "把结果保存到本地文件")
	f.StringVarP(&speechFlags.voiceText, "text", "t", "", "要朗读的文本")
	f.StringVar(&speechFlags.voiceName, "voice", "", "发音人")
	f.StringVar(&speechFlags.locale, "locale", "ar-SA", "语言")
	f.StringVar(&speechFlags.speed, "speed", "medium", "语速")
	f.StringVar(&speechFlags.pitch, "pitch", "medium", "音调")
	f.StringVar(&speechFlags.style, "style", "", "风格：cinematic、calm、energetic、child")

	generateCmd.AddCommand(generateVideoCmd, generateImageCmd, generateSpeechCmd)
	rootCmd.AddCommand(generateCmd)
}
