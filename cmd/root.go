package cmd

import (
	"os"
	"strings"

	"samco-studio/app/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "samco-studio",
	Short:   "AI 内容生成工作室",
	Long:    "调用外部生成服务制作图片、视频和配音，并可为视频合成配音音轨",
	Version: "1.0.0",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径（默认 ./data/config.yaml 或 ./config.yaml）")
}

// initConfig 设置配置文件搜索路径和环境变量
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 添加配置文件搜索路径
		viper.AddConfigPath("./data") // 相对于当前工作目录的 data 文件夹
		viper.AddConfigPath(".")      // 当前目录
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// SAMCO_PROVIDER_BASE_URL 覆盖 provider.base_url
	viper.SetEnvPrefix("SAMCO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// watchConfig 监听配置文件变化，日志级别即时生效
func watchConfig(log *logger.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		level := viper.GetString("log.level")
		log.SetLevel(level)
		log.Infof("配置文件已更新: %s，日志级别: %s", e.Name, level)
	})
	viper.WatchConfig()
}
