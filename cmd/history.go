package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"samco-studio/app/config"
	"samco-studio/app/database"
	"samco-studio/app/logger"
	"samco-studio/app/model"
	"samco-studio/app/service"

	"github.com/spf13/cobra"
)

var historyFilter model.GenerationFilter

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "生成历史",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出生成历史",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := logger.New(cfg.Log)
		defer log.Sync()

		if err := database.Init(cfg, log); err != nil {
			return fmt.Errorf("数据库初始化失败: %w", err)
		}
		defer database.Close()

		items, total, err := service.NewHistoryService(database.DB, log).List(context.Background(), historyFilter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tTYPE\tMODE\tTOOL\tOUTPUT")
		for _, g := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				g.CreatedAt.Local().Format("2006-01-02 15:04"), g.Type, g.Mode, g.AITool, g.OutputURL)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "共 %d 条\n", total)
		return nil
	},
}

func init() {
	f := historyListCmd.Flags()
	f.StringVar((*string)(&historyFilter.Type), "type", "", "按类型过滤：image、video、audio")
	f.StringVar((*string)(&historyFilter.Mode), "mode", "", "按生成方式过滤")
	f.StringVar(&historyFilter.AITool, "tool", "", "按模型过滤")
	f.IntVar(&historyFilter.Limit, "limit", 20, "返回条数")
	f.IntVar(&historyFilter.Offset, "offset", 0, "跳过条数")

	historyCmd.AddCommand(historyListCmd)
	rootCmd.AddCommand(historyCmd)
}
