package main

import (
	"fmt"

	"github.com/RecoveryAshes/sitemindmap/internal/config"
	"github.com/spf13/cobra"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "生成带注释的默认配置文件",
	Long:  "在指定路径(默认 " + config.DefaultConfigFile + ")生成配置模板,文件已存在时不覆盖",
	Args:  cobra.MaximumNArgs(1),
	// 配置文件可能还不存在,不走全局加载
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if len(args) > 0 {
			path = args[0]
		}

		created, err := config.EnsureConfigExists(path)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 已生成配置文件: %s\n", path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "配置文件已存在: %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
}
