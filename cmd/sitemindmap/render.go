package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/sitemindmap/internal/core"
	"github.com/RecoveryAshes/sitemindmap/internal/diagram"
	"github.com/RecoveryAshes/sitemindmap/internal/render"
	"github.com/spf13/cobra"
)

// render / encode 子命令参数
var (
	renderOutDir    string
	continueOnError bool
	tokenOnly       bool
)

var renderCmd = &cobra.Command{
	Use:   "render <file.puml>...",
	Short: "通过PlantUML服务器渲染已有的图表源文件",
	Long: `渲染一个或多个 .puml 文件,图片默认保存在源文件旁边,扩展名为 --format

示例:
  sitemindmap render output/mindmap_1.puml output/mindmap_2.puml
  sitemindmap render output/*.puml --format png -d images`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appConfig.Validate(); err != nil {
			return err
		}

		headerManager, err := core.NewHeaderManager(appConfig.HTTP.Headers, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}
		if _, err := headerManager.GetHeaders(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := render.NewClient(appConfig.RenderSettings(headerManager.UserAgent()), nil)
		summary := core.NewBatchRenderer(client, renderOutDir, continueOnError).RenderFiles(ctx, args)
		if summary.FailCount > 0 {
			return fmt.Errorf("%d个文件渲染失败", summary.FailCount)
		}
		return nil
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode <file.puml|->",
	Short: "输出图表源文件对应的PlantUML服务器地址",
	Long: `读取图表源文件(- 表示标准输入),输出 <server>/<format>/<token>

示例:
  sitemindmap encode output/mindmap_1.puml
  cat diagram.puml | sitemindmap encode - --token`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readSource(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		token := diagram.Encode(string(text))
		if tokenOnly {
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		}
		client := render.NewClient(appConfig.RenderSettings(""), nil)
		fmt.Fprintln(cmd.OutOrStdout(), client.URL(token))
		return nil
	},
}

// readSource 读取文件,"-" 表示标准输入
func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("读取标准输入失败: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取源文件失败: %w", err)
	}
	return data, nil
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutDir, "output-dir", "d", "", "图片输出目录,默认与源文件相同")
	renderCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	encodeCmd.Flags().BoolVar(&tokenOnly, "token", false, "只输出编码后的token")
}
