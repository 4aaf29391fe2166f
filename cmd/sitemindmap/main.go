package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/sitemindmap/internal/core"
	"github.com/RecoveryAshes/sitemindmap/internal/crawlers"
	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/RecoveryAshes/sitemindmap/internal/render"
	"github.com/RecoveryAshes/sitemindmap/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	logLevel   string
	quiet      bool
	headers    []string
	server     string
	format     string

	// 爬取参数
	targetURL     string
	maxPages      int
	delay         float64
	workers       int
	timeout       int
	mode          string
	headless      bool
	includeHidden bool
	insecure      bool

	// 图表参数
	style     string
	chunkSize int
	rootName  string
	noRender  bool

	// 输出参数
	outputDir    string
	prefix       string
	exportMD     bool
	exportFormat string

	// 加载并合并后的配置
	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "sitemindmap [url]",
	Short: "站点结构爬取和思维导图生成工具",
	Long: `sitemindmap - 爬取单个站点并生成PlantUML思维导图

  • 只在种子URL所在域名内广度优先爬取,遵守robots.txt和页面预算
  • 提取页面标题、标题层级、表单和内部链接
  • 生成 .puml 源文件并通过PlantUML服务器渲染为图片
  • 可选导出Markdown大纲(Markmap)、JSON或YAML结构

示例:
  sitemindmap https://example.com
  sitemindmap -u https://example.com --max-pages 50 --chunk-size 10 -o example
  sitemindmap https://example.com --style tree --no-render --export-md
  sitemindmap https://example.com -H "Cookie: session=abc" --mode browser

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		config.MergeCLIFlags(collectOverrides(cmd))
		appConfig = config

		if err := utils.InitLogger(config.LogConfig(quiet)); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		return nil
	},
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	seed := targetURL
	if len(args) > 0 {
		seed = args[0]
	}
	if seed == "" {
		return cmd.Help()
	}

	seed, err := NormalizeURL(seed)
	if err != nil {
		return fmt.Errorf("无效的目标URL: %w", err)
	}
	if err := ValidateFlags(seed, appConfig); err != nil {
		return err
	}

	headerManager, err := core.NewHeaderManager(appConfig.HTTP.Headers, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	crawler, err := core.NewCrawler(appConfig, headerManager)
	if err != nil {
		return err
	}

	// Ctrl+C 停止派发新页面,已抓取的内容照常输出
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := utils.NewProgressBar(appConfig.Crawl.MaxPages, "爬取页面", quiet)
	crawler.OnProgress(func(ev crawlers.ProgressEvent) {
		_ = bar.Set(ev.Visited)
	})
	renderBar := utils.NewProgressBar(-1, "渲染图表", quiet)
	crawler.OnRendered(func(render.Result) {
		_ = renderBar.Add(1)
	})

	result, err := crawler.Run(ctx, seed)
	_ = bar.Finish()
	_ = renderBar.Finish()
	if err != nil {
		return fmt.Errorf("任务失败: %w", err)
	}

	printStats(result)
	return nil
}

func printStats(result *core.RunResult) {
	stats := result.Stats
	fmt.Println("==================================================")
	fmt.Println("📊 运行统计")
	fmt.Println("==================================================")
	fmt.Printf("✅ 访问URL数: %d\n", stats.VisitedURLs)
	fmt.Printf("✅ 页面记录: %d\n", stats.Pages)
	fmt.Printf("🚫 robots.txt拒绝: %d\n", stats.BlockedURLs)
	fmt.Printf("❌ 抓取失败: %d\n", stats.FailedURLs)
	fmt.Printf("📝 图表分块: %d\n", stats.Chunks)
	fmt.Printf("🖼️  渲染成功: %d\n", stats.RenderedFiles)
	if stats.RenderErrors > 0 {
		fmt.Printf("❌ 渲染失败: %d\n", stats.RenderErrors)
	}
	var size int64
	for _, a := range result.Artifacts {
		size += a.Size
	}
	fmt.Printf("📦 输出大小: %s (%d个文件)\n", humanize.Bytes(uint64(size)), len(result.Artifacts))
	fmt.Printf("⏱️  总耗时: %.2f秒\n", stats.Duration)
	if result.Crawl != nil && result.Crawl.Interrupted {
		fmt.Println("⚠️  爬取被中断,结果不完整")
	}
	if result.ReportPath != "" {
		fmt.Printf("📄 报告: %s\n", result.ReportPath)
	}
	fmt.Println("==================================================")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	// 不需要加载配置
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sitemindmap %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "配置文件路径")
	pf.StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "不在终端输出日志和进度条")
	pf.StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	pf.StringVar(&server, "server", render.DefaultServer, "PlantUML服务器地址")
	pf.StringVar(&format, "format", render.DefaultFormat, "图片格式 (svg|png|txt)")

	// 爬取参数
	f := rootCmd.Flags()
	f.StringVarP(&targetURL, "url", "u", "", "种子URL (也可以作为位置参数)")
	f.IntVar(&maxPages, "max-pages", 100, "最多访问的页面数")
	f.Float64Var(&delay, "delay", 0.6, "每个worker的请求间隔(秒)")
	f.IntVarP(&workers, "workers", "w", 1, "并发抓取数")
	f.IntVar(&timeout, "timeout", 30, "单页超时(秒)")
	f.StringVarP(&mode, "mode", "m", string(models.ModeStatic), "抓取模式 (static|browser)")
	f.BoolVar(&headless, "headless", true, "浏览器模式下使用无头浏览器")
	f.BoolVar(&includeHidden, "include-hidden", false, "保留表单中的hidden字段")
	f.BoolVarP(&insecure, "insecure", "k", false, "跳过TLS证书验证")

	// 图表参数
	f.StringVar(&style, "style", "flat", "图表样式 (flat|tree)")
	f.IntVar(&chunkSize, "chunk-size", 20, "每个图表包含的页面数 (flat样式)")
	f.StringVar(&rootName, "root-name", "", "根节点文字,默认为种子URL")
	f.BoolVar(&noRender, "no-render", false, "只生成.puml源文件,不请求渲染服务器")

	// 输出参数
	f.StringVarP(&outputDir, "output-dir", "d", "output", "输出目录")
	f.StringVarP(&prefix, "output", "o", "mindmap", "输出文件名前缀")
	f.BoolVar(&exportMD, "export-md", false, "导出Markdown大纲(Markmap)")
	f.StringVar(&exportFormat, "export-format", "", "导出站点结构 (markdown|json|yaml)")

	rootCmd.AddCommand(versionCmd, renderCmd, encodeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
