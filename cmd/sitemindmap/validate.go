package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/sitemindmap/internal/core"
	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/RecoveryAshes/sitemindmap/internal/output"
	"github.com/spf13/cobra"
)

// ValidateURL 验证URL格式
func ValidateURL(urlStr string) error {
	return models.ValidateURL(urlStr)
}

// ValidateFlags 合并后的参数做一次前置检查,给出比结构体校验更具体的提示
func ValidateFlags(seed string, config *core.Config) error {
	if err := ValidateURL(seed); err != nil {
		return fmt.Errorf("无效的目标URL: %w", err)
	}

	crawl := config.Crawl
	if crawl.MaxPages < 1 {
		return fmt.Errorf("页面预算必须大于0,当前值: %d", crawl.MaxPages)
	}
	if crawl.Delay < 0 || crawl.Delay > 60 {
		return fmt.Errorf("请求间隔必须在0-60秒之间,当前值: %.2f", crawl.Delay)
	}
	if crawl.Workers < 1 || crawl.Workers > 32 {
		return fmt.Errorf("并发数必须在1-32之间,当前值: %d", crawl.Workers)
	}

	validModes := map[models.CrawlMode]bool{
		models.ModeStatic:  true,
		models.ModeBrowser: true,
	}
	if !validModes[crawl.Mode] {
		return fmt.Errorf("无效的抓取模式: %s (有效值: static, browser)", crawl.Mode)
	}

	if config.Diagram.ChunkSize < 1 {
		return fmt.Errorf("分块大小必须大于0,当前值: %d", config.Diagram.ChunkSize)
	}
	if config.Output.ExportStructure {
		if _, err := output.ParseFormat(config.Output.ExportFormat); err != nil {
			return err
		}
	}
	if strings.ContainsAny(config.Output.Prefix, `/\`) {
		return fmt.Errorf("文件名前缀不能包含路径分隔符: %s", config.Output.Prefix)
	}

	return config.Validate()
}

// NormalizeURL 规范化URL,没有协议时默认使用https
func NormalizeURL(urlStr string) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return "", fmt.Errorf("URL不能为空")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	return parsed.String(), nil
}

// collectOverrides 只收集用户显式指定的参数,未指定的保留配置文件中的值
func collectOverrides(cmd *cobra.Command) core.Overrides {
	var o core.Overrides
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("max-pages") {
		o.MaxPages = &maxPages
	}
	if changed("delay") {
		o.Delay = &delay
	}
	if changed("workers") {
		o.Workers = &workers
	}
	if changed("timeout") {
		o.Timeout = &timeout
	}
	if changed("mode") {
		o.Mode = &mode
	}
	if changed("headless") {
		o.Headless = &headless
	}
	if changed("include-hidden") {
		o.IncludeHidden = &includeHidden
	}
	if changed("insecure") {
		o.Insecure = &insecure
	}

	if changed("style") {
		o.Style = &style
	}
	if changed("chunk-size") {
		o.ChunkSize = &chunkSize
	}
	if changed("root-name") {
		o.RootName = &rootName
	}
	if changed("server") {
		o.Server = &server
	}
	if changed("format") {
		o.Format = &format
	}
	o.NoRender = noRender

	if changed("output-dir") {
		o.OutputDir = &outputDir
	}
	if changed("output") {
		o.Prefix = &prefix
	}
	o.ExportMD = exportMD
	if changed("export-format") {
		o.ExportFormat = &exportFormat
	}

	if changed("log-level") {
		o.LogLevel = &logLevel
	}
	return o
}
