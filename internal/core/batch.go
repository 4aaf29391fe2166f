package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/sitemindmap/internal/render"
	"github.com/RecoveryAshes/sitemindmap/internal/utils"
	"github.com/dustin/go-humanize"
)

// BatchRenderer 批量渲染已有的 .puml 文件
type BatchRenderer struct {
	client        *render.Client
	outputDir     string // 为空时图片写在源文件旁边
	continueOnErr bool
}

// BatchResult 单个文件的渲染结果
type BatchResult struct {
	Source      string
	Output      string
	Success     bool
	Error       error
	Size        int64
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量渲染摘要
type BatchSummary struct {
	TotalFiles    int
	SuccessCount  int
	FailCount     int
	TotalSize     int64
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchRenderer 创建批量渲染器
func NewBatchRenderer(client *render.Client, outputDir string, continueOnErr bool) *BatchRenderer {
	return &BatchRenderer{
		client:        client,
		outputDir:     outputDir,
		continueOnErr: continueOnErr,
	}
}

// RenderFiles 依次渲染文件列表
// continueOnErr为false时遇到第一个失败即停止;ctx取消后不再处理剩余文件。
func (br *BatchRenderer) RenderFiles(ctx context.Context, files []string) *BatchSummary {
	utils.Infof("🚀 开始批量渲染: %d个文件", len(files))

	summary := &BatchSummary{
		TotalFiles: len(files),
		Results:    make([]BatchResult, 0, len(files)),
	}
	startTime := time.Now()

	for i, source := range files {
		if ctx.Err() != nil {
			utils.Warn("批量渲染已取消")
			break
		}
		utils.Infof("[%d/%d] %s", i+1, len(files), source)

		result := br.renderFile(ctx, source)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.TotalSize += result.Size
			continue
		}

		summary.FailCount++
		utils.Errorf("❌ 渲染失败: %v", result.Error)
		if !br.continueOnErr {
			utils.Warn("批量渲染中止 (--continue-on-error=false)")
			break
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	br.printSummary(summary)
	return summary
}

// renderFile 渲染单个文件
func (br *BatchRenderer) renderFile(ctx context.Context, source string) BatchResult {
	result := BatchResult{
		Source:      source,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()
	defer func() {
		result.Duration = time.Since(startTime).Seconds()
	}()

	text, err := os.ReadFile(source)
	if err != nil {
		result.Error = fmt.Errorf("读取源文件失败: %w", err)
		return result
	}

	image, err := br.client.RenderText(ctx, string(text))
	if err != nil {
		result.Error = err
		return result
	}

	target := br.OutputPath(source)
	if err := utils.EnsureDir(filepath.Dir(target)); err != nil {
		result.Error = err
		return result
	}
	if err := os.WriteFile(target, image, 0644); err != nil {
		result.Error = fmt.Errorf("写入图片失败: %w", err)
		return result
	}

	result.Success = true
	result.Output = target
	result.Size = int64(len(image))
	return result
}

// OutputPath 源文件对应的图片路径: 扩展名替换为渲染格式
func (br *BatchRenderer) OutputPath(source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	dir := br.outputDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, base+"."+br.client.Format())
}

// printSummary 打印批量渲染摘要
func (br *BatchRenderer) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量渲染摘要")
	utils.Info("==================================================")
	utils.Infof("总文件数: %d", summary.TotalFiles)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📦 总大小: %s", humanize.Bytes(uint64(summary.TotalSize)))
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的文件:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.Source, result.Error)
			}
		}
	}
}
