package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/schollz/progressbar/v3"
)

// ReportFile 主报告文件名
const ReportFile = "crawl_report.json"

// StatesFile URL状态表文件名
const StatesFile = "url_states.json"

// Reporter 报告生成器,报告写入 <outputDir>/reports/
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// Dir 报告目录
func (r *Reporter) Dir() string {
	return filepath.Join(r.outputDir, "reports")
}

// GenerateReport 写入爬取报告和完整URL状态表,返回主报告路径
func (r *Reporter) GenerateReport(report *models.CrawlReport, states map[string]models.PageStatus) (string, error) {
	reportsDir := r.Dir()
	if err := EnsureDir(reportsDir); err != nil {
		return "", err
	}

	reportPath := filepath.Join(reportsDir, ReportFile)
	if err := r.saveJSONReport(reportPath, report); err != nil {
		return "", err
	}

	if states != nil {
		urls := make([]string, 0, len(states))
		for u := range states {
			urls = append(urls, u)
		}
		sort.Strings(urls)

		list := make([]models.PageStatus, 0, len(urls))
		for _, u := range urls {
			list = append(list, states[u])
		}
		if err := r.saveJSONReport(filepath.Join(reportsDir, StatesFile), list); err != nil {
			return "", err
		}
	}

	Infof("✅ 报告已生成: %s", reportsDir)
	return reportPath, nil
}

func (r *Reporter) saveJSONReport(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}
	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条,quiet为true时输出被丢弃
func NewProgressBar(max int, description string, quiet bool) *progressbar.ProgressBar {
	var out io.Writer = os.Stderr
	if quiet {
		out = io.Discard
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
