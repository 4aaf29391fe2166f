package core

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/RecoveryAshes/sitemindmap/internal/crawlers"
	"github.com/RecoveryAshes/sitemindmap/internal/diagram"
	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/RecoveryAshes/sitemindmap/internal/output"
	"github.com/RecoveryAshes/sitemindmap/internal/render"
	"github.com/RecoveryAshes/sitemindmap/internal/utils"
)

// Crawler 主流程协调器: 爬取 → 生成图表源文件 → 渲染 → 导出 → 报告
type Crawler struct {
	config  *Config
	headers *HeaderManager

	// 以下字段为空时按配置创建
	fetcher    crawlers.Fetcher
	robots     crawlers.RobotsChecker
	httpClient *http.Client

	onProgress func(crawlers.ProgressEvent)
	onRendered func(render.Result)
}

// RunResult 一次完整运行的结果
type RunResult struct {
	Task       *models.CrawlTask
	Crawl      *crawlers.CrawlResult
	Chunks     []diagram.Chunk
	Artifacts  []models.ArtifactInfo
	Stats      models.TaskStats
	ReportPath string
}

// NewCrawler 创建协调器,headers为nil时只使用默认请求头
func NewCrawler(config *Config, headers *HeaderManager) (*Crawler, error) {
	if config == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if headers == nil {
		hm, err := NewHeaderManager(config.HTTP.Headers, nil)
		if err != nil {
			return nil, err
		}
		headers = hm
	}
	return &Crawler{config: config, headers: headers}, nil
}

// SetFetcher 使用指定的页面抓取器(调用方负责关闭)
func (c *Crawler) SetFetcher(f crawlers.Fetcher) {
	c.fetcher = f
}

// SetRobots 使用指定的robots检查器
func (c *Crawler) SetRobots(r crawlers.RobotsChecker) {
	c.robots = r
}

// SetHTTPClient robots.txt和渲染请求使用的客户端
func (c *Crawler) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// OnProgress 每个URL处理结束时回调
func (c *Crawler) OnProgress(fn func(crawlers.ProgressEvent)) {
	c.onProgress = fn
}

// OnRendered 每个分块渲染结束时回调
func (c *Crawler) OnRendered(fn func(render.Result)) {
	c.onRendered = fn
}

// Run 执行完整流程
// 配置或种子URL无效时在任何网络请求之前返回错误;
// 单个页面或分块的失败只记录在报告中,写入图表源文件失败才会返回错误。
func (c *Crawler) Run(ctx context.Context, seed string) (*RunResult, error) {
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	task, err := models.NewCrawlTask(seed, c.config.Crawl)
	if err != nil {
		return nil, err
	}
	if _, err := c.headers.GetHeaders(); err != nil {
		return nil, err
	}
	style := diagram.Style(c.config.Diagram.Style)

	task.Start()
	defer utils.WithRun(task.ID)()
	utils.Infof("🚀 开始任务 %s", task.ID)
	utils.Infof("种子URL: %s", seed)
	utils.Infof("抓取模式: %s", c.config.Crawl.Mode)
	utils.Infof("输出目录: %s", c.config.Output.BaseDir)
	utils.Debugf("请求头: %s", c.headers.SafeString())

	result := &RunResult{Task: task}
	err = c.run(ctx, seed, style, result)
	task.Stats = result.Stats
	task.Finish(err)
	if err != nil {
		return result, err
	}

	utils.Infof("✅ 任务完成: 页面 %d, 分块 %d, 图片 %d, 耗时 %.2f秒",
		result.Stats.Pages, result.Stats.Chunks, result.Stats.RenderedFiles, result.Stats.Duration)
	return result, nil
}

func (c *Crawler) run(ctx context.Context, seed string, style diagram.Style, result *RunResult) error {
	startTime := time.Now()

	fetcher := c.fetcher
	if fetcher == nil {
		fetcher = c.newFetcher()
		defer func() {
			if err := fetcher.Close(); err != nil {
				utils.Warnf("关闭抓取器失败: %v", err)
			}
		}()
	}

	robots := c.robots
	if robots == nil {
		headers, _ := c.headers.GetHeaders()
		robots = crawlers.NewRobotsGate(c.config.RobotsSettings(), c.client(c.config.Robots.Timeout), headers)
	}

	engine := crawlers.NewEngine(c.config.Crawl, fetcher, robots)
	engine.OnProgress(c.onProgress)

	crawl, err := engine.Run(ctx, seed)
	if err != nil {
		return err
	}
	result.Crawl = crawl
	result.Stats = crawl.Stats

	outDir := c.config.Output.BaseDir
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}

	rootName := c.config.Diagram.RootName
	if rootName == "" {
		rootName = crawl.Seed
	}

	chunks, err := diagram.Build(crawl.Graph, style, rootName, c.config.Output.Prefix, c.config.Diagram.ChunkSize)
	if err != nil {
		return err
	}
	result.Chunks = chunks
	result.Stats.Chunks = len(chunks)

	sources, err := WriteSources(chunks, outDir)
	if err != nil {
		return err
	}
	result.Artifacts = append(result.Artifacts, sources...)
	if len(chunks) == 0 {
		utils.Warn("没有可用的页面,未生成图表")
	}

	if c.config.Render.Enabled && len(chunks) > 0 {
		if ctx.Err() != nil {
			utils.Warn("任务已取消,跳过渲染")
		} else {
			c.renderChunks(ctx, chunks, outDir, result)
		}
	}

	if c.config.Output.ExportStructure {
		format, err := output.ParseFormat(c.config.Output.ExportFormat)
		if err != nil {
			return err
		}
		path, err := output.Export(crawl.Graph, rootName, outDir, format)
		if err != nil {
			return fmt.Errorf("导出站点结构失败: %w", err)
		}
		utils.Infof("✅ 站点结构已导出: %s", path)
		result.Artifacts = append(result.Artifacts, artifact(models.ArtifactStructure, path))
	}

	result.Stats.Duration = time.Since(startTime).Seconds()

	report := c.buildReport(result)
	reportPath, err := utils.NewReporter(outDir).GenerateReport(report, crawl.States)
	if err != nil {
		utils.Warnf("生成报告失败: %v", err)
	} else {
		result.ReportPath = reportPath
	}
	return nil
}

// newFetcher 按抓取模式创建抓取器
func (c *Crawler) newFetcher() crawlers.Fetcher {
	if c.config.Crawl.Mode == models.ModeBrowser {
		return crawlers.NewBrowserFetcher(c.config.Crawl, c.headers)
	}
	return crawlers.NewStaticFetcher(c.config.Crawl, c.headers)
}

// client robots.txt和渲染请求共用的客户端配置
func (c *Crawler) client(timeoutSeconds int) *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: c.config.Crawl.InsecureSkipVerify,
			},
		},
	}
}

func (c *Crawler) renderChunks(ctx context.Context, chunks []diagram.Chunk, dir string, result *RunResult) {
	client := render.NewClient(c.config.RenderSettings(c.headers.UserAgent()), c.client(c.config.Render.Timeout))
	utils.Infof("🖼️  开始渲染 %d 个分块 (%s)", len(chunks), client.Format())

	for _, res := range client.RenderChunks(ctx, chunks, dir, c.onRendered) {
		if res.Err != nil {
			result.Stats.RenderErrors++
			result.Artifacts = append(result.Artifacts, models.ArtifactInfo{
				Kind:  models.ArtifactImage,
				Path:  filepath.Join(dir, res.Chunk.Name+"."+client.Format()),
				Error: res.Err.Error(),
			})
			continue
		}
		result.Stats.RenderedFiles++
		result.Artifacts = append(result.Artifacts, models.ArtifactInfo{
			Kind: models.ArtifactImage,
			Path: res.Path,
			Size: res.Size,
		})
	}
}

// buildReport 汇总任务信息、统计和URL状态
func (c *Crawler) buildReport(result *RunResult) *models.CrawlReport {
	task := result.Task
	report := &models.CrawlReport{
		TaskID:      task.ID,
		SeedURL:     task.SeedURL,
		Domain:      task.Domain,
		Mode:        c.config.Crawl.Mode,
		EndTime:     time.Now(),
		Interrupted: result.Crawl.Interrupted,
		Stats:       result.Stats,
		Blocked:     []models.PageStatus{},
		Failed:      []models.PageStatus{},
		Artifacts:   result.Artifacts,
		Config:      c.config.Crawl,
	}
	if task.StartedAt != nil {
		report.StartTime = *task.StartedAt
		report.Duration = report.EndTime.Sub(report.StartTime).Seconds()
	}

	for _, status := range result.Crawl.States {
		switch status.State {
		case models.StateBlocked:
			report.Blocked = append(report.Blocked, status)
		case models.StateFailed:
			report.Failed = append(report.Failed, status)
		}
	}
	sortStatuses(report.Blocked)
	sortStatuses(report.Failed)
	return report
}

func sortStatuses(list []models.PageStatus) {
	sort.Slice(list, func(i, j int) bool { return list[i].URL < list[j].URL })
}

// WriteSources 把每个分块写入 <dir>/<name>.puml
func WriteSources(chunks []diagram.Chunk, dir string) ([]models.ArtifactInfo, error) {
	infos := make([]models.ArtifactInfo, 0, len(chunks))
	for _, chunk := range chunks {
		path := filepath.Join(dir, chunk.Name+SourceExt)
		if err := os.WriteFile(path, []byte(chunk.Text), 0644); err != nil {
			return infos, fmt.Errorf("写入图表源文件失败: %w", err)
		}
		utils.Infof("📝 已保存图表: %s (%d个页面)", path, len(chunk.URLs))
		infos = append(infos, artifact(models.ArtifactDiagram, path))
	}
	return infos, nil
}

// SourceExt 图表源文件扩展名
const SourceExt = ".puml"

func artifact(kind models.ArtifactKind, path string) models.ArtifactInfo {
	info := models.ArtifactInfo{Kind: kind, Path: path}
	if stat, err := os.Stat(path); err == nil {
		info.Size = stat.Size()
	}
	return info
}
