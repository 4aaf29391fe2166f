package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/RecoveryAshes/sitemindmap/internal/utils"
	"golang.org/x/time/rate"
)

// RobotsChecker robots.txt检查接口,由RobotsGate实现
type RobotsChecker interface {
	Allowed(ctx context.Context, domainRoot *url.URL, path string) bool
}

// ProgressEvent 每个URL结束(成功、失败或被拒绝)时的进度通知
type ProgressEvent struct {
	URL     string
	State   models.PageState
	Visited int // 已出队URL数
	Pending int // 队列中URL数
	Pages   int // 已生成的页面记录数
}

// CrawlResult 爬取结果
type CrawlResult struct {
	Seed        string                       // 规范化后的种子URL
	Graph       *models.SiteGraph            // 站点结构
	States      map[string]models.PageStatus // 每个URL的最终状态
	Stats       models.TaskStats
	Interrupted bool // 因context取消提前结束
}

// Engine 爬取引擎
//
// 调度模型: 一个调度协程独占URLQueue、SiteGraph和状态表,
// 固定数量的worker只负责抓取和解析,结果通过channel交回调度协程。
// 每个worker有自己的限速器,请求间隔按worker计算。
type Engine struct {
	config     models.CrawlConfig
	fetcher    Fetcher
	robots     RobotsChecker
	onProgress func(ProgressEvent)
}

type fetchJob struct {
	item models.URLItem
}

type fetchResult struct {
	item models.URLItem
	page *FetchedPage
	err  error
}

// NewEngine 创建爬取引擎,robots为nil时不做robots.txt检查
func NewEngine(config models.CrawlConfig, fetcher Fetcher, robots RobotsChecker) *Engine {
	return &Engine{
		config:  config,
		fetcher: fetcher,
		robots:  robots,
	}
}

// OnProgress 设置进度回调,回调在调度协程中同步执行
func (e *Engine) OnProgress(fn func(ProgressEvent)) {
	e.onProgress = fn
}

// Run 从种子URL开始爬取
// 种子URL无效时在任何网络请求之前返回错误;单个页面的失败只记录状态,不会中止爬取。
// ctx取消后不再派发新URL,已派发的请求会执行完毕。
func (e *Engine) Run(ctx context.Context, seed string) (*CrawlResult, error) {
	if err := models.ValidateURL(seed); err != nil {
		return nil, err
	}
	seedCanon, ok := Canonicalize(nil, seed)
	if !ok {
		return nil, fmt.Errorf("无法规范化种子URL: %s", seed)
	}
	seedURL, err := url.Parse(seedCanon)
	if err != nil {
		return nil, fmt.Errorf("无法解析种子URL: %w", err)
	}
	if e.fetcher == nil {
		return nil, fmt.Errorf("未配置页面抓取器")
	}

	maxPages := e.config.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}
	workers := e.config.Workers
	if workers < 1 {
		workers = 1
	}

	startTime := time.Now()
	queue := NewURLQueue()
	result := &CrawlResult{
		Seed:   seedCanon,
		Graph:  models.NewSiteGraph(),
		States: make(map[string]models.PageStatus),
	}

	queue.Push(models.URLItem{URL: seedCanon})
	result.States[seedCanon] = models.PageStatus{URL: seedCanon, State: models.StatePending}

	jobs := make(chan fetchJob, workers)
	results := make(chan fetchResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			e.worker(ctx, workerID, jobs, results)
		}(i)
	}

	utils.Infof("🔍 开始爬取: %s (页面预算=%d, worker=%d, 间隔=%v)", seedCanon, maxPages, workers, e.config.DelayDuration())

	inFlight := 0
	for {
		// 派发阶段: 填满空闲worker
		for inFlight < workers && ctx.Err() == nil {
			item, ok := queue.Pop()
			if !ok {
				break
			}
			if queue.IsVisited(item.URL) {
				continue
			}
			if queue.VisitedCount() >= maxPages {
				break
			}
			queue.MarkVisited(item.URL)

			if !e.allowed(ctx, item.URL) {
				result.States[item.URL] = models.PageStatus{
					URL:    item.URL,
					Parent: item.Parent,
					State:  models.StateBlocked,
					Cause:  "robots.txt禁止访问",
				}
				result.Stats.BlockedURLs++
				utils.Infof("robots.txt禁止访问: %s", item.URL)
				e.progress(queue, result, item.URL, models.StateBlocked)
				continue
			}

			jobs <- fetchJob{item: item}
			inFlight++
		}

		if inFlight == 0 {
			break
		}

		res := <-results
		inFlight--
		e.handleResult(res, seedURL.Host, maxPages, queue, result)
	}

	close(jobs)
	wg.Wait()

	result.Interrupted = ctx.Err() != nil
	result.Stats.VisitedURLs = queue.VisitedCount()
	result.Stats.Pages = result.Graph.Len()
	result.Stats.Duration = time.Since(startTime).Seconds()

	if result.Interrupted {
		utils.Warnf("爬取被中断,剩余 %d 个URL未处理", queue.PendingCount())
	}
	utils.Infof("✅ 爬取完成: 访问 %d, 成功 %d, 拒绝 %d, 失败 %d, 耗时 %.2f秒",
		result.Stats.VisitedURLs, result.Stats.Pages, result.Stats.BlockedURLs, result.Stats.FailedURLs, result.Stats.Duration)

	return result, nil
}

func (e *Engine) allowed(ctx context.Context, pageURL string) bool {
	if e.robots == nil {
		return true
	}
	root, err := DomainRoot(pageURL)
	if err != nil {
		return false
	}
	return e.robots.Allowed(ctx, root, PathOf(pageURL))
}

// handleResult 在调度协程中处理worker结果
func (e *Engine) handleResult(res fetchResult, seedHost string, maxPages int, queue *URLQueue, result *CrawlResult) {
	item := res.item

	if res.err != nil {
		result.States[item.URL] = models.PageStatus{
			URL:    item.URL,
			Parent: item.Parent,
			State:  models.StateFailed,
			Cause:  res.err.Error(),
		}
		result.Stats.FailedURLs++
		utils.Warnf("页面抓取失败 [%s] (父页面: %s): %v", item.URL, parentLabel(item.Parent), res.err)
		e.progress(queue, result, item.URL, models.StateFailed)
		return
	}

	links := e.collectLinks(res.page, seedHost)
	record := models.NewPageRecord(item.URL, res.page.Title, item.Parent, res.page.Headings, links, res.page.Forms)
	if err := result.Graph.Add(record); err != nil {
		// URL出队前已标记访问,这里不应出现重复
		utils.Errorf("保存页面记录失败 [%s]: %v", item.URL, err)
		return
	}
	result.States[item.URL] = models.PageStatus{URL: item.URL, Parent: item.Parent, State: models.StateOK}

	for _, link := range links {
		if queue.Admitted() >= maxPages {
			break
		}
		if queue.Push(models.URLItem{URL: link, Parent: item.URL}) {
			result.States[link] = models.PageStatus{URL: link, Parent: item.URL, State: models.StatePending}
		}
	}

	utils.Debugf("页面完成: %s (标题=%q, 链接=%d, 表单=%d)", item.URL, record.Title, len(links), len(record.Forms))
	e.progress(queue, result, item.URL, models.StateOK)
}

// collectLinks 规范化、过滤站外链接、去重并排序
func (e *Engine) collectLinks(page *FetchedPage, seedHost string) []string {
	var base *url.URL
	if page.FinalURL != "" {
		base, _ = url.Parse(page.FinalURL)
	}

	seen := make(map[string]struct{}, len(page.Links))
	links := make([]string, 0, len(page.Links))
	for _, raw := range page.Links {
		canon, ok := Canonicalize(base, raw)
		if !ok || !SameDomain(seedHost, canon) {
			continue
		}
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		links = append(links, canon)
	}
	sort.Strings(links)
	return links
}

// worker 抓取协程,只读写自己的限速器
func (e *Engine) worker(ctx context.Context, workerID int, jobs <-chan fetchJob, results chan<- fetchResult) {
	limit := rate.Inf
	if d := e.config.DelayDuration(); d > 0 {
		limit = rate.Every(d)
	}
	limiter := rate.NewLimiter(limit, 1)

	timeout := e.config.TimeoutDuration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	for job := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- fetchResult{item: job.item, err: fmt.Errorf("已取消: %w", err)}
			continue
		}

		// 已派发的请求不随ctx取消,只受单页超时限制
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		page, err := e.safeFetch(fetchCtx, job.item.URL)
		cancel()

		utils.Debugf("worker-%d 抓取: %s", workerID, job.item.URL)
		results <- fetchResult{item: job.item, page: page, err: err}
	}
}

// safeFetch 调用Fetcher并把panic转换为错误
func (e *Engine) safeFetch(ctx context.Context, pageURL string) (page *FetchedPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("捕获panic: URL=%s, 错误=%v", pageURL, r)
			page, err = nil, fmt.Errorf("页面抓取panic: %v", r)
		}
	}()

	page, err = e.fetcher.Fetch(ctx, pageURL)
	if err == nil && page == nil {
		err = fmt.Errorf("抓取器未返回页面: %s", pageURL)
	}
	return page, err
}

func (e *Engine) progress(queue *URLQueue, result *CrawlResult, pageURL string, state models.PageState) {
	if e.onProgress == nil {
		return
	}
	e.onProgress(ProgressEvent{
		URL:     pageURL,
		State:   state,
		Visited: queue.VisitedCount(),
		Pending: queue.PendingCount(),
		Pages:   result.Graph.Len(),
	})
}

func parentLabel(parent string) string {
	if parent == "" {
		return "种子"
	}
	return parent
}
