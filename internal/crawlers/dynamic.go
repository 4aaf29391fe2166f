package crawlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/RecoveryAshes/sitemindmap/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// domSnapshotJS 在页面中执行,一次性返回标题、标题层级、链接和表单
const domSnapshotJS = `() => {
	const text = (el) => (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim();
	const attr = (el, name) => el.hasAttribute(name) ? el.getAttribute(name) : null;
	const nav = performance.getEntriesByType('navigation')[0];
	return JSON.stringify({
		title: document.title || '',
		url: location.href,
		status: nav && nav.responseStatus ? nav.responseStatus : 0,
		headings: Array.from(document.querySelectorAll('h1,h2,h3,h4,h5,h6'))
			.map((h) => ({ level: Number(h.tagName.substring(1)), text: text(h) })),
		links: Array.from(document.querySelectorAll('a[href]'))
			.filter((a) => a.getAttribute('href').trim() !== '')
			.map((a) => a.href),
		forms: Array.from(document.querySelectorAll('form')).map((f) => ({
			action: attr(f, 'action'),
			method: attr(f, 'method') || '',
			inputs: Array.from(f.querySelectorAll('input, textarea, select')).map((i) => ({
				name: attr(i, 'name'),
				type: (attr(i, 'type') || '').toLowerCase(),
				placeholder: attr(i, 'placeholder'),
			})),
			buttons: Array.from(f.querySelectorAll('button, input[type=submit]'))
				.map((b) => text(b) || b.value || '')
				.filter((s) => s !== ''),
		})),
	});
}`

// domSnapshot domSnapshotJS的返回结构
type domSnapshot struct {
	Title    string           `json:"title"`
	URL      string           `json:"url"`
	Status   int              `json:"status"`
	Headings []models.Heading `json:"headings"`
	Links    []string         `json:"links"`
	Forms    []struct {
		Action  *string            `json:"action"`
		Method  string             `json:"method"`
		Inputs  []models.FormField `json:"inputs"`
		Buttons []string           `json:"buttons"`
	} `json:"forms"`
}

// BrowserFetcher 浏览器抓取器(使用Rod)
// 浏览器在第一次Fetch时启动,标签页由TabPool复用。
type BrowserFetcher struct {
	config         models.CrawlConfig
	headerProvider models.HeaderProvider

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	pool     *TabPool
}

// NewBrowserFetcher 创建浏览器抓取器
func NewBrowserFetcher(config models.CrawlConfig, headerProvider models.HeaderProvider) *BrowserFetcher {
	return &BrowserFetcher{
		config:         config,
		headerProvider: headerProvider,
	}
}

// ensureBrowser 启动浏览器(只启动一次)
func (bf *BrowserFetcher) ensureBrowser() (*TabPool, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.pool != nil {
		return bf.pool, nil
	}

	l := launcher.New().Headless(bf.config.Headless)
	if bf.config.InsecureSkipVerify {
		l = l.Set("ignore-certificate-errors")
		utils.Warnf("浏览器已配置为跳过HTTPS证书验证")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	monitor := NewResourceMonitor(ResourceMonitorConfig{
		SafetyReserveMemory: int64(bf.config.SafetyReserveMemory) * 1024 * 1024,
		MaxTabsLimit:        bf.config.MaxTabsLimit,
	})
	limit := bf.config.Workers
	if bf.config.MaxTabsLimit > 0 && bf.config.MaxTabsLimit < limit {
		limit = bf.config.MaxTabsLimit
	}

	bf.launcher = l
	bf.browser = browser
	bf.pool = NewTabPool(browser, monitor, limit)

	status := monitor.GetMemoryStatus()
	utils.Debugf("浏览器已启动: %s (标签页上限=%d, 可用内存=%s, 资源允许=%d)",
		controlURL, bf.pool.Limit(), humanize.Bytes(status.AvailableMemory), status.MaxTabs)
	return bf.pool, nil
}

// Fetch 在标签页中打开页面并读取渲染后的DOM
func (bf *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (page *FetchedPage, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool, err := bf.ensureBrowser()
	if err != nil {
		return nil, err
	}

	tab, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取标签页失败: %w", err)
	}

	healthy := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("页面抓取panic: %v", r)
			utils.Errorf("捕获panic: URL=%s, 错误=%v", pageURL, r)
		}
		pool.Release(tab, healthy)
	}()

	fetchCtx := ctx
	if timeout := bf.config.TimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	p := tab.Context(fetchCtx)

	if bf.headerProvider != nil {
		headers, hErr := bf.headerProvider.GetHeaders()
		if hErr != nil {
			utils.Warnf("获取HTTP头部失败: %v", hErr)
		} else if len(headers) > 0 {
			cleanup, hErr := p.SetExtraHeaders(headerDict(headers))
			if hErr != nil {
				utils.Warnf("设置HTTP头部失败 [%s]: %v", pageURL, hErr)
			} else {
				defer cleanup()
			}
		}
	}

	if err := p.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("导航失败: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("等待页面加载失败: %w", err)
	}

	res, err := p.Eval(domSnapshotJS)
	if err != nil {
		return nil, fmt.Errorf("读取页面DOM失败: %w", err)
	}
	healthy = true

	var snap domSnapshot
	if err := json.Unmarshal([]byte(res.Value.Str()), &snap); err != nil {
		return nil, fmt.Errorf("解析页面DOM失败: %w", err)
	}

	page = snapshotToPage(pageURL, &snap, bf.config.IncludeHiddenFields)
	if page.StatusCode != 0 && !IsSuccessStatus(page.StatusCode) {
		return nil, &StatusError{URL: pageURL, StatusCode: page.StatusCode}
	}
	return page, nil
}

// snapshotToPage 把DOM快照转换为FetchedPage
func snapshotToPage(pageURL string, snap *domSnapshot, includeHidden bool) *FetchedPage {
	finalURL := snap.URL
	if _, err := url.Parse(finalURL); err != nil || finalURL == "" || finalURL == "about:blank" {
		finalURL = pageURL
	}

	headings := make([]models.Heading, 0, len(snap.Headings))
	for _, h := range snap.Headings {
		if h.Text == "" || h.Level < 1 || h.Level > models.MaxHeadingLevel {
			continue
		}
		headings = append(headings, h)
	}

	links := make([]string, 0, len(snap.Links))
	for _, l := range snap.Links {
		if l = strings.TrimSpace(l); l != "" {
			links = append(links, l)
		}
	}

	forms := make([]models.FormRecord, 0, len(snap.Forms))
	for _, f := range snap.Forms {
		forms = append(forms, models.NewFormRecord(f.Action, f.Method, f.Inputs, f.Buttons, includeHidden))
	}

	return &FetchedPage{
		URL:        pageURL,
		FinalURL:   finalURL,
		StatusCode: snap.Status,
		Title:      normalizeSpace(snap.Title),
		Headings:   headings,
		Links:      links,
		Forms:      forms,
	}
}

// headerDict 转换为SetExtraHeaders需要的 [k1, v1, k2, v2...] 形式
func headerDict(headers map[string][]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	dict := make([]string, 0, len(names)*2)
	for _, name := range names {
		dict = append(dict, name, strings.Join(headers[name], ", "))
	}
	return dict
}

// Close 关闭标签页池和浏览器
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.pool != nil {
		bf.pool.Close()
		bf.pool = nil
	}
	if bf.browser != nil {
		if err := bf.browser.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
		bf.browser = nil
	}
	if bf.launcher != nil {
		bf.launcher.Cleanup()
		bf.launcher = nil
	}
	utils.Debugf("浏览器已关闭")
	return nil
}
