package crawlers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/RecoveryAshes/sitemindmap/internal/utils"
	"github.com/gocolly/colly/v2"
)

// StaticFetcher 静态抓取器(使用Colly)
// 每次Fetch克隆一个同步collector,回调只作用于这一次请求,可以被多个worker并发使用。
type StaticFetcher struct {
	collector      *colly.Collector
	config         models.CrawlConfig
	headerProvider models.HeaderProvider
}

// NewStaticFetcher 创建静态抓取器
func NewStaticFetcher(config models.CrawlConfig, headerProvider models.HeaderProvider) *StaticFetcher {
	timeout := config.TimeoutDuration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
		MaxIdleConnsPerHost: config.Workers,
	}
	if config.InsecureSkipVerify {
		utils.Debugf("静态抓取器: TLS证书验证已禁用")
	}

	// robots.txt和域名过滤都由爬取引擎处理,collector只负责单次请求
	// 非2xx响应也交给OnResponse,由Fetch统一转换为StatusError
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetClient(&http.Client{Timeout: timeout})
	c.WithTransport(transport)
	c.SetRequestTimeout(timeout)

	utils.Debugf("静态抓取器: 超时 %v", timeout)

	return &StaticFetcher{
		collector:      c,
		config:         config,
		headerProvider: headerProvider,
	}
}

// Fetch 抓取单个页面
func (sf *StaticFetcher) Fetch(ctx context.Context, pageURL string) (*FetchedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := sf.collector.Clone()

	var (
		page       *FetchedPage
		parseErr   error
		statusCode int
	)

	c.OnRequest(func(r *colly.Request) {
		if sf.headerProvider == nil {
			return
		}
		headers, err := sf.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode

		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := utils.DecompressBody(encoding, r.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", pageURL, encoding, err)
			} else {
				body = decompressed
			}
		}

		page, parseErr = ExtractHTML(r.Request.URL, body, r.Headers.Get("Content-Type"), sf.config.IncludeHiddenFields)
		if page != nil {
			page.URL = pageURL
			page.StatusCode = r.StatusCode
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	visitErr := c.Visit(pageURL)

	if statusCode != 0 && !IsSuccessStatus(statusCode) {
		return nil, &StatusError{URL: pageURL, StatusCode: statusCode}
	}
	if visitErr != nil {
		return nil, fmt.Errorf("请求失败: %w", visitErr)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if page == nil {
		return nil, fmt.Errorf("未收到响应: %s", pageURL)
	}
	return page, nil
}

// Close 静态抓取器无需释放资源
func (sf *StaticFetcher) Close() error {
	return nil
}
