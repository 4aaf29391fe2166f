package crawlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
)

// FetchedPage 抓取并解析后的页面内容
type FetchedPage struct {
	URL        string              // 请求的URL
	FinalURL   string              // 跟随重定向后的URL
	StatusCode int                 // HTTP状态码(浏览器模式下为0)
	Title      string              // 页面标题,可能为空
	Headings   []models.Heading    // 按文档顺序
	Links      []string            // a[href]解析后的绝对地址(未规范化、未过滤)
	Forms      []models.FormRecord // 页面中的表单
}

// Fetcher 页面抓取器
// 实现必须可以被多个worker并发调用。
type Fetcher interface {
	// Fetch 抓取并解析页面,非2xx状态返回*StatusError
	Fetch(ctx context.Context, pageURL string) (*FetchedPage, error)

	// Close 释放资源(浏览器进程、标签页等)
	Close() error
}

// StatusError 页面返回非2xx状态码
type StatusError struct {
	URL        string
	StatusCode int
}

// Error 实现error接口
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// IsSuccessStatus 2xx状态码
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}
