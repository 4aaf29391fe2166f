package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/sitemindmap/internal/utils"
	"github.com/temoto/robotstxt"
)

// DefaultDenyOnError robots.txt无法获取或解析时的默认判定: 拒绝
const DefaultDenyOnError = true

const denyAllRobots = "User-agent: *\nDisallow: /\n"

// DefaultRobotsAgent 默认匹配的robots.txt用户代理组
const DefaultRobotsAgent = "*"

// RobotsConfig robots.txt检查配置
type RobotsConfig struct {
	UserAgent   string        // 匹配的用户代理组,空值使用"*"
	DenyOnError bool          // 获取/解析失败时是否拒绝
	Timeout     time.Duration // robots.txt请求超时
}

// RobotsGate 按主机缓存robots.txt规则,判断路径是否允许抓取
// 同一主机在一次运行中最多请求一次robots.txt,并发调用共享同一次请求。
type RobotsGate struct {
	client  *http.Client
	config  RobotsConfig
	headers http.Header

	mu    sync.Mutex
	cache map[string]*robotsEntry
}

type robotsEntry struct {
	ready chan struct{}
	data  *robotstxt.RobotsData
	err   error
}

// NewRobotsGate 创建robots检查器,client为nil时使用带超时的默认客户端
func NewRobotsGate(config RobotsConfig, client *http.Client, headers http.Header) *RobotsGate {
	if config.UserAgent == "" {
		config.UserAgent = DefaultRobotsAgent
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &RobotsGate{
		client:  client,
		config:  config,
		headers: headers.Clone(),
		cache:   make(map[string]*robotsEntry),
	}
}

// Allowed 判断domainRoot下的path是否允许抓取
func (g *RobotsGate) Allowed(ctx context.Context, domainRoot *url.URL, path string) bool {
	if domainRoot == nil || domainRoot.Host == "" {
		return false
	}
	if path == "" {
		path = "/"
	}

	data, err := g.rules(ctx, domainRoot)
	if err != nil {
		return !g.config.DenyOnError
	}

	// TestAgent 会先查找指定用户代理组,找不到时回退到"*"组
	return data.TestAgent(path, g.config.UserAgent)
}

// rules 获取并缓存某主机的robots.txt
func (g *RobotsGate) rules(ctx context.Context, domainRoot *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(domainRoot.Host)

	g.mu.Lock()
	entry, ok := g.cache[host]
	if !ok {
		entry = &robotsEntry{ready: make(chan struct{})}
		g.cache[host] = entry
	}
	g.mu.Unlock()

	if ok {
		select {
		case <-entry.ready:
			return entry.data, entry.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	entry.data, entry.err = g.fetch(ctx, domainRoot)
	if entry.err != nil {
		utils.Warnf("robots.txt不可用 [%s]: %v (按%s处理)", host, entry.err, denyLabel(g.config.DenyOnError))
	}
	close(entry.ready)
	return entry.data, entry.err
}

func (g *RobotsGate) fetch(ctx context.Context, domainRoot *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := domainRoot.Scheme + "://" + domainRoot.Host + "/robots.txt"

	reqCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构造robots请求失败: %w", err)
	}
	for name, values := range g.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("获取robots.txt失败: %w", err)
	}
	defer resp.Body.Close()

	// 401/403视为拒绝全部, 其余4xx允许全部, 5xx拒绝全部
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		utils.Debugf("robots.txt需要授权: %s (状态码: %d)", robotsURL, resp.StatusCode)
		return robotstxt.FromString(denyAllRobots)
	}
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("解析robots.txt失败: %w", err)
	}

	utils.Debugf("已加载robots.txt: %s (状态码: %d)", robotsURL, resp.StatusCode)
	return data, nil
}

func denyLabel(deny bool) string {
	if deny {
		return "拒绝"
	}
	return "允许"
}
