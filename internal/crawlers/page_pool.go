package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// ErrPoolClosed 标签页池已关闭
var ErrPoolClosed = errors.New("标签页池已关闭")

// TabPool 浏览器标签页池
// 标签页按需创建,数量不超过limit;归还时导航到about:blank复用,失败则销毁
type TabPool struct {
	browser *rod.Browser
	limit   int

	// 可用标签页
	available chan *rod.Page

	mu     sync.Mutex
	tabs   map[*rod.Page]struct{} // 所有已创建的标签页
	closed bool
}

// NewTabPool 创建标签页池,上限取limit与资源监控器计算值中较小者
func NewTabPool(browser *rod.Browser, monitor *ResourceMonitor, limit int) *TabPool {
	if monitor != nil {
		if maxTabs := monitor.CalculateMaxTabs(); maxTabs < limit {
			limit = maxTabs
		}
	}
	if limit < 1 {
		limit = 1
	}

	log.Debug().Msgf("标签页池上限: %d", limit)

	return &TabPool{
		browser:   browser,
		limit:     limit,
		available: make(chan *rod.Page, limit),
		tabs:      make(map[*rod.Page]struct{}),
	}
}

// Acquire 获取标签页,已达上限时阻塞直到有标签页归还或ctx取消
func (tp *TabPool) Acquire(ctx context.Context) (*rod.Page, error) {
	select {
	case page := <-tp.available:
		return page, nil
	default:
	}

	tp.mu.Lock()
	if tp.closed {
		tp.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if len(tp.tabs) < tp.limit {
		page, err := tp.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			tp.mu.Unlock()
			log.Error().Err(err).Msg("创建标签页失败,浏览器可能已崩溃")
			return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
		}
		tp.tabs[page] = struct{}{}
		log.Debug().Msgf("创建新标签页,当前标签页数: %d, 最大限制: %d", len(tp.tabs), tp.limit)
		tp.mu.Unlock()
		return page, nil
	}
	tp.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case page := <-tp.available:
		return page, nil
	}
}

// Release 归还标签页;healthy为false或重置失败时销毁该标签页
func (tp *TabPool) Release(page *rod.Page, healthy bool) {
	if page == nil {
		return
	}

	if healthy {
		if err := page.Navigate("about:blank"); err != nil {
			log.Warn().Err(err).Msg("重置标签页失败")
			healthy = false
		}
	}

	tp.mu.Lock()
	closed := tp.closed
	tp.mu.Unlock()

	if !healthy || closed {
		tp.destroy(page)
		return
	}

	select {
	case tp.available <- page:
	default:
		tp.destroy(page)
	}
}

// destroy 关闭并移除标签页
func (tp *TabPool) destroy(page *rod.Page) {
	tp.mu.Lock()
	delete(tp.tabs, page)
	remaining := len(tp.tabs)
	tp.mu.Unlock()

	if err := page.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭标签页失败")
	}
	log.Debug().Msgf("销毁标签页,当前标签页数: %d", remaining)
}

// Size 当前已创建的标签页数
func (tp *TabPool) Size() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.tabs)
}

// Limit 标签页上限
func (tp *TabPool) Limit() int {
	return tp.limit
}

// Close 关闭所有标签页,之后Acquire返回ErrPoolClosed
func (tp *TabPool) Close() {
	tp.mu.Lock()
	if tp.closed {
		tp.mu.Unlock()
		return
	}
	tp.closed = true
	pages := make([]*rod.Page, 0, len(tp.tabs))
	for p := range tp.tabs {
		pages = append(pages, p)
	}
	tp.tabs = make(map[*rod.Page]struct{})
	tp.mu.Unlock()

	for _, p := range pages {
		if err := p.Close(); err != nil {
			log.Debug().Err(err).Msg("关闭标签页失败")
		}
	}
}
