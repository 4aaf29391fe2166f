package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDuplicatePage 页面记录已存在(PageRecord只写一次)
	ErrDuplicatePage = errors.New("页面记录已存在")
	// ErrParentCycle 父指针出现环
	ErrParentCycle = errors.New("父指针存在环")
)

// SiteGraph 站点结构图: 规范化URL -> PageRecord
//
// 每个页面最多一个父页面,整体构成森林。父页面不在图中的记录视为孤立根节点。
// SiteGraph不是并发安全的,爬取期间只由爬取引擎的调度协程写入。
type SiteGraph struct {
	pages    map[string]*PageRecord
	children map[string][]string // parent -> 子页面URL(插入顺序)
}

// NewSiteGraph 创建空的站点结构图
func NewSiteGraph() *SiteGraph {
	return &SiteGraph{
		pages:    make(map[string]*PageRecord),
		children: make(map[string][]string),
	}
}

// Add 添加页面记录,同一URL只能添加一次
func (g *SiteGraph) Add(page *PageRecord) error {
	if page == nil || page.URL == "" {
		return fmt.Errorf("页面记录无效")
	}
	if _, exists := g.pages[page.URL]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePage, page.URL)
	}
	g.pages[page.URL] = page
	if page.HasParent() && page.Parent != page.URL {
		g.children[page.Parent] = append(g.children[page.Parent], page.URL)
	}
	return nil
}

// Get 按URL获取页面记录
func (g *SiteGraph) Get(pageURL string) (*PageRecord, bool) {
	p, ok := g.pages[pageURL]
	return p, ok
}

// Has 判断URL是否已在图中
func (g *SiteGraph) Has(pageURL string) bool {
	_, ok := g.pages[pageURL]
	return ok
}

// Len 页面数量
func (g *SiteGraph) Len() int {
	return len(g.pages)
}

// SortedURLs 返回按字典序排列的全部URL
func (g *SiteGraph) SortedURLs() []string {
	urls := make([]string, 0, len(g.pages))
	for u := range g.pages {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Pages 返回按URL排序的全部页面记录
func (g *SiteGraph) Pages() []*PageRecord {
	urls := g.SortedURLs()
	pages := make([]*PageRecord, 0, len(urls))
	for _, u := range urls {
		pages = append(pages, g.pages[u])
	}
	return pages
}

// IsRoot 判断页面是否为森林的根: 无父页面、父页面指向自身或父页面不在图中(孤立)
func (g *SiteGraph) IsRoot(page *PageRecord) bool {
	if !page.HasParent() || page.Parent == page.URL {
		return true
	}
	return !g.Has(page.Parent)
}

// Roots 返回所有根页面(按URL排序)
func (g *SiteGraph) Roots() []*PageRecord {
	roots := make([]*PageRecord, 0)
	for _, p := range g.Pages() {
		if g.IsRoot(p) {
			roots = append(roots, p)
		}
	}
	return roots
}

// Children 返回直接子页面(按URL排序)
func (g *SiteGraph) Children(pageURL string) []*PageRecord {
	urls := append([]string(nil), g.children[pageURL]...)
	sort.Strings(urls)

	result := make([]*PageRecord, 0, len(urls))
	for _, u := range urls {
		if p, ok := g.pages[u]; ok {
			result = append(result, p)
		}
	}
	return result
}

// Depth 返回页面到其根节点的距离(根为0),父链有环时返回错误
func (g *SiteGraph) Depth(pageURL string) (int, error) {
	page, ok := g.pages[pageURL]
	if !ok {
		return 0, fmt.Errorf("页面不存在: %s", pageURL)
	}

	seen := map[string]bool{pageURL: true}
	depth := 0
	for !g.IsRoot(page) {
		if seen[page.Parent] {
			return 0, fmt.Errorf("%w: %s", ErrParentCycle, pageURL)
		}
		seen[page.Parent] = true
		page = g.pages[page.Parent]
		depth++
	}
	return depth, nil
}

// Validate 校验森林性质: 任何页面都不是自己的祖先
func (g *SiteGraph) Validate() error {
	for _, u := range g.SortedURLs() {
		if _, err := g.Depth(u); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON 以 url -> record 的形式序列化
func (g *SiteGraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.pages)
}

// UnmarshalJSON 从 url -> record 形式反序列化
func (g *SiteGraph) UnmarshalJSON(data []byte) error {
	var pages map[string]*PageRecord
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}

	fresh := NewSiteGraph()
	keys := make([]string, 0, len(pages))
	for k := range pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := pages[k]
		if p == nil {
			continue
		}
		if p.URL == "" {
			p.URL = k
		}
		if err := fresh.Add(p); err != nil {
			return err
		}
	}
	*g = *fresh
	return nil
}
