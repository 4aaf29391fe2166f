package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
)

// fakeFetcher 按URL返回预设页面,并记录每个URL的抓取次数
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string][]string // url -> links
	fails  map[string]error
	counts map[string]int
}

func newFakeFetcher(pages map[string][]string) *fakeFetcher {
	return &fakeFetcher{
		pages:  pages,
		fails:  make(map[string]error),
		counts: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (*FetchedPage, error) {
	f.mu.Lock()
	f.counts[pageURL]++
	err := f.fails[pageURL]
	links, ok := f.pages[pageURL]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &StatusError{URL: pageURL, StatusCode: http.StatusNotFound}
	}
	return &FetchedPage{
		URL:      pageURL,
		FinalURL: pageURL,
		Title:    "title of " + pageURL,
		Links:    links,
	}, nil
}

func (f *fakeFetcher) Close() error { return nil }

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.counts {
		n += c
	}
	return n
}

type denyPaths map[string]bool

func (d denyPaths) Allowed(_ context.Context, _ *url.URL, path string) bool {
	return !d[path]
}

func engineConfig(maxPages, workers int) models.CrawlConfig {
	return models.CrawlConfig{
		MaxPages: maxPages,
		Workers:  workers,
		Timeout:  5,
		Mode:     models.ModeStatic,
	}
}

func TestEngine_RobotsDenial(t *testing.T) {
	// 相对链接按页面地址解析
	f := newFakeFetcher(map[string][]string{
		"https://example.test/":      {"/about", "/private", "https://other.test/x", "mailto:a@example.test"},
		"https://example.test/about": {"/"},
	})

	engine := NewEngine(engineConfig(100, 1), f, denyPaths{"/private": true})
	res, err := engine.Run(context.Background(), "https://example.test/")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Graph.Len() != 2 {
		t.Fatalf("页面数 = %d, want 2: %v", res.Graph.Len(), res.Graph.SortedURLs())
	}
	about, ok := res.Graph.Get("https://example.test/about")
	if !ok || about.Parent != "https://example.test/" {
		t.Errorf("/about 的父页面应为种子: %+v", about)
	}
	if res.Graph.Has("https://example.test/private") {
		t.Error("/private 不应出现在站点图中")
	}
	if st := res.States["https://example.test/private"]; st.State != models.StateBlocked {
		t.Errorf("/private 状态 = %q, want %q", st.State, models.StateBlocked)
	}
	if f.counts["https://example.test/private"] != 0 {
		t.Error("被robots拒绝的页面不应被抓取")
	}

	seed, _ := res.Graph.Get("https://example.test/")
	for _, l := range seed.Links {
		if l == "https://other.test/x" {
			t.Error("站外链接应被过滤")
		}
	}
	if res.Stats.BlockedURLs != 1 || res.Stats.Pages != 2 {
		t.Errorf("统计错误: %+v", res.Stats)
	}
}

func TestEngine_MaxPagesOne(t *testing.T) {
	f := newFakeFetcher(map[string][]string{
		"https://example.test/": {
			"https://example.test/a",
			"https://example.test/b",
			"https://example.test/c",
		},
	})

	res, err := NewEngine(engineConfig(1, 1), f, nil).Run(context.Background(), "https://example.test")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Graph.Len() != 1 || !res.Graph.Has("https://example.test/") {
		t.Errorf("站点图应只包含种子: %v", res.Graph.SortedURLs())
	}
	if f.total() != 1 {
		t.Errorf("抓取次数 = %d, want 1", f.total())
	}
	if res.Stats.VisitedURLs != 1 {
		t.Errorf("VisitedURLs = %d, want 1", res.Stats.VisitedURLs)
	}
}

func TestEngine_DotSegmentSeed(t *testing.T) {
	f := newFakeFetcher(map[string][]string{
		"https://example.test/b": {
			"https://example.test/b",
			"https://example.test/a/../b",
			"/b/",
		},
	})

	res, err := NewEngine(engineConfig(10, 1), f, nil).Run(context.Background(), "https://example.test/a/../b")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Graph.Len() != 1 || !res.Graph.Has("https://example.test/b") {
		t.Errorf("站点图 = %v", res.Graph.SortedURLs())
	}
	if f.total() != 1 {
		t.Errorf("抓取次数 = %d, want 1", f.total())
	}
}

// wideSite 生成每页链接到width个子页面、共depth层的站点
func wideSite(width, depth int) map[string][]string {
	pages := make(map[string][]string)
	var build func(path string, level int)
	build = func(path string, level int) {
		u := "https://example.test" + path
		if path == "" {
			u = "https://example.test/"
		}
		links := make([]string, 0, width)
		if level < depth {
			for i := 0; i < width; i++ {
				child := fmt.Sprintf("%s/p%d", path, i)
				links = append(links, "https://example.test"+child)
				build(child, level+1)
			}
		}
		// 回链到首页
		links = append(links, "https://example.test/")
		pages[u] = links
	}
	build("", 0)
	return pages
}

func TestEngine_BudgetAndAtMostOnce(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			f := newFakeFetcher(wideSite(5, 3))

			var maxAdmitted int
			engine := NewEngine(engineConfig(20, workers), f, nil)
			engine.OnProgress(func(ev ProgressEvent) {
				if n := ev.Visited + ev.Pending; n > maxAdmitted {
					maxAdmitted = n
				}
			})

			res, err := engine.Run(context.Background(), "https://example.test/")
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if res.Stats.VisitedURLs > 20 {
				t.Errorf("VisitedURLs = %d 超过预算", res.Stats.VisitedURLs)
			}
			if maxAdmitted > 20 {
				t.Errorf("已接纳URL数 %d 超过预算", maxAdmitted)
			}
			if res.Graph.Len() != 20 {
				t.Errorf("页面数 = %d, want 20", res.Graph.Len())
			}
			for u, c := range f.counts {
				if c > 1 {
					t.Errorf("%s 被抓取 %d 次", u, c)
				}
			}
			if err := res.Graph.Validate(); err != nil {
				t.Errorf("站点图不是森林: %v", err)
			}
		})
	}
}

func TestEngine_BreadthFirstParents(t *testing.T) {
	f := newFakeFetcher(wideSite(2, 2))
	res, err := NewEngine(engineConfig(100, 1), f, nil).Run(context.Background(), "https://example.test/")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Graph.Len() != 7 {
		t.Fatalf("页面数 = %d, want 7", res.Graph.Len())
	}
	depth, err := res.Graph.Depth("https://example.test/p1/p0")
	if err != nil || depth != 2 {
		t.Errorf("Depth() = %d, %v, want 2", depth, err)
	}
	roots := res.Graph.Roots()
	if len(roots) != 1 || roots[0].URL != "https://example.test/" {
		t.Errorf("应只有种子一个根: %+v", roots)
	}
}

func TestEngine_PerPageFaults(t *testing.T) {
	f := newFakeFetcher(map[string][]string{
		"https://example.test/": {
			"https://example.test/broken",
			"https://example.test/missing",
			"https://example.test/ok",
		},
		"https://example.test/ok": {},
	})
	f.fails["https://example.test/broken"] = errors.New("connection reset")

	res, err := NewEngine(engineConfig(100, 2), f, nil).Run(context.Background(), "https://example.test/")
	if err != nil {
		t.Fatalf("单页失败不应导致Run返回错误: %v", err)
	}

	if res.States["https://example.test/broken"].State != models.StateFailed {
		t.Errorf("/broken 状态错误: %+v", res.States["https://example.test/broken"])
	}
	missing := res.States["https://example.test/missing"]
	if missing.State != models.StateFailed || missing.Parent != "https://example.test/" {
		t.Errorf("/missing 状态错误: %+v", missing)
	}
	if !res.Graph.Has("https://example.test/ok") {
		t.Error("兄弟页面应继续处理")
	}
	if res.Stats.FailedURLs != 2 {
		t.Errorf("FailedURLs = %d, want 2", res.Stats.FailedURLs)
	}
}

func TestEngine_InvalidSeed(t *testing.T) {
	f := newFakeFetcher(nil)
	for _, seed := range []string{"", "ftp://example.test/", "not a url"} {
		if _, err := NewEngine(engineConfig(10, 1), f, nil).Run(context.Background(), seed); err == nil {
			t.Errorf("种子 %q 应返回错误", seed)
		}
	}
	if f.total() != 0 {
		t.Error("无效种子不应发起任何请求")
	}
}

func TestEngine_Cancelled(t *testing.T) {
	f := newFakeFetcher(wideSite(3, 2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewEngine(engineConfig(100, 2), f, nil).Run(ctx, "https://example.test/")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Interrupted {
		t.Error("应标记为中断")
	}
	if f.total() != 0 {
		t.Errorf("取消后不应派发新请求, 抓取次数 = %d", f.total())
	}
}

func TestEngine_StaticScenario(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title>首页</title></head><body>
<h1>欢迎</h1><a href="/about/">关于</a> <a href="/private">私有</a> <a href="#top">顶部</a></body></html>`)
		case "/about":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title>关于我们</title></head><body><h2>团队</h2><a href="/">首页</a></body></html>`)
		case "/private":
			fmt.Fprint(w, `<html><title>secret</title></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := engineConfig(100, 1)
	fetcher := NewStaticFetcher(cfg, nil)
	robots := NewRobotsGate(RobotsConfig{DenyOnError: true}, nil, nil)

	res, err := NewEngine(cfg, fetcher, robots).Run(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	seed := srv.URL + "/"
	about := srv.URL + "/about"
	private := srv.URL + "/private"

	if res.Graph.Len() != 2 {
		t.Fatalf("页面数 = %d, want 2: %v", res.Graph.Len(), res.Graph.SortedURLs())
	}
	rec, ok := res.Graph.Get(about)
	if !ok || rec.Parent != seed || rec.Title != "关于我们" {
		t.Errorf("/about 记录错误: %+v", rec)
	}
	if res.States[private].State != models.StateBlocked {
		t.Errorf("/private 状态 = %q, want blocked", res.States[private].State)
	}
	root, _ := res.Graph.Get(seed)
	if len(root.Headings) != 1 || root.Headings[0].Text != "欢迎" {
		t.Errorf("种子页标题层级错误: %+v", root.Headings)
	}
}
