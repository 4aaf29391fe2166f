package diagram

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
)

func addPage(t *testing.T, g *models.SiteGraph, page *models.PageRecord) {
	t.Helper()
	if err := g.Add(page); err != nil {
		t.Fatalf("Add(%s) error = %v", page.URL, err)
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"换行", "a\nb", "a b"},
		{"回车换行", "a\r\nb", "a  b"},
		{"首尾空白", "  标题 \n", "标题"},
		{"普通文本", "首页", "首页"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Escape(tt.in); got != tt.want {
				t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildFlatChunks(t *testing.T) {
	g := models.NewSiteGraph()
	addPage(t, g, models.NewPageRecord("https://example.test/", "首页\n欢迎", "", []models.Heading{
		{Level: 1, Text: "主标题"},
		{Level: 2, Text: "二级"},
		{Level: 6, Text: "六级"},
	}, nil, nil))
	addPage(t, g, models.NewPageRecord("https://example.test/about", "", "https://example.test/", nil, nil, nil))

	chunks := BuildFlatChunks(g, "https://example.test/", "mindmap", 0)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}

	want := strings.Join([]string{
		"@startmindmap",
		"* https://example.test/",
		"** 首页 欢迎 — https://example.test/",
		"*** 主标题",
		"**** 二级",
		"****** 六级",
		"** https://example.test/about — https://example.test/about",
		"@endmindmap",
		"",
	}, "\n")
	if chunks[0].Text != want {
		t.Errorf("Text =\n%s\nwant\n%s", chunks[0].Text, want)
	}
	if chunks[0].Name != "mindmap_1" || chunks[0].Index != 1 {
		t.Errorf("Name = %q, Index = %d", chunks[0].Name, chunks[0].Index)
	}
}

func TestBuildFlatChunks_Completeness(t *testing.T) {
	g := models.NewSiteGraph()
	for i := 0; i < 45; i++ {
		addPage(t, g, models.NewPageRecord(fmt.Sprintf("https://example.test/p%02d", i), fmt.Sprintf("页面%d", i), "",
			[]models.Heading{{Level: 1, Text: fmt.Sprintf("h-%02d", i)}}, nil, nil))
	}

	chunks := BuildFlatChunks(g, "Site", "out", 20)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}

	var all []string
	for i, c := range chunks {
		if c.Index != i+1 || c.Name != fmt.Sprintf("out_%d", i+1) {
			t.Errorf("chunk[%d] = %d %q", i, c.Index, c.Name)
		}
		if len(c.URLs) > 20 {
			t.Errorf("chunk[%d] 包含 %d 个页面", i, len(c.URLs))
		}
		if !strings.HasPrefix(c.Text, "@startmindmap\n* Site\n") || !strings.HasSuffix(c.Text, "@endmindmap\n") {
			t.Errorf("chunk[%d] 不是完整的图表", i)
		}
		// 页面的标题必须和页面节点在同一个分块
		for _, u := range c.URLs {
			id := strings.TrimPrefix(u, "https://example.test/p")
			if !strings.Contains(c.Text, "*** h-"+id) {
				t.Errorf("chunk[%d] 缺少 %s 的标题", i, u)
			}
		}
		all = append(all, c.URLs...)
	}

	if !sort.StringsAreSorted(all) {
		t.Error("页面没有按URL排序")
	}
	want := g.SortedURLs()
	if strings.Join(all, ",") != strings.Join(want, ",") {
		t.Errorf("分块合并后的URL = %v, want %v", all, want)
	}
}

func TestBuildFlatChunks_Empty(t *testing.T) {
	if chunks := BuildFlatChunks(models.NewSiteGraph(), "Site", "m", 20); len(chunks) != 0 {
		t.Errorf("空图 chunks = %d, want 0", len(chunks))
	}
}

func TestBuildTree(t *testing.T) {
	g := models.NewSiteGraph()
	action := "/login"
	name := "user"
	placeholder := "密码"
	login := models.NewFormRecord(&action, "post", []models.FormField{
		{Name: &name, Type: "text"},
		{Placeholder: &placeholder, Type: "password"},
		{Type: "checkbox"},
	}, []string{"登录", "注册"}, false)

	addPage(t, g, models.NewPageRecord("https://example.test/", "首页", "", nil, nil, nil))
	addPage(t, g, models.NewPageRecord("https://example.test/b", "B", "https://example.test/", nil, nil, nil))
	addPage(t, g, models.NewPageRecord("https://example.test/a", "A", "https://example.test/", nil, nil,
		[]models.FormRecord{login}))
	addPage(t, g, models.NewPageRecord("https://example.test/a/x", "X", "https://example.test/a", nil, nil, nil))
	addPage(t, g, models.NewPageRecord("https://example.test/orphan", "孤立", "https://example.test/missing", nil, nil,
		[]models.FormRecord{models.NewFormRecord(nil, "", nil, nil, false)}))

	got := BuildTree(g, "example.test")
	want := strings.Join([]string{
		"@startmindmap",
		"* example.test",
		"** 首页 (/)",
		"*** A (/a)",
		"**** Form: POST /login",
		"***** Field: user (text)",
		"***** Field: 密码 (password)",
		"***** Field: unnamed (checkbox)",
		"***** Buttons: 登录, 注册",
		"**** X (/a/x)",
		"*** B (/b)",
		"** 孤立 (/orphan)",
		"*** Form: GET",
		"@endmindmap",
		"",
	}, "\n")
	if got != want {
		t.Errorf("BuildTree() =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildTree_Cycle(t *testing.T) {
	// 父指针成环的页面从根到达不了,作为额外的根输出一次
	var g models.SiteGraph
	data := `{
		"https://example.test/": {"url": "https://example.test/", "title": "Home"},
		"https://example.test/a": {"url": "https://example.test/a", "title": "A", "parent": "https://example.test/b"},
		"https://example.test/b": {"url": "https://example.test/b", "title": "B", "parent": "https://example.test/a"}
	}`
	if err := g.UnmarshalJSON([]byte(data)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}

	got := BuildTree(&g, "Site")
	want := strings.Join([]string{
		"@startmindmap",
		"* Site",
		"** Home (/)",
		"** A (/a)",
		"*** B (/b)",
		"@endmindmap",
		"",
	}, "\n")
	if got != want {
		t.Errorf("BuildTree() =\n%s\nwant\n%s", got, want)
	}
}

func TestBuild(t *testing.T) {
	g := models.NewSiteGraph()
	addPage(t, g, models.NewPageRecord("https://example.test/", "首页", "", nil, nil, nil))

	tests := []struct {
		name    string
		style   Style
		wantErr bool
	}{
		{"默认样式", "", false},
		{"flat", StyleFlat, false},
		{"tree", StyleTree, false},
		{"未知样式", Style("radial"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Build(g, tt.style, "Site", "m", 20)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (len(chunks) != 1 || chunks[0].Name != "m_1") {
				t.Errorf("Build() = %+v", chunks)
			}
		})
	}
}
