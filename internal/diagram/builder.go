// Package diagram 把站点结构图转换为PlantUML思维导图文本
package diagram

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/sitemindmap/internal/crawlers"
	"github.com/RecoveryAshes/sitemindmap/internal/models"
)

// DefaultChunkSize 每个分块最多包含的页面数
const DefaultChunkSize = 20

// Style 图表样式
type Style string

const (
	StyleFlat Style = "flat" // 每个页面一个节点,按URL分块
	StyleTree Style = "tree" // 按父子关系生成单个层级图
)

// maxHeadingNesting 标题最多在页面节点下嵌套的层数
const maxHeadingNesting = 4

// Chunk 一个独立可渲染的图表
type Chunk struct {
	Index int      // 从1开始
	Name  string   // 文件名(不含扩展名),如 mindmap_1
	Text  string   // PlantUML文本
	URLs  []string // 包含的页面URL
}

// Escape 把换行和回车替换为空格并去掉首尾空白
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// node 输出一行节点,depth为星号数量
func node(b *strings.Builder, depth int, text string) {
	b.WriteString(strings.Repeat("*", depth))
	b.WriteByte(' ')
	b.WriteString(Escape(text))
	b.WriteByte('\n')
}

func begin(b *strings.Builder, rootName string) {
	b.WriteString("@startmindmap\n")
	node(b, 1, rootName)
}

func end(b *strings.Builder) {
	b.WriteString("@endmindmap\n")
}

// headingDepth 标题对应的节点深度,h1在页面节点下一层,h4及以下收敛到最深一层
func headingDepth(level int) int {
	nesting := level - 1
	if nesting < 0 {
		nesting = 0
	}
	if nesting > maxHeadingNesting-1 {
		nesting = maxHeadingNesting - 1
	}
	return 3 + nesting
}

// BuildFlatChunks 按URL排序后每chunkSize个页面生成一个图表
// 每个页面及其全部标题总在同一个分块中
func BuildFlatChunks(graph *models.SiteGraph, rootName, prefix string, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	pages := graph.Pages()
	chunks := make([]Chunk, 0, (len(pages)+chunkSize-1)/chunkSize)

	for start := 0; start < len(pages); start += chunkSize {
		stop := start + chunkSize
		if stop > len(pages) {
			stop = len(pages)
		}

		var b strings.Builder
		begin(&b, rootName)
		urls := make([]string, 0, stop-start)
		for _, page := range pages[start:stop] {
			node(&b, 2, fmt.Sprintf("%s — %s", page.Title, page.URL))
			for _, h := range page.Headings {
				node(&b, headingDepth(h.Level), h.Text)
			}
			urls = append(urls, page.URL)
		}
		end(&b)

		index := len(chunks) + 1
		chunks = append(chunks, Chunk{
			Index: index,
			Name:  ChunkName(prefix, index),
			Text:  b.String(),
			URLs:  urls,
		})
	}
	return chunks
}

// ChunkName 分块文件名: <prefix>_<index>
func ChunkName(prefix string, index int) string {
	return fmt.Sprintf("%s_%d", prefix, index)
}

// treeFrame 迭代遍历时的栈帧
type treeFrame struct {
	page  *models.PageRecord
	depth int
}

// BuildTree 按父子关系生成层级图
// 使用显式栈遍历,已输出的页面不会再次输出,父指针有环时也能结束。
// 从根节点到达不了的页面(环上的页面)作为额外的根输出。
func BuildTree(graph *models.SiteGraph, rootName string) string {
	var b strings.Builder
	begin(&b, rootName)

	visited := make(map[string]bool, graph.Len())
	walkTree(&b, graph, graph.Roots(), visited)

	for _, u := range graph.SortedURLs() {
		if visited[u] {
			continue
		}
		if page, ok := graph.Get(u); ok {
			walkTree(&b, graph, []*models.PageRecord{page}, visited)
		}
	}

	end(&b)
	return b.String()
}

// walkTree 从roots开始深度优先输出,跳过visited中已有的页面
func walkTree(b *strings.Builder, graph *models.SiteGraph, roots []*models.PageRecord, visited map[string]bool) {
	stack := make([]treeFrame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, treeFrame{page: roots[i], depth: 2})
	}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		page := frame.page
		if visited[page.URL] {
			continue
		}
		visited[page.URL] = true

		node(b, frame.depth, fmt.Sprintf("%s (%s)", page.Title, crawlers.PathOf(page.URL)))
		writeForms(b, frame.depth+1, page.Forms)

		children := graph.Children(page.URL)
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i].URL] {
				stack = append(stack, treeFrame{page: children[i], depth: frame.depth + 1})
			}
		}
	}
}

// writeForms 表单节点: 方法和action,下面是字段和按钮
func writeForms(b *strings.Builder, depth int, forms []models.FormRecord) {
	for _, form := range forms {
		node(b, depth, strings.TrimSpace(fmt.Sprintf("Form: %s %s", form.Method, form.ActionString())))
		for _, field := range form.Fields {
			node(b, depth+1, fmt.Sprintf("Field: %s (%s)", field.Label(), field.Type))
		}
		if len(form.Buttons) > 0 {
			node(b, depth+1, "Buttons: "+strings.Join(form.Buttons, ", "))
		}
	}
}

// Build 按样式生成分块,tree样式只有一个分块
func Build(graph *models.SiteGraph, style Style, rootName, prefix string, chunkSize int) ([]Chunk, error) {
	switch style {
	case StyleFlat, "":
		return BuildFlatChunks(graph, rootName, prefix, chunkSize), nil
	case StyleTree:
		if graph.Len() == 0 {
			return []Chunk{}, nil
		}
		return []Chunk{{
			Index: 1,
			Name:  ChunkName(prefix, 1),
			Text:  BuildTree(graph, rootName),
			URLs:  graph.SortedURLs(),
		}}, nil
	default:
		return nil, fmt.Errorf("未知的图表样式: %s", style)
	}
}
