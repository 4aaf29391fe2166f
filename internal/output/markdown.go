package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/RecoveryAshes/sitemindmap/internal/diagram"
	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/nao1215/markdown"
)

// MarkdownTitle 大纲的一级标题
const MarkdownTitle = "Site Structure"

// WriteMarkdown 输出可直接用Markmap打开的Markdown大纲
//
//	# Site Structure
//	## 页面标题
//	- URL: https://example.com/about
//	- 一级标题
//	  - 二级标题
func WriteMarkdown(w io.Writer, graph *models.SiteGraph, root string) error {
	md := markdown.NewMarkdown(w)
	md.H1(MarkdownTitle)
	if root != "" {
		md.PlainTextf("> %s", diagram.Escape(root))
	}

	for _, page := range graph.Pages() {
		md.PlainText("")
		md.H2(diagram.Escape(page.Title))
		md.BulletList("URL: " + page.URL)
		for _, h := range page.Headings {
			indent := strings.Repeat("  ", h.Level-1)
			md.PlainTextf("%s- %s", indent, diagram.Escape(h.Text))
		}
		for _, form := range page.Forms {
			md.BulletList(strings.TrimSpace(fmt.Sprintf("Form: %s %s", form.Method, form.ActionString())))
			for _, field := range form.Fields {
				md.PlainTextf("  - Field: %s (%s)", diagram.Escape(field.Label()), field.Type)
			}
		}
	}
	md.PlainText("")

	if err := md.Build(); err != nil {
		return fmt.Errorf("写入Markdown失败: %w", err)
	}
	return nil
}
