package crawlers

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

const (
	headingSelector = "h1, h2, h3, h4, h5, h6"
	fieldSelector   = "input, textarea, select"
	buttonSelector  = "button, input[type=submit]"
)

// ExtractHTML 从HTML中提取标题、标题层级、链接和表单
//
// 参数:
//   - pageURL: 页面地址,用于解析相对链接(页面中的<base href>优先)
//   - body: 响应体(已解压)
//   - contentType: Content-Type头部,用于识别字符集
//   - includeHidden: 是否保留type=hidden的表单字段
func ExtractHTML(pageURL *url.URL, body []byte, contentType string, includeHidden bool) (*FetchedPage, error) {
	if pageURL == nil {
		return nil, fmt.Errorf("页面URL不能为空")
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		reader = bytes.NewReader(body)
	}

	root, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := pageURL.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	page := &FetchedPage{
		URL:      pageURL.String(),
		FinalURL: pageURL.String(),
		Title:    normalizeSpace(doc.Find("title").First().Text()),
		Headings: extractHeadings(doc),
		Links:    extractLinks(doc, base),
		Forms:    extractForms(doc, includeHidden),
	}
	return page, nil
}

// extractHeadings 按文档顺序提取h1-h6,空标题跳过
func extractHeadings(doc *goquery.Document) []models.Heading {
	headings := make([]models.Heading, 0)
	doc.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		text := normalizeSpace(s.Text())
		if text == "" {
			return
		}
		name := goquery.NodeName(s)
		level := int(name[1] - '0')
		headings = append(headings, models.Heading{Level: level, Text: text})
	})
	return headings
}

// extractLinks 提取a[href]并解析为绝对地址,无法解析的跳过
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			return
		}
		links = append(links, abs.String())
	})
	return links
}

func extractForms(doc *goquery.Document, includeHidden bool) []models.FormRecord {
	forms := make([]models.FormRecord, 0)
	doc.Find("form").Each(func(_ int, f *goquery.Selection) {
		var action *string
		if v, ok := f.Attr("action"); ok {
			action = models.StringPtr(v)
		}
		method, _ := f.Attr("method")

		fields := make([]models.FormField, 0)
		f.Find(fieldSelector).Each(func(_ int, in *goquery.Selection) {
			field := models.FormField{}
			if v, ok := in.Attr("name"); ok {
				field.Name = models.StringPtr(v)
			}
			if v, ok := in.Attr("type"); ok {
				field.Type = strings.ToLower(strings.TrimSpace(v))
			}
			if v, ok := in.Attr("placeholder"); ok {
				field.Placeholder = models.StringPtr(v)
			}
			fields = append(fields, field)
		})

		buttons := make([]string, 0)
		f.Find(buttonSelector).Each(func(_ int, b *goquery.Selection) {
			if label := buttonLabel(b); label != "" {
				buttons = append(buttons, label)
			}
		})

		forms = append(forms, models.NewFormRecord(action, method, fields, buttons, includeHidden))
	})
	return forms
}

// buttonLabel 按钮文字,为空时使用value属性
func buttonLabel(b *goquery.Selection) string {
	if text := normalizeSpace(b.Text()); text != "" {
		return text
	}
	value, _ := b.Attr("value")
	return strings.TrimSpace(value)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
