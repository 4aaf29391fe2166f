package models

import (
	"strings"
)

// MaxHeadingLevel HTML标题的最大级别(h6)
const MaxHeadingLevel = 6

// DefaultFormMethod 表单未声明method时的默认值
const DefaultFormMethod = "GET"

// DefaultFieldType 输入控件未声明type时的默认值
const DefaultFieldType = "text"

// Heading 页面标题(h1-h6)
type Heading struct {
	Level int    `json:"level" yaml:"level"` // 级别 1..6
	Text  string `json:"text" yaml:"text"`   // 标题文本
}

// FormField 表单字段(input/textarea/select)
type FormField struct {
	Name        *string `json:"name" yaml:"name"`               // name属性(可能缺失)
	Type        string  `json:"type" yaml:"type"`               // type属性,缺失时为text
	Placeholder *string `json:"placeholder" yaml:"placeholder"` // placeholder属性(可能缺失)
}

// IsHidden 是否为隐藏字段
func (f FormField) IsHidden() bool {
	return strings.EqualFold(f.Type, "hidden")
}

// Label 返回用于展示的字段名: name > placeholder > "unnamed"
func (f FormField) Label() string {
	if f.Name != nil && *f.Name != "" {
		return *f.Name
	}
	if f.Placeholder != nil && *f.Placeholder != "" {
		return *f.Placeholder
	}
	return "unnamed"
}

// FormRecord 表单描述,挂到PageRecord后不再修改
type FormRecord struct {
	Action  *string     `json:"action" yaml:"action"`   // action属性,原样保留(含查询串)
	Method  string      `json:"method" yaml:"method"`   // 请求方法,默认GET
	Fields  []FormField `json:"inputs" yaml:"inputs"`   // 字段列表(按文档顺序)
	Buttons []string    `json:"buttons" yaml:"buttons"` // 按钮文字
}

// NewFormRecord 创建表单记录
// includeHidden为false时丢弃type=hidden的字段
func NewFormRecord(action *string, method string, fields []FormField, buttons []string, includeHidden bool) FormRecord {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = DefaultFormMethod
	}

	kept := make([]FormField, 0, len(fields))
	for _, f := range fields {
		if f.Type == "" {
			f.Type = DefaultFieldType
		}
		if !includeHidden && f.IsHidden() {
			continue
		}
		kept = append(kept, f)
	}

	return FormRecord{
		Action:  action,
		Method:  method,
		Fields:  kept,
		Buttons: append(make([]string, 0, len(buttons)), buttons...),
	}
}

// ActionString 返回action,缺失时返回空串
func (f FormRecord) ActionString() string {
	if f.Action == nil {
		return ""
	}
	return *f.Action
}

// PageRecord 单个页面的结构信息
// 首次成功抓取时创建一次,之后只读,由SiteGraph独占持有
type PageRecord struct {
	URL      string       `json:"url" yaml:"url"`                           // 规范化URL(唯一键)
	Title    string       `json:"title" yaml:"title"`                       // 页面标题
	Headings []Heading    `json:"headings" yaml:"headings"`                 // 标题层级
	Links    []string     `json:"links" yaml:"links"`                       // 站内链接(规范化,已排序)
	Forms    []FormRecord `json:"forms" yaml:"forms"`                       // 表单
	Parent   string       `json:"parent,omitempty" yaml:"parent,omitempty"` // 首次发现该页面的父页面,空串表示根
}

// NewPageRecord 创建页面记录,所有切片都会被复制
func NewPageRecord(pageURL, title, parent string, headings []Heading, links []string, forms []FormRecord) *PageRecord {
	if title == "" {
		title = pageURL
	}
	return &PageRecord{
		URL:      pageURL,
		Title:    title,
		Headings: append(make([]Heading, 0, len(headings)), headings...),
		Links:    append(make([]string, 0, len(links)), links...),
		Forms:    append(make([]FormRecord, 0, len(forms)), forms...),
		Parent:   parent,
	}
}

// HasParent 是否有父页面
func (p *PageRecord) HasParent() bool {
	return p.Parent != ""
}
