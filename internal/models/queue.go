package models

// URLItem 表示待爬队列中的一项
// 用途:
//   - 在调度协程和worker之间传递URL及其父页面
//   - Parent为空串表示种子URL
type URLItem struct {
	// URL 规范化后的URL
	URL string

	// Parent 发现此URL的页面(规范化URL)
	Parent string
}
