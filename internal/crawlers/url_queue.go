package crawlers

import "github.com/RecoveryAshes/sitemindmap/internal/models"

// URLQueue 待爬队列(Frontier)与已访问集合(VisitedSet)
//
// 出队顺序为FIFO(广度优先)。队列对自身和已访问集合去重:
// 已在队列中或已出队访问过的URL不会再次入队。
// URLQueue不加锁,只能由爬取引擎的调度协程使用。
type URLQueue struct {
	// 待处理URL,pending[head:]为有效部分
	pending []models.URLItem
	head    int

	// 当前在队列中的URL
	queued map[string]struct{}

	// 已出队的URL,只增不减
	visited map[string]struct{}
}

// NewURLQueue 创建空队列
func NewURLQueue() *URLQueue {
	return &URLQueue{
		pending: make([]models.URLItem, 0, 64),
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// Push 入队,URL已访问或已在队列中时返回false
func (q *URLQueue) Push(item models.URLItem) bool {
	if _, ok := q.visited[item.URL]; ok {
		return false
	}
	if _, ok := q.queued[item.URL]; ok {
		return false
	}
	q.pending = append(q.pending, item)
	q.queued[item.URL] = struct{}{}
	return true
}

// Pop 取出队首,队列为空时返回false
func (q *URLQueue) Pop() (models.URLItem, bool) {
	if q.head >= len(q.pending) {
		return models.URLItem{}, false
	}
	item := q.pending[q.head]
	q.pending[q.head] = models.URLItem{}
	q.head++
	delete(q.queued, item.URL)

	// 已消费部分过半时压缩底层数组
	if q.head > 64 && q.head*2 >= len(q.pending) {
		n := copy(q.pending, q.pending[q.head:])
		q.pending = q.pending[:n]
		q.head = 0
	}
	return item, true
}

// MarkVisited 标记为已访问,之前已访问过时返回false
func (q *URLQueue) MarkVisited(u string) bool {
	if _, ok := q.visited[u]; ok {
		return false
	}
	q.visited[u] = struct{}{}
	return true
}

// IsVisited 检查URL是否已访问
func (q *URLQueue) IsVisited(u string) bool {
	_, ok := q.visited[u]
	return ok
}

// IsQueued 检查URL是否在队列中
func (q *URLQueue) IsQueued(u string) bool {
	_, ok := q.queued[u]
	return ok
}

// PendingCount 队列中待处理URL数
func (q *URLQueue) PendingCount() int {
	return len(q.pending) - q.head
}

// VisitedCount 已访问URL数
func (q *URLQueue) VisitedCount() int {
	return len(q.visited)
}

// Admitted 已接纳的URL总数(已访问 + 待处理),用于页面预算判断
func (q *URLQueue) Admitted() int {
	return q.VisitedCount() + q.PendingCount()
}

// Reset 清空队列和已访问集合
func (q *URLQueue) Reset() {
	q.pending = q.pending[:0]
	q.head = 0
	q.queued = make(map[string]struct{})
	q.visited = make(map[string]struct{})
}
