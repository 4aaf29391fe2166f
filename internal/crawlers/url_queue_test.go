package crawlers

import (
	"testing"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
)

func TestURLQueue_FIFOAndDedup(t *testing.T) {
	q := NewURLQueue()

	if !q.Push(models.URLItem{URL: "a"}) {
		t.Fatal("首次入队应成功")
	}
	if q.Push(models.URLItem{URL: "a", Parent: "x"}) {
		t.Error("队列中已存在的URL不应再次入队")
	}
	q.Push(models.URLItem{URL: "b", Parent: "a"})
	q.Push(models.URLItem{URL: "c", Parent: "a"})

	item, ok := q.Pop()
	if !ok || item.URL != "a" || item.Parent != "" {
		t.Fatalf("Pop() = %+v, %v, want a", item, ok)
	}
	q.MarkVisited(item.URL)

	if q.Push(models.URLItem{URL: "a"}) {
		t.Error("已访问的URL不应再次入队")
	}
	if q.MarkVisited("a") {
		t.Error("重复标记应返回false")
	}

	for _, want := range []string{"b", "c"} {
		item, ok := q.Pop()
		if !ok || item.URL != want {
			t.Errorf("Pop() = %+v, want %s", item, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("空队列Pop应返回false")
	}
}

func TestURLQueue_Counts(t *testing.T) {
	q := NewURLQueue()
	for i := 0; i < 200; i++ {
		q.Push(models.URLItem{URL: string(rune('A'+i%26)) + string(rune('0'+i/26))})
	}
	if q.PendingCount() != 200 {
		t.Fatalf("PendingCount() = %d, want 200", q.PendingCount())
	}

	// 出队超过一半会触发压缩,计数应保持正确
	for i := 0; i < 150; i++ {
		item, _ := q.Pop()
		q.MarkVisited(item.URL)
	}
	if q.PendingCount() != 50 || q.VisitedCount() != 150 || q.Admitted() != 200 {
		t.Errorf("计数错误: pending=%d visited=%d admitted=%d", q.PendingCount(), q.VisitedCount(), q.Admitted())
	}

	remaining := 0
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		remaining++
	}
	if remaining != 50 {
		t.Errorf("剩余 %d 个, want 50", remaining)
	}

	q.Reset()
	if q.Admitted() != 0 {
		t.Error("Reset后应为空")
	}
}
