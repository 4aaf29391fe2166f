package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func page(u, parent string) *PageRecord {
	return NewPageRecord(u, "", parent, nil, nil, nil)
}

func TestSiteGraph_Add(t *testing.T) {
	g := NewSiteGraph()
	if err := g.Add(page("https://example.com/", "")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	err := g.Add(page("https://example.com/", ""))
	if !errors.Is(err, ErrDuplicatePage) {
		t.Errorf("重复添加应返回ErrDuplicatePage, got %v", err)
	}
	if err := g.Add(nil); err == nil {
		t.Error("nil记录应返回错误")
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

func TestSiteGraph_Forest(t *testing.T) {
	g := NewSiteGraph()
	pages := []*PageRecord{
		page("https://example.com/", ""),
		page("https://example.com/b", "https://example.com/"),
		page("https://example.com/a", "https://example.com/"),
		page("https://example.com/a/x", "https://example.com/a"),
		page("https://example.com/orphan", "https://example.com/gone"),
		page("https://example.com/self", "https://example.com/self"),
	}
	for _, p := range pages {
		if err := g.Add(p); err != nil {
			t.Fatalf("Add(%s) error = %v", p.URL, err)
		}
	}

	roots := g.Roots()
	wantRoots := []string{"https://example.com/", "https://example.com/orphan", "https://example.com/self"}
	if len(roots) != len(wantRoots) {
		t.Fatalf("根数量 = %d, want %d", len(roots), len(wantRoots))
	}
	for i, r := range roots {
		if r.URL != wantRoots[i] {
			t.Errorf("roots[%d] = %s, want %s", i, r.URL, wantRoots[i])
		}
	}

	children := g.Children("https://example.com/")
	if len(children) != 2 || children[0].URL != "https://example.com/a" {
		t.Errorf("子页面应按URL排序: %+v", children)
	}
	if len(g.Children("https://example.com/self")) != 0 {
		t.Error("自引用不应出现在子页面列表中")
	}

	depth, err := g.Depth("https://example.com/a/x")
	if err != nil || depth != 2 {
		t.Errorf("Depth() = %d, %v, want 2", depth, err)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSiteGraph_Cycle(t *testing.T) {
	g := NewSiteGraph()
	_ = g.Add(page("https://example.com/a", "https://example.com/b"))
	_ = g.Add(page("https://example.com/b", "https://example.com/a"))

	if err := g.Validate(); !errors.Is(err, ErrParentCycle) {
		t.Errorf("Validate() = %v, want ErrParentCycle", err)
	}
}

func TestSiteGraph_JSON(t *testing.T) {
	g := NewSiteGraph()
	_ = g.Add(page("https://example.com/", ""))
	_ = g.Add(page("https://example.com/a", "https://example.com/"))

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("输出应为 url -> record 对象: %v", err)
	}
	if _, ok := raw["https://example.com/a"]; !ok {
		t.Error("缺少键 https://example.com/a")
	}

	decoded := NewSiteGraph()
	if err := json.Unmarshal(data, decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded.Len() != 2 {
		t.Errorf("Len() = %d, want 2", decoded.Len())
	}
	if len(decoded.Children("https://example.com/")) != 1 {
		t.Error("反序列化后应重建父子索引")
	}
}
