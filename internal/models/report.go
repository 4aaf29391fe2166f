package models

import (
	"encoding/json"
	"time"
)

// CrawlReport 爬取报告
type CrawlReport struct {
	// 任务信息
	TaskID  string    `json:"task_id"`
	SeedURL string    `json:"seed_url"`
	Domain  string    `json:"domain"`
	Mode    CrawlMode `json:"mode"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 被取消时结果不完整
	Interrupted bool `json:"interrupted,omitempty"`

	// 统计信息
	Stats TaskStats `json:"stats"`

	// URL状态
	Blocked []PageStatus `json:"blocked"`
	Failed  []PageStatus `json:"failed"`

	// 产物
	Artifacts []ArtifactInfo `json:"artifacts"`

	// 配置快照
	Config CrawlConfig `json:"config"`
}

// ArtifactKind 产物类型
type ArtifactKind string

const (
	ArtifactDiagram   ArtifactKind = "diagram"   // PlantUML源文件
	ArtifactImage     ArtifactKind = "image"     // 渲染后的图片
	ArtifactStructure ArtifactKind = "structure" // 结构导出
)

// ArtifactInfo 输出文件信息
type ArtifactInfo struct {
	Kind  ArtifactKind `json:"kind"`
	Path  string       `json:"path"`
	Size  int64        `json:"size"`
	Error string       `json:"error,omitempty"` // 渲染失败时的原因
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
