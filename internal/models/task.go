package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// CrawlMode 抓取模式
type CrawlMode string

const (
	ModeStatic  CrawlMode = "static"  // HTTP抓取 + HTML解析
	ModeBrowser CrawlMode = "browser" // 无头浏览器渲染后查询DOM
)

// PageState 单个URL在爬取过程中的状态
type PageState string

const (
	StatePending PageState = "pending"         // 在待爬队列中
	StateBlocked PageState = "visited-blocked" // robots.txt拒绝
	StateFailed  PageState = "visited-failed"  // 抓取失败或非2xx
	StateOK      PageState = "visited-ok"      // 已生成PageRecord
)

// PageStatus URL状态记录
type PageStatus struct {
	URL    string    `json:"url"`
	Parent string    `json:"parent,omitempty"`
	State  PageState `json:"state"`
	Cause  string    `json:"cause,omitempty"`
}

// TaskStats 任务统计
type TaskStats struct {
	VisitedURLs   int     `json:"visited_urls"`   // 已出队的URL数
	Pages         int     `json:"pages"`          // 成功生成的页面记录数
	BlockedURLs   int     `json:"blocked_urls"`   // robots.txt拒绝数
	FailedURLs    int     `json:"failed_urls"`    // 抓取失败数
	Chunks        int     `json:"chunks"`         // 生成的图表分块数
	RenderedFiles int     `json:"rendered_files"` // 渲染成功的图片数
	RenderErrors  int     `json:"render_errors"`  // 渲染失败数
	Duration      float64 `json:"duration"`       // 总耗时(秒)
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	MaxPages            int       `mapstructure:"max_pages" json:"max_pages" validate:"min=1,max=100000"`              // 页面预算 (默认:100)
	Delay               float64   `mapstructure:"delay" json:"delay" validate:"min=0,max=60"`                          // 每个worker请求间隔(秒) (默认:0.6)
	Workers             int       `mapstructure:"workers" json:"workers" validate:"min=1,max=32"`                      // 并发抓取数 (默认:1)
	Timeout             int       `mapstructure:"timeout" json:"timeout" validate:"min=1,max=600"`                     // 单页超时(秒) (默认:30)
	Mode                CrawlMode `mapstructure:"mode" json:"mode" validate:"oneof=static browser"`                    // 抓取模式 (默认:static)
	Headless            bool      `mapstructure:"headless" json:"headless"`                                            // 浏览器模式是否无头 (默认:true)
	IncludeHiddenFields bool      `mapstructure:"include_hidden_fields" json:"include_hidden_fields"`                  // 是否保留hidden字段
	MaxTabsLimit        int       `mapstructure:"max_tabs_limit" json:"max_tabs_limit" validate:"min=1,max=32"`        // 浏览器标签页上限 (默认:8)
	InsecureSkipVerify  bool      `mapstructure:"insecure_skip_verify" json:"insecure_skip_verify"`                    // 跳过TLS证书验证
	SafetyReserveMemory int       `mapstructure:"safety_reserve_memory" json:"safety_reserve_memory" validate:"min=0"` // 安全保留内存(MB)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator 返回共享的结构体校验器
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if err := Validator().Struct(c); err != nil {
		return fmt.Errorf("爬取配置无效: %w", err)
	}
	return nil
}

// DelayDuration 请求间隔
func (c *CrawlConfig) DelayDuration() time.Duration {
	return time.Duration(c.Delay * float64(time.Second))
}

// TimeoutDuration 单页超时
func (c *CrawlConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CrawlTask 爬取任务
type CrawlTask struct {
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	SeedURL     string     `json:"seed_url"`               // 种子URL
	Domain      string     `json:"domain"`                 // 解析的域名
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Config CrawlConfig `json:"config"`
	Status TaskStatus  `json:"status"`
	Stats  TaskStats   `json:"stats"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewCrawlTask 创建新任务,种子URL或配置无效时返回错误(不会发起任何网络请求)
func NewCrawlTask(seedURL string, config CrawlConfig) (*CrawlTask, error) {
	if err := ValidateURL(seedURL); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	parsed, _ := url.Parse(seedURL)

	return &CrawlTask{
		ID:        generateID(),
		SeedURL:   seedURL,
		Domain:    parsed.Host,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    TaskStatusPending,
	}, nil
}

// Start 标记任务开始
func (t *CrawlTask) Start() {
	now := time.Now()
	t.StartedAt = &now
	t.Status = TaskStatusRunning
}

// Finish 标记任务结束
func (t *CrawlTask) Finish(err error) {
	now := time.Now()
	t.CompletedAt = &now
	if err != nil {
		t.Status = TaskStatusFailed
		t.ErrorMessage = err.Error()
		return
	}
	t.Status = TaskStatusCompleted
}

// ToJSON 序列化为JSON
func (t *CrawlTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// FromJSON 从JSON反序列化
func (t *CrawlTask) FromJSON(data []byte) error {
	return json.Unmarshal(data, t)
}
