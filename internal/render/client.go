// Package render 通过远程PlantUML服务器把图表渲染为图片
package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/sitemindmap/internal/diagram"
	"github.com/RecoveryAshes/sitemindmap/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultServer      = "https://www.plantuml.com/plantuml"
	DefaultFormat      = "svg"
	DefaultConcurrency = 2
	DefaultTimeout     = 30 * time.Second

	// maxErrorBody 错误信息中保留的响应体长度
	maxErrorBody = 200
)

// Config 渲染客户端配置
type Config struct {
	Server      string        // 服务器地址,如 https://www.plantuml.com/plantuml
	Format      string        // 输出格式: svg, png, txt
	Concurrency int           // 同时渲染的分块数
	Timeout     time.Duration // 单次请求超时
	UserAgent   string
}

// RenderError 服务器返回非200状态
type RenderError struct {
	URL        string
	StatusCode int
	Body       string // 截断后的响应体
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("渲染服务器返回 %d: %s", e.StatusCode, e.Body)
}

// Client 渲染客户端
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient 创建渲染客户端,httpClient为nil时使用带超时的默认客户端
func NewClient(config Config, httpClient *http.Client) *Client {
	if config.Server == "" {
		config.Server = DefaultServer
	}
	config.Server = strings.TrimRight(config.Server, "/")
	if config.Format == "" {
		config.Format = DefaultFormat
	}
	if config.Concurrency < 1 {
		config.Concurrency = DefaultConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{config: config, httpClient: httpClient}
}

// Format 输出格式(也是图片文件扩展名)
func (c *Client) Format() string {
	return c.config.Format
}

// URL 返回token对应的图片地址: <server>/<format>/<token>
func (c *Client) URL(token string) string {
	return fmt.Sprintf("%s/%s/%s", c.config.Server, c.config.Format, token)
}

// Render 请求服务器渲染token,成功时返回图片内容
func (c *Client) Render(ctx context.Context, token string) ([]byte, error) {
	target := c.URL(token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("创建渲染请求失败: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	utils.Debugf("请求渲染服务器: %s", utils.Truncate(target, 120))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求渲染服务器失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取渲染结果失败: %w", err)
	}
	body, err = utils.DecompressBody(resp.Header.Get("Content-Encoding"), body)
	if err != nil {
		return nil, fmt.Errorf("解压渲染结果失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RenderError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       utils.Truncate(string(body), maxErrorBody),
		}
	}
	return body, nil
}

// RenderText 编码并渲染图表文本
func (c *Client) RenderText(ctx context.Context, text string) ([]byte, error) {
	return c.Render(ctx, diagram.Encode(text))
}

// Result 单个分块的渲染结果
type Result struct {
	Chunk diagram.Chunk
	Path  string // 图片路径,失败时为空
	Size  int64
	Err   error
}

// RenderChunks 并发渲染所有分块,图片写入 <dir>/<chunk.Name>.<format>
// 单个分块失败不影响其他分块,结果按分块顺序返回
func (c *Client) RenderChunks(ctx context.Context, chunks []diagram.Chunk, dir string, onDone func(Result)) []Result {
	results := make([]Result, len(chunks))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(c.config.Concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			res := Result{Chunk: chunk}
			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Path, res.Size, res.Err = c.renderToFile(ctx, chunk, dir)
			}

			if res.Err != nil {
				utils.Warnf("分块 %s 渲染失败: %v", chunk.Name, res.Err)
			} else {
				utils.Infof("✅ 已保存图片: %s", res.Path)
			}

			mu.Lock()
			results[i] = res
			if onDone != nil {
				onDone(res)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Client) renderToFile(ctx context.Context, chunk diagram.Chunk, dir string) (string, int64, error) {
	image, err := c.RenderText(ctx, chunk.Text)
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, chunk.Name+"."+c.config.Format)
	if err := os.WriteFile(path, image, 0644); err != nil {
		return "", 0, fmt.Errorf("写入图片失败: %w", err)
	}
	return path, int64(len(image)), nil
}
