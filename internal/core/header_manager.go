package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/RecoveryAshes/sitemindmap/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "sitemindmap-bot/1.0 (+https://github.com/RecoveryAshes/sitemindmap)"

	// DefaultAccept 默认Accept
	DefaultAccept = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
)

// HeaderManager 管理HTTP请求头
// 实现 models.HeaderProvider 接口,优先级: 默认 < 配置文件(http.headers) < 命令行(-H)
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor

	// 合并结果,第一次GetHeaders时校验并缓存
	once      sync.Once
	merged    http.Header
	mergedErr error
}

// NewHeaderManager 创建头部管理器
// 参数:
//   - configHeaders: 配置文件中的 http.headers
//   - cliHeaders: 命令行传递的 "Name: Value" 列表
//
// 命令行参数格式错误时返回错误
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:  getDefaultHeaders(),
		config:    make(http.Header),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}

	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}
	hm.cli = cli

	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{DefaultAccept},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// Validate 验证所有头部的合法性
// 验证顺序: 默认 → 配置 → 命令行
func (hm *HeaderManager) Validate() error {
	if err := hm.validator.Validate(hm.defaults); err != nil {
		utils.Errorf("默认头部验证失败: %v", err)
		return err
	}

	if err := hm.validator.Validate(hm.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return err
	}

	if err := hm.validator.Validate(hm.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}

	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// GetMergedHeaders 按优先级合并头部 (default < config < cli)
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = append([]string(nil), values...)
		}
	}
	return result
}

// UserAgent 生效的User-Agent
func (hm *HeaderManager) UserAgent() string {
	return hm.GetMergedHeaders().Get("User-Agent")
}

// SafeString 脱敏后的头部,用于日志
func (hm *HeaderManager) SafeString() string {
	return hm.redactor.RedactToString(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口,返回合并后头部的副本,可并发调用
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(func() {
		if err := hm.Validate(); err != nil {
			hm.mergedErr = err
			return
		}
		hm.merged = hm.GetMergedHeaders()
	})
	if hm.mergedErr != nil {
		return nil, hm.mergedErr
	}
	return hm.merged.Clone(), nil
}
