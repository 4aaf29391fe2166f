package models

import (
	"fmt"
	"net/http"
	"strings"
)

// CliHeaders 命令行 -H/--header 传入的头部列表,每项格式为 "Name: Value"
type CliHeaders []string

// Parse 解析为 http.Header,同名头部后者覆盖前者
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := parseHeaderString(s)
		if err != nil {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

func parseHeaderString(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("缺少冒号分隔符,应为 'Name: Value'")
	}

	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return "", "", fmt.Errorf("头部名称不能为空")
	}
	return name, value, nil
}

// HeaderProvider 请求头提供者
// 静态抓取器、robots.txt获取和渲染客户端都通过它拿到最终生效的请求头
type HeaderProvider interface {
	// GetHeaders 返回按优先级合并后的请求头(默认 < 配置文件 < 命令行)
	GetHeaders() (http.Header, error)
}

// ValidationError 请求头校验错误
type ValidationError struct {
	Field      string // "name" 或 "value"
	HeaderName string
	Reason     string
	Suggestion string // 修复建议(可选)
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	FilePath string
	Cause    error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
