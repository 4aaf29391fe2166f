package models

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// ValidateURL 验证种子URL: 必须可解析、http/https协议且包含主机名
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议: %s", urlStr)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名: %s", urlStr)
	}
	return nil
}

// StringPtr 返回字符串指针,用于可缺失的HTML属性
func StringPtr(s string) *string {
	return &s
}

// generateID 生成任务ID
func generateID() string {
	return uuid.New().String()
}
