package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
)

// MaxHeaderValueLength 请求头值最大长度 (8KB)
const MaxHeaderValueLength = 8192

var (
	// ForbiddenHeaders 由HTTP客户端管理、不允许自定义的头部
	ForbiddenHeaders = []string{"Host", "Content-Length", "Transfer-Encoding", "Connection"}

	// SensitiveKeywords 日志中需要脱敏的头部名称关键字
	SensitiveKeywords = []string{"authorization", "cookie", "token", "key", "secret", "password", "credential"}

	headerNamePattern  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValuePattern = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// HeaderValidator 按RFC 7230校验请求头
type HeaderValidator struct {
	maxValueLength int
	forbidden      map[string]bool
}

// NewHeaderValidator 创建校验器
func NewHeaderValidator() *HeaderValidator {
	forbidden := make(map[string]bool, len(ForbiddenHeaders))
	for _, h := range ForbiddenHeaders {
		forbidden[strings.ToLower(h)] = true
	}
	return &HeaderValidator{
		maxValueLength: MaxHeaderValueLength,
		forbidden:      forbidden,
	}
}

// IsForbidden 检查头部是否被禁止
func (hv *HeaderValidator) IsForbidden(name string) bool {
	return hv.forbidden[strings.ToLower(name)]
}

// ValidateHeader 校验单个头部,失败时返回*models.ValidationError
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	switch {
	case name == "":
		return &models.ValidationError{Field: "name", HeaderName: name, Reason: "头部名称不能为空"}
	case hv.IsForbidden(name):
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "此头部由HTTP客户端自动管理,不允许自定义",
			Suggestion: fmt.Sprintf("移除 '%s' 头部配置", name),
		}
	case !headerNamePattern.MatchString(name):
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称包含非法字符 (仅允许字母、数字和连字符)",
			Suggestion: "例如 'User-Agent', 'X-Custom-Header'",
		}
	case len(value) > hv.maxValueLength:
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), hv.maxValueLength),
		}
	case !headerValuePattern.MatchString(value):
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     "头部值包含非法字符 (仅允许可打印ASCII字符)",
			Suggestion: "移除控制字符和非ASCII字符",
		}
	}
	return nil
}

// Validate 校验全部头部,返回第一个错误(按名称排序)
func (hv *HeaderValidator) Validate(headers http.Header) error {
	for _, name := range sortedHeaderNames(headers) {
		for _, value := range headers[name] {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// HeaderRedactor 日志输出前对敏感头部脱敏
type HeaderRedactor struct {
	keywords []string
}

// NewHeaderRedactor 创建脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{keywords: SensitiveKeywords}
}

// IsSensitiveHeader 根据名称关键字判断是否敏感
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range hr.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 脱敏单个值: Bearer只保留前缀,长值保留首尾4位,短值完全隐藏
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// RedactToString 返回 "Name: value, ..." 形式的脱敏字符串,按名称排序
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	parts := make([]string, 0, len(headers))
	for _, name := range sortedHeaderNames(headers) {
		values := headers[name]
		if len(values) == 0 {
			continue
		}
		parts = append(parts, name+": "+hr.RedactHeaderValue(name, values[0]))
	}
	return strings.Join(parts, ", ")
}

func sortedHeaderNames(headers http.Header) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
