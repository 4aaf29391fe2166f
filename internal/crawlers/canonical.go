package crawlers

import (
	"net/url"
	"strings"
)

// defaultPorts 各协议的默认端口,规范化时去掉
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Canonicalize 将raw相对base解析为规范化URL
//
// 规则:
//   - 相对链接按base解析,去掉片段(#...)
//   - 协议和主机名小写,去掉默认端口
//   - 去掉路径末尾的斜杠,根路径保持为"/"
//   - 去掉查询串(链接去重只看路径)
//   - 非http/https或无法解析时返回 ok=false
//
// 爬取过程中所有进入待爬队列的URL都必须经过此函数。
func Canonicalize(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	// 没有base时也走一次解析,保证"."和".."段的处理与相对链接一致
	u := ref.ResolveReference(ref)
	if base != nil {
		u = base.ResolveReference(ref)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]" // IPv6字面量
	}
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host += ":" + port
	}

	rawPath := ""
	if u.RawPath != "" {
		rawPath = trimTrailingSlash(u.RawPath)
	}

	out := &url.URL{
		Scheme:  scheme,
		User:    u.User,
		Host:    host,
		Path:    trimTrailingSlash(u.Path),
		RawPath: rawPath,
	}

	return out.String(), true
}

func trimTrailingSlash(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// SameDomain 判断target是否属于种子主机(同一主机或其子域名)
func SameDomain(seedHost string, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	seed := strings.ToLower((&url.URL{Host: seedHost}).Hostname())
	host := strings.ToLower(u.Hostname())
	if host == "" || seed == "" {
		return false
	}
	return host == seed || strings.HasSuffix(host, "."+seed)
}

// PathOf 返回URL的路径部分,空路径返回"/"
func PathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.EscapedPath()
}

// DomainRoot 返回URL的 scheme://host 部分
func DomainRoot(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}
