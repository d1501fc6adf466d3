package util

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizePattern 规范化规则条目：去空白、转小写
func NormalizePattern(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// NormalizeDomain 规范化域名，去掉末尾的点
func NormalizeDomain(domain string) string {
	return strings.TrimRight(NormalizePattern(domain), ".")
}

// HasSpaceOrControl 检查字符串中是否含有空白或控制字符
func HasSpaceOrControl(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0
}

// HostOf 返回 URL 的主机部分，无法解析时返回空字符串
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Truncate 把过长的字符串截断到至多 n 个字节并加上省略号，不会截断多字节字符
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
