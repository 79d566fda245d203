package extractors

import (
	"net/url"
	"strings"
)

// trackingParams 归一化时剔除的跟踪参数
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "ref", "cache", "fbclid", "gclid",
}

// NormalizeURL 归一化媒体URL: 相对于页面地址解析绝对URL并剔除跟踪参数
// data:URL原样保留; 归一化是幂等的, 二次归一化结果不变
func NormalizeURL(raw, pageURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "data:") {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if !parsed.IsAbs() && pageURL != "" {
		base, baseErr := url.Parse(pageURL)
		if baseErr == nil {
			parsed = base.ResolveReference(parsed)
		}
	}

	query := parsed.Query()
	for _, param := range trackingParams {
		query.Del(param)
	}
	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""

	return parsed.String()
}
