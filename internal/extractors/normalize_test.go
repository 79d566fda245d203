package extractors

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		pageURL string
		want    string
	}{
		{"绝对URL原样", "https://example.com/a.jpg", "https://example.com/", "https://example.com/a.jpg"},
		{"相对URL按页面解析", "/img/b.png", "https://example.com/page/", "https://example.com/img/b.png"},
		{"剔除utm参数", "https://example.com/a.jpg?utm_source=x&utm_medium=y&id=1", "", "https://example.com/a.jpg?id=1"},
		{"剔除fbclid与gclid", "https://example.com/a?fbclid=abc&gclid=def", "", "https://example.com/a"},
		{"剔除ref与cache", "https://example.com/a?ref=tw&cache=1&keep=2", "", "https://example.com/a?keep=2"},
		{"去掉fragment", "https://example.com/a.jpg#section", "", "https://example.com/a.jpg"},
		{"data URL原样保留", "data:image/png;base64,AAAA", "https://example.com/", "data:image/png;base64,AAAA"},
		{"空串", "", "https://example.com/", ""},
		{"首尾空白", "  https://example.com/a.jpg  ", "", "https://example.com/a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.raw, tt.pageURL); got != tt.want {
				t.Errorf("NormalizeURL(%q, %q) = %q, 期望 %q", tt.raw, tt.pageURL, got, tt.want)
			}
		})
	}
}

// 归一化是幂等的: 二次归一化结果不变
func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"https://example.com/a.jpg?utm_source=x&id=1#frag",
		"/relative/path.png",
		"data:image/png;base64,AAAA",
		"https://example.com/复杂路径/文件.jpg",
	}
	for _, raw := range inputs {
		once := NormalizeURL(raw, "https://example.com/base/")
		twice := NormalizeURL(once, "https://example.com/base/")
		if once != twice {
			t.Errorf("幂等性破坏: %q -> %q -> %q", raw, once, twice)
		}
	}
}
