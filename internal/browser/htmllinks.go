package browser

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// ExtractLinksFromHTML 从静态HTML中提取http(s)锚点
// 页面内JS求值不可用时的降级路径, 语义与页面内提取保持一致:
// 相对链接按baseURL解析, 锚文本截断到100字符
func ExtractLinksFromHTML(rawHTML, baseURL string, phase int, timestamp int64) []models.Discovery {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		utils.Warnf("解析HTML失败: %v", err)
		return []models.Discovery{}
	}

	var base *url.URL
	if baseURL != "" {
		base, _ = url.Parse(baseURL)
	}

	discoveries := []models.Discovery{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var href, title string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "href":
					href = attr.Val
				case "title":
					title = attr.Val
				}
			}
			if resolved := resolveHref(base, href); strings.HasPrefix(resolved, "http") {
				discoveries = append(discoveries, models.Discovery{
					URL:                   resolved,
					AnchorText:            utils.TruncateString(strings.TrimSpace(textContent(n)), 100),
					Title:                 title,
					DiscoveredAtPhase:     phase,
					DiscoveredAtTimestamp: timestamp,
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return discoveries
}

// resolveHref 相对于base解析链接, 无base时原样返回
func resolveHref(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// textContent 收集节点子树的全部文本
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
