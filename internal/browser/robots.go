package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// ErrRobotsBlocked 目标URL被robots策略禁止访问
var ErrRobotsBlocked = fmt.Errorf("目标URL被robots.txt禁止")

// RobotsPolicy 封装单个站点的robots.txt规则
// 为nil时表示不执行任何限制(获取失败即无策略)
type RobotsPolicy struct {
	origin    string
	userAgent string
	rules     *robotstxt.RobotsData
}

// FetchRobotsPolicy 获取并解析目标来源的robots.txt
// 任何失败都返回nil策略, 调用方按无限制处理
func FetchRobotsPolicy(ctx context.Context, pageURL, userAgent string, client *http.Client) *RobotsPolicy {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil
	}
	origin := parsed.Scheme + "://" + parsed.Host

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	robotsURL := origin + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		utils.Debugf("构造robots请求失败 [%s]: %v", robotsURL, err)
		return nil
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		utils.Debugf("获取robots.txt失败 [%s]: %v", robotsURL, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		utils.Debugf("robots.txt返回状态 %d [%s], 不执行限制", resp.StatusCode, robotsURL)
		return nil
	}

	rules, err := robotstxt.FromResponse(resp)
	if err != nil {
		utils.Warnf("解析robots.txt失败 [%s]: %v", robotsURL, err)
		return nil
	}

	utils.Debugf("robots.txt已加载: %s", robotsURL)
	return &RobotsPolicy{origin: origin, userAgent: userAgent, rules: rules}
}

// IsAllowed 判断目标路径是否允许访问
func (p *RobotsPolicy) IsAllowed(rawURL string) bool {
	if p == nil || p.rules == nil {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	// 跨站URL不由本策略裁决
	if parsed.Host != "" && parsed.Scheme+"://"+parsed.Host != p.origin {
		return true
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}

	group := p.rules.FindGroup(p.userAgent)
	if group == nil {
		group = p.rules.FindGroup("*")
		if group == nil {
			return true
		}
	}
	return group.Test(path)
}

// Origin 返回策略对应的站点来源
func (p *RobotsPolicy) Origin() string {
	if p == nil {
		return ""
	}
	return p.origin
}

// ParseRobots 从原始文本构造策略, 测试与离线场景使用
func ParseRobots(origin, userAgent, body string) (*RobotsPolicy, error) {
	rules, err := robotstxt.FromString(body)
	if err != nil {
		return nil, fmt.Errorf("解析robots规则失败: %w", err)
	}
	return &RobotsPolicy{
		origin:    strings.TrimRight(origin, "/"),
		userAgent: userAgent,
		rules:     rules,
	}, nil
}
