package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/ratelimit"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// growthWait 滚动后等待页面高度增长的上限
const growthWait = 5 * time.Second

// nextSelectors 分页"下一页"链接的候选选择器, 按优先级排列
var nextSelectors = []string{
	`a[rel="next"]`,
	`.pagination .next a`,
	`a.next`,
	`.next a`,
	`li.next a`,
	`a[aria-label="Next"]`,
	`a.page-next`,
	`.pager-next a`,
}

// extractLinksJS 在页面上下文内提取所有http(s)锚点
// 锚文本截断到100字符, 此阶段不做URL归一化
const extractLinksJS = `() => {
	const out = [];
	document.querySelectorAll('a[href]').forEach(a => {
		const href = a.href || '';
		if (!href.startsWith('http')) return;
		out.push({
			url: href,
			anchor_text: (a.textContent || '').trim().slice(0, 100),
			title: a.getAttribute('title') || '',
		});
	});
	return out;
}`

// Session 持有唯一一个活动页面的浏览器会话
// 所有交互先经过速率门控, 可选地受robots策略约束
type Session struct {
	opts    models.BrowserOptions
	gate    *ratelimit.Gate
	timeout time.Duration

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	robots   *RobotsPolicy

	mu     sync.Mutex
	closed bool
	stats  models.SessionStats
}

// NewSession 构造浏览器会话, 参数越界时收拢到合法范围
func NewSession(opts models.BrowserOptions) *Session {
	opts.Clamp()
	return &Session{
		opts:    opts,
		gate:    ratelimit.NewGate(opts.RateMaxRequests, time.Duration(opts.RateIntervalMs)*time.Millisecond),
		timeout: time.Duration(opts.DefaultTimeoutMs) * time.Millisecond,
	}
}

// Initialize 准备会话: 速率门控放行, 按需启动浏览器并导航到目标页面
// robots.txt获取失败不致命, 按无策略处理
func (s *Session) Initialize(ctx context.Context, pageURL string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("浏览器初始化panic: %v", r)
			utils.Errorf("捕获panic: URL=%s, 错误=%v, 类型=panic恢复", pageURL, r)
		}
	}()

	if err := utils.ValidateURL(pageURL); err != nil {
		return fmt.Errorf("无效的目标URL: %w", err)
	}
	if err := s.gate.Admit(ctx); err != nil {
		return fmt.Errorf("速率门控放行失败: %w", err)
	}

	if s.opts.RespectRobots && s.robots == nil {
		s.robots = FetchRobotsPolicy(ctx, pageURL, s.opts.UserAgent, nil)
	}

	if s.browser == nil {
		if err := s.launchBrowser(); err != nil {
			return err
		}
	}

	if s.page == nil {
		page, pageErr := s.browser.Page(proto.TargetCreateTarget{})
		if pageErr != nil {
			return fmt.Errorf("创建标签页失败: %w", pageErr)
		}
		if vpErr := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             s.opts.ViewportWidth,
			Height:            s.opts.ViewportHeight,
			DeviceScaleFactor: 1,
		}); vpErr != nil {
			utils.Warnf("设置视口失败: %v", vpErr)
		}
		if s.opts.UserAgent != "" {
			if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
				UserAgent: s.opts.UserAgent,
			}); uaErr != nil {
				utils.Warnf("设置UserAgent失败: %v", uaErr)
			}
		}
		s.page = page
	}

	// 页面已在目标地址时跳过导航
	if info, infoErr := s.page.Info(); infoErr == nil && info.URL == pageURL {
		utils.Debugf("页面已在目标地址, 跳过导航: %s", pageURL)
		return nil
	}

	if navErr := s.page.Timeout(s.timeout).Navigate(pageURL); navErr != nil {
		return fmt.Errorf("导航失败 [%s]: %w", pageURL, navErr)
	}
	if loadErr := s.page.Timeout(s.timeout).WaitLoad(); loadErr != nil {
		return fmt.Errorf("等待页面加载失败 [%s]: %w", pageURL, loadErr)
	}

	utils.Infof("🚀 会话已就绪: %s", pageURL)
	return nil
}

// launchBrowser 启动浏览器
func (s *Session) launchBrowser() error {
	l := launcher.New().Headless(s.opts.Headless)

	// 允许访问自签名、过期或主机名不匹配的HTTPS站点
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	s.launcher = l
	s.browser = browser
	utils.Debugf("浏览器已启动: %s", controlURL)
	return nil
}

// Interact 执行一次受门控的交互并返回当前DOM的发现列表
// 成功累计requests, 失败累计errors并返回错误
func (s *Session) Interact(ctx context.Context, kind models.InteractionKind, phase int) (discoveries []models.Discovery, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("浏览器交互panic: %v", r)
			utils.Errorf("捕获panic: 交互=%s, 阶段=%d, 错误=%v, 类型=panic恢复", kind, phase, r)
		}
		s.mu.Lock()
		if err != nil {
			s.stats.Errors++
		} else {
			s.stats.Requests++
		}
		s.mu.Unlock()
	}()

	if s.page == nil {
		return nil, fmt.Errorf("会话未初始化")
	}
	if err := s.gate.Admit(ctx); err != nil {
		return nil, fmt.Errorf("速率门控放行失败: %w", err)
	}

	switch kind {
	case models.InteractionScroll:
		return s.scroll(phase)
	case models.InteractionPageNext:
		return s.paginateNext(phase)
	default:
		return nil, fmt.Errorf("未知的交互类型: %s", kind)
	}
}

// scroll 记录滚动前页面高度, 滚到底部后等待高度增长再提取锚点
func (s *Session) scroll(phase int) ([]models.Discovery, error) {
	before, err := s.pageHeight()
	if err != nil {
		return nil, fmt.Errorf("测量页面高度失败: %w", err)
	}

	if _, err := s.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return nil, fmt.Errorf("滚动到页面底部失败: %w", err)
	}

	// 最多等待5秒观察高度增长, 不增长也继续提取
	deadline := time.Now().Add(growthWait)
	for time.Now().Before(deadline) {
		time.Sleep(250 * time.Millisecond)
		after, hErr := s.pageHeight()
		if hErr == nil && after > before {
			utils.Debugf("页面高度增长: %d -> %d", before, after)
			break
		}
	}

	return s.ExtractLinks(phase)
}

// paginateNext 按候选选择器定位"下一页"链接并点击
// 目标被robots策略禁止时返回空发现集, 不视为错误
func (s *Session) paginateNext(phase int) ([]models.Discovery, error) {
	var target *rod.Element
	for _, sel := range nextSelectors {
		el, err := s.page.Sleeper(rod.NotFoundSleeper).Element(sel)
		if err == nil && el != nil {
			target = el
			utils.Debugf("找到下一页链接: %s", sel)
			break
		}
	}
	if target == nil {
		utils.Debugf("未找到下一页链接 (阶段 %d)", phase)
		return []models.Discovery{}, nil
	}

	if href, err := target.Attribute("href"); err == nil && href != nil {
		dest := s.resolveURL(*href)
		if !s.robots.IsAllowed(dest) {
			utils.Warnf("robots策略禁止翻页目标: %s", dest)
			return []models.Discovery{}, nil
		}
	}

	if err := target.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("点击下一页失败: %w", err)
	}
	if err := s.page.Timeout(s.timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("等待翻页加载失败: %w", err)
	}

	return s.ExtractLinks(phase)
}

// ExtractLinks 提取当前DOM的全部http(s)锚点
// 页面内JS求值失败时退回到HTML静态解析
func (s *Session) ExtractLinks(phase int) ([]models.Discovery, error) {
	now := time.Now().UnixMilli()

	obj, err := s.page.Eval(extractLinksJS)
	if err != nil {
		utils.Warnf("页面内链接提取失败, 退回HTML解析: %v", err)
		html, htmlErr := s.page.HTML()
		if htmlErr != nil {
			return nil, fmt.Errorf("获取页面HTML失败: %w", htmlErr)
		}
		return ExtractLinksFromHTML(html, s.CurrentURL(), phase, now), nil
	}

	var discoveries []models.Discovery
	for _, item := range obj.Value.Arr() {
		discoveries = append(discoveries, models.Discovery{
			URL:                   item.Get("url").Str(),
			AnchorText:            item.Get("anchor_text").Str(),
			Title:                 item.Get("title").Str(),
			DiscoveredAtPhase:     phase,
			DiscoveredAtTimestamp: now,
		})
	}
	return discoveries, nil
}

// pageHeight 读取文档滚动高度
func (s *Session) pageHeight() (int, error) {
	obj, err := s.page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return obj.Value.Int(), nil
}

// resolveURL 将相对链接解析为绝对URL
func (s *Session) resolveURL(href string) string {
	base, err := url.Parse(s.CurrentURL())
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// CurrentURL 返回当前页面地址, 不可用时为空串
func (s *Session) CurrentURL() string {
	if s.page == nil {
		return ""
	}
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Page 暴露底层页面给提取器使用
func (s *Session) Page() *rod.Page {
	return s.page
}

// Robots 返回当前robots策略, 可能为nil
func (s *Session) Robots() *RobotsPolicy {
	return s.robots
}

// Stats 返回会话累计的请求与错误计数
func (s *Session) Stats() models.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close 幂等地释放页面与浏览器
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
	s.page = nil
	s.browser = nil
	utils.Debugf("浏览器会话已关闭")
}
