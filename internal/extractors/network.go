package extractors

import (
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// CapturedRequest 网络拦截捕获到的媒体请求
type CapturedRequest struct {
	URL      string
	MIMEType string
	Kind     string // 捕获时确定的子类型(如subtitles)
}

// Capture 页面级网络捕获器
// 请求侧按URL特征匹配, 响应侧按Content-Type匹配; 事件在页面事件循环
// 上到达, 内部加锁后由Drain串行消费
type Capture struct {
	matchURL  func(url string) (kind string, ok bool)
	matchMIME func(mime string) bool

	mu       sync.Mutex
	captured []CapturedRequest
	seen     map[string]bool

	router *rod.HijackRouter
}

// NewCapture 构造捕获器, 两个匹配器均可为nil
func NewCapture(matchURL func(string) (string, bool), matchMIME func(string) bool) *Capture {
	return &Capture{
		matchURL:  matchURL,
		matchMIME: matchMIME,
		seen:      make(map[string]bool),
	}
}

// Install 在页面上安装请求劫持与响应监听
func (c *Capture) Install(page *rod.Page) error {
	router := page.HijackRequests()

	err := router.Add("*", "", func(ctx *rod.Hijack) {
		reqURL := ctx.Request.URL().String()
		if c.matchURL != nil {
			if kind, ok := c.matchURL(reqURL); ok {
				c.record(CapturedRequest{URL: reqURL, Kind: kind})
			}
		}
		// 只监听不拦截
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return err
	}

	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) {
		resp := e.Response
		if c.matchMIME != nil && c.matchMIME(resp.MIMEType) {
			c.record(CapturedRequest{URL: resp.URL, MIMEType: resp.MIMEType})
			return
		}
		if c.matchURL != nil {
			if kind, ok := c.matchURL(resp.URL); ok {
				c.record(CapturedRequest{URL: resp.URL, MIMEType: resp.MIMEType, Kind: kind})
			}
		}
	})
	go wait()

	go router.Run()
	c.router = router
	return nil
}

func (c *Capture) record(req CapturedRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[req.URL] {
		return
	}
	c.seen[req.URL] = true
	c.captured = append(c.captured, req)
	utils.Debugf("网络捕获: %s (%s)", req.URL, req.MIMEType)
}

// Drain 取走已捕获的请求, 捕获器继续工作
func (c *Capture) Drain() []CapturedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.captured
	c.captured = nil
	return out
}

// DrainInto 把捕获结果并入提取器去重集合
func (c *Capture) DrainInto(b *Base, source models.ItemSource) int {
	inserted := 0
	for _, req := range c.Drain() {
		item := models.ItemMetadata{Source: source, MIMEType: req.MIMEType, Kind: req.Kind}
		if b.AddItem(req.URL, item) {
			inserted++
		}
	}
	return inserted
}

// Stop 停止劫持路由
func (c *Capture) Stop() {
	if c.router != nil {
		if err := c.router.Stop(); err != nil {
			utils.Debugf("停止网络劫持失败: %v", err)
		}
		c.router = nil
	}
}
