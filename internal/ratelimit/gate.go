package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/mathx"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// ErrTimingAnomaly 速率限制重试深度超限
// 调用方应视为致命错误
var ErrTimingAnomaly = errors.New("速率限制时序异常: 重试深度超限")

// maxAdmitDepth 单次Admit的最大重试深度
const maxAdmitDepth = 25

// minWait 最小等待时间
const minWait = 100 * time.Millisecond

// Status 限流器状态
type Status struct {
	Active    int  `json:"active"`     // 当前窗口内请求数
	SlotsFree int  `json:"slots_free"` // 剩余可用槽位
	Limited   bool `json:"limited"`    // 是否已限流
}

// Gate 滑动窗口速率限制器
// 窗口不变量: 剪枝后所有时间戳t满足 now - t < interval
type Gate struct {
	maxRequests int
	interval    time.Duration

	mu     sync.Mutex
	window []time.Time

	// 测试注入点: 默认time.Now / context感知的sleep
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate 创建速率限制器
// maxRequests最小为1, interval最小为1秒
func NewGate(maxRequests int, interval time.Duration) *Gate {
	if maxRequests < 1 {
		maxRequests = 1
	}
	if interval < time.Second {
		interval = time.Second
	}

	return &Gate{
		maxRequests: maxRequests,
		interval:    interval,
		window:      make([]time.Time, 0, maxRequests),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// sleepCtx 可取消的睡眠
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Admit 请求准入
// 窗口未满时立即放行; 已满时等待rateLimitWait并重试
// 重试深度超过maxAdmitDepth时返回ErrTimingAnomaly
func (g *Gate) Admit(ctx context.Context) error {
	for depth := 0; depth < maxAdmitDepth; depth++ {
		g.mu.Lock()
		now := g.now()
		g.prune(now)

		if len(g.window) < g.maxRequests {
			g.window = append(g.window, now)
			g.mu.Unlock()
			return nil
		}

		oldest := g.window[0]
		g.mu.Unlock()

		wait := mathx.RateLimitWait(g.interval, now.Sub(oldest), minWait)
		utils.Debugf("速率限制: 窗口已满, 等待 %v (深度 %d)", wait, depth+1)
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}

	return ErrTimingAnomaly
}

// prune 剪除窗口外的时间戳
// 调用方必须持有g.mu
func (g *Gate) prune(now time.Time) {
	cut := 0
	for cut < len(g.window) && now.Sub(g.window[cut]) >= g.interval {
		cut++
	}
	if cut > 0 {
		g.window = append(g.window[:0], g.window[cut:]...)
	}
}

// Status 返回当前限流状态
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(g.now())
	active := len(g.window)
	free := g.maxRequests - active
	if free < 0 {
		free = 0
	}
	return Status{
		Active:    active,
		SlotsFree: free,
		Limited:   active >= g.maxRequests,
	}
}

// TimeUntilAvailable 距下一个可用槽位的时间
// 有空闲槽位时返回0
func (g *Gate) TimeUntilAvailable() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)
	if len(g.window) < g.maxRequests {
		return 0
	}
	return mathx.RateLimitWait(g.interval, now.Sub(g.window[0]), 0)
}

// Reset 清空窗口
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.window = g.window[:0]
}
