package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock 测试用可控时钟
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

// newTestGate 创建使用假时钟的限流器, sleep推进时钟而非真实等待
func newTestGate(maxRequests int, interval time.Duration) (*Gate, *fakeClock) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	g := NewGate(maxRequests, interval)
	g.now = clock.now
	g.sleep = func(ctx context.Context, d time.Duration) error {
		clock.advance(d)
		return nil
	}
	return g, clock
}

func TestGate_AdmitWithinLimit(t *testing.T) {
	g, _ := newTestGate(3, time.Second)

	for i := 0; i < 3; i++ {
		if err := g.Admit(context.Background()); err != nil {
			t.Fatalf("第%d次准入失败: %v", i+1, err)
		}
	}

	status := g.Status()
	if status.Active != 3 {
		t.Errorf("Active = %d, 期望 3", status.Active)
	}
	if !status.Limited {
		t.Error("窗口已满时Limited应为true")
	}
}

func TestGate_WindowInvariant(t *testing.T) {
	// 任意窗口内完成的准入次数不超过maxRequests
	g, clock := newTestGate(2, time.Second)

	ctx := context.Background()
	admitted := make([]time.Time, 0, 6)
	for i := 0; i < 6; i++ {
		if err := g.Admit(ctx); err != nil {
			t.Fatalf("准入失败: %v", err)
		}
		admitted = append(admitted, clock.current)
	}

	for i := range admitted {
		count := 0
		for j := range admitted {
			diff := admitted[j].Sub(admitted[i])
			if diff >= 0 && diff < time.Second {
				count++
			}
		}
		if count > 2 {
			t.Errorf("窗口[%v起]内准入%d次, 超过maxRequests=2", admitted[i], count)
		}
	}
}

func TestGate_AdmitWaitsWhenFull(t *testing.T) {
	g, clock := newTestGate(1, time.Second)
	ctx := context.Background()

	if err := g.Admit(ctx); err != nil {
		t.Fatalf("首次准入失败: %v", err)
	}
	before := clock.current

	if err := g.Admit(ctx); err != nil {
		t.Fatalf("第二次准入失败: %v", err)
	}
	if !clock.current.After(before) {
		t.Error("窗口满时第二次准入应等待")
	}
}

func TestGate_TimingAnomaly(t *testing.T) {
	g := NewGate(1, time.Second)
	clock := &fakeClock{current: time.Unix(1000, 0)}
	g.now = clock.now
	// sleep不推进时钟, 模拟时钟停滞导致的死循环
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	if err := g.Admit(context.Background()); err != nil {
		t.Fatalf("首次准入失败: %v", err)
	}

	err := g.Admit(context.Background())
	if !errors.Is(err, ErrTimingAnomaly) {
		t.Errorf("期望ErrTimingAnomaly, 实际 %v", err)
	}
}

func TestGate_ContextCancel(t *testing.T) {
	g, _ := newTestGate(1, time.Second)
	g.sleep = sleepCtx // 真实sleep, 用于验证取消

	ctx, cancel := context.WithCancel(context.Background())
	if err := g.Admit(ctx); err != nil {
		t.Fatalf("首次准入失败: %v", err)
	}

	cancel()
	if err := g.Admit(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("期望context.Canceled, 实际 %v", err)
	}
}

func TestGate_Reset(t *testing.T) {
	g, _ := newTestGate(2, time.Second)
	ctx := context.Background()

	_ = g.Admit(ctx)
	_ = g.Admit(ctx)
	g.Reset()

	status := g.Status()
	if status.Active != 0 {
		t.Errorf("重置后Active = %d, 期望 0", status.Active)
	}
	if status.Limited {
		t.Error("重置后不应处于限流状态")
	}
}

func TestGate_TimeUntilAvailable(t *testing.T) {
	g, clock := newTestGate(1, 2*time.Second)
	ctx := context.Background()

	if g.TimeUntilAvailable() != 0 {
		t.Error("空窗口应立即可用")
	}

	_ = g.Admit(ctx)
	clock.advance(500 * time.Millisecond)

	got := g.TimeUntilAvailable()
	if got != 1500*time.Millisecond {
		t.Errorf("TimeUntilAvailable() = %v, 期望 1.5s", got)
	}
}

func TestNewGate_ParameterClamping(t *testing.T) {
	g := NewGate(0, 100*time.Millisecond)
	if g.maxRequests != 1 {
		t.Errorf("maxRequests = %d, 期望 1", g.maxRequests)
	}
	if g.interval != time.Second {
		t.Errorf("interval = %v, 期望 1s", g.interval)
	}
}
