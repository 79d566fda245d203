package discovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
)

// fakeSession 脚本化会话: 每个阶段返回预设的发现列表
type fakeSession struct {
	phases [][]models.Discovery
	errs   map[int]error
	calls  []models.InteractionKind
	stats  models.SessionStats
}

func (f *fakeSession) Interact(ctx context.Context, kind models.InteractionKind, phase int) ([]models.Discovery, error) {
	f.calls = append(f.calls, kind)
	if err := f.errs[phase]; err != nil {
		f.stats.Errors++
		return nil, err
	}
	f.stats.Requests++
	if phase < len(f.phases) {
		return f.phases[phase], nil
	}
	return nil, nil
}

func (f *fakeSession) Stats() models.SessionStats { return f.stats }

func discoveriesOf(urls ...string) []models.Discovery {
	out := make([]models.Discovery, len(urls))
	for i, u := range urls {
		out[i] = models.Discovery{URL: u, AnchorText: "链接"}
	}
	return out
}

func newTestLoop(t *testing.T, session Session, mutate func(*models.LoopOptions)) *Loop {
	t.Helper()
	opts := models.DefaultLoopOptions()
	opts.OutputDir = t.TempDir()
	opts.PhaseDelayMs = 0
	if mutate != nil {
		mutate(&opts)
	}
	loop, err := NewLoop(session, opts)
	if err != nil {
		t.Fatal(err)
	}
	loop.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return loop
}

// 连续三个空阶段后进入停滞
func TestLoop_StasisOnEmptyPhases(t *testing.T) {
	session := &fakeSession{phases: [][]models.Discovery{}}
	loop := newTestLoop(t, session, nil)

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !loop.Stasis() {
		t.Error("应进入停滞")
	}
	if report.Phases != 3 {
		t.Errorf("阶段数 = %d, 期望 3 (停滞窗口)", report.Phases)
	}
	if report.UniqueDiscoveries != 0 {
		t.Errorf("唯一发现数 = %d, 期望 0", report.UniqueDiscoveries)
	}
	if report.AverageTension == nil || *report.AverageTension != 0 {
		t.Errorf("平均张力 = %v, 期望 0", report.AverageTension)
	}
}

// 张力超过阈值时批次增长: 新发现[3,1,0,0,0] -> 批次1->2->2->2->1
func TestLoop_BatchAdaptation(t *testing.T) {
	session := &fakeSession{phases: [][]models.Discovery{
		discoveriesOf("https://a.com/1", "https://a.com/2", "https://a.com/3"),
		discoveriesOf("https://a.com/4"),
	}}
	loop := newTestLoop(t, session, nil)

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// 阶段0: 张力3/1=3>0.5, 批次2; 阶段1: 1/2=0.5不超阈值且非0, 批次不变;
	// 阶段2-4: 零张力, 批次降到1后维持, 三连零停滞
	tensions := loop.Tensions()
	want := []float64{3, 0.5, 0, 0, 0}
	if len(tensions) != len(want) {
		t.Fatalf("张力历史 %v, 期望 %v", tensions, want)
	}
	for i := range want {
		if tensions[i] != want[i] {
			t.Errorf("tensions[%d] = %v, 期望 %v", i, tensions[i], want[i])
		}
	}
	if report.FinalBatchSize != 1 {
		t.Errorf("最终批次 = %d, 期望 1", report.FinalBatchSize)
	}
	if report.UniqueDiscoveries != 4 {
		t.Errorf("唯一发现数 = %d, 期望 4", report.UniqueDiscoveries)
	}
}

// 交互类型按阶段奇偶交替
func TestLoop_InteractionParity(t *testing.T) {
	session := &fakeSession{}
	loop := newTestLoop(t, session, nil)

	if _, err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []models.InteractionKind{
		models.InteractionScroll, models.InteractionPageNext, models.InteractionScroll,
	}
	if len(session.calls) != len(want) {
		t.Fatalf("交互序列 %v", session.calls)
	}
	for i := range want {
		if session.calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, 期望 %s", i, session.calls[i], want[i])
		}
	}
}

// 重复URL不重复记录, 身份是归一化后的URL
func TestLoop_Deduplication(t *testing.T) {
	session := &fakeSession{phases: [][]models.Discovery{
		discoveriesOf("https://a.com/x", "https://a.com/x?utm_source=t"),
		discoveriesOf("https://a.com/x"),
	}}
	loop := newTestLoop(t, session, nil)

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.UniqueDiscoveries != 1 {
		t.Errorf("唯一发现数 = %d, 期望 1 (归一化去重)", report.UniqueDiscoveries)
	}
	if len(loop.Log()) != 1 {
		t.Errorf("交互记录数 = %d, 期望 1", len(loop.Log()))
	}
}

// 单阶段失败记录后继续, 不中断循环
func TestLoop_InteractionErrorContinues(t *testing.T) {
	session := &fakeSession{
		phases: [][]models.Discovery{nil, discoveriesOf("https://a.com/1")},
		errs:   map[int]error{0: fmt.Errorf("页面崩溃")},
	}
	loop := newTestLoop(t, session, nil)

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.UniqueDiscoveries != 1 {
		t.Errorf("失败阶段后循环应继续: %+v", report)
	}
	if report.SessionStats.Errors != 1 {
		t.Errorf("会话错误数 = %d, 期望 1", report.SessionStats.Errors)
	}
}

// 到达最大阶段数进入停滞
func TestLoop_MaxPhases(t *testing.T) {
	// 每个阶段都有新发现, 永不零张力
	phases := make([][]models.Discovery, 20)
	for i := range phases {
		phases[i] = discoveriesOf(fmt.Sprintf("https://a.com/p%d", i))
	}
	session := &fakeSession{phases: phases}
	loop := newTestLoop(t, session, func(o *models.LoopOptions) { o.MaxPhases = 5 })

	report, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !loop.Stasis() {
		t.Error("到达上限应停滞")
	}
	if report.Phases > 6 {
		t.Errorf("阶段数 = %d, 不应明显超过上限", report.Phases)
	}
}

// 检查点按saveInterval写出并可恢复
func TestLoop_CheckpointAndResume(t *testing.T) {
	phases := make([][]models.Discovery, 10)
	for i := range phases {
		phases[i] = discoveriesOf(fmt.Sprintf("https://a.com/p%d", i))
	}
	session := &fakeSession{phases: phases}
	outputDir := t.TempDir()
	loop := newTestLoop(t, session, func(o *models.LoopOptions) {
		o.OutputDir = outputDir
		o.SaveInterval = 2
		o.MaxPhases = 4
	})

	if _, err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	c, err := models.LoadCheckpointFromFile(outputDir)
	if err != nil {
		t.Fatalf("检查点应已写出: %v", err)
	}
	if c.Phase%2 != 0 {
		t.Errorf("检查点阶段 = %d, 应为saveInterval的倍数", c.Phase)
	}
	if len(c.Discovered) == 0 {
		t.Error("检查点应包含发现集合")
	}

	// 恢复到新循环
	resumed := newTestLoop(t, &fakeSession{}, nil)
	resumed.Resume(c)
	if resumed.Phase() != c.Phase {
		t.Errorf("恢复后阶段 = %d, 期望 %d", resumed.Phase(), c.Phase)
	}
	if len(resumed.Discovered()) != len(c.Discovered) {
		t.Error("恢复后发现集合不完整")
	}
}

// 取消上下文立即收尾并仍产出报告
func TestLoop_Cancellation(t *testing.T) {
	session := &fakeSession{}
	loop := newTestLoop(t, session, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := loop.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Phases != 0 {
		t.Errorf("取消后阶段数 = %d, 期望 0", report.Phases)
	}
	if report.AverageTension != nil {
		t.Error("无阶段运行时平均张力应为null")
	}
}

func TestNewLoop_InvalidOptions(t *testing.T) {
	opts := models.DefaultLoopOptions()
	opts.MaxPhases = 0
	if _, err := NewLoop(&fakeSession{}, opts); err == nil {
		t.Error("非法选项应报错")
	}
}
