package extractors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/RecoveryAshes/MediaHarvest/internal/browser"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
)

func newTestBase(t *testing.T) *Base {
	t.Helper()
	// 未初始化的会话不会启动浏览器, CurrentURL为空串
	session := browser.NewSession(models.DefaultBrowserOptions())
	return NewBase("测试", session, models.DefaultExtractorOptions(), false)
}

func TestBase_AddItemDedup(t *testing.T) {
	b := newTestBase(t)

	if !b.AddItem("https://example.com/a.jpg", models.ItemMetadata{Source: models.SourceDOM}) {
		t.Fatal("首次插入应成功")
	}
	if b.AddItem("https://example.com/a.jpg", models.ItemMetadata{Source: models.SourceNetwork}) {
		t.Error("重复插入应被拒绝")
	}
	// 归一化后等价的URL也视为重复
	if b.AddItem("https://example.com/a.jpg?utm_source=x", models.ItemMetadata{}) {
		t.Error("归一化等价的URL应被拒绝")
	}

	stats := b.Stats()
	if stats.Found != 3 || stats.Unique != 1 {
		t.Errorf("统计异常: %+v", stats)
	}
}

func TestBase_InsertionOrder(t *testing.T) {
	b := newTestBase(t)
	urls := []string{
		"https://example.com/c.jpg",
		"https://example.com/a.jpg",
		"https://example.com/b.jpg",
	}
	for _, u := range urls {
		b.AddItem(u, models.ItemMetadata{})
	}

	items := b.Items()
	if len(items) != 3 {
		t.Fatalf("项数 = %d, 期望 3", len(items))
	}
	for i, u := range urls {
		if items[i] != u {
			t.Errorf("items[%d] = %q, 期望保持插入顺序 %q", i, items[i], u)
		}
	}
}

func TestBase_Listeners(t *testing.T) {
	b := newTestBase(t)

	var events []EventName
	b.AddListener(func(e Event) {
		events = append(events, e.Name)
	})

	impl := &fakeRunner{
		extract: func(ctx context.Context) error {
			b.AddItem("https://example.com/x.jpg", models.ItemMetadata{})
			return nil
		},
	}
	if err := b.Run(context.Background(), "https://example.com", impl); err != nil {
		t.Fatal(err)
	}

	want := []EventName{EventExtractionStart, EventItemFound, EventExtractionComplete}
	if len(events) != len(want) {
		t.Fatalf("事件序列 %v, 期望 %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %s, 期望 %s", i, events[i], want[i])
		}
	}
}

func TestBase_RunCleanupOnError(t *testing.T) {
	b := newTestBase(t)

	impl := &fakeRunner{
		extract: func(ctx context.Context) error { return fmt.Errorf("页面崩溃") },
	}
	err := b.Run(context.Background(), "https://example.com", impl)

	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("错误应包装为ErrExtractionFailed, 实际 %v", err)
	}
	if impl.cleanups != 1 {
		t.Errorf("cleanup调用次数 = %d, 期望 1", impl.cleanups)
	}

	stats := b.Stats()
	if stats.StartedAt == 0 || stats.FinishedAt == 0 {
		t.Error("运行时间戳应在失败路径上也被记录")
	}
}

func TestBase_RunInitializeFailure(t *testing.T) {
	b := newTestBase(t)

	impl := &fakeRunner{
		initialize: func(ctx context.Context, target string) error { return fmt.Errorf("导航失败") },
	}
	err := b.Run(context.Background(), "https://example.com", impl)

	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("初始化失败应包装为ErrExtractionFailed, 实际 %v", err)
	}
	if impl.extracts != 0 {
		t.Error("初始化失败后不应执行extract")
	}
	if impl.cleanups != 1 {
		t.Error("初始化失败后cleanup仍应执行")
	}
}

func TestBase_CleanupIdempotent(t *testing.T) {
	b := newTestBase(t)
	b.baseCleanup()
	b.baseCleanup() // 第二次调用是无操作
}

func TestBase_RunPassesSwallowFailures(t *testing.T) {
	b := newTestBase(t)

	executed := []string{}
	passes := []pass{
		{"第一", func(ctx context.Context) error { executed = append(executed, "第一"); return nil }},
		{"失败", func(ctx context.Context) error { executed = append(executed, "失败"); return fmt.Errorf("炸了") }},
		{"第三", func(ctx context.Context) error { executed = append(executed, "第三"); return nil }},
	}
	b.runPasses(context.Background(), passes)

	if len(executed) != 3 {
		t.Errorf("单阶段失败不应中断后续阶段: %v", executed)
	}
	if b.Stats().Errors != 1 {
		t.Errorf("被吞掉的错误计数 = %d, 期望 1", b.Stats().Errors)
	}
}

func TestBase_RunPassesCancelled(t *testing.T) {
	b := newTestBase(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executed := 0
	b.runPasses(ctx, []pass{
		{"不执行", func(ctx context.Context) error { executed++; return nil }},
	})
	if executed != 0 {
		t.Error("取消后的阶段不应执行")
	}
}

func TestBase_ExportResults(t *testing.T) {
	b := newTestBase(t)
	b.AddItem("https://example.com/a.m3u8", models.ItemMetadata{Source: models.SourceNetwork})
	b.AddItem("https://example.com/b.mp4", models.ItemMetadata{Source: models.SourceDOM})

	result := b.ExportResults(GroupVideoURL)

	if len(result.Items) != 2 {
		t.Fatalf("导出项数 = %d, 期望 2", len(result.Items))
	}
	if result.Items[0] != "https://example.com/a.m3u8" {
		t.Error("导出应保持插入顺序")
	}
	if len(result.Groups["hls"]) != 1 || len(result.Groups["direct"]) != 1 {
		t.Errorf("分组异常: %+v", result.Groups)
	}
	if result.Timestamp == 0 {
		t.Error("导出时间戳缺失")
	}
	if result.Downloads != nil {
		t.Error("未执行下载时不应有下载详情")
	}
}

func TestBase_DownloadWithoutStore(t *testing.T) {
	b := newTestBase(t)
	if _, err := b.DownloadMedia(context.Background(), nil); err == nil {
		t.Error("未配置存储时下载应返回错误")
	}
}

type fakeRunner struct {
	initialize func(ctx context.Context, target string) error
	extract    func(ctx context.Context) error
	extracts   int
	cleanups   int
}

func (f *fakeRunner) Initialize(ctx context.Context, target string) error {
	if f.initialize != nil {
		return f.initialize(ctx, target)
	}
	return nil
}

func (f *fakeRunner) Extract(ctx context.Context) error {
	f.extracts++
	if f.extract != nil {
		return f.extract(ctx)
	}
	return nil
}

func (f *fakeRunner) Cleanup() { f.cleanups++ }
