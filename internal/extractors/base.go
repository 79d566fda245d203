package extractors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/RecoveryAshes/MediaHarvest/internal/browser"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/store"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// ErrExtractionFailed 提取运行在完成前中止
var ErrExtractionFailed = errors.New("提取运行失败")

// EventName 提取器生命周期事件名
type EventName string

const (
	EventExtractionStart    EventName = "extraction_start"
	EventExtractionComplete EventName = "extraction_complete"
	EventExtractionError    EventName = "extraction_error"
	EventItemFound          EventName = "item_found"
)

// Event 提取器事件, 同步派发给全部监听器
type Event struct {
	Name      EventName
	Extractor string
	Target    string
	Item      *models.ItemMetadata // 仅item_found事件携带
	Err       error                // 仅extraction_error事件携带
}

// Listener 事件监听器
type Listener func(Event)

// runner 具体提取器实现的生命周期钩子
type runner interface {
	Initialize(ctx context.Context, target string) error
	Extract(ctx context.Context) error
	Cleanup()
}

// pass 单个提取阶段: 失败被吞掉并记录, 不中断后续阶段
type pass struct {
	name string
	run  func(ctx context.Context) error
}

// Base 提取器公共骨架: 有界选项、插入有序的去重集合、
// 生命周期事件与可选的媒体下载集成
type Base struct {
	name         string
	session      *browser.Session
	closeBrowser bool
	opts         models.ExtractorOptions
	store        *store.Store

	mu        sync.Mutex
	order     []string
	items     map[string]models.ItemMetadata
	listeners []Listener
	stats     models.ExtractionStats
	target    string
	downloads *models.DownloadSection
	cleaned   bool
}

// NewBase 构造提取器骨架, 选项收拢到合法范围
func NewBase(name string, session *browser.Session, opts models.ExtractorOptions, closeBrowser bool) *Base {
	opts.Clamp()
	return &Base{
		name:         name,
		session:      session,
		closeBrowser: closeBrowser,
		opts:         opts,
		items:        make(map[string]models.ItemMetadata),
	}
}

// SetStore 挂接媒体存储, 启用下载能力
func (b *Base) SetStore(s *store.Store) {
	b.store = s
}

// AddListener 注册生命周期事件监听器
func (b *Base) AddListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Base) emit(event Event) {
	b.mu.Lock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	event.Extractor = b.name
	for _, l := range listeners {
		l(event)
	}
}

// AddItem 归一化后插入去重集合, 返回是否发生插入
// 新项触发item_found事件
func (b *Base) AddItem(rawURL string, item models.ItemMetadata) bool {
	normalized := NormalizeURL(rawURL, b.session.CurrentURL())
	if normalized == "" {
		return false
	}

	b.mu.Lock()
	b.stats.Found++
	if _, exists := b.items[normalized]; exists {
		b.mu.Unlock()
		return false
	}
	item.URL = normalized
	b.items[normalized] = item
	b.order = append(b.order, normalized)
	b.stats.Unique++
	b.mu.Unlock()

	b.emit(Event{Name: EventItemFound, Item: &item})
	return true
}

// Items 返回按插入顺序排列的去重项
func (b *Base) Items() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Metadata 返回URL到元数据的副本
func (b *Base) Metadata() map[string]models.ItemMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]models.ItemMetadata, len(b.items))
	for k, v := range b.items {
		out[k] = v
	}
	return out
}

// Stats 返回当前运行统计
func (b *Base) Stats() models.ExtractionStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Options 返回收拢后的公共选项
func (b *Base) Options() models.ExtractorOptions {
	return b.opts
}

// Session 返回底层浏览器会话
func (b *Base) Session() *browser.Session {
	return b.session
}

func (b *Base) page() *rod.Page {
	return b.session.Page()
}

// Run 驱动完整生命周期: initialize -> extract -> cleanup
// cleanup在所有退出路径上都保证执行, 错误包装为ErrExtractionFailed
func (b *Base) Run(ctx context.Context, target string, impl runner) (err error) {
	b.mu.Lock()
	b.target = target
	b.stats.StartedAt = time.Now().UnixMilli()
	b.mu.Unlock()

	b.emit(Event{Name: EventExtractionStart, Target: target})
	utils.Infof("🚀 开始%s提取: %s", b.name, target)

	defer func() {
		impl.Cleanup()
		b.mu.Lock()
		b.stats.FinishedAt = time.Now().UnixMilli()
		unique := b.stats.Unique
		b.mu.Unlock()

		if err != nil {
			b.emit(Event{Name: EventExtractionError, Target: target, Err: err})
			utils.Errorf("%s提取失败 [%s]: %v", b.name, target, err)
		} else {
			b.emit(Event{Name: EventExtractionComplete, Target: target})
			utils.Infof("✅ %s提取完成: %d 项 - %s", b.name, unique, target)
		}
	}()

	if initErr := impl.Initialize(ctx, target); initErr != nil {
		return fmt.Errorf("%w: 初始化: %v", ErrExtractionFailed, initErr)
	}
	if extractErr := impl.Extract(ctx); extractErr != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, extractErr)
	}
	return nil
}

// runPasses 顺序执行各提取阶段, 单阶段失败记录告警后继续
func (b *Base) runPasses(ctx context.Context, passes []pass) {
	for _, p := range passes {
		if ctx.Err() != nil {
			utils.Warnf("%s提取被取消, 跳过剩余阶段", b.name)
			return
		}
		if err := p.run(ctx); err != nil {
			utils.Warnf("%s提取阶段失败 [%s]: %v", b.name, p.name, err)
			b.mu.Lock()
			b.stats.Errors++
			b.mu.Unlock()
		}
	}
}

// baseCleanup 幂等清理, 按需释放浏览器
func (b *Base) baseCleanup() {
	b.mu.Lock()
	if b.cleaned {
		b.mu.Unlock()
		return
	}
	b.cleaned = true
	b.mu.Unlock()

	if b.closeBrowser && b.session != nil {
		b.session.Close()
	}
}

// evalItems 在页面上下文求值probe JS并把结果并入去重集合
// accept为nil时接受全部URL, 返回实际插入数
func (b *Base) evalItems(js string, source models.ItemSource, accept func(string) bool) (int, error) {
	page := b.page()
	if page == nil {
		return 0, fmt.Errorf("页面不可用")
	}

	obj, err := page.Eval(js)
	if err != nil {
		return 0, fmt.Errorf("页面内求值失败: %w", err)
	}

	inserted := 0
	for _, entry := range obj.Value.Arr() {
		rawURL := entry.Get("url").Str()
		if rawURL == "" {
			continue
		}
		if accept != nil && !accept(rawURL) {
			continue
		}
		item := models.ItemMetadata{
			Source:   source,
			MIMEType: entry.Get("mime").Str(),
			Width:    entry.Get("width").Int(),
			Height:   entry.Get("height").Int(),
			AltText:  entry.Get("alt").Str(),
			Caption:  entry.Get("caption").Str(),
			Player:   entry.Get("player").Str(),
			Quality:  entry.Get("quality").Str(),
			Platform: entry.Get("platform").Str(),
			Kind:     entry.Get("kind").Str(),
		}
		if b.AddItem(rawURL, item) {
			inserted++
		}
	}
	return inserted, nil
}

// DownloadMedia 下载去重集合(或调用方给定的子集)
// 成功路径记入URL->路径映射并累计downloaded计数
func (b *Base) DownloadMedia(ctx context.Context, urls []string) (*models.DownloadSection, error) {
	if b.store == nil {
		return nil, fmt.Errorf("未配置媒体存储, 无法下载")
	}
	if urls == nil {
		urls = b.Items()
	}
	if len(urls) == 0 {
		return &models.DownloadSection{Paths: map[string]string{}}, nil
	}

	utils.Infof("📥 开始下载 %d 个媒体项", len(urls))
	results := b.store.Download(ctx, urls)

	paths := make(map[string]string)
	downloaded := 0
	for _, r := range results {
		if r.Status == models.DownloadSuccess {
			paths[r.URL] = r.Path
			downloaded++
		}
	}

	section := &models.DownloadSection{
		Paths:   paths,
		Results: results,
		Stats:   b.store.Stats(),
	}

	b.mu.Lock()
	b.stats.Downloaded += downloaded
	b.downloads = section
	b.mu.Unlock()

	return section, nil
}

// ExportResults 导出运行结果
// groupOf非nil时附带分组视图, 执行过下载时附带下载详情
func (b *Base) ExportResults(groupOf func(url string, item models.ItemMetadata) string) *models.ExportResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := make([]string, len(b.order))
	copy(items, b.order)

	metadata := make(map[string]models.ItemMetadata, len(b.items))
	for k, v := range b.items {
		metadata[k] = v
	}

	result := &models.ExportResult{
		Items:     items,
		Metadata:  metadata,
		Stats:     b.stats,
		Timestamp: time.Now().UnixMilli(),
		Downloads: b.downloads,
	}

	if groupOf != nil {
		groups := make(map[string][]string)
		for _, u := range items {
			g := groupOf(u, b.items[u])
			groups[g] = append(groups[g], u)
		}
		result.Groups = groups
	}
	return result
}
