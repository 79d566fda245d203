package discovery

import (
	"context"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/extractors"
	"github.com/RecoveryAshes/MediaHarvest/internal/mathx"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// Session 循环驱动的会话能力, 由browser.Session实现
type Session interface {
	Interact(ctx context.Context, kind models.InteractionKind, phase int) ([]models.Discovery, error)
	Stats() models.SessionStats
}

// Loop 自适应发现循环
// 偶数阶段滚动, 奇数阶段翻页; 张力驱动批次增减, 连续零张力进入停滞
type Loop struct {
	opts    models.LoopOptions
	session Session

	phase      int
	batchSize  int
	discovered map[string]models.Discovery
	order      []string
	tensions   []float64
	stasis     bool
	log        []models.InteractionRecord

	// 测试注入点
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLoop 构造发现循环
func NewLoop(session Session, opts models.LoopOptions) (*Loop, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Loop{
		opts:       opts,
		session:    session,
		batchSize:  1,
		discovered: make(map[string]models.Discovery),
		now:        time.Now,
		sleep:      sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Resume 从检查点恢复循环状态
func (l *Loop) Resume(c *models.Checkpoint) {
	l.phase = c.Phase
	l.tensions = append([]float64(nil), c.Tensions...)
	l.discovered = make(map[string]models.Discovery, len(c.Discovered))
	l.order = l.order[:0]
	for url, d := range c.Discovered {
		l.discovered[url] = d
		l.order = append(l.order, url)
	}
	utils.Infof("从检查点恢复: 阶段 %d, 已发现 %d 项", c.Phase, len(c.Discovered))
}

// Run 运行循环直到停滞或上下文取消, 返回终止报告
func (l *Loop) Run(ctx context.Context) (*models.LoopReport, error) {
	start := l.now()
	utils.Infof("🚀 发现循环启动: 最大阶段 %d, 张力阈值 %.2f", l.opts.MaxPhases, l.opts.TensionThreshold)

	for !l.stasis {
		if err := ctx.Err(); err != nil {
			utils.Warn("发现循环被取消")
			break
		}

		l.runPhase(ctx)

		if l.stasis {
			break
		}

		// 阶段间按批次大小等比退避
		delay := time.Duration(l.opts.PhaseDelayMs*l.batchSize) * time.Millisecond
		if err := l.sleep(ctx, delay); err != nil {
			break
		}
	}

	report := l.report(l.now().Sub(start))
	utils.Infof("✅ 发现循环结束: %d 个阶段, %d 个唯一发现, 最终批次 %d",
		report.Phases, report.UniqueDiscoveries, report.FinalBatchSize)
	return report, nil
}

// runPhase 执行单个阶段: 交互 -> 记录发现 -> 张力 -> 批次适应 -> 停滞检查
func (l *Loop) runPhase(ctx context.Context) {
	kind := l.interactionKind()

	discoveries, err := l.session.Interact(ctx, kind, l.phase)
	newCount := 0
	if err != nil {
		// 单阶段失败记录后继续, 不升级
		utils.Warnf("阶段 %d 交互失败 [%s]: %v", l.phase, kind, err)
	} else {
		now := l.now().UnixMilli()
		for _, d := range discoveries {
			// 身份标识是归一化后的URL
			d.URL = extractors.NormalizeURL(d.URL, "")
			if _, seen := l.discovered[d.URL]; seen {
				continue
			}
			d.DiscoveredAtPhase = l.phase
			d.DiscoveredAtTimestamp = now
			l.discovered[d.URL] = d
			l.order = append(l.order, d.URL)
			l.log = append(l.log, models.NewInteractionRecord(d, l.phase, kind, l.batchSize))
			newCount++
		}
	}

	tension := mathx.SafeDivide(float64(newCount), float64(l.batchSize), 0)
	l.tensions = append(l.tensions, tension)
	utils.Debugf("阶段 %d [%s]: 新发现 %d, 张力 %.3f, 批次 %d", l.phase, kind, newCount, tension, l.batchSize)

	// 批次适应
	switch {
	case tension > l.opts.TensionThreshold:
		l.batchSize++
	case tension == 0 && l.batchSize > 1:
		l.batchSize--
	}

	// 停滞: 最近stasisWindow个张力全为0, 或到达阶段上限
	l.checkStasis()

	l.phase++
	if l.phase%l.opts.SaveInterval == 0 {
		l.saveCheckpoint()
	}
}

// interactionKind 按阶段奇偶选择交互: 偶数滚动, 奇数翻页
func (l *Loop) interactionKind() models.InteractionKind {
	if l.phase%2 == 0 {
		return models.InteractionScroll
	}
	return models.InteractionPageNext
}

func (l *Loop) checkStasis() {
	if l.phase >= l.opts.MaxPhases {
		utils.Infof("达到最大阶段数 %d, 进入停滞", l.opts.MaxPhases)
		l.stasis = true
		return
	}
	if len(l.tensions) < l.opts.StasisWindow {
		return
	}
	for _, t := range l.tensions[len(l.tensions)-l.opts.StasisWindow:] {
		if t != 0 {
			return
		}
	}
	utils.Infof("最近 %d 个阶段零张力, 进入停滞", l.opts.StasisWindow)
	l.stasis = true
}

func (l *Loop) saveCheckpoint() {
	c := &models.Checkpoint{
		Phase:      l.phase,
		Discovered: l.discovered,
		Tensions:   l.tensions,
		Timestamp:  l.now().UnixMilli(),
	}
	if err := c.SaveToFile(l.opts.OutputDir); err != nil {
		utils.Warnf("写入检查点失败: %v", err)
		return
	}
	utils.Debugf("检查点已写出: 阶段 %d", l.phase)
}

// report 生成终止报告, 空张力历史时平均张力为null
func (l *Loop) report(elapsed time.Duration) *models.LoopReport {
	report := &models.LoopReport{
		DurationSeconds:   elapsed.Seconds(),
		Phases:            l.phase,
		UniqueDiscoveries: len(l.discovered),
		FinalBatchSize:    l.batchSize,
	}
	if l.session != nil {
		report.SessionStats = l.session.Stats()
	}
	if len(l.tensions) > 0 {
		sum := 0.0
		for _, t := range l.tensions {
			sum += t
		}
		avg := mathx.SafeDivide(sum, float64(len(l.tensions)), 0)
		report.AverageTension = &avg
	}
	return report
}

// Discovered 返回按发现顺序排列的全部发现
func (l *Loop) Discovered() []models.Discovery {
	out := make([]models.Discovery, 0, len(l.order))
	for _, url := range l.order {
		out = append(out, l.discovered[url])
	}
	return out
}

// Log 返回只追加的交互记录
func (l *Loop) Log() []models.InteractionRecord {
	return l.log
}

// Tensions 返回张力历史
func (l *Loop) Tensions() []float64 {
	return append([]float64(nil), l.tensions...)
}

// BatchSize 返回当前批次大小
func (l *Loop) BatchSize() int {
	return l.batchSize
}

// Phase 返回当前阶段号
func (l *Loop) Phase() int {
	return l.phase
}

// Stasis 返回是否已停滞
func (l *Loop) Stasis() bool {
	return l.stasis
}
