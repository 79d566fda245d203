package core

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/browser"
	"github.com/RecoveryAshes/MediaHarvest/internal/discovery"
	"github.com/RecoveryAshes/MediaHarvest/internal/extractors"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/store"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// Runner 主任务协调器
// 一个Runner对应一个目标URL, 输出落在 output/<domain>/ 下
type Runner struct {
	config    *Config
	targetURL string
	domain    string
	outputDir string
}

// NewRunner 创建任务协调器
func NewRunner(targetURL string, config *Config) (*Runner, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("解析URL失败: %w", err)
	}

	domain := parsedURL.Host
	if domain == "" {
		return nil, fmt.Errorf("无法从URL中提取域名: %s", targetURL)
	}

	return &Runner{
		config:    config,
		targetURL: targetURL,
		domain:    domain,
		outputDir: filepath.Join(config.Output.BaseDir, domain),
	}, nil
}

// Run 按模式执行任务
// 执行流程:
//  1. 创建输出目录结构
//  2. 根据模式执行 (discover/extract/all)
//  3. 生成报告
func (r *Runner) Run(ctx context.Context, mode string) error {
	startTime := time.Now()

	utils.Infof("🚀 开始采集任务")
	utils.Infof("目标URL: %s", r.targetURL)
	utils.Infof("域名: %s", r.domain)
	utils.Infof("运行模式: %s", mode)
	utils.Infof("输出目录: %s", r.outputDir)

	if err := r.setupOutputDirectories(); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	switch mode {
	case "discover":
		if _, err := r.RunDiscovery(ctx); err != nil {
			return err
		}
	case "extract":
		if _, err := r.RunExtraction(ctx); err != nil {
			return err
		}
	case "all":
		// 先发现后提取, 发现失败不影响提取
		if _, err := r.RunDiscovery(ctx); err != nil {
			utils.Warnf("链接发现失败, 继续媒体提取: %v", err)
		}
		if _, err := r.RunExtraction(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("无效的运行模式: %s", mode)
	}

	utils.Infof("✅ 采集任务完成, 总耗时: %.2f秒", time.Since(startTime).Seconds())
	return nil
}

// setupOutputDirectories 创建输出目录结构
func (r *Runner) setupOutputDirectories() error {
	dirs := []string{
		filepath.Join(r.outputDir, "discoveries"), // 链接发现导出
		filepath.Join(r.outputDir, "reports"),     // 报告文件
		filepath.Join(r.outputDir, "checkpoints"), // 检查点文件
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 [%s]: %w", dir, err)
		}
		utils.Debugf("创建目录: %s", dir)
	}

	utils.Infof("✅ 输出目录结构创建完成: %s", r.outputDir)
	return nil
}

// RunDiscovery 执行自适应链接发现
func (r *Runner) RunDiscovery(ctx context.Context) (*models.LoopReport, error) {
	utils.Infof("🔍 链接发现模式启动")

	session := browser.NewSession(r.config.Browser)
	defer session.Close()

	if err := session.Initialize(ctx, r.targetURL); err != nil {
		return nil, fmt.Errorf("初始化浏览器会话失败: %w", err)
	}

	loopOpts := r.config.Crawl.Loop
	loopOpts.OutputDir = filepath.Join(r.outputDir, "checkpoints")

	loop, err := discovery.NewLoop(session, loopOpts)
	if err != nil {
		return nil, fmt.Errorf("创建发现循环失败: %w", err)
	}

	// 断点恢复
	if r.config.Crawl.Resume {
		if checkpoint, err := models.LoadCheckpointFromFile(loopOpts.OutputDir); err == nil {
			loop.Resume(checkpoint)
			utils.Infof("📂 从检查点恢复: 阶段 %d, 已发现 %d 条", checkpoint.Phase, len(checkpoint.Discovered))
		} else {
			utils.Warnf("加载检查点失败, 从头开始: %v", err)
		}
	}

	report, err := loop.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("发现循环失败: %w", err)
	}

	// 导出四种格式的发现记录
	exporter := discovery.NewExporter(filepath.Join(r.outputDir, "discoveries"))
	if err := exporter.ExportAll(loop.Log()); err != nil {
		utils.Warnf("导出发现记录失败: %v", err)
	}

	reporter := utils.NewReporter(filepath.Join(r.outputDir, "reports"))
	if err := reporter.SaveJSON("discovery_report.json", report); err != nil {
		utils.Warnf("保存发现报告失败: %v", err)
	}

	utils.Infof("✅ 链接发现完成: %d 个阶段, %d 条唯一链接", report.Phases, report.UniqueDiscoveries)
	return report, nil
}

// RunExtraction 执行全量媒体提取
func (r *Runner) RunExtraction(ctx context.Context) (*models.UniversalReport, error) {
	utils.Infof("🎬 媒体提取模式启动")

	session := browser.NewSession(r.config.Browser)

	universalConfig := extractors.UniversalConfig{
		Toggles:  r.config.Extract.Toggles,
		Base:     models.DefaultExtractorOptions(),
		Image:    r.config.Extract.Images,
		Video:    r.config.Extract.Video,
		Audio:    r.config.Extract.Audio,
		Document: r.config.Extract.Documents,
	}

	// closeBrowser=true时会话由提取器生命周期负责关闭
	extractor := extractors.NewUniversalExtractor(session, universalConfig, true)

	var (
		mediaStore *store.Store
		monitor    *store.Monitor
	)
	if r.downloadEnabled() {
		downloadOpts := r.config.Download
		downloadOpts.DownloadDir = filepath.Join(r.outputDir, "downloads")

		mediaStore = store.NewStore(downloadOpts)
		monitor = store.NewMonitor(store.DefaultMonitorConfig())
		monitor.Start(2 * time.Second)
		defer monitor.Stop()
		mediaStore.SetMonitor(monitor)
		extractor.SetStore(mediaStore)
	}

	if err := extractor.Run(ctx, r.targetURL); err != nil {
		return nil, fmt.Errorf("媒体提取失败: %w", err)
	}

	report := extractor.Report()

	reporter := utils.NewReporter(filepath.Join(r.outputDir, "reports"))
	if err := reporter.SaveJSON("extraction_report.json", report); err != nil {
		utils.Warnf("保存提取报告失败: %v", err)
	}
	if textReport := extractor.TextReport(); textReport != nil {
		if err := reporter.SaveJSON("text_report.json", textReport); err != nil {
			utils.Warnf("保存文本报告失败: %v", err)
		}
	}

	utils.Infof("✅ 媒体提取完成: %d 条唯一媒体", len(report.AllItems))
	if mediaStore != nil {
		stats := mediaStore.Stats()
		rate := stats.SuccessRate()
		utils.Infof("📥 下载统计: 总数 %d, 成功 %d, 失败 %d, 跳过 %d, 成功率 %s%%",
			stats.Total, stats.Successful, stats.Failed, stats.Skipped, rate.Percentage)
	}

	return report, nil
}

// downloadEnabled 任一媒体类型开启下载即启用MediaStore
func (r *Runner) downloadEnabled() bool {
	e := r.config.Extract
	return e.Images.DownloadMedia || e.Video.DownloadMedia ||
		e.Audio.DownloadMedia || e.Documents.DownloadMedia
}
