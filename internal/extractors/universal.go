package extractors

import (
	"context"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/browser"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// UniversalConfig 全量提取配置
type UniversalConfig struct {
	Toggles  models.ExtractToggles
	Base     models.ExtractorOptions
	Image    models.ImageOptions
	Video    models.VideoOptions
	Audio    models.AudioOptions
	Document models.DocumentOptions
}

// DefaultUniversalConfig 默认开启全部媒体类型
func DefaultUniversalConfig() UniversalConfig {
	return UniversalConfig{
		Toggles: models.ExtractToggles{
			Text: true, Images: true, Video: true, Audio: true, Documents: true,
		},
		Base:     models.DefaultExtractorOptions(),
		Image:    models.DefaultImageOptions(),
		Video:    models.DefaultVideoOptions(),
		Audio:    models.DefaultAudioOptions(),
		Document: models.DefaultDocumentOptions(),
	}
}

// UniversalExtractor 全量提取编排器
// 在同一个会话上按固定顺序依次运行子提取器:
// 文本 -> 文档 -> 音频 -> 视频 -> 图片
// 顺序保证滚动类副作用不污染前面的轻量扫描
type UniversalExtractor struct {
	*Base
	config     UniversalConfig
	results    map[string]*models.ExportResult
	textReport *TextReport
}

// NewUniversalExtractor 构造全量提取器
func NewUniversalExtractor(session *browser.Session, config UniversalConfig, closeBrowser bool) *UniversalExtractor {
	return &UniversalExtractor{
		Base:    NewBase("全量", session, config.Base, closeBrowser),
		config:  config,
		results: make(map[string]*models.ExportResult),
	}
}

// Run 执行完整提取生命周期
func (e *UniversalExtractor) Run(ctx context.Context, target string) error {
	return e.Base.Run(ctx, target, e)
}

// Initialize 就绪共享会话
func (e *UniversalExtractor) Initialize(ctx context.Context, target string) error {
	return e.session.Initialize(ctx, target)
}

// Extract 顺序运行启用的子提取器, 子结果按媒体类型命名并合并进总集合
func (e *UniversalExtractor) Extract(ctx context.Context) error {
	target := e.session.CurrentURL()

	type child struct {
		kind    string
		enabled bool
		run     func(context.Context, string) error
	}

	var (
		textExtractor *TextExtractor
		docExtractor  *DocumentExtractor
		audExtractor  *AudioExtractor
		vidExtractor  *VideoExtractor
		imgExtractor  *ImageExtractor
	)

	textExtractor = NewTextExtractor(e.session, e.config.Base, false)
	docExtractor = NewDocumentExtractor(e.session, e.config.Document, false)
	audExtractor = NewAudioExtractor(e.session, e.config.Audio, false)
	vidExtractor = NewVideoExtractor(e.session, e.config.Video, false)
	imgExtractor = NewImageExtractor(e.session, e.config.Image, false)

	if e.store != nil {
		docExtractor.SetStore(e.store)
		audExtractor.SetStore(e.store)
		vidExtractor.SetStore(e.store)
		imgExtractor.SetStore(e.store)
	}

	children := []child{
		{"text", e.config.Toggles.Text, textExtractor.Run},
		{"documents", e.config.Toggles.Documents, docExtractor.Run},
		{"audio", e.config.Toggles.Audio, audExtractor.Run},
		{"video", e.config.Toggles.Video, vidExtractor.Run},
		{"images", e.config.Toggles.Images, imgExtractor.Run},
	}

	for _, c := range children {
		if !c.enabled {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.run(ctx, target); err != nil {
			// 子提取失败不中断其余类型
			utils.Warnf("子提取器失败 [%s]: %v", c.kind, err)
		}
	}

	// 汇总子结果
	if e.config.Toggles.Text {
		e.textReport = textExtractor.Report()
	}
	e.collect("documents", e.config.Toggles.Documents, docExtractor.Export, docExtractor.Metadata)
	e.collect("audio", e.config.Toggles.Audio, audExtractor.Export, audExtractor.Metadata)
	e.collect("video", e.config.Toggles.Video, vidExtractor.Export, vidExtractor.Metadata)
	e.collect("images", e.config.Toggles.Images, imgExtractor.Export, imgExtractor.Metadata)

	return nil
}

// collect 记录子结果并把条目并入编排器去重集合
func (e *UniversalExtractor) collect(kind string, enabled bool, export func() *models.ExportResult, metadata func() map[string]models.ItemMetadata) {
	if !enabled {
		return
	}
	result := export()
	e.results[kind] = result

	meta := metadata()
	for _, item := range result.Items {
		e.AddItem(item, meta[item])
	}
}

// Cleanup 幂等清理
func (e *UniversalExtractor) Cleanup() {
	e.baseCleanup()
}

// TextReport 返回文本子提取器的可读性报告
func (e *UniversalExtractor) TextReport() *TextReport {
	return e.textReport
}

// Report 汇总全量提取结果
func (e *UniversalExtractor) Report() *models.UniversalReport {
	return &models.UniversalReport{
		TargetURL: e.session.CurrentURL(),
		Results:   e.results,
		AllItems:  e.Items(),
		Timestamp: time.Now().UnixMilli(),
	}
}
