package models

import (
	"fmt"

	"github.com/RecoveryAshes/MediaHarvest/internal/mathx"
)

// QualityPreference 质量偏好
type QualityPreference string

const (
	QualityHighest QualityPreference = "highest" // 仅最高质量
	QualityLowest  QualityPreference = "lowest"  // 仅最低质量
	QualityAll     QualityPreference = "all"     // 全部质量
)

// ValidQualityPreference 检查质量偏好取值
func ValidQualityPreference(q QualityPreference) bool {
	switch q {
	case QualityHighest, QualityLowest, QualityAll:
		return true
	}
	return false
}

// ExtractorOptions 提取器通用选项
// Clamp后保证: MaxDepth在[1,100], TimeoutMs在[5000,300000], MaxConcurrentDownloads在[1,20]
type ExtractorOptions struct {
	MaxDepth               int    `mapstructure:"max_depth" json:"max_depth"`                               // 最大深度
	TimeoutMs              int    `mapstructure:"timeout_ms" json:"timeout_ms"`                             // 超时毫秒
	MaxConcurrentDownloads int    `mapstructure:"max_concurrent_downloads" json:"max_concurrent_downloads"` // 最大并发下载数
	DownloadMedia          bool   `mapstructure:"download_media" json:"download_media"`                     // 是否下载媒体
	DownloadDir            string `mapstructure:"download_dir" json:"download_dir"`                         // 下载目录
	OrganizeByType         bool   `mapstructure:"organize_by_type" json:"organize_by_type"`                 // 按类型分目录
	OrganizeBySource       bool   `mapstructure:"organize_by_source" json:"organize_by_source"`             // 按来源主机分目录
	CloseBrowser           bool   `mapstructure:"close_browser" json:"close_browser"`                       // 运行结束后是否关闭会话
	RetryAttempts          int    `mapstructure:"retry_attempts" json:"retry_attempts"`                     // 下载重试次数
	UserAgent              string `mapstructure:"user_agent" json:"user_agent"`                             // 下载User-Agent
	Referer                string `mapstructure:"referer" json:"referer"`                                   // 下载Referer
}

// DefaultExtractorOptions 默认通用选项
func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{
		MaxDepth:               5,
		TimeoutMs:              30000,
		MaxConcurrentDownloads: 5,
		DownloadDir:            "downloads",
		CloseBrowser:           true,
		RetryAttempts:          1,
	}
}

// Clamp 将选项限制到合法区间
func (o *ExtractorOptions) Clamp() {
	o.MaxDepth = mathx.ClampInt(o.MaxDepth, 1, 100)
	o.TimeoutMs = mathx.ClampInt(o.TimeoutMs, 5000, 300000)
	o.MaxConcurrentDownloads = mathx.ClampInt(o.MaxConcurrentDownloads, 1, 20)
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	}
	if o.DownloadDir == "" {
		o.DownloadDir = "downloads"
	}
}

// ImageOptions 图片提取器选项
type ImageOptions struct {
	ExtractorOptions `mapstructure:",squash"`

	MaxScrolls           int  `mapstructure:"max_scrolls" json:"max_scrolls"`                     // 最大滚动次数[1,200]
	ScrollStep           int  `mapstructure:"scroll_step" json:"scroll_step"`                     // 每次滚动像素[100,2000]
	ScrollDelayMs        int  `mapstructure:"scroll_delay_ms" json:"scroll_delay_ms"`             // 滚动后等待[100,5000]
	StabilizationDelayMs int  `mapstructure:"stabilization_delay_ms" json:"stabilization_delay_ms"` // 分页稳定等待[500,10000]
	MinWidth             int  `mapstructure:"min_width" json:"min_width"`                         // 最小宽度过滤
	MinHeight            int  `mapstructure:"min_height" json:"min_height"`                       // 最小高度过滤
	ExcludeIcons         bool `mapstructure:"exclude_icons" json:"exclude_icons"`                 // 排除小于32x32的图标
	ExtractSvg           bool `mapstructure:"extract_svg" json:"extract_svg"`                     // 提取内联SVG
	ExtractCanvas        bool `mapstructure:"extract_canvas" json:"extract_canvas"`               // 提取canvas快照
	ExtractMetadata      bool `mapstructure:"extract_metadata" json:"extract_metadata"`           // 提取元数据
}

// DefaultImageOptions 默认图片选项
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		ExtractorOptions:     DefaultExtractorOptions(),
		MaxScrolls:           10,
		ScrollStep:           500,
		ScrollDelayMs:        1000,
		StabilizationDelayMs: 2000,
		ExtractMetadata:      true,
	}
}

// Clamp 限制图片选项到合法区间
func (o *ImageOptions) Clamp() {
	o.ExtractorOptions.Clamp()
	o.MaxScrolls = mathx.ClampInt(o.MaxScrolls, 1, 200)
	o.ScrollStep = mathx.ClampInt(o.ScrollStep, 100, 2000)
	o.ScrollDelayMs = mathx.ClampInt(o.ScrollDelayMs, 100, 5000)
	o.StabilizationDelayMs = mathx.ClampInt(o.StabilizationDelayMs, 500, 10000)
	if o.MinWidth < 0 {
		o.MinWidth = 0
	}
	if o.MinHeight < 0 {
		o.MinHeight = 0
	}
}

// VideoOptions 视频提取器选项
type VideoOptions struct {
	ExtractorOptions `mapstructure:",squash"`

	ObservationWindowMs int               `mapstructure:"observation_window_ms" json:"observation_window_ms"` // 动态内容观察窗口[1000,30000]
	ScanShadowDOM       bool              `mapstructure:"scan_shadow_dom" json:"scan_shadow_dom"`             // 扫描Shadow DOM
	MonitorNetwork      bool              `mapstructure:"monitor_network" json:"monitor_network"`             // 网络流量监听
	ExtractSubtitles    bool              `mapstructure:"extract_subtitles" json:"extract_subtitles"`         // 提取字幕
	ExtractThumbnails   bool              `mapstructure:"extract_thumbnails" json:"extract_thumbnails"`       // 提取缩略图
	ExtractAudioTracks  bool              `mapstructure:"extract_audio_tracks" json:"extract_audio_tracks"`   // 枚举音轨
	QualityPreference   QualityPreference `mapstructure:"quality_preference" json:"quality_preference"`       // 质量偏好
}

// DefaultVideoOptions 默认视频选项
func DefaultVideoOptions() VideoOptions {
	return VideoOptions{
		ExtractorOptions:    DefaultExtractorOptions(),
		ObservationWindowMs: 5000,
		ScanShadowDOM:       true,
		MonitorNetwork:      true,
		ExtractSubtitles:    true,
		ExtractThumbnails:   true,
		QualityPreference:   QualityAll,
	}
}

// Clamp 限制视频选项到合法区间
func (o *VideoOptions) Clamp() {
	o.ExtractorOptions.Clamp()
	o.ObservationWindowMs = mathx.ClampInt(o.ObservationWindowMs, 1000, 30000)
	if !ValidQualityPreference(o.QualityPreference) {
		o.QualityPreference = QualityAll
	}
}

// AudioOptions 音频提取器选项
type AudioOptions struct {
	ExtractorOptions `mapstructure:",squash"`

	ObservationWindowMs int               `mapstructure:"observation_window_ms" json:"observation_window_ms"` // 观察窗口[1000,30000]
	MonitorNetwork      bool              `mapstructure:"monitor_network" json:"monitor_network"`             // 网络流量监听
	ScanWebAudioAPI     bool              `mapstructure:"scan_web_audio_api" json:"scan_web_audio_api"`       // Web Audio探针
	ExtractMetadata     bool              `mapstructure:"extract_metadata" json:"extract_metadata"`           // 提取元数据
	QualityPreference   QualityPreference `mapstructure:"quality_preference" json:"quality_preference"`       // 质量偏好
}

// DefaultAudioOptions 默认音频选项
func DefaultAudioOptions() AudioOptions {
	return AudioOptions{
		ExtractorOptions:    DefaultExtractorOptions(),
		ObservationWindowMs: 5000,
		MonitorNetwork:      true,
		ScanWebAudioAPI:     true,
		ExtractMetadata:     true,
		QualityPreference:   QualityAll,
	}
}

// Clamp 限制音频选项到合法区间
func (o *AudioOptions) Clamp() {
	o.ExtractorOptions.Clamp()
	o.ObservationWindowMs = mathx.ClampInt(o.ObservationWindowMs, 1000, 30000)
	if !ValidQualityPreference(o.QualityPreference) {
		o.QualityPreference = QualityAll
	}
}

// DocumentOptions 文档提取器选项
type DocumentOptions struct {
	ExtractorOptions `mapstructure:",squash"`

	MonitorNetwork   bool     `mapstructure:"monitor_network" json:"monitor_network"`     // 网络流量监听
	ExtractMetadata  bool     `mapstructure:"extract_metadata" json:"extract_metadata"`   // 提取元数据
	DetectViewers    bool     `mapstructure:"detect_viewers" json:"detect_viewers"`       // 检测PDF查看器
	FollowRedirects  bool     `mapstructure:"follow_redirects" json:"follow_redirects"`   // 跟随重定向
	SupportedFormats []string `mapstructure:"supported_formats" json:"supported_formats"` // 支持的格式(空为全部)
}

// DefaultDocumentOptions 默认文档选项
func DefaultDocumentOptions() DocumentOptions {
	return DocumentOptions{
		ExtractorOptions: DefaultExtractorOptions(),
		MonitorNetwork:   true,
		ExtractMetadata:  true,
		DetectViewers:    true,
		FollowRedirects:  true,
	}
}

// Clamp 限制文档选项到合法区间
func (o *DocumentOptions) Clamp() {
	o.ExtractorOptions.Clamp()
}

// ExtractToggles 全量提取开关
type ExtractToggles struct {
	Text      bool `mapstructure:"text" json:"text"`           // 文本/可读性
	Images    bool `mapstructure:"images" json:"images"`       // 图片
	Video     bool `mapstructure:"video" json:"video"`         // 视频
	Audio     bool `mapstructure:"audio" json:"audio"`         // 音频
	Documents bool `mapstructure:"documents" json:"documents"` // 文档
}

// BrowserOptions 浏览器会话选项
type BrowserOptions struct {
	Headless         bool   `mapstructure:"headless" json:"headless"`                     // 无头模式
	ViewportWidth    int    `mapstructure:"viewport_width" json:"viewport_width"`         // 视口宽度
	ViewportHeight   int    `mapstructure:"viewport_height" json:"viewport_height"`       // 视口高度
	UserAgent        string `mapstructure:"user_agent" json:"user_agent"`                 // User-Agent
	DefaultTimeoutMs int    `mapstructure:"default_timeout_ms" json:"default_timeout_ms"` // 默认导航超时
	RespectRobots    bool   `mapstructure:"respect_robots" json:"respect_robots"`         // 遵守robots.txt
	RateMaxRequests  int    `mapstructure:"rate_max_requests" json:"rate_max_requests"`   // 速率窗口内最大请求数
	RateIntervalMs   int    `mapstructure:"rate_interval_ms" json:"rate_interval_ms"`     // 速率窗口毫秒
}

// DefaultBrowserOptions 默认浏览器选项
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Headless:         true,
		ViewportWidth:    1366,
		ViewportHeight:   900,
		DefaultTimeoutMs: 30000,
		RateMaxRequests:  10,
		RateIntervalMs:   10000,
	}
}

// Clamp 限制浏览器选项到合法区间
func (o *BrowserOptions) Clamp() {
	o.ViewportWidth = mathx.ClampInt(o.ViewportWidth, 320, 7680)
	o.ViewportHeight = mathx.ClampInt(o.ViewportHeight, 240, 4320)
	o.DefaultTimeoutMs = mathx.ClampInt(o.DefaultTimeoutMs, 5000, 300000)
	if o.RateMaxRequests < 1 {
		o.RateMaxRequests = 1
	}
	if o.RateIntervalMs < 1000 {
		o.RateIntervalMs = 1000
	}
}

// LoopOptions 发现循环选项
type LoopOptions struct {
	MaxPhases        int     `mapstructure:"max_phases" json:"max_phases"`               // 最大阶段数(>=1)
	TensionThreshold float64 `mapstructure:"tension_threshold" json:"tension_threshold"` // 张力阈值
	StasisWindow     int     `mapstructure:"stasis_window" json:"stasis_window"`         // 停滞窗口长度
	SaveInterval     int     `mapstructure:"save_interval" json:"save_interval"`         // 检查点间隔
	PhaseDelayMs     int     `mapstructure:"phase_delay_ms" json:"phase_delay_ms"`       // 阶段间基础延迟(乘以批次大小)
	OutputDir        string  `mapstructure:"output_dir" json:"output_dir"`               // 输出目录
}

// DefaultLoopOptions 默认循环选项
func DefaultLoopOptions() LoopOptions {
	return LoopOptions{
		MaxPhases:        50,
		TensionThreshold: 0.5,
		StasisWindow:     3,
		SaveInterval:     10,
		PhaseDelayMs:     500,
		OutputDir:        "output",
	}
}

// Validate 校验循环选项
func (o *LoopOptions) Validate() error {
	if o.MaxPhases < 1 {
		return fmt.Errorf("max_phases必须>=1, 实际 %d", o.MaxPhases)
	}
	if o.TensionThreshold < 0 {
		return fmt.Errorf("tension_threshold必须>=0, 实际 %v", o.TensionThreshold)
	}
	if o.StasisWindow < 1 {
		return fmt.Errorf("stasis_window必须>=1, 实际 %d", o.StasisWindow)
	}
	if o.SaveInterval < 1 {
		return fmt.Errorf("save_interval必须>=1, 实际 %d", o.SaveInterval)
	}
	if o.PhaseDelayMs < 0 {
		return fmt.Errorf("phase_delay_ms必须>=0, 实际 %d", o.PhaseDelayMs)
	}
	return nil
}

// DownloadOptions 媒体下载选项(MediaStore)
type DownloadOptions struct {
	DownloadDir      string `mapstructure:"download_dir" json:"download_dir"`             // 下载根目录
	MaxConcurrent    int    `mapstructure:"max_concurrent" json:"max_concurrent"`         // 批次并发数[1,20]
	TimeoutMs        int    `mapstructure:"timeout_ms" json:"timeout_ms"`                 // 单请求超时(下限5000)
	OrganizeByType   bool   `mapstructure:"organize_by_type" json:"organize_by_type"`     // 按类型分目录
	OrganizeBySource bool   `mapstructure:"organize_by_source" json:"organize_by_source"` // 按来源主机分目录
	UserAgent        string `mapstructure:"user_agent" json:"user_agent"`                 // User-Agent
	Referer          string `mapstructure:"referer" json:"referer"`                       // Referer(空则使用URL origin)
	RetryAttempts    int    `mapstructure:"retry_attempts" json:"retry_attempts"`         // 重试次数
	TypeHint         string `mapstructure:"type_hint" json:"type_hint"`                   // 类型提示(image/video/audio)
}

// DefaultDownloadOptions 默认下载选项
func DefaultDownloadOptions() DownloadOptions {
	return DownloadOptions{
		DownloadDir:   "downloads",
		MaxConcurrent: 5,
		TimeoutMs:     30000,
		UserAgent:     "MediaHarvest/1.0",
		RetryAttempts: 1,
	}
}

// Clamp 限制下载选项到合法区间
// 并发数限制到[1,20], 超时下限提升到5000毫秒
func (o *DownloadOptions) Clamp() {
	if o.DownloadDir == "" {
		o.DownloadDir = "downloads"
	}
	o.MaxConcurrent = mathx.ClampInt(o.MaxConcurrent, 1, 20)
	if o.TimeoutMs < 5000 {
		o.TimeoutMs = 5000
	}
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	}
}
