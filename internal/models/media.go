package models

import (
	"encoding/json"

	"github.com/RecoveryAshes/MediaHarvest/internal/mathx"
)

// ItemSource 媒体项的发现来源
type ItemSource string

const (
	SourceDOM       ItemSource = "dom"             // DOM扫描
	SourceNetwork   ItemSource = "network-request" // 网络请求拦截
	SourcePlayerAPI ItemSource = "player-api"      // 播放器运行时API
	SourceIframe    ItemSource = "iframe"          // iframe/嵌入平台
	SourceMeta      ItemSource = "meta"            // 社交/元数据标签
	SourceScript    ItemSource = "script"          // 内联脚本正则匹配
	SourceShadowDOM ItemSource = "shadow-dom"      // Shadow DOM扫描
)

// ItemMetadata 媒体项元数据
type ItemMetadata struct {
	URL      string     `json:"url"`                // 归一化后的URL
	Source   ItemSource `json:"source"`             // 发现来源
	MIMEType string     `json:"mime_type,omitempty"` // 观测到的MIME类型
	ByteSize int64      `json:"byte_size,omitempty"` // 已知的字节大小
	Width    int        `json:"width,omitempty"`     // 声明宽度
	Height   int        `json:"height,omitempty"`    // 声明高度
	AltText  string     `json:"alt_text,omitempty"`  // alt文本
	Caption  string     `json:"caption,omitempty"`   // figcaption文本

	// 提取器特有字段
	Player   string `json:"player,omitempty"`   // 播放器名称
	Quality  string `json:"quality,omitempty"`  // 质量等级
	Platform string `json:"platform,omitempty"` // 平台标识
	Kind     string `json:"kind,omitempty"`     // 子类型(如subtitles/thumbnail)
}

// DownloadStatus 下载结果状态
type DownloadStatus string

const (
	DownloadSuccess DownloadStatus = "success" // 下载成功
	DownloadSkipped DownloadStatus = "skipped" // 文件已存在, 跳过
	DownloadFailure DownloadStatus = "failure" // 下载失败
)

// 下载失败错误类型
const (
	ErrTypeInvalidURL   = "invalid_url"   // URL无效
	ErrTypeHTTPError    = "http_error"    // HTTP状态非2xx
	ErrTypeTimeout      = "timeout"       // 请求超时
	ErrTypeNetworkError = "network_error" // 其他网络错误
	ErrTypeAborted      = "aborted"       // 请求被取消
	ErrTypeWriteError   = "write_error"   // 本地写入失败
)

// DownloadResult 单个URL的下载结果
// 三种状态互斥: success携带路径与字节数, skipped携带路径, failure携带原因
type DownloadResult struct {
	URL        string         `json:"url"`                   // 请求的URL
	Status     DownloadStatus `json:"status"`                // 结果状态
	Path       string         `json:"path,omitempty"`        // 本地路径(success/skipped)
	Filename   string         `json:"filename,omitempty"`    // 文件名(success)
	Bytes      int64          `json:"bytes,omitempty"`       // 字节数(success)
	DurationMs int64          `json:"duration_ms,omitempty"` // 耗时毫秒(success)
	Reason     string         `json:"reason,omitempty"`      // 失败原因(failure)
	ErrorType  string         `json:"error_type,omitempty"`  // 错误类型(failure)
	StatusCode int            `json:"status_code,omitempty"` // HTTP状态码(http_error)
}

// SuccessResult 构造成功结果
func SuccessResult(url, path, filename string, bytes, durationMs int64) DownloadResult {
	return DownloadResult{
		URL: url, Status: DownloadSuccess,
		Path: path, Filename: filename,
		Bytes: bytes, DurationMs: durationMs,
	}
}

// SkippedResult 构造跳过结果
func SkippedResult(url, path string) DownloadResult {
	return DownloadResult{URL: url, Status: DownloadSkipped, Path: path}
}

// FailureResult 构造失败结果
func FailureResult(url, errorType, reason string) DownloadResult {
	return DownloadResult{URL: url, Status: DownloadFailure, ErrorType: errorType, Reason: reason}
}

// DownloaderStats 下载器聚合统计
// 所有计数器单调递增, 恒有 Total = Successful + Failed + Skipped
type DownloaderStats struct {
	Total           int   `json:"total"`             // 总请求数
	Successful      int   `json:"successful"`        // 成功数
	Failed          int   `json:"failed"`            // 失败数
	Skipped         int   `json:"skipped"`           // 跳过数
	TotalBytes      int64 `json:"total_bytes"`       // 成功下载的总字节数
	TotalDurationMs int64 `json:"total_duration_ms"` // 成功下载的总耗时
}

// SuccessRate 成功率(含截断百分比字符串)
func (s *DownloaderStats) SuccessRate() mathx.Rate {
	return mathx.SuccessRate(s.Successful, s.Total)
}

// AverageSize 成功下载的平均大小(字节)
func (s *DownloaderStats) AverageSize() float64 {
	return mathx.SafeDivide(float64(s.TotalBytes), float64(s.Successful), 0)
}

// AverageDurationMs 成功下载的平均耗时(毫秒)
func (s *DownloaderStats) AverageDurationMs() float64 {
	return mathx.SafeDivide(float64(s.TotalDurationMs), float64(s.Successful), 0)
}

// ToJSON 序列化为JSON
func (s *DownloaderStats) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
