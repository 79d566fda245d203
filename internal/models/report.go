package models

import (
	"encoding/json"
)

// LoopReport 发现循环终止报告
type LoopReport struct {
	DurationSeconds   float64      `json:"duration_seconds"`  // 总耗时(秒)
	Phases            int          `json:"phases"`            // 执行的阶段数
	UniqueDiscoveries int          `json:"unique_discoveries"` // 唯一发现数
	AverageTension    *float64     `json:"average_tension"`   // 平均张力(无阶段时为null)
	FinalBatchSize    int          `json:"final_batch_size"`  // 最终批次大小
	SessionStats      SessionStats `json:"session_stats"`     // 会话统计
}

// ToJSON 序列化为JSON
func (r *LoopReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ExtractionStats 提取运行统计
type ExtractionStats struct {
	Found      int   `json:"found"`       // 候选项总数(含重复)
	Unique     int   `json:"unique"`      // 去重后的项数
	Downloaded int   `json:"downloaded"`  // 成功下载数
	Errors     int   `json:"errors"`      // 被吞掉的pass级错误数
	StartedAt  int64 `json:"started_at"`  // 开始时间戳(毫秒)
	FinishedAt int64 `json:"finished_at"` // 结束时间戳(毫秒)
}

// ExportResult 提取器导出结果
type ExportResult struct {
	Items     []string                `json:"items"`                // 按插入顺序的去重项
	Metadata  map[string]ItemMetadata `json:"metadata,omitempty"`   // URL -> 元数据
	Groups    map[string][]string     `json:"groups,omitempty"`     // 分组视图
	Stats     ExtractionStats         `json:"stats"`                // 运行统计
	Timestamp int64                   `json:"timestamp"`            // 导出时间戳(毫秒)
	Downloads *DownloadSection        `json:"downloads,omitempty"`  // 下载详情(执行过下载时)
}

// DownloadSection 导出结果中的下载部分
type DownloadSection struct {
	Paths   map[string]string `json:"paths"`   // URL -> 本地路径
	Results []DownloadResult  `json:"results"` // 逐URL结果
	Stats   DownloaderStats   `json:"stats"`   // 聚合统计
}

// ToJSON 序列化为JSON
func (r *ExportResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// UniversalReport 全量提取汇总
type UniversalReport struct {
	TargetURL string                   `json:"target_url"`      // 目标URL
	Results   map[string]*ExportResult `json:"results"`         // 媒体类型 -> 结果
	AllItems  []string                 `json:"all_items"`       // 全部类型合并去重后的项
	Timestamp int64                    `json:"timestamp"`       // 时间戳(毫秒)
}

// ToJSON 序列化为JSON
func (r *UniversalReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
