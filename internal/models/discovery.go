package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InteractionKind 交互类型
type InteractionKind string

const (
	InteractionScroll   InteractionKind = "scroll"    // 滚动到页面底部
	InteractionPageNext InteractionKind = "page_next" // 点击下一页链接
)

// Discovery 发现的链接
// 身份标识: 归一化后的URL
type Discovery struct {
	URL                   string `json:"url"`                     // 链接URL
	AnchorText            string `json:"anchor_text"`             // 锚文本(截断100字符)
	Title                 string `json:"title"`                   // title属性
	DiscoveredAtPhase     int    `json:"discovered_at_phase"`     // 发现时的阶段号
	DiscoveredAtTimestamp int64  `json:"discovered_at_timestamp"` // 发现时间戳(毫秒)
}

// InteractionRecord 交互记录
// 只追加日志, 记录后不可变
type InteractionRecord struct {
	ID              string          `json:"id"`                 // 记录唯一ID
	Discovery       Discovery       `json:"discovery"`          // 关联的发现
	Phase           int             `json:"phase"`              // 阶段号
	InteractionKind InteractionKind `json:"interaction_kind"`   // 交互类型
	BatchSizeAtTime int             `json:"batch_size_at_time"` // 当时的批次大小
	Timestamp       int64           `json:"timestamp"`          // 记录时间戳(毫秒)
}

// NewInteractionRecord 创建交互记录
func NewInteractionRecord(d Discovery, phase int, kind InteractionKind, batchSize int) InteractionRecord {
	return InteractionRecord{
		ID:              uuid.New().String(),
		Discovery:       d,
		Phase:           phase,
		InteractionKind: kind,
		BatchSizeAtTime: batchSize,
		Timestamp:       time.Now().UnixMilli(),
	}
}

// SessionStats 浏览器会话统计
type SessionStats struct {
	Requests int `json:"requests"` // 成功的交互/导航次数
	Errors   int `json:"errors"`   // 失败次数
}

// ToJSON 序列化为JSON
func (r *InteractionRecord) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
