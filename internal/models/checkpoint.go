package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CheckpointFilename 检查点文件名
const CheckpointFilename = "checkpoint.json"

// Checkpoint 发现循环检查点
// 每saveInterval个阶段写出一次, 用于断点恢复
type Checkpoint struct {
	Phase      int                  `json:"phase"`       // 当前阶段号
	Discovered map[string]Discovery `json:"discovered"`  // URL -> Discovery
	Tensions   []float64            `json:"tension_map"` // 张力历史
	Timestamp  int64                `json:"timestamp"`   // 写出时间戳(毫秒)
}

// ToJSON 序列化为JSON
func (c *Checkpoint) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveToFile 保存检查点到outputDir/checkpoint.json
func (c *Checkpoint) SaveToFile(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("创建检查点目录失败: %w", err)
	}

	data, err := c.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化检查点失败: %w", err)
	}

	path := filepath.Join(outputDir, CheckpointFilename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入检查点失败: %w", err)
	}
	return nil
}

// LoadCheckpointFromFile 从outputDir加载检查点
func LoadCheckpointFromFile(outputDir string) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, CheckpointFilename))
	if err != nil {
		return nil, fmt.Errorf("读取检查点失败: %w", err)
	}

	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("解析检查点失败: %w", err)
	}
	if c.Discovered == nil {
		c.Discovered = make(map[string]Discovery)
	}
	return &c, nil
}
