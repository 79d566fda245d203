package main

import (
	"fmt"

	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// ValidateFlags 验证命令行标志
func ValidateFlags(
	targetURL string,
	maxPhases int,
	tensionThreshold float64,
	mode string,
) error {
	// 验证URL
	if targetURL != "" {
		if err := utils.ValidateURL(targetURL); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	// 验证阶段数(0表示使用配置值)
	if maxPhases < 0 || maxPhases > 10000 {
		return fmt.Errorf("最大阶段数必须在0-10000之间,当前值: %d", maxPhases)
	}

	// 验证张力阈值(负数表示使用配置值)
	if tensionThreshold > 100 {
		return fmt.Errorf("张力阈值必须不超过100,当前值: %.2f", tensionThreshold)
	}

	// 验证模式
	validModes := map[string]bool{
		"all":      true,
		"discover": true,
		"extract":  true,
	}
	if !validModes[mode] {
		return fmt.Errorf("无效的运行模式: %s (有效值: all, discover, extract)", mode)
	}

	return nil
}
