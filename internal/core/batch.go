package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// BatchRunner 批量任务执行器
type BatchRunner struct {
	config        *Config
	mode          string
	batchDelay    time.Duration
	continueOnErr bool
}

// BatchResult 单URL执行结果
type BatchResult struct {
	URL         string
	Success     bool
	Error       error
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量执行摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchRunner 创建批量执行器
func NewBatchRunner(config *Config, mode string, batchDelay int, continueOnErr bool) *BatchRunner {
	return &BatchRunner{
		config:        config,
		mode:          mode,
		batchDelay:    time.Duration(batchDelay) * time.Second,
		continueOnErr: continueOnErr,
	}
}

// RunBatch 批量处理URL列表
func (br *BatchRunner) RunBatch(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量采集: %d个URL", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}

	startTime := time.Now()

	for i, targetURL := range urls {
		if ctx.Err() != nil {
			utils.Warn("批量采集被中断")
			break
		}

		utils.Infof("\n==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", targetURL)

		result := br.runSingleURL(ctx, targetURL)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
		} else {
			summary.FailCount++
			utils.Errorf("❌ 采集失败: %v", result.Error)

			// 如果不继续处理错误,则停止
			if !br.continueOnErr {
				utils.Warn("批量采集中止 (--continue-on-error=false)")
				break
			}
		}

		// 批量延迟(最后一个URL不需要延迟)
		if i < len(urls)-1 && br.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", br.batchDelay.Seconds())
			select {
			case <-time.After(br.batchDelay):
			case <-ctx.Done():
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()

	br.printSummary(summary)

	return summary, nil
}

// runSingleURL 处理单个URL
func (br *BatchRunner) runSingleURL(ctx context.Context, targetURL string) BatchResult {
	result := BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}

	startTime := time.Now()

	runner, err := NewRunner(targetURL, br.config)
	if err != nil {
		result.Success = false
		result.Error = fmt.Errorf("创建任务协调器失败: %w", err)
		result.Duration = time.Since(startTime).Seconds()
		return result
	}

	if err := runner.Run(ctx, br.mode); err != nil {
		result.Success = false
		result.Error = fmt.Errorf("采集失败: %w", err)
		result.Duration = time.Since(startTime).Seconds()
		return result
	}

	result.Success = true
	result.Duration = time.Since(startTime).Seconds()

	return result
}

// printSummary 打印批量执行摘要
func (br *BatchRunner) printSummary(summary *BatchSummary) {
	utils.Info("\n==================================================")
	utils.Info("📊 批量采集摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	// 显示失败的URL
	if summary.FailCount > 0 {
		utils.Warn("\n失败的URL:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}
