package store

import (
	"context"
	"sync"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/mathx"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MonitorConfig 资源监控器配置
type MonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	CPULoadThreshold    int   // CPU负载阈值(%)
	FetchMemoryUsage    int64 // 单个并发下载的内存预算(字节)
}

// DefaultMonitorConfig 默认监控配置
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SafetyReserveMemory: 512 * 1024 * 1024, // 512MB
		CPULoadThreshold:    85,                // 85%
		FetchMemoryUsage:    64 * 1024 * 1024,  // 64MB
	}
}

// Monitor 系统资源监控器
// 职责: 周期采样内存和CPU, 在资源紧张时降低批次下载的有效并发数
// 只降不升: 有效并发数永远不超过配置的上限
type Monitor struct {
	config MonitorConfig

	mu            sync.RWMutex
	availableMem  int64
	cpuUsage      float64
	lastSample    time.Time

	cancelFunc context.CancelFunc
	isRunning  bool
}

// NewMonitor 创建资源监控器
func NewMonitor(config MonitorConfig) *Monitor {
	if config.FetchMemoryUsage <= 0 {
		config.FetchMemoryUsage = 64 * 1024 * 1024
	}
	m := &Monitor{config: config}
	m.sample()
	return m
}

// Start 启动后台采样
func (m *Monitor) Start(interval time.Duration) {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFunc = cancel
	m.isRunning = true
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop 停止后台采样(幂等)
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isRunning {
		return
	}
	m.cancelFunc()
	m.isRunning = false
}

// sample 采样一次内存和CPU
func (m *Monitor) sample() {
	var available int64 = -1
	if vmStat, err := mem.VirtualMemory(); err == nil {
		available = int64(vmStat.Available)
	} else {
		utils.Warnf("获取系统内存失败: %v", err)
	}

	var usage float64 = -1
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		usage = percents[0]
	}

	m.mu.Lock()
	m.availableMem = available
	m.cpuUsage = usage
	m.lastSample = time.Now()
	m.mu.Unlock()
}

// EffectiveConcurrency 计算资源允许的有效并发数
// configured为调用方已限幅的并发上限; 资源不足时降级, 最低为1
func (m *Monitor) EffectiveConcurrency(configured int) int {
	if configured < 1 {
		configured = 1
	}

	m.mu.RLock()
	available := m.availableMem
	usage := m.cpuUsage
	m.mu.RUnlock()

	allowed := configured

	// 内存预算: (可用内存 - 安全保留) / 单下载预算
	if available >= 0 {
		budget := available - m.config.SafetyReserveMemory
		byMemory := int(budget / m.config.FetchMemoryUsage)
		if byMemory < allowed {
			allowed = byMemory
		}
	}

	// CPU过载时减半
	if usage >= 0 && m.config.CPULoadThreshold > 0 && usage > float64(m.config.CPULoadThreshold) {
		allowed = allowed / 2
	}

	allowed = mathx.ClampInt(allowed, 1, configured)
	if allowed < configured {
		utils.Debugf("资源紧张, 下载并发数降级: %d -> %d (可用内存=%d, CPU=%.1f%%)",
			configured, allowed, available, usage)
	}
	return allowed
}
