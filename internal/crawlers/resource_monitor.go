package crawlers

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	// DefaultTabMemoryUsage 单个标签页平均内存消耗
	DefaultTabMemoryUsage = 100 * 1024 * 1024
	// DefaultCPULoadThreshold CPU负载阈值(%),超过后只允许1个标签页
	DefaultCPULoadThreshold = 85.0

	maxTabsCacheTTL = time.Second
)

// ResourceMonitor 系统资源监控器
// 根据可用内存和CPU负载计算浏览器模式下允许同时打开的标签页数量
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 采样函数,测试中可替换
	readMemory func() (available uint64, err error)
	readCPU    func() (percent float64, err error)

	// 缓存的CalculateMaxTabs结果(1秒有效)
	mu            sync.Mutex
	cachedMaxTabs int
	lastCacheTime time.Time
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64   // 安全保留内存(字节)
	TabMemoryUsage      int64   // 单个标签页平均内存消耗(字节)
	CPULoadThreshold    float64 // CPU负载阈值(%)
	MaxTabsLimit        int     // 绝对最大标签页数
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	AvailableMemory uint64 // 系统可用内存(字节)
	SafetyReserve   int64  // 安全保留内存(字节)
	MaxTabs         int    // 当前允许的标签页数
}

// NewResourceMonitor 创建资源监控器
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.TabMemoryUsage <= 0 {
		config.TabMemoryUsage = DefaultTabMemoryUsage
	}
	if config.CPULoadThreshold <= 0 {
		config.CPULoadThreshold = DefaultCPULoadThreshold
	}
	if config.MaxTabsLimit < 1 {
		config.MaxTabsLimit = 1
	}

	return &ResourceMonitor{
		config:     config,
		readMemory: systemAvailableMemory,
		readCPU:    systemCPUPercent,
	}
}

// systemAvailableMemory 通过gopsutil读取系统可用内存
func systemAvailableMemory() (uint64, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vmStat.Available, nil
}

// systemCPUPercent 100毫秒采样的整体CPU使用率
func systemCPUPercent() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, nil
	}
	return percentages[0], nil
}

// CalculateMaxTabs 计算当前允许的最大标签页数,结果至少为1
func (rm *ResourceMonitor) CalculateMaxTabs() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.cachedMaxTabs > 0 && time.Since(rm.lastCacheTime) < maxTabsCacheTTL {
		return rm.cachedMaxTabs
	}

	result := rm.config.MaxTabsLimit

	if byMemory, ok := rm.tabsByMemory(); ok && byMemory < result {
		result = byMemory
	}
	if n := runtime.NumCPU(); n < result {
		result = n
	}

	if load, err := rm.readCPU(); err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
	} else if load > rm.config.CPULoadThreshold {
		log.Warn().Msgf("CPU负载过高(当前%.1f%%),标签页限制为1个", load)
		result = 1
	}

	if result < 1 {
		result = 1
	}

	rm.cachedMaxTabs = result
	rm.lastCacheTime = time.Now()
	return result
}

// tabsByMemory 可用内存扣除保留量后能容纳的标签页数
func (rm *ResourceMonitor) tabsByMemory() (int, bool) {
	available, err := rm.readMemory()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,忽略内存限制")
		return 0, false
	}

	surplus := int64(available) - rm.config.SafetyReserveMemory
	if surplus < rm.config.TabMemoryUsage {
		log.Warn().Msgf("可用内存不足(当前%dMB),标签页限制为1个", available/(1024*1024))
		return 1, true
	}
	return int(surplus / rm.config.TabMemoryUsage), true
}

// GetMemoryStatus 获取当前内存状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	available, err := rm.readMemory()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败")
	}
	return MemoryStatus{
		AvailableMemory: available,
		SafetyReserve:   rm.config.SafetyReserveMemory,
		MaxTabs:         rm.CalculateMaxTabs(),
	}
}
