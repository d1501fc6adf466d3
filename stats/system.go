package stats

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"adshield/logger"
)

// SystemStats 进程与主机资源使用情况
type SystemStats struct {
	CPUCores     int     `json:"cpu_cores"`
	CPUUsagePct  float64 `json:"cpu_usage_pct"`
	MemTotalMB   uint64  `json:"mem_total_mb"`
	MemUsedMB    uint64  `json:"mem_used_mb"`
	MemUsagePct  float64 `json:"mem_usage_pct"`
	GoMemAllocMB uint64  `json:"go_mem_alloc_mb"`
	Goroutines   int     `json:"goroutines"`
}

// WarmUpCPU 预热 CPU 使用率统计：第一次调用 Percent 会返回 0
func WarmUpCPU() {
	go func() {
		if _, err := cpu.Percent(time.Second, false); err != nil {
			logger.Warnf("无法初始化 CPU 使用率统计: %v", err)
		}
	}()
}

// ReadSystemStats samples CPU and memory usage. It waits at most timeout for
// the CPU sample and reports 0 when the sample is late.
func ReadSystemStats(timeout time.Duration) SystemStats {
	cpuUsageCh := make(chan float64, 1)
	go func() {
		usage, err := cpu.Percent(200*time.Millisecond, false)
		if err != nil || len(usage) == 0 {
			if err != nil {
				logger.Warnf("无法获取 CPU 使用率: %v", err)
			}
			cpuUsageCh <- 0
			return
		}
		cpuUsageCh <- usage[0]
	}()

	var cpuUsage float64
	select {
	case cpuUsage = <-cpuUsageCh:
	case <-time.After(timeout):
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sys := SystemStats{
		CPUCores:     runtime.NumCPU(),
		CPUUsagePct:  cpuUsage,
		GoMemAllocMB: memStats.Alloc / 1024 / 1024,
		Goroutines:   runtime.NumGoroutine(),
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Warnf("无法获取内存信息: %v", err)
		return sys
	}
	sys.MemTotalMB = memInfo.Total / 1024 / 1024
	sys.MemUsedMB = memInfo.Used / 1024 / 1024
	sys.MemUsagePct = memInfo.UsedPercent
	return sys
}
