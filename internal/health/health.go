package health

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db Pinger
}

type HealthStatus struct {
	Status   string         `json:"status"`
	Database DatabaseHealth `json:"database"`
}

type DetailedStatus struct {
	HealthStatus
	Goroutines int         `json:"goroutines"`
	Memory     MemoryStats `json:"memory"`
	Host       *HostStats  `json:"host,omitempty"`
	Uptime     string      `json:"uptime"`
}

type MemoryStats struct {
	AllocMB      float64 `json:"alloc_mb"`
	TotalAllocMB float64 `json:"total_alloc_mb"`
	SysMB        float64 `json:"sys_mb"`
	NumGC        uint32  `json:"num_gc"`
}

type HostStats struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemUsedPct  float64 `json:"mem_used_percent"`
	DiskUsedPct float64 `json:"disk_used_percent"`
}

type DatabaseHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

var started = time.Now()

func NewHealthChecker(db Pinger) *HealthChecker {
	return &HealthChecker{db: db}
}

func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	dbHealth := h.checkDatabase(ctx)

	status := "healthy"
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
	}
	return HealthStatus{Status: status, Database: dbHealth}
}

// CheckDetailed adds runtime and host statistics. Host stats are omitted
// when gopsutil cannot read them.
func (h *HealthChecker) CheckDetailed(ctx context.Context) DetailedStatus {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return DetailedStatus{
		HealthStatus: h.CheckBasic(ctx),
		Goroutines:   runtime.NumGoroutine(),
		Memory: MemoryStats{
			AllocMB:      float64(memStats.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(memStats.Sys) / 1024 / 1024,
			NumGC:        memStats.NumGC,
		},
		Host:   hostStats(),
		Uptime: time.Since(started).Round(time.Second).String(),
	}
}

func hostStats() *HostStats {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil
	}
	stats := &HostStats{MemUsedPct: vm.UsedPercent}

	// interval 0 compares against the previous call instead of sleeping
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	if du, err := disk.Usage("/"); err == nil {
		stats.DiskUsedPct = du.UsedPercent
	}
	return stats
}

func (h *HealthChecker) checkDatabase(ctx context.Context) DatabaseHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return DatabaseHealth{Status: "unhealthy", ResponseTime: responseTime}
	}
	return DatabaseHealth{Status: "healthy", ResponseTime: responseTime}
}
