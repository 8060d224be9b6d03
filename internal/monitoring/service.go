package monitoring

import (
	"context"
	"log"
	"time"

	"attendance-backend/internal/metrics"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is one reading of host utilisation, in percent.
type Sample struct {
	CPU  float64
	Mem  float64
	Disk float64
}

// MonitoringService samples host utilisation into the host gauges.
type MonitoringService struct {
	metrics  *metrics.Metrics
	interval time.Duration
	collect  func() (Sample, error)
}

func NewMonitoringService(m *metrics.Metrics, interval time.Duration) *MonitoringService {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &MonitoringService{metrics: m, interval: interval, collect: collectHost}
}

// StartCollection samples once immediately and then every interval until
// ctx is cancelled.
func (s *MonitoringService) StartCollection(ctx context.Context) {
	s.collectAndSave()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.collectAndSave()
			}
		}
	}()
}

func (s *MonitoringService) collectAndSave() {
	sample, err := s.collect()
	if err != nil {
		log.Printf("[Monitoring] Host sample failed: %v", err)
		return
	}
	s.metrics.HostCPUPercent.Set(sample.CPU)
	s.metrics.HostMemPercent.Set(sample.Mem)
	s.metrics.HostDiskPercent.Set(sample.Disk)
}

func collectHost() (Sample, error) {
	var sample Sample

	memStats, err := mem.VirtualMemory()
	if err != nil {
		return sample, err
	}
	sample.Mem = memStats.UsedPercent

	if cpuPercents, err := cpu.Percent(0, false); err == nil && len(cpuPercents) > 0 {
		sample.CPU = cpuPercents[0]
	}
	if diskStats, err := disk.Usage("/"); err == nil {
		sample.Disk = diskStats.UsedPercent
	}
	return sample, nil
}
