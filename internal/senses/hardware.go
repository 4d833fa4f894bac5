package senses

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/procfs"
)

// HardwareMonitor samples /proc once a second and publishes the result.
// CPU percent comes from the delta between consecutive stat reads, so the
// first sample reports 0.
type HardwareMonitor struct {
	fs       procfs.FS
	interval time.Duration

	prevIdle  float64
	prevTotal float64
	primed    bool
}

func NewHardwareMonitor() (*HardwareMonitor, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &HardwareMonitor{fs: fs, interval: time.Second}, nil
}

// Sample reads one load snapshot.
func (m *HardwareMonitor) Sample() (HardwareLoad, error) {
	load := HardwareLoad{SampledAt: time.Now()}

	stat, err := m.fs.Stat()
	if err != nil {
		return load, fmt.Errorf("read stat: %w", err)
	}
	cpu := stat.CPUTotal
	idle := cpu.Idle + cpu.Iowait
	total := idle + cpu.User + cpu.Nice + cpu.System + cpu.IRQ + cpu.SoftIRQ + cpu.Steal
	if m.primed && total > m.prevTotal {
		busy := (total - m.prevTotal) - (idle - m.prevIdle)
		load.CPUPercent = float32(busy / (total - m.prevTotal) * 100)
	}
	m.prevIdle = idle
	m.prevTotal = total
	m.primed = true

	meminfo, err := m.fs.Meminfo()
	if err != nil {
		return load, fmt.Errorf("read meminfo: %w", err)
	}
	if meminfo.MemTotal != nil && meminfo.MemAvailable != nil && *meminfo.MemTotal > 0 {
		used := *meminfo.MemTotal - *meminfo.MemAvailable
		load.MemoryPercent = float32(float64(used) / float64(*meminfo.MemTotal) * 100)
	}

	if avg, err := m.fs.LoadAvg(); err == nil {
		load.Load1 = float32(avg.Load1)
	}
	return load, nil
}

// Run samples at the monitor interval until the context ends. Sends never
// block: if the daemon is behind, the stale sample is evicted so the
// freshest one wins.
func (m *HardwareMonitor) Run(ctx context.Context, out chan HardwareLoad) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			load, err := m.Sample()
			if err != nil {
				continue
			}
			select {
			case out <- load:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- load:
				default:
				}
			}
		}
	}
}
