package senses

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestAudioFrameEnergy(t *testing.T) {
	silent := AudioFrame{Samples: make([]float32, 256)}
	if got := silent.Energy(); got != 0 {
		t.Fatalf("silence energy=%f want 0", got)
	}

	loud := AudioFrame{Samples: []float32{1, -1, 1, -1}}
	if got := loud.Energy(); math.Abs(float64(got)-1) > 1e-6 {
		t.Fatalf("full-scale energy=%f want 1", got)
	}

	if got := (AudioFrame{}).Energy(); got != 0 {
		t.Fatalf("empty frame energy=%f want 0", got)
	}
}

func TestHardwareLoadCombined(t *testing.T) {
	load := HardwareLoad{CPUPercent: 100, MemoryPercent: 100}
	if got := load.Combined(); got != 100 {
		t.Fatalf("combined=%f want 100", got)
	}
	load = HardwareLoad{CPUPercent: 50, MemoryPercent: 0}
	if got := load.Combined(); got != 35 {
		t.Fatalf("combined=%f want 35", got)
	}
	load = HardwareLoad{CPUPercent: -5, MemoryPercent: -5}
	if got := load.Combined(); got != 0 {
		t.Fatalf("combined=%f want 0", got)
	}
}

func TestHardwareMonitorSample(t *testing.T) {
	m, err := NewHardwareMonitor()
	if err != nil {
		t.Skipf("procfs unavailable: %v", err)
	}

	first, err := m.Sample()
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if first.CPUPercent != 0 {
		t.Fatalf("first sample should report 0 cpu, got %f", first.CPUPercent)
	}

	second, err := m.Sample()
	if err != nil {
		t.Fatalf("second sample: %v", err)
	}
	if second.CPUPercent < 0 || second.CPUPercent > 100 {
		t.Fatalf("cpu percent out of range: %f", second.CPUPercent)
	}
	if second.MemoryPercent <= 0 || second.MemoryPercent > 100 {
		t.Fatalf("memory percent out of range: %f", second.MemoryPercent)
	}
}

func TestHardwareMonitorRunStopsOnCancel(t *testing.T) {
	m, err := NewHardwareMonitor()
	if err != nil {
		t.Skipf("procfs unavailable: %v", err)
	}
	m.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan HardwareLoad, 1)
	done := make(chan struct{})
	go func() {
		m.Run(ctx, out)
		close(done)
	}()

	select {
	case <-out:
	case <-time.After(2 * time.Second):
		t.Fatal("no sample published")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}
