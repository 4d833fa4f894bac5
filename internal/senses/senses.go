// Package senses defines what the body can perceive: audio frames,
// semantic embeddings, and its own hardware substrate. The hardware is
// proprioception, not telemetry: CPU pressure is felt as metabolic load.
package senses

import (
	"math"
	"time"
)

// AudioFrame is one chunk of captured sound.
type AudioFrame struct {
	Samples    []float32
	SampleRate int
	CapturedAt time.Time
}

// Energy is the root-mean-square level of the frame.
func (f AudioFrame) Energy() float32 {
	if len(f.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range f.Samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(f.Samples))))
}

// Embedding is a semantic stimulus: a vector with the text it came from.
type Embedding struct {
	Text   string
	Vector []float32
	Source string
}

// HardwareLoad is the body's felt state of its own machine. Percentages
// are 0-100.
type HardwareLoad struct {
	CPUPercent    float32
	MemoryPercent float32
	Load1         float32
	SampledAt     time.Time
}

// Combined folds the load into the single 0-100 scalar the chemistry
// consumes, weighted toward CPU.
func (l HardwareLoad) Combined() float32 {
	v := l.CPUPercent*0.7 + l.MemoryPercent*0.3
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
