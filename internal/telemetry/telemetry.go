// Package telemetry exposes the body's vital signs: a single-slot
// snapshot for observers, prometheus metrics, and a small HTTP surface
// with a websocket feed.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event is one recent narrative journal entry carried along with the
// vitals.
type Event struct {
	Voice string `json:"voice"`
	Text  string `json:"text"`
	Tick  uint64 `json:"tick"`
}

// Snapshot is one observation of the whole body. Everything inside is
// owned by the reader; maps and slices are deep-copied on publish.
type Snapshot struct {
	Tick           uint64             `json:"tick"`
	Hz             float32            `json:"hz"`
	Fatigue        float32            `json:"fatigue"`
	Reward         float32            `json:"reward"`
	Stress         float32            `json:"stress"`
	Entropy        float32            `json:"entropy"`
	Neurons        int                `json:"neurons"`
	TraumaState    string             `json:"trauma_state"`
	Sleeping       bool               `json:"sleeping"`
	Degraded       bool               `json:"degraded"`
	MemoryPressure float32            `json:"memory_pressure"`
	Regions        map[string]float32 `json:"regions,omitempty"`
	RegionCounts   map[string]int     `json:"region_counts,omitempty"`
	Events         []Event            `json:"events,omitempty"`
	LastUtterance  string             `json:"last_utterance,omitempty"`
	ObservedAt     time.Time          `json:"observed_at"`
}

func (s Snapshot) clone() Snapshot {
	if s.Regions != nil {
		regions := make(map[string]float32, len(s.Regions))
		for k, v := range s.Regions {
			regions[k] = v
		}
		s.Regions = regions
	}
	if s.RegionCounts != nil {
		counts := make(map[string]int, len(s.RegionCounts))
		for k, v := range s.RegionCounts {
			counts[k] = v
		}
		s.RegionCounts = counts
	}
	if s.Events != nil {
		s.Events = append([]Event(nil), s.Events...)
	}
	return s
}

// Slot holds the latest snapshot. Publishing replaces the previous one;
// observers always see a consistent, complete snapshot and never block
// the publisher for long.
type Slot struct {
	mu   sync.RWMutex
	snap Snapshot
	set  bool
}

func NewSlot() *Slot {
	return &Slot{}
}

func (s *Slot) Publish(snap Snapshot) {
	copied := snap.clone()
	s.mu.Lock()
	s.snap = copied
	s.set = true
	s.mu.Unlock()
}

func (s *Slot) Current() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return Snapshot{}, false
	}
	return s.snap.clone(), true
}

// Metrics is the prometheus view of the same vitals.
type Metrics struct {
	Registry *prometheus.Registry

	TickHz         prometheus.Gauge
	Fatigue        prometheus.Gauge
	Reward         prometheus.Gauge
	Stress         prometheus.Gauge
	Entropy        prometheus.Gauge
	Neurons        prometheus.Gauge
	MemoryPressure prometheus.Gauge
	TraumaState    prometheus.Gauge

	Expressions    prometheus.Counter
	Epiphanies     prometheus.Counter
	CortexFailures prometheus.Counter
	SleepCycles    prometheus.Counter

	TickSeconds prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "somata", Name: name, Help: help})
		registry.MustRegister(g)
		return g
	}
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: "somata", Name: name, Help: help})
		registry.MustRegister(c)
		return c
	}
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "somata",
		Name:      "tick_seconds",
		Help:      "Wall time of one tick loop iteration.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	registry.MustRegister(histogram)

	return &Metrics{
		Registry:       registry,
		TickHz:         gauge("tick_hz", "Current loop frequency."),
		Fatigue:        gauge("fatigue", "Fatigue level, 0 to 1."),
		Reward:         gauge("reward", "Reward level, 0 to 1."),
		Stress:         gauge("stress", "Stress level, 0 to 1."),
		Entropy:        gauge("entropy", "Reservoir state variance."),
		Neurons:        gauge("neurons", "Reservoir population."),
		MemoryPressure: gauge("memory_pressure", "Unconsolidated memory fill fraction."),
		TraumaState:    gauge("trauma_state", "Trauma state machine position, 0=stable."),
		Expressions:    counter("expressions_total", "Utterances that passed the expression gate."),
		Epiphanies:     counter("epiphanies_total", "Epiphany reinforcement events."),
		CortexFailures: counter("cortex_failures_total", "Failed cortex calls."),
		SleepCycles:    counter("sleep_cycles_total", "Forced rest episodes."),
		TickSeconds:    histogram,
	}
}

// Observe pushes one snapshot into the gauges.
func (m *Metrics) Observe(snap Snapshot, traumaState int) {
	m.TickHz.Set(float64(snap.Hz))
	m.Fatigue.Set(float64(snap.Fatigue))
	m.Reward.Set(float64(snap.Reward))
	m.Stress.Set(float64(snap.Stress))
	m.Entropy.Set(float64(snap.Entropy))
	m.Neurons.Set(float64(snap.Neurons))
	m.MemoryPressure.Set(float64(snap.MemoryPressure))
	m.TraumaState.Set(float64(traumaState))
}
