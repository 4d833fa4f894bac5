// Package trauma tracks sustained stress and mounts a defensive response.
// Unlike the chemistry scalars, which react instantly, trauma works on a
// sliding window: only stress that persists moves the state machine.
package trauma

import "somata/internal/config"

type State int

const (
	Stable State = iota
	Escalating
	Active
	Recovering
)

func (s State) String() string {
	switch s {
	case Stable:
		return "stable"
	case Escalating:
		return "escalating"
	case Active:
		return "active"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// Overrides is the defensive posture the rest of the body must honor while
// a trauma response is in progress. A zero TemperatureCeiling means no clamp.
type Overrides struct {
	TemperatureCeiling float32
	SensoryDampening   float32
	ForceConsolidation bool
	StabilizerBoost    float32
}

type Monitor struct {
	cfg config.Trauma

	state  State
	window []float32
	head   int
	sum    float32
	calm   int

	activations int
}

func New(cfg config.Trauma) *Monitor {
	return &Monitor{
		cfg:    cfg,
		window: make([]float32, 0, cfg.WindowSize),
	}
}

func (m *Monitor) State() State { return m.state }

// Activations counts lifetime entries into the Active state, relapses
// included.
func (m *Monitor) Activations() int { return m.activations }

// WindowAverage is the mean stress over the sliding window, 0 when empty.
func (m *Monitor) WindowAverage() float32 {
	if len(m.window) == 0 {
		return 0
	}
	return m.sum / float32(len(m.window))
}

// Observe records one stress sample and advances the state machine. It
// reports whether the state changed on this sample.
func (m *Monitor) Observe(stress float32) bool {
	m.push(stress)
	avg := m.WindowAverage()
	prev := m.state

	switch m.state {
	case Stable:
		if avg > m.cfg.MidThreshold {
			m.state = Escalating
		}
	case Escalating:
		// Activation needs evidence: at least half the window must be
		// populated before a high average counts as sustained.
		if avg > m.cfg.HighThreshold && len(m.window) >= m.cfg.WindowSize/2 {
			m.state = Active
			m.calm = 0
			m.activations++
		} else if avg < m.cfg.MidThreshold {
			m.state = Stable
		}
	case Active:
		// Recovery is judged on raw samples, not the average: the window
		// keeps remembering the crisis long after the body has calmed.
		if stress < m.cfg.LowThreshold {
			m.calm++
			if m.calm >= m.cfg.CalmTicks {
				m.state = Recovering
				m.calm = 0
			}
		} else {
			m.calm = 0
		}
	case Recovering:
		if avg > m.cfg.HighThreshold {
			m.state = Active
			m.activations++
			m.calm = 0
			break
		}
		if avg < m.cfg.VeryLowThreshold {
			m.state = Stable
			m.reset()
		}
	}
	return m.state != prev
}

// Overrides returns the posture for the current state.
func (m *Monitor) Overrides() Overrides {
	switch m.state {
	case Escalating:
		return Overrides{
			TemperatureCeiling: 0.8,
			SensoryDampening:   0.1,
		}
	case Active:
		return Overrides{
			TemperatureCeiling: 0.4,
			SensoryDampening:   0.6,
			ForceConsolidation: true,
			StabilizerBoost:    0.01,
		}
	case Recovering:
		return Overrides{
			TemperatureCeiling: 0.6,
			SensoryDampening:   0.3,
			StabilizerBoost:    0.005,
		}
	default:
		return Overrides{}
	}
}

// reset clears the rolling window so the stable state starts with no
// residue from the crisis.
func (m *Monitor) reset() {
	m.window = m.window[:0]
	m.head = 0
	m.sum = 0
	m.calm = 0
}

func (m *Monitor) push(stress float32) {
	if len(m.window) < m.cfg.WindowSize {
		m.window = append(m.window, stress)
		m.sum += stress
		return
	}
	m.sum += stress - m.window[m.head]
	m.window[m.head] = stress
	m.head = (m.head + 1) % m.cfg.WindowSize
}
