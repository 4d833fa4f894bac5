// Package chemistry models the body's internal milieu as three coupled
// scalars: fatigue (sleep pressure), reward (engagement), and stress. All
// rate constants are normalized to the reference tick rate so a variable
// loop frequency produces consistent biological time.
package chemistry

import (
	"math"
	"strings"

	"somata/internal/config"
)

type System struct {
	cfg config.Chemistry

	fatigue float32
	reward  float32
	stress  float32
}

func New(cfg config.Chemistry) *System {
	return &System{
		cfg:    cfg,
		reward: 0.5,
	}
}

func (s *System) Fatigue() float32 { return s.fatigue }
func (s *System) Reward() float32  { return s.reward }
func (s *System) Stress() float32  { return s.stress }

// Tick advances the milieu by dt seconds. Entropy is the reservoir's
// activity signal, externalLoad a 0-100 hardware load percentage. Resting
// flips fatigue accumulation into recovery; acuteStress marks a shock event
// this tick. Population scales the resilience divisor: a larger substrate
// fatigues slower.
func (s *System) Tick(entropy, externalLoad float32, resting, acuteStress bool, population int, dt float32) {
	entropy = sanitize(entropy)
	externalLoad = sanitize(externalLoad)
	ts := dt * s.cfg.ReferenceHz

	if resting {
		s.fatigue -= s.cfg.RestRecoveryRate * ts
	} else {
		resilience := clampf(float32(population)/s.cfg.ResilienceScale, 0.8, 5.0)
		load := s.cfg.BaseFatigueRate + entropy*s.cfg.CognitiveCost + (externalLoad/100)*s.cfg.MetabolicCost
		s.fatigue += (load / resilience) * ts
		if acuteStress {
			s.fatigue += s.cfg.AcutePenalty * ts
		}
	}

	// Boredom: reward decays continuously, recharged only when entropy sits
	// in the interesting mid-band.
	s.reward -= s.cfg.RewardDecayRate * ts
	if entropy > s.cfg.RewardBandLow && entropy < s.cfg.RewardBandHigh {
		s.reward += (entropy - s.cfg.RewardBandLow) * s.cfg.RewardBandGain * ts
	}

	if acuteStress || externalLoad > s.cfg.LoadStressLimit || entropy > s.cfg.RewardBandHigh {
		s.stress += s.cfg.StressRiseRate * ts
	} else {
		s.stress -= s.cfg.StressDecayRate * ts
	}

	// Homeostatic noise keeps reward/stress off a dead flatline.
	noise := (entropy*0.001 - 0.0005) * ts
	s.reward += noise
	s.stress += noise

	s.clampAll()
}

// SetMemoryPressure raises fatigue to a floor derived from the unresolved
// memory ratio. It never lowers fatigue.
func (s *System) SetMemoryPressure(ratio float32) {
	floor := clampf(ratio, 0, 1) * s.cfg.MemoryFloorCap
	if s.fatigue < floor {
		s.fatigue = floor
	}
}

// BodyFailing reports whether fatigue has crossed the forced-rest threshold.
func (s *System) BodyFailing() bool {
	return s.fatigue > s.cfg.FailingThreshold
}

// RecoveredToWake is deliberately far below the failing threshold; the gap
// is the hysteresis band that prevents sleep/wake oscillation.
func (s *System) RecoveredToWake() bool {
	return s.fatigue < s.cfg.WakeThreshold
}

// CognitiveImpairment is 0 below the fatigue midpoint, rising linearly to 1.
func (s *System) CognitiveImpairment() float32 {
	if s.fatigue <= 0.5 {
		return 0
	}
	return clampf((s.fatigue-0.5)*2, 0, 1)
}

// Stabilize is the trauma subsystem's emergency intervention: a dt-scaled
// additive bump that bleeds off stress and props up reward.
func (s *System) Stabilize(amount, dt float32) {
	ts := dt * s.cfg.ReferenceHz
	s.stress -= amount * ts
	s.reward += amount * 0.5 * ts
	s.clampAll()
}

// Surprise converts novelty from the episodic store into reward: what has
// never been seen before is worth waking up for.
func (s *System) Surprise(novelty, dt float32) {
	if novelty <= 0 {
		return
	}
	ts := dt * s.cfg.ReferenceHz
	s.reward += clampf(novelty, 0, 1) * 0.02 * ts
	s.clampAll()
}

// ApplyLexicalPerturbation lets text be felt rather than understood:
// keyword hits nudge the scalars and the returned friction is the metabolic
// cost of processing the utterance.
func (s *System) ApplyLexicalPerturbation(text string) float32 {
	lower := strings.ToLower(text)
	friction := float32(len(strings.Fields(text))) * 0.01

	intensity := float32(1)
	switch {
	case strings.Contains(lower, "very") || strings.Contains(lower, "extremely") || strings.Contains(lower, "!!"):
		intensity = 2
	case strings.Contains(lower, "slightly") || strings.Contains(lower, "a bit"):
		intensity = 0.5
	}

	stressHits, calmHits := 0, 0
	for word, weight := range stressWords {
		if strings.Contains(lower, word) {
			s.stress += weight * intensity
			friction += 0.1 * intensity
			stressHits++
		}
	}
	for word, weight := range calmWords {
		if strings.Contains(lower, word) {
			s.stress = maxf(s.stress-weight*intensity, 0)
			calmHits++
		}
	}
	for word, weight := range noveltyWords {
		if strings.Contains(lower, word) {
			s.reward += weight * intensity
		}
	}
	for word, weight := range fatigueWords {
		if strings.Contains(lower, word) {
			s.fatigue += weight * intensity
		}
	}

	// Conflicting signals are cognitive dissonance, which is itself stress.
	if stressHits > 0 && calmHits > 0 {
		dissonance := float32(min(stressHits, calmHits)) * 0.05
		s.stress += dissonance
		friction += dissonance
	}

	s.clampAll()
	return friction
}

var stressWords = map[string]float32{
	"fear": 0.15, "danger": 0.2, "error": 0.1, "stop": 0.12,
	"bad": 0.1, "kill": 0.25, "pain": 0.18, "hate": 0.2,
	"war": 0.22, "destroy": 0.2, "panic": 0.2,
}

var calmWords = map[string]float32{
	"love": 0.15, "peace": 0.12, "good": 0.08, "thank": 0.12,
	"beautiful": 0.1, "calm": 0.12, "gentle": 0.1, "hug": 0.18,
	"friend": 0.12,
}

var noveltyWords = map[string]float32{
	"new": 0.12, "discover": 0.2, "amazing": 0.2, "wow": 0.2,
	"fascinating": 0.18, "curious": 0.15, "idea": 0.1, "create": 0.15,
}

var fatigueWords = map[string]float32{
	"tired": 0.1, "sleep": 0.12, "boring": 0.1, "monoton": 0.08,
	"repetit": 0.08, "exhausted": 0.15,
}

func (s *System) clampAll() {
	s.fatigue = clampf(sanitize(s.fatigue), 0, 1)
	s.reward = clampf(sanitize(s.reward), 0, 1)
	s.stress = clampf(sanitize(s.stress), 0, 1)
}

func sanitize(x float32) float32 {
	if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
		return 0
	}
	return x
}

func clampf(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
