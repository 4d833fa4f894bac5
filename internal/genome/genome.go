// Package genome carries the heritable traits across sessions. Each run is
// one generation: the traits shape the body's parameters at boot, and what
// the session was like nudges them before they are written back.
package genome

import (
	"math/rand"

	"somata/internal/config"
	"somata/internal/model"
)

const seedVectorSize = 384

// Default is the founding generation.
func Default() model.TraitRecord {
	return model.TraitRecord{
		VersionedRecord:  model.VersionedRecord{SchemaVersion: 1, CodecVersion: 1},
		Generation:       0,
		StressTolerance:  0.5,
		Curiosity:        0.5,
		EnergyEfficiency: 0.5,
		Paranoia:         0.3,
		RefractiveIndex:  0.5,
		SurvivalDrive:    0.5,
		Stoicism:         0.5,
		SeedVector:       make([]float32, seedVectorSize),
	}
}

// Sanitize repairs a loaded record in place of rejecting it: traits are
// clamped to [0,1] and a missing or wrong-length seed vector is replaced.
// Inheritance should survive a corrupt field, not die on it.
func Sanitize(rec model.TraitRecord) model.TraitRecord {
	rec.StressTolerance = clamp01(rec.StressTolerance)
	rec.Curiosity = clamp01(rec.Curiosity)
	rec.EnergyEfficiency = clamp01(rec.EnergyEfficiency)
	rec.Paranoia = clamp01(rec.Paranoia)
	rec.RefractiveIndex = clamp01(rec.RefractiveIndex)
	rec.SurvivalDrive = clamp01(rec.SurvivalDrive)
	rec.Stoicism = clamp01(rec.Stoicism)
	if len(rec.SeedVector) != seedVectorSize {
		rec.SeedVector = make([]float32, seedVectorSize)
	}
	if rec.Generation < 0 {
		rec.Generation = 0
	}
	return rec
}

// Apply folds the traits into the runtime configuration. The config file
// sets the species baseline; the genome individuates it.
func Apply(cfg config.Config, traits model.TraitRecord) config.Config {
	t := Sanitize(traits)

	// Stress tolerance widens the trauma thresholds, stoicism slows the
	// window's verdict by growing it.
	cfg.Trauma.MidThreshold = clamp01(cfg.Trauma.MidThreshold + (t.StressTolerance-0.5)*0.2)
	cfg.Trauma.HighThreshold = clamp01(cfg.Trauma.HighThreshold + (t.StressTolerance-0.5)*0.2)
	cfg.Trauma.WindowSize = int(float32(cfg.Trauma.WindowSize) * (1 + (t.Stoicism-0.5)*0.5))

	// Curiosity widens the rewarding entropy band downward.
	cfg.Chemistry.RewardBandLow = clamp01(cfg.Chemistry.RewardBandLow - (t.Curiosity-0.5)*0.2)
	cfg.Chemistry.BaseFatigueRate *= 1 - (t.EnergyEfficiency-0.5)*0.5
	cfg.Chemistry.CognitiveCost *= 1 - (t.EnergyEfficiency-0.5)*0.5

	// Paranoia raises the admission bar, survival drive lowers the point
	// where the body forces itself to rest.
	cfg.Gate.AdmissionMargin += (t.Paranoia - 0.5) * 0.2
	cfg.Chemistry.FailingThreshold = clamp01(cfg.Chemistry.FailingThreshold - (t.SurvivalDrive-0.5)*0.1)

	// Refractive index bends how strongly the substrate leaks.
	cfg.Reservoir.LeakRate = clampf(cfg.Reservoir.LeakRate*(1+(t.RefractiveIndex-0.5)*0.4), 0.01, 1)

	return config.Normalize(cfg)
}

// SessionStats summarizes one lifetime for the mutation step.
type SessionStats struct {
	Ticks        uint64
	MeanStress   float32
	MeanReward   float32
	MeanFatigue  float32
	TraumaEvents int
	Expressions  int
}

// Mutate produces the next generation: directed pressure from the session
// plus a small random walk, all clamped to the unit interval. The seed
// vector is replaced by the crystallized activity passed in.
func Mutate(rec model.TraitRecord, stats SessionStats, crystal []float32, rng *rand.Rand) model.TraitRecord {
	next := Sanitize(rec)
	next.Generation++

	// A stressful life selects for tolerance and paranoia; a rewarding one
	// for curiosity. Exhaustion selects for efficiency.
	next.StressTolerance = drift(next.StressTolerance, (stats.MeanStress-0.3)*0.1, rng)
	next.Paranoia = drift(next.Paranoia, float32(stats.TraumaEvents)*0.02, rng)
	next.Curiosity = drift(next.Curiosity, (stats.MeanReward-0.4)*0.1, rng)
	next.EnergyEfficiency = drift(next.EnergyEfficiency, (stats.MeanFatigue-0.5)*0.1, rng)
	next.SurvivalDrive = drift(next.SurvivalDrive, 0, rng)
	next.RefractiveIndex = drift(next.RefractiveIndex, 0, rng)
	next.Stoicism = drift(next.Stoicism, (stats.MeanStress-0.5)*0.05, rng)

	if len(crystal) == seedVectorSize {
		next.SeedVector = append([]float32(nil), crystal...)
	}
	return next
}

// Crystallize compresses the reservoir's activity into the fixed-length
// seed vector the next generation boots from.
func Crystallize(activity []float32) []float32 {
	out := make([]float32, seedVectorSize)
	if len(activity) == 0 {
		return out
	}
	for i, a := range activity {
		out[i%seedVectorSize] += a
	}
	// Normalize by how many neurons landed in each slot.
	full := len(activity) / seedVectorSize
	rem := len(activity) % seedVectorSize
	for i := range out {
		n := full
		if i < rem {
			n++
		}
		if n > 0 {
			out[i] /= float32(n)
		}
	}
	return out
}

func drift(value, pressure float32, rng *rand.Rand) float32 {
	jitter := (rng.Float32()*2 - 1) * 0.02
	return clamp01(value + pressure + jitter)
}

func clamp01(x float32) float32 { return clampf(x, 0, 1) }

func clampf(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
