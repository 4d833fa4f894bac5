package genome

import (
	"math/rand"
	"testing"

	"somata/internal/config"
	"somata/internal/model"
)

func TestSanitizeRepairsCorruptRecord(t *testing.T) {
	rec := model.TraitRecord{
		Generation:      -3,
		StressTolerance: 7,
		Curiosity:       -1,
		SeedVector:      []float32{1, 2, 3},
	}
	got := Sanitize(rec)
	if got.StressTolerance != 1 || got.Curiosity != 0 {
		t.Fatalf("traits not clamped: %+v", got)
	}
	if got.Generation != 0 {
		t.Fatalf("generation not repaired: %d", got.Generation)
	}
	if len(got.SeedVector) != seedVectorSize {
		t.Fatalf("seed vector not replaced, len=%d", len(got.SeedVector))
	}
}

func TestApplyIndividuatesConfig(t *testing.T) {
	base := config.Default()

	brave := Default()
	brave.StressTolerance = 1
	tough := Apply(base, brave)
	if tough.Trauma.MidThreshold <= base.Trauma.MidThreshold {
		t.Fatalf("stress tolerance should raise trauma thresholds: %f", tough.Trauma.MidThreshold)
	}

	timid := Default()
	timid.Paranoia = 1
	wary := Apply(base, timid)
	if wary.Gate.AdmissionMargin <= base.Gate.AdmissionMargin {
		t.Fatalf("paranoia should raise the admission bar: %f", wary.Gate.AdmissionMargin)
	}

	neutral := Apply(base, Default())
	if neutral.Trauma.MidThreshold != base.Trauma.MidThreshold {
		t.Fatalf("midpoint traits should leave thresholds alone: %f", neutral.Trauma.MidThreshold)
	}
}

func TestApplyResultIsAlwaysValid(t *testing.T) {
	rec := Default()
	rec.SurvivalDrive = 1
	rec.EnergyEfficiency = 1
	rec.RefractiveIndex = 0
	cfg := Apply(config.Default(), rec)
	if cfg.Chemistry.WakeThreshold >= cfg.Chemistry.FailingThreshold {
		t.Fatalf("hysteresis band collapsed: wake=%f failing=%f",
			cfg.Chemistry.WakeThreshold, cfg.Chemistry.FailingThreshold)
	}
	if cfg.Reservoir.LeakRate <= 0 || cfg.Reservoir.LeakRate > 1 {
		t.Fatalf("leak rate out of range: %f", cfg.Reservoir.LeakRate)
	}
}

func TestMutateAdvancesGeneration(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	crystal := make([]float32, seedVectorSize)
	crystal[0] = 0.9

	next := Mutate(Default(), SessionStats{MeanStress: 0.9, TraumaEvents: 10}, crystal, rng)
	if next.Generation != 1 {
		t.Fatalf("generation=%d want 1", next.Generation)
	}
	if next.StressTolerance <= Default().StressTolerance-0.03 {
		t.Fatalf("stressful life should not erode tolerance: %f", next.StressTolerance)
	}
	if next.Paranoia <= Default().Paranoia {
		t.Fatalf("trauma events should raise paranoia: %f", next.Paranoia)
	}
	if next.SeedVector[0] != 0.9 {
		t.Fatalf("crystal not inherited: %f", next.SeedVector[0])
	}
}

func TestMutateStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	rec := Default()
	for gen := 0; gen < 200; gen++ {
		rec = Mutate(rec, SessionStats{MeanStress: 1, MeanReward: 1, MeanFatigue: 1, TraumaEvents: 50}, nil, rng)
	}
	for name, v := range map[string]float32{
		"stress_tolerance": rec.StressTolerance,
		"curiosity":        rec.Curiosity,
		"efficiency":       rec.EnergyEfficiency,
		"paranoia":         rec.Paranoia,
	} {
		if v < 0 || v > 1 {
			t.Fatalf("%s escaped [0,1]: %f", name, v)
		}
	}
	if rec.Generation != 200 {
		t.Fatalf("generation=%d want 200", rec.Generation)
	}
}

func TestCrystallizeIsFixedLength(t *testing.T) {
	for _, n := range []int{0, 10, seedVectorSize, seedVectorSize*2 + 5} {
		activity := make([]float32, n)
		for i := range activity {
			activity[i] = 1
		}
		out := Crystallize(activity)
		if len(out) != seedVectorSize {
			t.Fatalf("n=%d: len=%d want %d", n, len(out), seedVectorSize)
		}
		if n >= seedVectorSize && out[0] != 1 {
			t.Fatalf("n=%d: uniform activity should average to 1, got %f", n, out[0])
		}
	}
}
