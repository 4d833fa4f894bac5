package memory

import (
	"math"
	"testing"

	"somata/internal/config"
)

func memCfg() config.Memory {
	return config.Memory{
		Capacity:       4,
		VectorSize:     384,
		RecallLimit:    3,
		RecallMinScore: 0.4,
		KeepScore:      0.3,
	}
}

func TestVectorizeIsDeterministicUnitVector(t *testing.T) {
	h := New(memCfg())
	a := h.Vectorize("the red sun rises")
	b := h.Vectorize("the red sun rises")
	var norm float32
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectorize not deterministic at %d: %f != %f", i, a[i], b[i])
		}
		norm += a[i] * a[i]
	}
	if math.Abs(float64(norm)-1) > 1e-4 {
		t.Fatalf("not a unit vector, norm²=%f", norm)
	}
}

func TestRecallFindsSimilarText(t *testing.T) {
	h := New(memCfg())
	h.Remember("the red sun rises", nil, 1)
	h.Remember("quantum jellyfish banquet", nil, 2)

	got := h.Recall(h.Vectorize("the red sun rises"))
	if len(got) == 0 {
		t.Fatal("exact text should recall its memory")
	}
	if got[0].Text != "the red sun rises" {
		t.Fatalf("wrong memory first: %q", got[0].Text)
	}

	if got := h.Recall(h.Vectorize("unrelated midnight archive")); len(got) != 0 {
		t.Fatalf("unrelated query recalled %d memories", len(got))
	}
}

func TestRecallLimit(t *testing.T) {
	cfg := memCfg()
	cfg.RecallLimit = 2
	cfg.RecallMinScore = 0
	h := New(cfg)
	h.Remember("alpha common word", nil, 1)
	h.Remember("beta common word", nil, 2)
	h.Remember("gamma common word", nil, 3)
	if got := h.Recall(h.Vectorize("common word")); len(got) > 2 {
		t.Fatalf("recall returned %d, limit 2", len(got))
	}
}

func TestConsolidationFadesUntouchedMemories(t *testing.T) {
	h := New(memCfg())
	h.Remember("first impression", nil, 1)
	h.Remember("second impression", nil, 2)

	kept, dropped := h.Consolidate()
	if kept != 2 || dropped != 0 {
		t.Fatalf("first pass: kept=%d dropped=%d", kept, dropped)
	}
	kept, dropped = h.Consolidate()
	if kept != 0 || dropped != 2 {
		t.Fatalf("second pass should fade everything: kept=%d dropped=%d", kept, dropped)
	}
}

func TestRecallReinforcesAgainstFading(t *testing.T) {
	h := New(memCfg())
	h.Remember("sunlit harbor morning", nil, 1)
	h.Remember("cold static hum", nil, 2)
	h.Consolidate()

	if got := h.Recall(h.Vectorize("sunlit harbor morning")); len(got) == 0 {
		t.Fatal("setup: recall missed")
	}
	kept, _ := h.Consolidate()
	if kept != 1 {
		t.Fatalf("the recalled memory should survive, kept=%d", kept)
	}
	if got := h.Recall(h.Vectorize("sunlit harbor morning")); len(got) != 1 {
		t.Fatalf("wrong survivor, recalled %d", len(got))
	}
}

func TestCapacityEvictsWeakestFirst(t *testing.T) {
	cfg := memCfg()
	cfg.Capacity = 2
	h := New(cfg)
	h.Remember("granite ridge", nil, 1)
	h.Remember("paper lantern", nil, 2)
	h.Consolidate()
	h.Recall(h.Vectorize("granite ridge")) // reinforce one of them

	h.Remember("copper bell", nil, 3)
	if h.Len() != 2 {
		t.Fatalf("len=%d want 2", h.Len())
	}
	if got := h.Recall(h.Vectorize("granite ridge")); len(got) == 0 {
		t.Fatal("the reinforced memory was evicted")
	}
	if got := h.Recall(h.Vectorize("paper lantern")); len(got) != 0 {
		t.Fatal("the weakest memory should have been evicted")
	}
}

func TestNovelty(t *testing.T) {
	h := New(memCfg())
	vec := h.Vectorize("something entirely new")
	if got := h.Novelty(vec); got != 1 {
		t.Fatalf("empty hippocampus novelty=%f want 1", got)
	}
	h.Remember("something entirely new", nil, 1)
	if got := h.Novelty(vec); got > 0.01 {
		t.Fatalf("known text novelty=%f want ~0", got)
	}
}

func TestPressureRatio(t *testing.T) {
	h := New(memCfg())
	if got := h.PressureRatio(); got != 0 {
		t.Fatalf("empty pressure=%f", got)
	}
	h.Remember("one", nil, 1)
	h.Remember("two", nil, 2)
	if got := h.PressureRatio(); got != 0.5 {
		t.Fatalf("pressure=%f want 0.5", got)
	}
}
