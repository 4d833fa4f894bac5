// Package memory is the episodic store. Impressions arrive as text plus an
// optional embedding, accumulate as weighted vectors, and either survive
// consolidation or fade. Unconsolidated volume presses back on the
// chemistry as fatigue.
package memory

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"

	"somata/internal/config"
)

type Entry struct {
	Text   string
	Vector []float32
	Weight float32
	Tick   uint64
}

// Hippocampus is safe for concurrent use; the daemon writes while the
// shutdown path consolidates.
type Hippocampus struct {
	cfg config.Memory

	mu      sync.Mutex
	entries []Entry
}

func New(cfg config.Memory) *Hippocampus {
	return &Hippocampus{cfg: cfg}
}

// Vectorize hashes the words of a text into a fixed-length unit vector.
// It is the fallback representation when no real embedding is available.
func (h *Hippocampus) Vectorize(text string) []float32 {
	vec := make([]float32, h.cfg.VectorSize)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(word))
		sum := hasher.Sum32()
		idx := int(sum) % h.cfg.VectorSize
		if idx < 0 {
			idx += h.cfg.VectorSize
		}
		// The top bit decides sign so common words do not all pile up
		// positive.
		if sum&0x80000000 != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	normalize(vec)
	return vec
}

// Remember stores an impression. A nil vector falls back to the hashed
// representation. At capacity the weakest entry is evicted first.
func (h *Hippocampus) Remember(text string, vec []float32, tick uint64) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if len(vec) == 0 {
		vec = h.Vectorize(text)
	} else {
		vec = append([]float32(nil), vec...)
		normalize(vec)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cfg.Capacity {
		weakest := 0
		for i, e := range h.entries {
			if e.Weight < h.entries[weakest].Weight {
				weakest = i
			}
		}
		h.entries[weakest] = h.entries[len(h.entries)-1]
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, Entry{Text: text, Vector: vec, Weight: 1, Tick: tick})
}

// Recall returns the closest stored impressions above the score floor,
// strongest match first. Recalled entries are reinforced.
func (h *Hippocampus) Recall(vec []float32) []Entry {
	if len(vec) == 0 {
		return nil
	}
	query := append([]float32(nil), vec...)
	normalize(query)

	h.mu.Lock()
	defer h.mu.Unlock()

	type scored struct {
		idx   int
		score float32
	}
	matches := make([]scored, 0, len(h.entries))
	for i, e := range h.entries {
		if s := cosine(query, e.Vector); s >= h.cfg.RecallMinScore {
			matches = append(matches, scored{idx: i, score: s})
		}
	}
	sort.Slice(matches, func(a, b int) bool { return matches[a].score > matches[b].score })
	if len(matches) > h.cfg.RecallLimit {
		matches = matches[:h.cfg.RecallLimit]
	}

	out := make([]Entry, 0, len(matches))
	for _, m := range matches {
		e := &h.entries[m.idx]
		e.Weight = minf(e.Weight+0.1, 1)
		out = append(out, *e)
	}
	return out
}

// Novelty is 1 minus the best similarity to anything already stored. An
// empty hippocampus finds everything novel.
func (h *Hippocampus) Novelty(vec []float32) float32 {
	if len(vec) == 0 {
		return 0
	}
	query := append([]float32(nil), vec...)
	normalize(query)

	h.mu.Lock()
	defer h.mu.Unlock()

	var best float32
	for _, e := range h.entries {
		if s := cosine(query, e.Vector); s > best {
			best = s
		}
	}
	return 1 - best
}

// Consolidate decays every weight and drops what falls below the keep
// score. It reports how many entries survived and how many faded.
func (h *Hippocampus) Consolidate() (kept, dropped int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	survivors := h.entries[:0]
	for _, e := range h.entries {
		e.Weight *= 0.5
		if e.Weight >= h.cfg.KeepScore {
			survivors = append(survivors, e)
		} else {
			dropped++
		}
	}
	h.entries = survivors
	return len(h.entries), dropped
}

// PressureRatio is the fill fraction that feeds the fatigue floor.
func (h *Hippocampus) PressureRatio() float32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cfg.Capacity <= 0 {
		return 0
	}
	return float32(len(h.entries)) / float32(h.cfg.Capacity)
}

func (h *Hippocampus) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float32
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	// Both sides are unit vectors, so the dot product is the cosine.
	return dot
}

func normalize(vec []float32) {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	inv := 1 / float32(math.Sqrt(float64(sum)))
	for i := range vec {
		vec[i] *= inv
	}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
