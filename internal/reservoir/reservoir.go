// Package reservoir implements the recurrent neural substrate: a leaky
// echo-state network whose neurons occupy positions inside a sphere, with
// distance-dependent connectivity, spatial receptive fields per sensory
// channel, and structural plasticity (growth, pruning, reinforcement).
package reservoir

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"somata/internal/config"
	"somata/internal/model"
)

// referenceHz anchors plasticity rates to biological time the same way the
// chemistry rates are anchored.
const referenceHz = 60

// Modulators is the chemistry's influence on a single tick. Reward speeds
// the dynamics up, fatigue attenuates input, stress amplifies recurrence.
type Modulators struct {
	Reward  float32
	Fatigue float32
	Stress  float32
}

// Channel selects one of the spatial receptive fields.
type Channel int

const (
	ChannelSemantic Channel = iota
	ChannelAuditory
	ChannelLimbic
	channelCount
)

// Engine is not safe for concurrent use; the daemon owns it exclusively.
type Engine struct {
	cfg config.Reservoir
	rng *rand.Rand

	size         int
	weights      []float32 // row-major, size*size
	inputWeights []float32
	state        []float32
	activity     []float32
	positions    [][3]float32
	exposure     [channelCount][]float32

	pending   []float32
	lastInput []float32
	entropy   float32
}

func New(cfg config.Reservoir, rng *rand.Rand) *Engine {
	e := &Engine{cfg: cfg, rng: rng}
	e.build(cfg.InitialSize)
	return e
}

func (e *Engine) build(size int) {
	e.size = size
	e.weights = make([]float32, size*size)
	e.inputWeights = make([]float32, size)
	e.state = make([]float32, size)
	e.activity = make([]float32, size)
	e.positions = make([][3]float32, size)
	e.pending = make([]float32, size)
	e.lastInput = make([]float32, size)
	for c := Channel(0); c < channelCount; c++ {
		e.exposure[c] = make([]float32, size)
	}

	for i := 0; i < size; i++ {
		e.positions[i] = e.randomPosition()
		e.setExposure(i)
		if e.rng.Float32() < e.cfg.InputSparsity {
			e.inputWeights[i] = e.rng.Float32()*2 - 1
		}
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i == j {
				continue
			}
			if e.rng.Float32() < e.connectProbability(i, j) {
				e.weights[i*size+j] = e.rng.Float32()*2 - 1
			}
		}
	}
	e.rescaleSpectralRadius()
}

// connectProbability falls off with distance but keeps a small long-range
// floor so distant regions stay reachable.
func (e *Engine) connectProbability(i, j int) float32 {
	d := distance(e.positions[i], e.positions[j])
	p := 3 / (d + 1)
	if p > 0.3 {
		p = 0.3
	}
	if p < 0.005 {
		p = 0.005
	}
	return p
}

func (e *Engine) randomPosition() [3]float32 {
	r := e.cfg.BrainRadius
	for {
		p := [3]float32{
			(e.rng.Float32()*2 - 1) * r,
			(e.rng.Float32()*2 - 1) * r,
			(e.rng.Float32()*2 - 1) * r,
		}
		if p[0]*p[0]+p[1]*p[1]+p[2]*p[2] <= r*r {
			return p
		}
	}
}

// Receptive-field anchors sit near the surface of the sphere, one per
// sensory channel. Exposure decays with distance from the anchor.
func (e *Engine) setExposure(i int) {
	r := e.cfg.BrainRadius
	anchors := [channelCount][3]float32{
		ChannelSemantic: {0, 0, 0.8 * r},
		ChannelAuditory: {0.8 * r, 0, 0},
		ChannelLimbic:   {0, -0.8 * r, 0},
	}
	for c := Channel(0); c < channelCount; c++ {
		d := distance(e.positions[i], anchors[c])
		e.exposure[c][i] = 1 / (1 + d/(r/2))
	}
}

// rescaleSpectralRadius estimates the dominant eigenvalue by power
// iteration and rescales the recurrent weights to the configured radius.
// The echo-state property depends on the radius staying below 1.
func (e *Engine) rescaleSpectralRadius() {
	if e.size == 0 {
		return
	}
	v := make([]float32, e.size)
	next := make([]float32, e.size)
	for i := range v {
		v[i] = e.rng.Float32()*2 - 1
	}
	var radius float32
	for iter := 0; iter < 30; iter++ {
		var norm float32
		for i := 0; i < e.size; i++ {
			var sum float32
			row := e.weights[i*e.size : (i+1)*e.size]
			for j, w := range row {
				sum += w * v[j]
			}
			next[i] = sum
			norm += sum * sum
		}
		radius = float32(math.Sqrt(float64(norm)))
		if radius < 1e-9 {
			return
		}
		for i := range next {
			v[i] = next[i] / radius
		}
	}
	scale := e.cfg.SpectralRadius / radius
	for i := range e.weights {
		e.weights[i] *= scale
	}
}

// Inject accumulates a stimulus into the pending input buffer through the
// channel's receptive field. Vectors of any length are tiled across the
// population.
func (e *Engine) Inject(c Channel, vec []float32) {
	if len(vec) == 0 || c < 0 || c >= channelCount {
		return
	}
	for i := 0; i < e.size; i++ {
		e.pending[i] += e.exposure[c][i] * sanitize(vec[i%len(vec)])
	}
}

// InjectEmbedding feeds a semantic embedding into the substrate.
func (e *Engine) InjectEmbedding(vec []float32) { e.Inject(ChannelSemantic, vec) }

// InjectLogits echoes the cortex's own token distribution back as if the
// body heard itself speak.
func (e *Engine) InjectLogits(logits []float32) { e.Inject(ChannelAuditory, logits) }

// InjectAffect routes a chemistry shock through the limbic field.
func (e *Engine) InjectAffect(vec []float32) { e.Inject(ChannelLimbic, vec) }

// Tick advances the substrate one step and returns the resulting entropy,
// measured as the population variance of the state vector. A silent
// all-zero reservoir therefore reads exactly 0.
func (e *Engine) Tick(mods Modulators, dt float32) float32 {
	leak := clampf(e.cfg.LeakRate*(1-mods.Reward*0.4)*dt*referenceHz, 0, 1)
	inGain := 1 - mods.Fatigue*0.6
	if inGain < 0.1 {
		inGain = 0.1
	}
	recGain := 1 + mods.Stress*0.8

	next := make([]float32, e.size)
	for i := 0; i < e.size; i++ {
		var sum float32
		row := e.weights[i*e.size : (i+1)*e.size]
		for j, w := range row {
			if w != 0 {
				sum += w * e.state[j]
			}
		}
		pre := recGain*sum + inGain*e.inputWeights[i]*e.pending[i]
		x := (1-leak)*e.state[i] + leak*float32(math.Tanh(float64(pre)))
		next[i] = sanitize(x)
	}
	copy(e.lastInput, e.pending)
	for i := range e.pending {
		e.pending[i] = 0
	}
	e.state = next

	for i := 0; i < e.size; i++ {
		a := e.activity[i]*0.99 + abs(e.state[i])*0.01
		e.activity[i] = sanitize(a)
	}

	e.entropy = variance(e.state)
	return e.entropy
}

func (e *Engine) Entropy() float32 { return e.entropy }
func (e *Engine) Size() int        { return e.size }

// weightEpsilon separates a real weight change from float noise when
// counting touched connections.
const weightEpsilon = 1e-6

// HebbianUpdate reinforces co-active pairs. It samples size*2 random pairs
// rather than sweeping the full matrix, so its cost stays linear in the
// population. Returns how many connections actually changed.
func (e *Engine) HebbianUpdate(reward, dt float32) int {
	if reward <= 0 || e.size < 2 {
		return 0
	}
	alpha := e.cfg.HebbianRate * reward * dt * referenceHz
	changed := 0
	for n := 0; n < e.size*2; n++ {
		i := e.rng.Intn(e.size)
		j := e.rng.Intn(e.size)
		if i == j {
			continue
		}
		idx := i*e.size + j
		old := e.weights[idx]
		e.weights[idx] = clampf(old+alpha*e.state[i]*e.state[j], -1.5, 1.5)
		if abs(e.weights[idx]-old) > weightEpsilon {
			changed++
		}
	}
	return changed
}

// HebbianInputUpdate adapts the input weights toward the stimulus consumed
// on the previous tick. Returns how many input weights changed.
func (e *Engine) HebbianInputUpdate(reward, dt float32) int {
	if reward <= 0 {
		return 0
	}
	alpha := e.cfg.HebbianInputRate * reward * dt * referenceHz
	changed := 0
	for i := 0; i < e.size; i++ {
		if e.lastInput[i] == 0 {
			continue
		}
		old := e.inputWeights[i]
		e.inputWeights[i] = clampf(old+alpha*e.state[i]*e.lastInput[i], -1.5, 1.5)
		if abs(e.inputWeights[i]-old) > weightEpsilon {
			changed++
		}
	}
	return changed
}

// TriggerEpiphany crystallizes the current pattern after an exceptional
// reward: every pair of highly active neurons is strengthened at once,
// with a wider clamp than routine learning. Returns how many connections
// it strengthened, 0 when the reward or the pattern was too weak.
func (e *Engine) TriggerEpiphany(reward float32) int {
	if reward < e.cfg.EpiphanyCutoff || e.size < 2 {
		return 0
	}
	threshold := quantile(e.activity, e.cfg.EpiphanyQuantile)
	active := make([]int, 0, e.size/8)
	for i, a := range e.activity {
		if a >= threshold && a > 0 {
			active = append(active, i)
		}
	}
	if len(active) < 2 {
		return 0
	}
	alpha := 0.5 * reward
	changed := 0
	for _, i := range active {
		for _, j := range active {
			if i == j {
				continue
			}
			idx := i*e.size + j
			old := e.weights[idx]
			e.weights[idx] = clampf(old+alpha*e.state[i]*e.state[j], -2, 2)
			if abs(e.weights[idx]-old) > weightEpsilon {
				changed++
			}
		}
	}
	return changed
}

// Neurogenesis grows up to k neurons next to the current activity peak.
// Newborns start at the activity floor so the next prune pass does not
// reap them immediately. Returns the number actually grown.
func (e *Engine) Neurogenesis(k int) int {
	room := e.cfg.MaxSize - e.size
	if room <= 0 || k <= 0 {
		return 0
	}
	batch := k
	if batch > room {
		batch = room
	}
	parent := 0
	for i, a := range e.activity {
		if a > e.activity[parent] {
			parent = i
		}
	}

	oldSize := e.size
	newSize := oldSize + batch
	e.growTo(newSize)

	sigma := e.cfg.BrainRadius / 10
	for n := oldSize; n < newSize; n++ {
		p := e.positions[parent]
		pos := [3]float32{
			p[0] + float32(e.rng.NormFloat64())*sigma,
			p[1] + float32(e.rng.NormFloat64())*sigma,
			p[2] + float32(e.rng.NormFloat64())*sigma,
		}
		e.positions[n] = clampToSphere(pos, e.cfg.BrainRadius)
		e.setExposure(n)
		e.activity[n] = e.cfg.ActivityFloor
		if e.rng.Float32() < e.cfg.InputSparsity {
			e.inputWeights[n] = e.rng.Float32()*2 - 1
		}
		for j := 0; j < newSize; j++ {
			if j == n {
				continue
			}
			if e.rng.Float32() < e.connectProbability(n, j) {
				e.weights[n*newSize+j] = (e.rng.Float32()*2 - 1) * 0.1
			}
			if e.rng.Float32() < e.connectProbability(j, n) {
				e.weights[j*newSize+n] = (e.rng.Float32()*2 - 1) * 0.1
			}
		}
	}
	return batch
}

// growTo reallocates every per-neuron buffer at the new size, remapping the
// weight matrix into its new row stride.
func (e *Engine) growTo(newSize int) {
	oldSize := e.size
	weights := make([]float32, newSize*newSize)
	for i := 0; i < oldSize; i++ {
		copy(weights[i*newSize:i*newSize+oldSize], e.weights[i*oldSize:(i+1)*oldSize])
	}
	e.weights = weights
	e.inputWeights = append(e.inputWeights, make([]float32, newSize-oldSize)...)
	e.state = append(e.state, make([]float32, newSize-oldSize)...)
	e.activity = append(e.activity, make([]float32, newSize-oldSize)...)
	e.positions = append(e.positions, make([][3]float32, newSize-oldSize)...)
	e.pending = append(e.pending, make([]float32, newSize-oldSize)...)
	e.lastInput = append(e.lastInput, make([]float32, newSize-oldSize)...)
	for c := Channel(0); c < channelCount; c++ {
		e.exposure[c] = append(e.exposure[c], make([]float32, newSize-oldSize)...)
	}
	e.size = newSize
}

// PruneInactive removes neurons whose long-term activity sits below the
// floor. When nothing is prunable, or pruning would shrink the population
// past the minimum, the structure is left untouched and only the activity
// accumulator is reset. Returns the number removed.
func (e *Engine) PruneInactive() int {
	keep := make([]int, 0, e.size)
	for i, a := range e.activity {
		if a >= e.cfg.ActivityFloor {
			keep = append(keep, i)
		}
	}
	if len(keep) == e.size || len(keep) < e.cfg.MinSize {
		for i := range e.activity {
			e.activity[i] = 0
		}
		return 0
	}
	pruned := e.size - len(keep)
	e.compact(keep)
	return pruned
}

func (e *Engine) compact(keep []int) {
	oldSize := e.size
	newSize := len(keep)
	weights := make([]float32, newSize*newSize)
	for ni, oi := range keep {
		for nj, oj := range keep {
			weights[ni*newSize+nj] = e.weights[oi*oldSize+oj]
		}
	}
	e.weights = weights
	e.inputWeights = gather(e.inputWeights, keep)
	e.state = gather(e.state, keep)
	e.activity = gather(e.activity, keep)
	e.pending = gather(e.pending, keep)
	e.lastInput = gather(e.lastInput, keep)
	for c := Channel(0); c < channelCount; c++ {
		e.exposure[c] = gather(e.exposure[c], keep)
	}
	positions := make([][3]float32, newSize)
	for ni, oi := range keep {
		positions[ni] = e.positions[oi]
	}
	e.positions = positions
	e.size = newSize
}

// ActivitySnapshot returns a copy of the long-term activity vector.
func (e *Engine) ActivitySnapshot() []float32 {
	out := make([]float32, e.size)
	copy(out, e.activity)
	return out
}

// Positions returns a copy of the neuron coordinates.
func (e *Engine) Positions() [][3]float32 {
	out := make([][3]float32, e.size)
	copy(out, e.positions)
	return out
}

// Region labels derived from the spatial receptive fields. A neuron close
// enough to a channel anchor belongs to that channel's region; everything
// else is associative tissue.
const (
	RegionAssociative uint8 = iota
	RegionSemantic
	RegionAuditory
	RegionLimbic
)

// RegionName renders a region label for telemetry.
func RegionName(r uint8) string {
	switch r {
	case RegionSemantic:
		return "semantic"
	case RegionAuditory:
		return "auditory"
	case RegionLimbic:
		return "limbic"
	default:
		return "associative"
	}
}

// Regions classifies every neuron by its dominant exposure. Dominance
// means more than half-strength coupling to the anchor; neurons far from
// every anchor read associative.
func (e *Engine) Regions() []uint8 {
	out := make([]uint8, e.size)
	for i := 0; i < e.size; i++ {
		best := float32(0.5)
		for c := Channel(0); c < channelCount; c++ {
			if e.exposure[c][i] > best {
				best = e.exposure[c][i]
				out[i] = uint8(c) + 1
			}
		}
	}
	return out
}

// RegionMap aggregates mean activity into the eight octants of the sphere,
// keyed by coordinate signs ("+-+" is x>=0, y<0, z>=0).
func (e *Engine) RegionMap() map[string]float32 {
	sums := make(map[string]float32, 8)
	counts := make(map[string]int, 8)
	for i, p := range e.positions {
		key := octantKey(p)
		sums[key] += e.activity[i]
		counts[key]++
	}
	for key, n := range counts {
		sums[key] /= float32(n)
	}
	return sums
}

func octantKey(p [3]float32) string {
	b := [3]byte{}
	for i, v := range p {
		if v >= 0 {
			b[i] = '+'
		} else {
			b[i] = '-'
		}
	}
	return string(b[:])
}

// Snapshot produces the persistent form of the substrate.
func (e *Engine) Snapshot() model.ReservoirRecord {
	rec := model.ReservoirRecord{
		VersionedRecord:  model.VersionedRecord{SchemaVersion: 1, CodecVersion: 1},
		Size:             e.size,
		LeakRate:         e.cfg.LeakRate,
		Weights:          append([]float32(nil), e.weights...),
		InputWeights:     append([]float32(nil), e.inputWeights...),
		State:            append([]float32(nil), e.state...),
		Activity:         append([]float32(nil), e.activity...),
		Positions:        append([][3]float32(nil), e.positions...),
		SemanticExposure: append([]float32(nil), e.exposure[ChannelSemantic]...),
		AuditoryExposure: append([]float32(nil), e.exposure[ChannelAuditory]...),
		LimbicExposure:   append([]float32(nil), e.exposure[ChannelLimbic]...),
	}
	return rec
}

// Restore replaces the substrate from a persisted record. Dimensions must
// agree; NaN values are sanitized to zero rather than rejected. Missing
// exposure fields are recomputed from the positions so records written
// before receptive fields existed still load.
func (e *Engine) Restore(rec model.ReservoirRecord) error {
	if rec.Size < 1 {
		return fmt.Errorf("reservoir record has invalid size %d", rec.Size)
	}
	if len(rec.Weights) != rec.Size*rec.Size {
		return fmt.Errorf("weight matrix length %d does not match size %d", len(rec.Weights), rec.Size)
	}
	for name, n := range map[string]int{
		"input_weights": len(rec.InputWeights),
		"state":         len(rec.State),
		"activity":      len(rec.Activity),
		"positions":     len(rec.Positions),
	} {
		if n != rec.Size {
			return fmt.Errorf("%s length %d does not match size %d", name, n, rec.Size)
		}
	}

	e.size = rec.Size
	e.weights = sanitizeAll(append([]float32(nil), rec.Weights...))
	e.inputWeights = sanitizeAll(append([]float32(nil), rec.InputWeights...))
	e.state = sanitizeAll(append([]float32(nil), rec.State...))
	e.activity = sanitizeAll(append([]float32(nil), rec.Activity...))
	e.positions = append([][3]float32(nil), rec.Positions...)
	e.pending = make([]float32, rec.Size)
	e.lastInput = make([]float32, rec.Size)

	restored := [channelCount][]float32{
		ChannelSemantic: rec.SemanticExposure,
		ChannelAuditory: rec.AuditoryExposure,
		ChannelLimbic:   rec.LimbicExposure,
	}
	complete := true
	for c := Channel(0); c < channelCount; c++ {
		if len(restored[c]) != rec.Size {
			complete = false
			break
		}
	}
	if complete {
		for c := Channel(0); c < channelCount; c++ {
			e.exposure[c] = sanitizeAll(append([]float32(nil), restored[c]...))
		}
	} else {
		for c := Channel(0); c < channelCount; c++ {
			e.exposure[c] = make([]float32, rec.Size)
		}
		for i := 0; i < rec.Size; i++ {
			e.setExposure(i)
		}
	}
	e.entropy = variance(e.state)
	return nil
}

func gather(src []float32, keep []int) []float32 {
	out := make([]float32, len(keep))
	for ni, oi := range keep {
		out[ni] = src[oi]
	}
	return out
}

func quantile(values []float32, q float32) float32 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float32(nil), values...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })
	idx := int(float32(len(sorted)-1) * q)
	return sorted[idx]
}

func variance(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	var mean float32
	for _, v := range values {
		mean += v
	}
	mean /= float32(len(values))
	var sum float32
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float32(len(values))
}

func distance(a, b [3]float32) float32 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
}

func clampToSphere(p [3]float32, r float32) [3]float32 {
	norm := float32(math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])))
	if norm <= r || norm == 0 {
		return p
	}
	scale := r / norm
	return [3]float32{p[0] * scale, p[1] * scale, p[2] * scale}
}

func sanitizeAll(values []float32) []float32 {
	for i, v := range values {
		values[i] = sanitize(v)
	}
	return values
}

func sanitize(x float32) float32 {
	if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
		return 0
	}
	return x
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
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
