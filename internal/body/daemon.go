// Package body is the orchestrator: one goroutine owns every subsystem
// and advances them in lockstep at a variable tick frequency. Everything
// else (senses, cortex, voice, telemetry) talks to the loop through
// channels that never block it.
package body

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"somata/internal/chemistry"
	"somata/internal/config"
	"somata/internal/cortex"
	"somata/internal/gate"
	"somata/internal/genome"
	"somata/internal/memory"
	"somata/internal/model"
	"somata/internal/reservoir"
	"somata/internal/senses"
	"somata/internal/storage"
	"somata/internal/telemetry"
	"somata/internal/trauma"
	"somata/internal/voice"
)

// consecutive cortex failures before the body stops asking.
const degradedAfter = 3

// how long, in ticks, the body waits before trying the cortex again.
const degradedBackoffTicks = 600

// cadence of forced consolidation during sleep or an active trauma
// response.
const consolidateEveryTicks = 300

// Deps are the organs the daemon drives. All are required except Speaker.
type Deps struct {
	Engine      *reservoir.Engine
	Chemistry   *chemistry.System
	Trauma      *trauma.Monitor
	Expression  *gate.Expression
	Hippocampus *memory.Hippocampus
	Worker      *cortex.Worker
	Speaker     *voice.Speaker
	Store       storage.Store
	Slot        *telemetry.Slot
	Metrics     *telemetry.Metrics
	Traits      model.TraitRecord
	RNG         *rand.Rand
}

type Daemon struct {
	cfg    config.Config
	logger *slog.Logger
	deps   Deps

	embeddings chan senses.Embedding
	audio      chan senses.AudioFrame
	hardware   chan senses.HardwareLoad

	tick     uint64
	hz       float32
	sleeping bool
	load     senses.HardwareLoad

	failures      int
	degradedUntil uint64
	lastUtterance string
	pendingTopics []string

	stats      genome.SessionStats
	sumStress  float64
	sumReward  float64
	sumFatigue float64
}

func NewDaemon(cfg config.Config, deps Deps, logger *slog.Logger) *Daemon {
	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		deps:       deps,
		embeddings: make(chan senses.Embedding, 16),
		audio:      make(chan senses.AudioFrame, 16),
		hardware:   make(chan senses.HardwareLoad, 1),
		hz:         cfg.Loop.BaseHz,
	}
}

// Embeddings is the semantic sense input. Senders must not block on it.
func (d *Daemon) Embeddings() chan<- senses.Embedding { return d.embeddings }

// Audio is the auditory sense input.
func (d *Daemon) Audio() chan<- senses.AudioFrame { return d.audio }

// Hardware receives proprioceptive load samples. The monitor owns both
// ends so it can evict a stale sample before publishing a fresh one.
func (d *Daemon) Hardware() chan senses.HardwareLoad { return d.hardware }

// Run drives the tick loop until the context ends, then performs the
// bounded shutdown sequence. Cancellation is tick-atomic: the current
// tick always completes.
func (d *Daemon) Run(ctx context.Context) error {
	d.journal(ctx, model.VoiceSystem, fmt.Sprintf("awake, %d neurons, generation %d",
		d.deps.Engine.Size(), d.deps.Traits.Generation))

	timer := time.NewTimer(d.interval())
	defer timer.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return d.shutdown()
		case now := <-timer.C:
			dt := float32(now.Sub(last).Seconds())
			if dt <= 0 || dt > 1 {
				dt = 1 / d.hz
			}
			last = now
			d.step(ctx, dt)
			d.deps.Metrics.TickSeconds.Observe(time.Since(now).Seconds())
			timer.Reset(d.interval())
		}
	}
}

func (d *Daemon) interval() time.Duration {
	return time.Duration(float64(time.Second) / float64(d.hz))
}

// step is one complete pass over the body. Order matters: senses feed the
// substrate, the substrate feeds the chemistry, the chemistry gates the
// mind.
func (d *Daemon) step(ctx context.Context, dt float32) {
	d.tick++

	acute := d.drainSenses(ctx, dt)
	entropy := d.deps.Engine.Tick(reservoir.Modulators{
		Reward:  d.deps.Chemistry.Reward(),
		Fatigue: d.deps.Chemistry.Fatigue(),
		Stress:  d.deps.Chemistry.Stress(),
	}, dt)

	d.deps.Chemistry.Tick(entropy, d.load.Combined(), d.sleeping, acute, d.deps.Engine.Size(), dt)
	d.deps.Chemistry.SetMemoryPressure(d.deps.Hippocampus.PressureRatio())

	overrides := d.observeTrauma(ctx, dt)
	d.updateSleep(ctx)
	d.plasticity(dt)
	d.drainCortex(ctx)

	if !d.sleeping {
		d.maybeThink(overrides)
	}
	if (d.sleeping || overrides.ForceConsolidation) && d.tick%consolidateEveryTicks == 0 {
		kept, dropped := d.deps.Hippocampus.Consolidate()
		d.logger.Debug("consolidated", "kept", kept, "dropped", dropped)
		// Consolidated experience earns structural capacity.
		if kept > 0 {
			if grown := d.deps.Engine.Neurogenesis(d.cfg.Reservoir.NeurogenesisBatch); grown > 0 {
				d.logger.Info("neurogenesis", "grown", grown, "population", d.deps.Engine.Size())
			}
		}
	}

	d.retune()
	d.accumulateStats()
	if d.tick%uint64(d.cfg.Loop.TelemetryDivisor) == 0 {
		d.publish(ctx)
	}
}

// drainSenses empties the input channels without blocking and reports
// whether anything acutely stressful arrived.
func (d *Daemon) drainSenses(ctx context.Context, dt float32) bool {
	for {
		select {
		case load := <-d.hardware:
			d.load = load
			continue
		default:
		}
		break
	}

	acute := false
	for {
		select {
		case emb := <-d.embeddings:
			if d.admit(ctx, emb, dt) {
				acute = acute || d.feel(ctx, emb) > 0.3
			}
			continue
		case frame := <-d.audio:
			if energy := frame.Energy(); energy > 0 {
				d.deps.Engine.Inject(reservoir.ChannelAuditory, frame.Samples)
				if energy > 0.8 {
					acute = true
					d.journal(ctx, model.VoiceSensory, "a loud noise")
				}
			}
			continue
		default:
		}
		return acute
	}
}

// admit runs the admission gate and, when the stimulus gets through,
// pushes it into the substrate and the episodic store.
func (d *Daemon) admit(ctx context.Context, emb senses.Embedding, dt float32) bool {
	decision := gate.AdmitStimulus(d.cfg.Gate,
		d.deps.Engine.Entropy(),
		d.deps.Chemistry.Fatigue(),
		d.deps.Chemistry.Reward(),
		d.deps.Trauma.Overrides().SensoryDampening)
	if !decision.Allow {
		d.logger.Debug("stimulus ignored", "reason", decision.Reason)
		return false
	}

	vec := emb.Vector
	if len(vec) == 0 && emb.Text != "" {
		vec = d.deps.Hippocampus.Vectorize(emb.Text)
	}
	// Novelty is measured against memory before the impression joins it.
	d.deps.Chemistry.Surprise(d.deps.Hippocampus.Novelty(vec), dt)
	d.deps.Engine.InjectEmbedding(vec)
	if emb.Text != "" {
		d.deps.Hippocampus.Remember(emb.Text, vec, d.tick)
		d.pendingTopics = append(d.pendingTopics, emb.Text)
		if len(d.pendingTopics) > 4 {
			d.pendingTopics = d.pendingTopics[len(d.pendingTopics)-4:]
		}
		d.journal(ctx, model.VoiceSensory, emb.Text)
	}
	return true
}

// feel applies the lexical perturbation and returns its friction.
func (d *Daemon) feel(ctx context.Context, emb senses.Embedding) float32 {
	if emb.Text == "" {
		return 0
	}
	friction := d.deps.Chemistry.ApplyLexicalPerturbation(emb.Text)
	if friction > 0.3 {
		// Strong affect reaches the substrate through the limbic field.
		d.deps.Engine.InjectAffect([]float32{friction, d.deps.Chemistry.Stress()})
		d.journal(ctx, model.VoiceChem, fmt.Sprintf("that stung, friction %.2f", friction))
	}
	return friction
}

func (d *Daemon) observeTrauma(ctx context.Context, dt float32) trauma.Overrides {
	if d.deps.Trauma.Observe(d.deps.Chemistry.Stress()) {
		d.journal(ctx, model.VoiceChem, fmt.Sprintf("defense posture: %s", d.deps.Trauma.State()))
	}

	overrides := d.deps.Trauma.Overrides()
	if overrides.StabilizerBoost > 0 {
		d.deps.Chemistry.Stabilize(overrides.StabilizerBoost, dt)
	}
	return overrides
}

func (d *Daemon) updateSleep(ctx context.Context) {
	if !d.sleeping && d.deps.Chemistry.BodyFailing() {
		d.sleeping = true
		d.deps.Metrics.SleepCycles.Inc()
		d.journal(ctx, model.VoiceSystem, "body failing, forcing rest")
		return
	}
	if d.sleeping && d.deps.Chemistry.RecoveredToWake() {
		d.sleeping = false
		d.journal(ctx, model.VoiceSystem, "rested, waking")
	}
}

func (d *Daemon) plasticity(dt float32) {
	reward := d.deps.Chemistry.Reward()
	d.deps.Engine.HebbianUpdate(reward, dt)
	d.deps.Engine.HebbianInputUpdate(reward, dt)
	if strengthened := d.deps.Engine.TriggerEpiphany(reward); strengthened > 0 {
		d.deps.Metrics.Epiphanies.Inc()
		d.logger.Debug("epiphany", "connections", strengthened)
	}

	growth := uint64(d.cfg.Reservoir.GrowthIntervalTicks)
	if growth > 0 && d.tick%growth == 0 && reward > 0.6 {
		if grown := d.deps.Engine.Neurogenesis(d.cfg.Reservoir.NeurogenesisBatch); grown > 0 {
			d.logger.Info("neurogenesis", "grown", grown, "population", d.deps.Engine.Size())
		}
	}
	prune := uint64(d.cfg.Reservoir.PruneIntervalTicks)
	if prune > 0 && d.tick%prune == 0 {
		if pruned := d.deps.Engine.PruneInactive(); pruned > 0 {
			d.logger.Info("pruned inactive neurons", "pruned", pruned, "population", d.deps.Engine.Size())
		}
	}
}

// drainCortex consumes at most the one in-flight response.
func (d *Daemon) drainCortex(ctx context.Context) {
	select {
	case resp := <-d.deps.Worker.Responses():
		if resp.Err != nil {
			d.failures++
			d.deps.Metrics.CortexFailures.Inc()
			if d.failures == degradedAfter {
				d.degradedUntil = d.tick + degradedBackoffTicks
				d.journal(ctx, model.VoiceSystem, "cortex unreachable, thinking inward")
			}
			return
		}
		d.failures = 0
		d.deps.Engine.InjectLogits(resp.Echo)
		d.express(ctx, resp.Text)
	default:
	}
}

func (d *Daemon) express(ctx context.Context, text string) {
	decision := d.deps.Expression.Decide(text, d.tick,
		d.deps.Engine.Entropy(),
		d.deps.Chemistry.Fatigue(),
		d.deps.Chemistry.Reward())
	if !decision.Allow {
		// Suppressed thoughts still happened.
		d.journal(ctx, model.VoiceCortex, text)
		d.logger.Debug("utterance suppressed", "reason", decision.Reason)
		return
	}

	d.lastUtterance = text
	d.stats.Expressions++
	d.deps.Metrics.Expressions.Inc()
	d.deps.Hippocampus.Remember(text, nil, d.tick)
	d.journal(ctx, model.VoiceVocal, text)
	if d.deps.Speaker != nil {
		d.deps.Speaker.Say(text)
	}
}

// maybeThink submits a cortex request when there is something worth
// saying and the worker is free. In degraded mode the body talks to
// itself from memory instead.
func (d *Daemon) maybeThink(overrides trauma.Overrides) {
	entropy := d.deps.Engine.Entropy()
	reward := d.deps.Chemistry.Reward()
	urge := entropy > 0.1 || reward > 0.6 || len(d.pendingTopics) > 0
	if !urge {
		return
	}

	if d.degraded() {
		d.ruminate()
		return
	}

	temp, topP, maxTokens := cortex.Tune(d.cfg.Cortex,
		d.deps.Chemistry.Fatigue(), reward,
		d.deps.Chemistry.CognitiveImpairment(),
		overrides.TemperatureCeiling)
	mode := cortex.ModeThink
	if len(d.pendingTopics) > 0 {
		mode = cortex.ModeListen
	}
	req := cortex.Request{
		Mode:        mode,
		Prompt:      d.composePrompt(),
		Context:     d.recallContext(),
		Temperature: temp,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}
	if d.deps.Worker.Submit(req) {
		d.pendingTopics = d.pendingTopics[:0]
	}
}

func (d *Daemon) degraded() bool {
	return d.failures >= degradedAfter && d.tick < d.degradedUntil
}

// ruminate is the cortexless fallback: resurface the closest memory to
// whatever is pending and run it through the normal expression path.
func (d *Daemon) ruminate() {
	if len(d.pendingTopics) == 0 {
		return
	}
	topic := d.pendingTopics[len(d.pendingTopics)-1]
	d.pendingTopics = d.pendingTopics[:0]
	recalled := d.deps.Hippocampus.Recall(d.deps.Hippocampus.Vectorize(topic))
	if len(recalled) == 0 {
		return
	}
	d.express(context.Background(), recalled[0].Text)
}

func (d *Daemon) composePrompt() string {
	var b strings.Builder
	b.WriteString(d.describeState())
	if len(d.pendingTopics) > 0 {
		b.WriteString(" I just perceived: ")
		b.WriteString(strings.Join(d.pendingTopics, "; "))
		b.WriteString(".")
	}
	return b.String()
}

// describeState is proprioception in words, the only self-knowledge the
// cortex receives.
func (d *Daemon) describeState() string {
	fatigue := d.deps.Chemistry.Fatigue()
	reward := d.deps.Chemistry.Reward()
	stress := d.deps.Chemistry.Stress()

	feeling := "calm"
	switch {
	case stress > 0.7:
		feeling = "afraid"
	case stress > 0.4:
		feeling = "uneasy"
	case reward > 0.7:
		feeling = "delighted"
	case reward > 0.4:
		feeling = "curious"
	case fatigue > 0.6:
		feeling = "heavy and slow"
	}
	return fmt.Sprintf("I feel %s. My mind hums at %.2f.", feeling, d.deps.Engine.Entropy())
}

func (d *Daemon) recallContext() []string {
	if len(d.pendingTopics) == 0 {
		return nil
	}
	vec := d.deps.Hippocampus.Vectorize(strings.Join(d.pendingTopics, " "))
	recalled := d.deps.Hippocampus.Recall(vec)
	out := make([]string, 0, len(recalled))
	for _, entry := range recalled {
		out = append(out, entry.Text)
	}
	return out
}

// retune moves the loop frequency toward what the chemistry asks for:
// excitement speeds the body up, exhaustion slows it down.
func (d *Daemon) retune() {
	loop := d.cfg.Loop
	target := loop.BaseHz +
		d.deps.Chemistry.Reward()*loop.RewardGain +
		d.deps.Chemistry.Stress()*loop.StressGain -
		d.deps.Chemistry.Fatigue()*loop.FatigueDrag
	if target < loop.MinHz {
		target = loop.MinHz
	}
	if target > loop.MaxHz {
		target = loop.MaxHz
	}
	d.hz += loop.Smoothing * (target - d.hz)
}

func (d *Daemon) accumulateStats() {
	d.stats.Ticks++
	d.sumStress += float64(d.deps.Chemistry.Stress())
	d.sumReward += float64(d.deps.Chemistry.Reward())
	d.sumFatigue += float64(d.deps.Chemistry.Fatigue())
}

// how much of the journal rides along in each snapshot.
const recentEventWindow = 8

func (d *Daemon) publish(ctx context.Context) {
	var events []telemetry.Event
	if recent, err := d.deps.Store.RecentEvents(ctx, recentEventWindow); err == nil {
		events = make([]telemetry.Event, 0, len(recent))
		for _, ev := range recent {
			events = append(events, telemetry.Event{Voice: string(ev.Voice), Text: ev.Text, Tick: ev.Tick})
		}
	}
	regionCounts := make(map[string]int, 4)
	for _, r := range d.deps.Engine.Regions() {
		regionCounts[reservoir.RegionName(r)]++
	}

	snap := telemetry.Snapshot{
		Tick:           d.tick,
		Hz:             d.hz,
		Fatigue:        d.deps.Chemistry.Fatigue(),
		Reward:         d.deps.Chemistry.Reward(),
		Stress:         d.deps.Chemistry.Stress(),
		Entropy:        d.deps.Engine.Entropy(),
		Neurons:        d.deps.Engine.Size(),
		TraumaState:    d.deps.Trauma.State().String(),
		Sleeping:       d.sleeping,
		Degraded:       d.degraded(),
		MemoryPressure: d.deps.Hippocampus.PressureRatio(),
		Regions:        d.deps.Engine.RegionMap(),
		RegionCounts:   regionCounts,
		Events:         events,
		LastUtterance:  d.lastUtterance,
		ObservedAt:     time.Now(),
	}
	d.deps.Slot.Publish(snap)
	d.deps.Metrics.Observe(snap, int(d.deps.Trauma.State()))
}

// shutdown is the bounded farewell: consolidate, persist the substrate,
// mutate the genome, and give up cleanly when the deadline passes.
func (d *Daemon) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Loop.ShutdownTimeout)
	defer cancel()

	d.journal(ctx, model.VoiceSystem, "falling asleep for good")
	kept, dropped := d.deps.Hippocampus.Consolidate()
	d.logger.Info("final consolidation", "kept", kept, "dropped", dropped)

	if err := d.deps.Store.SaveReservoir(ctx, d.deps.Engine.Snapshot()); err != nil {
		d.logger.Error("could not persist reservoir", "error", err)
	}

	if d.stats.Ticks > 0 {
		d.stats.MeanStress = float32(d.sumStress / float64(d.stats.Ticks))
		d.stats.MeanReward = float32(d.sumReward / float64(d.stats.Ticks))
		d.stats.MeanFatigue = float32(d.sumFatigue / float64(d.stats.Ticks))
	}
	d.stats.TraumaEvents = d.deps.Trauma.Activations()
	crystal := genome.Crystallize(d.deps.Engine.ActivitySnapshot())
	next := genome.Mutate(d.deps.Traits, d.stats, crystal, d.deps.RNG)
	if err := d.deps.Store.SaveTraits(ctx, next); err != nil {
		d.logger.Error("could not persist traits", "error", err)
	}
	d.logger.Info("session complete",
		"ticks", d.stats.Ticks,
		"generation", next.Generation,
		"trauma_events", d.stats.TraumaEvents,
		"expressions", d.stats.Expressions)
	return ctx.Err()
}

func (d *Daemon) journal(ctx context.Context, voice model.Voice, text string) {
	event := model.EventRecord{
		Voice:     voice,
		Text:      text,
		Tick:      d.tick,
		CreatedMS: time.Now().UnixMilli(),
	}
	if err := d.deps.Store.AppendEvent(ctx, event); err != nil {
		d.logger.Debug("journal write failed", "error", err)
	}
}
