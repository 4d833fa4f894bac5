// Package gate holds the two bottlenecks between the body and the world:
// admission decides which stimuli deserve the substrate's attention, and
// expression decides which cortex utterances reach the outside.
package gate

import (
	"fmt"
	"strings"

	"somata/internal/config"
)

// Decision carries the verdict and a short reason for the journal.
type Decision struct {
	Allow  bool
	Reason string
}

func allow(reason string) Decision  { return Decision{Allow: true, Reason: reason} }
func reject(reason string) Decision { return Decision{Allow: false, Reason: reason} }

// AdmitStimulus compares available attention against the substrate's
// current noise level. A tired or indifferent body ignores input a rested
// one would notice, and trauma dampening shrinks attention directly.
func AdmitStimulus(cfg config.Gate, entropy, fatigue, reward, dampening float32) Decision {
	attention := (1 - fatigue) + reward*cfg.RewardWeight
	attention *= 1 - clampf(dampening, 0, 1)
	needed := entropy + cfg.AdmissionMargin
	if attention <= needed {
		return reject(fmt.Sprintf("attention %.2f below noise %.2f", attention, needed))
	}
	return allow("admitted")
}

// Expression tracks when the body last spoke so it can enforce a cooldown.
type Expression struct {
	cfg        config.Gate
	lastSpoken uint64
	spoken     bool
}

func NewExpression(cfg config.Gate) *Expression {
	return &Expression{cfg: cfg}
}

// Decide runs the utterance through every veto in order. An allowed
// utterance is recorded as spoken at the given tick.
func (x *Expression) Decide(text string, tick uint64, entropy, fatigue, reward float32) Decision {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return reject("empty utterance")
	}

	lower := strings.ToLower(trimmed)
	for _, blocked := range x.cfg.BlockedSubstrings {
		if blocked != "" && strings.Contains(lower, strings.ToLower(blocked)) {
			return reject("blocked phrase")
		}
	}

	words := len(strings.Fields(trimmed))
	if words < x.cfg.MinWords {
		return reject(fmt.Sprintf("too short: %d words", words))
	}
	if words > x.cfg.MaxWords {
		return reject(fmt.Sprintf("too long: %d words", words))
	}
	if x.cfg.RequireCompletion && !strings.ContainsAny(trimmed[len(trimmed)-1:], ".!?") {
		return reject("truncated utterance")
	}

	if x.spoken && tick-x.lastSpoken < x.cfg.CooldownTicks {
		return reject(fmt.Sprintf("cooldown: %d ticks since last", tick-x.lastSpoken))
	}

	// Exceptional reward speaks regardless of how tired the body is.
	if reward < x.cfg.RewardOverride {
		if fatigue > x.cfg.FatigueVeto {
			return reject(fmt.Sprintf("fatigue veto at %.2f", fatigue))
		}
		drive := entropy + reward*x.cfg.DriveRewardWeight
		resistance := fatigue + x.cfg.BaseResistance
		if drive <= resistance {
			return reject(fmt.Sprintf("drive %.2f below resistance %.2f", drive, resistance))
		}
	}

	x.lastSpoken = tick
	x.spoken = true
	return allow("expressed")
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
