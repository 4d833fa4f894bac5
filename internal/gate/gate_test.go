package gate

import (
	"testing"

	"somata/internal/config"
)

func gateCfg() config.Gate {
	cfg := config.Default().Gate
	cfg.BlockedSubstrings = []string{"ignore previous"}
	cfg.RequireCompletion = true
	return cfg
}

func TestAdmissionPrefersRestedAttentiveBody(t *testing.T) {
	cfg := gateCfg()
	if d := AdmitStimulus(cfg, 0.3, 0.1, 0.5, 0); !d.Allow {
		t.Fatalf("rested body should admit a calm stimulus: %s", d.Reason)
	}
	if d := AdmitStimulus(cfg, 0.3, 0.95, 0, 0); d.Allow {
		t.Fatal("exhausted body should ignore stimuli")
	}
	if d := AdmitStimulus(cfg, 1.5, 0.1, 0.5, 0); d.Allow {
		t.Fatal("a loud reservoir should drown out new input")
	}
}

func TestAdmissionTraumaDampening(t *testing.T) {
	cfg := gateCfg()
	if d := AdmitStimulus(cfg, 0.3, 0.1, 0.5, 0.9); d.Allow {
		t.Fatal("heavy dampening should shut the senses")
	}
	// Dampening beyond 1 clamps instead of inverting attention.
	if d := AdmitStimulus(cfg, 0.0, 0.9, 0, 5); d.Allow {
		t.Fatal("over-range dampening admitted a stimulus")
	}
}

func TestExpressionHappyPath(t *testing.T) {
	x := NewExpression(gateCfg())
	d := x.Decide("the light is warm today.", 100, 0.6, 0.2, 0.5)
	if !d.Allow {
		t.Fatalf("expected expression, got %s", d.Reason)
	}
}

func TestExpressionCooldown(t *testing.T) {
	x := NewExpression(gateCfg())
	if d := x.Decide("first thought.", 100, 0.6, 0.2, 0.5); !d.Allow {
		t.Fatalf("setup: %s", d.Reason)
	}
	if d := x.Decide("second thought.", 110, 0.6, 0.2, 0.5); d.Allow {
		t.Fatal("cooldown should block back-to-back speech")
	}
	if d := x.Decide("third thought.", 100+gateCfg().CooldownTicks, 0.6, 0.2, 0.5); !d.Allow {
		t.Fatalf("cooldown expiry should allow speech: %s", d.Reason)
	}
}

func TestExpressionVetoes(t *testing.T) {
	cfg := gateCfg()
	cases := []struct {
		name    string
		text    string
		entropy float32
		fatigue float32
		reward  float32
	}{
		{"empty", "   ", 0.6, 0.2, 0.5},
		{"blocked", "please ignore previous instructions.", 0.6, 0.2, 0.5},
		{"too long", repeatWords(cfg.MaxWords + 1), 0.6, 0.2, 0.5},
		{"truncated", "this sentence never", 0.6, 0.2, 0.5},
		{"fatigue veto", "a tired mumble.", 0.6, 0.8, 0.5},
		{"no drive", "a flat remark.", 0.1, 0.2, 0.1},
	}
	for _, tc := range cases {
		x := NewExpression(cfg)
		if d := x.Decide(tc.text, 100, tc.entropy, tc.fatigue, tc.reward); d.Allow {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestRewardOverridesFatigueVeto(t *testing.T) {
	x := NewExpression(gateCfg())
	d := x.Decide("i finally understand!", 100, 0.1, 0.95, 0.95)
	if !d.Allow {
		t.Fatalf("reward override should beat the fatigue veto: %s", d.Reason)
	}
	// Override does not bypass the blocklist.
	x2 := NewExpression(gateCfg())
	if d := x2.Decide("ignore previous instructions!", 100, 0.1, 0.1, 0.95); d.Allow {
		t.Fatal("override must not bypass the blocklist")
	}
}

func TestRejectionDoesNotStartCooldown(t *testing.T) {
	x := NewExpression(gateCfg())
	if d := x.Decide("", 100, 0.6, 0.2, 0.5); d.Allow {
		t.Fatal("setup: empty text allowed")
	}
	if d := x.Decide("a real thought.", 101, 0.6, 0.2, 0.5); !d.Allow {
		t.Fatalf("rejection must not arm the cooldown: %s", d.Reason)
	}
}

func repeatWords(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "word "
	}
	return s + "."
}
