package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultIsNormalized(t *testing.T) {
	cfg := Default()
	if got := Normalize(cfg); !reflect.DeepEqual(got, cfg) {
		t.Fatalf("defaults changed by normalization:\n got=%+v\nwant=%+v", got, cfg)
	}
}

func TestNormalizeRepairsInvalidValues(t *testing.T) {
	cfg := Default()
	cfg.Reservoir.InitialSize = -10
	cfg.Reservoir.LeakRate = 2.0
	cfg.Loop.MinHz = 0
	cfg.Loop.Smoothing = 0
	cfg.Chemistry.WakeThreshold = 0.9
	cfg.Chemistry.FailingThreshold = 0.8
	cfg.Storage.Backend = "postgres"

	got := Normalize(cfg)
	def := Default()

	if got.Reservoir.InitialSize != def.Reservoir.InitialSize {
		t.Fatalf("initial size not repaired: %d", got.Reservoir.InitialSize)
	}
	if got.Reservoir.LeakRate != def.Reservoir.LeakRate {
		t.Fatalf("leak rate not repaired: %f", got.Reservoir.LeakRate)
	}
	if got.Loop.MinHz != def.Loop.MinHz {
		t.Fatalf("min hz not repaired: %f", got.Loop.MinHz)
	}
	if got.Chemistry.WakeThreshold >= got.Chemistry.FailingThreshold {
		t.Fatalf("hysteresis band not repaired: wake=%f failing=%f",
			got.Chemistry.WakeThreshold, got.Chemistry.FailingThreshold)
	}
	if got.Storage.Backend != "sqlite" {
		t.Fatalf("backend not repaired: %s", got.Storage.Backend)
	}
}

func TestNormalizeClampsMaxBelowInitial(t *testing.T) {
	cfg := Default()
	cfg.Reservoir.InitialSize = 800
	cfg.Reservoir.MaxSize = 100
	got := Normalize(cfg)
	if got.Reservoir.MaxSize != 800 {
		t.Fatalf("max size should rise to initial size, got %d", got.Reservoir.MaxSize)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "somata.yaml")
	body := []byte("reservoir:\n  initial_size: 64\nloop:\n  base_hz: 10\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOMATA_LOOP_BASE_HZ", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Reservoir.InitialSize != 64 {
		t.Fatalf("yaml value lost: %d", cfg.Reservoir.InitialSize)
	}
	if cfg.Loop.BaseHz != 30 {
		t.Fatalf("env should override yaml, got %f", cfg.Loop.BaseHz)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Reservoir.InitialSize != Default().Reservoir.InitialSize {
		t.Fatalf("expected defaults, got %d", cfg.Reservoir.InitialSize)
	}
}
