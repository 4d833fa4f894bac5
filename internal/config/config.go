// Package config loads daemon configuration from an optional YAML file with
// environment variable overrides. Every tuning constant of the simulation
// lives here; code never hard-codes decay rates or thresholds.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Reservoir Reservoir `yaml:"reservoir" envPrefix:"SOMATA_RESERVOIR_"`
	Chemistry Chemistry `yaml:"chemistry" envPrefix:"SOMATA_CHEMISTRY_"`
	Trauma    Trauma    `yaml:"trauma" envPrefix:"SOMATA_TRAUMA_"`
	Loop      Loop      `yaml:"loop" envPrefix:"SOMATA_LOOP_"`
	Gate      Gate      `yaml:"gate" envPrefix:"SOMATA_GATE_"`
	Cortex    Cortex    `yaml:"cortex" envPrefix:"SOMATA_CORTEX_"`
	Memory    Memory    `yaml:"memory" envPrefix:"SOMATA_MEMORY_"`
	Voice     Voice     `yaml:"voice" envPrefix:"SOMATA_VOICE_"`
	Storage   Storage   `yaml:"storage" envPrefix:"SOMATA_STORAGE_"`
	Telemetry Telemetry `yaml:"telemetry" envPrefix:"SOMATA_TELEMETRY_"`
	Logging   Logging   `yaml:"logging" envPrefix:"SOMATA_LOG_"`
}

type Reservoir struct {
	InitialSize int `yaml:"initial_size" env:"INITIAL_SIZE"`
	MaxSize     int `yaml:"max_size" env:"MAX_SIZE"`
	MinSize     int `yaml:"min_size" env:"MIN_SIZE"`

	LeakRate       float32 `yaml:"leak_rate" env:"LEAK_RATE"`
	SpectralRadius float32 `yaml:"spectral_radius" env:"SPECTRAL_RADIUS"`
	BrainRadius    float32 `yaml:"brain_radius" env:"BRAIN_RADIUS"`
	InputSparsity  float32 `yaml:"input_sparsity" env:"INPUT_SPARSITY"`

	ActivityFloor    float32 `yaml:"activity_floor" env:"ACTIVITY_FLOOR"`
	HebbianRate      float32 `yaml:"hebbian_rate" env:"HEBBIAN_RATE"`
	HebbianInputRate float32 `yaml:"hebbian_input_rate" env:"HEBBIAN_INPUT_RATE"`
	EpiphanyCutoff   float32 `yaml:"epiphany_cutoff" env:"EPIPHANY_CUTOFF"`
	EpiphanyQuantile float32 `yaml:"epiphany_quantile" env:"EPIPHANY_QUANTILE"`

	NeurogenesisBatch   int `yaml:"neurogenesis_batch" env:"NEUROGENESIS_BATCH"`
	PruneIntervalTicks  int `yaml:"prune_interval_ticks" env:"PRUNE_INTERVAL_TICKS"`
	GrowthIntervalTicks int `yaml:"growth_interval_ticks" env:"GROWTH_INTERVAL_TICKS"`
}

type Chemistry struct {
	ReferenceHz float32 `yaml:"reference_hz" env:"REFERENCE_HZ"`

	BaseFatigueRate  float32 `yaml:"base_fatigue_rate" env:"BASE_FATIGUE_RATE"`
	CognitiveCost    float32 `yaml:"cognitive_cost" env:"COGNITIVE_COST"`
	MetabolicCost    float32 `yaml:"metabolic_cost" env:"METABOLIC_COST"`
	RestRecoveryRate float32 `yaml:"rest_recovery_rate" env:"REST_RECOVERY_RATE"`
	AcutePenalty     float32 `yaml:"acute_penalty" env:"ACUTE_PENALTY"`

	RewardDecayRate float32 `yaml:"reward_decay_rate" env:"REWARD_DECAY_RATE"`
	RewardBandLow   float32 `yaml:"reward_band_low" env:"REWARD_BAND_LOW"`
	RewardBandHigh  float32 `yaml:"reward_band_high" env:"REWARD_BAND_HIGH"`
	RewardBandGain  float32 `yaml:"reward_band_gain" env:"REWARD_BAND_GAIN"`

	StressRiseRate  float32 `yaml:"stress_rise_rate" env:"STRESS_RISE_RATE"`
	StressDecayRate float32 `yaml:"stress_decay_rate" env:"STRESS_DECAY_RATE"`
	LoadStressLimit float32 `yaml:"load_stress_limit" env:"LOAD_STRESS_LIMIT"`

	FailingThreshold float32 `yaml:"failing_threshold" env:"FAILING_THRESHOLD"`
	WakeThreshold    float32 `yaml:"wake_threshold" env:"WAKE_THRESHOLD"`
	MemoryFloorCap   float32 `yaml:"memory_floor_cap" env:"MEMORY_FLOOR_CAP"`

	ResilienceScale float32 `yaml:"resilience_scale" env:"RESILIENCE_SCALE"`
}

type Trauma struct {
	WindowSize       int     `yaml:"window_size" env:"WINDOW_SIZE"`
	MidThreshold     float32 `yaml:"mid_threshold" env:"MID_THRESHOLD"`
	HighThreshold    float32 `yaml:"high_threshold" env:"HIGH_THRESHOLD"`
	LowThreshold     float32 `yaml:"low_threshold" env:"LOW_THRESHOLD"`
	VeryLowThreshold float32 `yaml:"very_low_threshold" env:"VERY_LOW_THRESHOLD"`
	CalmTicks        int     `yaml:"calm_ticks" env:"CALM_TICKS"`
}

type Loop struct {
	BaseHz      float32 `yaml:"base_hz" env:"BASE_HZ"`
	MinHz       float32 `yaml:"min_hz" env:"MIN_HZ"`
	MaxHz       float32 `yaml:"max_hz" env:"MAX_HZ"`
	RewardGain  float32 `yaml:"reward_gain" env:"REWARD_GAIN"`
	StressGain  float32 `yaml:"stress_gain" env:"STRESS_GAIN"`
	FatigueDrag float32 `yaml:"fatigue_drag" env:"FATIGUE_DRAG"`
	Smoothing   float32 `yaml:"smoothing" env:"SMOOTHING"`

	TelemetryDivisor int           `yaml:"telemetry_divisor" env:"TELEMETRY_DIVISOR"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type Gate struct {
	AdmissionMargin    float32 `yaml:"admission_margin" env:"ADMISSION_MARGIN"`
	RewardWeight       float32 `yaml:"reward_weight" env:"REWARD_WEIGHT"`
	CooldownTicks      uint64  `yaml:"cooldown_ticks" env:"COOLDOWN_TICKS"`
	MinWords           int     `yaml:"min_words" env:"MIN_WORDS"`
	MaxWords           int     `yaml:"max_words" env:"MAX_WORDS"`
	DriveRewardWeight  float32 `yaml:"drive_reward_weight" env:"DRIVE_REWARD_WEIGHT"`
	BaseResistance     float32 `yaml:"base_resistance" env:"BASE_RESISTANCE"`
	FatigueVeto        float32 `yaml:"fatigue_veto" env:"FATIGUE_VETO"`
	RewardOverride     float32 `yaml:"reward_override" env:"REWARD_OVERRIDE"`
	RequireCompletion  bool    `yaml:"require_completion" env:"REQUIRE_COMPLETION"`
	BlockedSubstrings  []string `yaml:"blocked_substrings" env:"BLOCKED_SUBSTRINGS" envSeparator:","`
}

type Cortex struct {
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	Model       string        `yaml:"model" env:"MODEL"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	EchoSize    int           `yaml:"echo_size" env:"ECHO_SIZE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Temperature float32       `yaml:"temperature" env:"TEMPERATURE"`
}

type Memory struct {
	Capacity       int     `yaml:"capacity" env:"CAPACITY"`
	VectorSize     int     `yaml:"vector_size" env:"VECTOR_SIZE"`
	RecallLimit    int     `yaml:"recall_limit" env:"RECALL_LIMIT"`
	RecallMinScore float32 `yaml:"recall_min_score" env:"RECALL_MIN_SCORE"`
	KeepScore      float32 `yaml:"keep_score" env:"KEEP_SCORE"`
}

type Voice struct {
	Enabled bool     `yaml:"enabled" env:"ENABLED"`
	Command string   `yaml:"command" env:"COMMAND"`
	Args    []string `yaml:"args" env:"ARGS" envSeparator:","`
	Queue   int      `yaml:"queue" env:"QUEUE"`
}

type Storage struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	Path    string `yaml:"path" env:"PATH"`
}

type Telemetry struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type Logging struct {
	Level string `yaml:"level" env:"LEVEL"`
	JSON  bool   `yaml:"json" env:"JSON"`
	Dir   string `yaml:"dir" env:"DIR"`
}

// Default returns the tuned baseline configuration. The simulation constants
// are empirical; they are defaults to perturb, not derived values.
func Default() Config {
	return Config{
		Reservoir: Reservoir{
			InitialSize:         500,
			MaxSize:             2500,
			MinSize:             100,
			LeakRate:            0.2,
			SpectralRadius:      0.95,
			BrainRadius:         40,
			InputSparsity:       0.15,
			ActivityFloor:       0.05,
			HebbianRate:         0.01,
			HebbianInputRate:    0.05,
			EpiphanyCutoff:      0.8,
			EpiphanyQuantile:    0.9,
			NeurogenesisBatch:   5,
			PruneIntervalTicks:  3600,
			GrowthIntervalTicks: 1800,
		},
		Chemistry: Chemistry{
			ReferenceHz:      60,
			BaseFatigueRate:  0.00001,
			CognitiveCost:    0.00005,
			MetabolicCost:    0.00002,
			RestRecoveryRate: 0.001,
			AcutePenalty:     0.02,
			RewardDecayRate:  0.005,
			RewardBandLow:    0.4,
			RewardBandHigh:   0.8,
			RewardBandGain:   0.05,
			StressRiseRate:   0.002,
			StressDecayRate:  0.004,
			LoadStressLimit:  60,
			FailingThreshold: 0.85,
			WakeThreshold:    0.55,
			MemoryFloorCap:   0.6,
			ResilienceScale:  500,
		},
		Trauma: Trauma{
			WindowSize:       1800,
			MidThreshold:     0.5,
			HighThreshold:    0.7,
			LowThreshold:     0.3,
			VeryLowThreshold: 0.2,
			CalmTicks:        600,
		},
		Loop: Loop{
			BaseHz:           20,
			MinHz:            5,
			MaxHz:            60,
			RewardGain:       20,
			StressGain:       10,
			FatigueDrag:      25,
			Smoothing:        0.1,
			TelemetryDivisor: 6,
			ShutdownTimeout:  5 * time.Second,
		},
		Gate: Gate{
			AdmissionMargin:   0.1,
			RewardWeight:      0.3,
			CooldownTicks:     30,
			MinWords:          1,
			MaxWords:          60,
			DriveRewardWeight: 0.8,
			BaseResistance:    0.2,
			FatigueVeto:       0.7,
			RewardOverride:    0.9,
			RequireCompletion: false,
		},
		Cortex: Cortex{
			BaseURL:     "http://localhost:8080/v1",
			Model:       "local",
			Timeout:     30 * time.Second,
			EchoSize:    256,
			MaxTokens:   120,
			Temperature: 0.7,
		},
		Memory: Memory{
			Capacity:       2048,
			VectorSize:     384,
			RecallLimit:    3,
			RecallMinScore: 0.4,
			KeepScore:      0.3,
		},
		Voice: Voice{
			Enabled: false,
			Command: "piper",
			Args:    []string{"--output_raw"},
			Queue:   8,
		},
		Storage: Storage{
			Backend: "sqlite",
			Path:    "somata.db",
		},
		Telemetry: Telemetry{
			Addr: ":9815",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path (optional; empty path skips the file),
// applies environment overrides, and normalizes the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("env overrides: %w", err)
	}
	return Normalize(cfg), nil
}

// Normalize clamps structurally invalid values back to usable defaults.
func Normalize(cfg Config) Config {
	def := Default()
	if cfg.Reservoir.InitialSize <= 0 {
		cfg.Reservoir.InitialSize = def.Reservoir.InitialSize
	}
	if cfg.Reservoir.MinSize <= 0 {
		cfg.Reservoir.MinSize = def.Reservoir.MinSize
	}
	if cfg.Reservoir.MaxSize < cfg.Reservoir.InitialSize {
		cfg.Reservoir.MaxSize = cfg.Reservoir.InitialSize
	}
	if cfg.Reservoir.MinSize > cfg.Reservoir.InitialSize {
		cfg.Reservoir.MinSize = cfg.Reservoir.InitialSize
	}
	if cfg.Reservoir.LeakRate <= 0 || cfg.Reservoir.LeakRate >= 1 {
		cfg.Reservoir.LeakRate = def.Reservoir.LeakRate
	}
	if cfg.Chemistry.ReferenceHz <= 0 {
		cfg.Chemistry.ReferenceHz = def.Chemistry.ReferenceHz
	}
	if cfg.Chemistry.WakeThreshold >= cfg.Chemistry.FailingThreshold {
		cfg.Chemistry.WakeThreshold = def.Chemistry.WakeThreshold
		cfg.Chemistry.FailingThreshold = def.Chemistry.FailingThreshold
	}
	if cfg.Trauma.WindowSize <= 0 {
		cfg.Trauma.WindowSize = def.Trauma.WindowSize
	}
	if cfg.Trauma.CalmTicks <= 0 {
		cfg.Trauma.CalmTicks = def.Trauma.CalmTicks
	}
	if cfg.Loop.MinHz <= 0 {
		cfg.Loop.MinHz = def.Loop.MinHz
	}
	if cfg.Loop.MaxHz < cfg.Loop.MinHz {
		cfg.Loop.MaxHz = def.Loop.MaxHz
	}
	if cfg.Loop.BaseHz < cfg.Loop.MinHz || cfg.Loop.BaseHz > cfg.Loop.MaxHz {
		cfg.Loop.BaseHz = (cfg.Loop.MinHz + cfg.Loop.MaxHz) / 2
	}
	if cfg.Loop.Smoothing <= 0 || cfg.Loop.Smoothing > 1 {
		cfg.Loop.Smoothing = def.Loop.Smoothing
	}
	if cfg.Loop.TelemetryDivisor <= 0 {
		cfg.Loop.TelemetryDivisor = def.Loop.TelemetryDivisor
	}
	if cfg.Loop.ShutdownTimeout <= 0 {
		cfg.Loop.ShutdownTimeout = def.Loop.ShutdownTimeout
	}
	if cfg.Memory.Capacity <= 0 {
		cfg.Memory.Capacity = def.Memory.Capacity
	}
	if cfg.Memory.VectorSize <= 0 {
		cfg.Memory.VectorSize = def.Memory.VectorSize
	}
	if cfg.Cortex.EchoSize <= 0 {
		cfg.Cortex.EchoSize = def.Cortex.EchoSize
	}
	switch cfg.Storage.Backend {
	case "sqlite", "memory":
	default:
		cfg.Storage.Backend = def.Storage.Backend
	}
	return cfg
}
