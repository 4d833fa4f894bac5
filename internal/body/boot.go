package body

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
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

// Body is the fully assembled organism: the daemon plus the supervised
// organs around it.
type Body struct {
	cfg    config.Config
	logger *slog.Logger

	daemon  *Daemon
	store   storage.Store
	worker  *cortex.Worker
	speaker *voice.Speaker
	server  *telemetry.Server
	monitor *senses.HardwareMonitor
}

// Boot loads what survived the previous session, folds the genome into
// the configuration, and wires every organ. Nothing runs yet.
func Boot(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Body, error) {
	store, err := storage.NewStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	traits := loadTraits(ctx, store, logger)
	cfg = genome.Apply(cfg, traits)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	engine := reservoir.New(cfg.Reservoir, rng)
	if rec, ok, err := store.GetReservoir(ctx); err != nil {
		logger.Warn("stored reservoir unreadable, starting fresh", "error", err)
	} else if ok {
		if err := engine.Restore(rec); err != nil {
			logger.Warn("stored reservoir invalid, starting fresh", "error", err)
			engine = reservoir.New(cfg.Reservoir, rng)
		} else {
			logger.Info("reservoir restored", "neurons", engine.Size())
		}
	}
	// The previous life's final pattern is the first thing this one feels.
	engine.InjectEmbedding(traits.SeedVector)

	worker := cortex.NewWorker(cortex.NewOpenAIClient(cfg.Cortex), logger)
	speaker := voice.New(cfg.Voice, logger)
	slot := telemetry.NewSlot()
	metrics := telemetry.NewMetrics()
	server := telemetry.NewServer(cfg.Telemetry.Addr, slot, metrics, logger)

	monitor, err := senses.NewHardwareMonitor()
	if err != nil {
		logger.Warn("proprioception unavailable", "error", err)
		monitor = nil
	}

	daemon := NewDaemon(cfg, Deps{
		Engine:      engine,
		Chemistry:   chemistry.New(cfg.Chemistry),
		Trauma:      trauma.New(cfg.Trauma),
		Expression:  gate.NewExpression(cfg.Gate),
		Hippocampus: memory.New(cfg.Memory),
		Worker:      worker,
		Speaker:     speaker,
		Store:       store,
		Slot:        slot,
		Metrics:     metrics,
		Traits:      traits,
		RNG:         rng,
	}, logger)

	return &Body{
		cfg:     cfg,
		logger:  logger,
		daemon:  daemon,
		store:   store,
		worker:  worker,
		speaker: speaker,
		server:  server,
		monitor: monitor,
	}, nil
}

// Daemon exposes the tick loop, mainly for feeding stimuli in.
func (b *Body) Daemon() *Daemon { return b.daemon }

// Run starts the organs under supervision, runs the tick loop until the
// context ends, then stops everything in reverse order.
func (b *Body) Run(ctx context.Context) error {
	sup := NewSupervisor(SupervisorPolicy{}, b.logger)

	if err := sup.Start("cortex", RestartAlways, func(ctx context.Context) error {
		b.worker.Run(ctx)
		return nil
	}); err != nil {
		return err
	}
	if b.cfg.Voice.Enabled {
		if err := sup.Start("voice", RestartAlways, func(ctx context.Context) error {
			b.speaker.Run(ctx)
			return nil
		}); err != nil {
			return err
		}
	}
	if b.monitor != nil {
		if err := sup.Start("proprioception", RestartAlways, func(ctx context.Context) error {
			b.monitor.Run(ctx, b.daemon.Hardware())
			return nil
		}); err != nil {
			return err
		}
	}
	if err := sup.Start("telemetry", RestartOnFailure, func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = b.server.Shutdown(shutdownCtx)
		}()
		return b.server.ListenAndServe()
	}); err != nil {
		return err
	}

	err := b.daemon.Run(ctx)

	sup.StopAll()
	if closeErr := storage.CloseIfSupported(b.store); closeErr != nil {
		b.logger.Warn("storage close failed", "error", closeErr)
	}
	return err
}

// loadTraits is deliberately forgiving: a missing or corrupt record
// founds a new lineage instead of aborting boot.
func loadTraits(ctx context.Context, store storage.Store, logger *slog.Logger) model.TraitRecord {
	rec, ok, err := store.GetTraits(ctx)
	if err != nil {
		logger.Warn("stored traits unreadable, founding a new lineage", "error", err)
		return genome.Default()
	}
	if !ok {
		logger.Info("no inherited traits, founding a new lineage")
		return genome.Default()
	}
	return genome.Sanitize(rec)
}
