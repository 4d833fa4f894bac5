package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"somata/internal/model"
)

type MemoryStore struct {
	mu        sync.RWMutex
	reservoir *model.ReservoirRecord
	traits    *model.TraitRecord
	events    []model.EventRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	return nil
}

func (s *MemoryStore) SaveReservoir(_ context.Context, rec model.ReservoirRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := copyReservoir(rec)
	s.reservoir = &copied
	return nil
}

func (s *MemoryStore) GetReservoir(_ context.Context) (model.ReservoirRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.reservoir == nil {
		return model.ReservoirRecord{}, false, nil
	}
	return copyReservoir(*s.reservoir), true, nil
}

func (s *MemoryStore) SaveTraits(_ context.Context, rec model.TraitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := rec
	copied.SeedVector = append([]float32(nil), rec.SeedVector...)
	s.traits = &copied
	return nil
}

func (s *MemoryStore) GetTraits(_ context.Context) (model.TraitRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.traits == nil {
		return model.TraitRecord{}, false, nil
	}
	copied := *s.traits
	copied.SeedVector = append([]float32(nil), s.traits.SeedVector...)
	return copied, true, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, event model.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	s.events = append(s.events, event)
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (s *MemoryStore) RecentEvents(_ context.Context, limit int) ([]model.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.EventRecord, 0, n)
	for i := len(s.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func copyReservoir(rec model.ReservoirRecord) model.ReservoirRecord {
	rec.Weights = append([]float32(nil), rec.Weights...)
	rec.InputWeights = append([]float32(nil), rec.InputWeights...)
	rec.State = append([]float32(nil), rec.State...)
	rec.Activity = append([]float32(nil), rec.Activity...)
	rec.Positions = append([][3]float32(nil), rec.Positions...)
	rec.SemanticExposure = append([]float32(nil), rec.SemanticExposure...)
	rec.AuditoryExposure = append([]float32(nil), rec.AuditoryExposure...)
	rec.LimbicExposure = append([]float32(nil), rec.LimbicExposure...)
	return rec
}
