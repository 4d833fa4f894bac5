package storage

import (
	"context"

	"somata/internal/model"
)

// Store persists the three things that survive a session: the substrate,
// the genome, and the narrative journal. Reservoir and traits are
// singletons; events are append-only.
type Store interface {
	Init(ctx context.Context) error
	SaveReservoir(ctx context.Context, rec model.ReservoirRecord) error
	GetReservoir(ctx context.Context) (model.ReservoirRecord, bool, error)
	SaveTraits(ctx context.Context, rec model.TraitRecord) error
	GetTraits(ctx context.Context) (model.TraitRecord, bool, error)
	AppendEvent(ctx context.Context, event model.EventRecord) error
	RecentEvents(ctx context.Context, limit int) ([]model.EventRecord, error)
}
