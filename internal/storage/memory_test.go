package storage

import (
	"context"
	"testing"

	"somata/internal/model"
)

func TestMemoryStoreReservoirRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, ok, err := store.GetReservoir(ctx); err != nil || ok {
		t.Fatalf("empty store should miss: ok=%v err=%v", ok, err)
	}

	input := model.ReservoirRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		Size:            2,
		LeakRate:        0.2,
		Weights:         []float32{0, 0.5, -0.5, 0},
		InputWeights:    []float32{1, 0},
		State:           []float32{0.1, -0.1},
		Activity:        []float32{0.3, 0.4},
		Positions:       [][3]float32{{1, 2, 3}, {-1, -2, -3}},
	}
	if err := store.SaveReservoir(ctx, input); err != nil {
		t.Fatalf("save: %v", err)
	}

	output, ok, err := store.GetReservoir(ctx)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if output.Size != 2 || output.Weights[1] != 0.5 {
		t.Fatalf("round trip mangled record: %+v", output)
	}

	// Stored records must not alias caller buffers.
	input.Weights[0] = 99
	output.State[0] = 99
	again, _, _ := store.GetReservoir(ctx)
	if again.Weights[0] == 99 || again.State[0] == 99 {
		t.Fatal("store aliases caller slices")
	}
}

func TestMemoryStoreTraitsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.TraitRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		Generation:      4,
		Curiosity:       0.8,
		SeedVector:      []float32{0.1, 0.2},
	}
	if err := store.SaveTraits(ctx, input); err != nil {
		t.Fatalf("save: %v", err)
	}
	output, ok, err := store.GetTraits(ctx)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if output.Generation != 4 || output.Curiosity != 0.8 {
		t.Fatalf("round trip mangled traits: %+v", output)
	}
}

func TestMemoryStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for i := 0; i < 5; i++ {
		err := store.AppendEvent(ctx, model.EventRecord{
			VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
			Voice:           model.VoiceSystem,
			Text:            "event",
			Tick:            uint64(i),
			CreatedMS:       int64(1000 + i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := store.RecentEvents(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len=%d want 3", len(events))
	}
	if events[0].Tick != 4 {
		t.Fatalf("newest first expected, got tick %d", events[0].Tick)
	}
	for _, event := range events {
		if event.ID == "" {
			t.Fatal("append should assign an id")
		}
	}
}
