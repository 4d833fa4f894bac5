package storage

import (
	"errors"
	"testing"

	"somata/internal/model"
)

func TestReservoirCodecRoundTrip(t *testing.T) {
	input := model.ReservoirRecord{
		Size:         2,
		LeakRate:     0.25,
		Weights:      []float32{0, 0.5, -0.5, 0},
		InputWeights: []float32{1, -1},
		State:        []float32{0.1, 0.2},
		Activity:     []float32{0.3, 0.4},
		Positions:    [][3]float32{{1, 0, 0}, {0, 1, 0}},
	}

	data, err := EncodeReservoir(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeReservoir(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output.Size != input.Size || output.LeakRate != input.LeakRate {
		t.Fatalf("scalars mangled: %+v", output)
	}
	if output.Weights[1] != 0.5 || output.Positions[1][1] != 1 {
		t.Fatalf("arrays mangled: %+v", output)
	}
	if output.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("encode should stamp the version, got %d", output.SchemaVersion)
	}
}

func TestTraitsCodecRoundTrip(t *testing.T) {
	input := model.TraitRecord{
		Generation: 7,
		Curiosity:  0.9,
		Stoicism:   0.2,
		SeedVector: []float32{0.5},
	}
	data, err := EncodeTraits(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeTraits(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output.Generation != 7 || output.Curiosity != 0.9 {
		t.Fatalf("traits mangled: %+v", output)
	}
}

func TestEventCodecRoundTrip(t *testing.T) {
	input := model.EventRecord{
		ID:        "e1",
		Voice:     model.VoiceChem,
		Text:      "stress spiked",
		Tick:      42,
		CreatedMS: 1234,
	}
	data, err := EncodeEvent(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output != (model.EventRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "e1",
		Voice:           model.VoiceChem,
		Text:            "stress spiked",
		Tick:            42,
		CreatedMS:       1234,
	}) {
		t.Fatalf("event mangled: %+v", output)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	rec := model.ReservoirRecord{Size: 1, Weights: []float32{0}}
	data, err := EncodeReservoir(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Corrupt the stamped version.
	data = []byte(`{"schema_version":99,"codec_version":1,"size":1,"weights":[0]}`)
	if _, err := DecodeReservoir(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("want ErrVersionMismatch, got %v", err)
	}

	if _, err := DecodeTraits([]byte(`{"schema_version":0}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("want ErrVersionMismatch, got %v", err)
	}
	if _, err := DecodeEvent([]byte(`{"codec_version":2,"schema_version":1}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("want ErrVersionMismatch, got %v", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := DecodeReservoir([]byte("{")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if _, err := DecodeEvent([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
