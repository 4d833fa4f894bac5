package storage

import (
	"encoding/json"
	"errors"

	"somata/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeReservoir(rec model.ReservoirRecord) ([]byte, error) {
	rec.SchemaVersion = CurrentSchemaVersion
	rec.CodecVersion = CurrentCodecVersion
	return json.Marshal(rec)
}

func DecodeReservoir(data []byte) (model.ReservoirRecord, error) {
	var rec model.ReservoirRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.ReservoirRecord{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return model.ReservoirRecord{}, err
	}
	return rec, nil
}

func EncodeTraits(rec model.TraitRecord) ([]byte, error) {
	rec.SchemaVersion = CurrentSchemaVersion
	rec.CodecVersion = CurrentCodecVersion
	return json.Marshal(rec)
}

func DecodeTraits(data []byte) (model.TraitRecord, error) {
	var rec model.TraitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.TraitRecord{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return model.TraitRecord{}, err
	}
	return rec, nil
}

func EncodeEvent(event model.EventRecord) ([]byte, error) {
	event.SchemaVersion = CurrentSchemaVersion
	event.CodecVersion = CurrentCodecVersion
	return json.Marshal(event)
}

func DecodeEvent(data []byte) (model.EventRecord, error) {
	var event model.EventRecord
	if err := json.Unmarshal(data, &event); err != nil {
		return model.EventRecord{}, err
	}
	if err := checkVersion(event.VersionedRecord); err != nil {
		return model.EventRecord{}, err
	}
	return event, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
