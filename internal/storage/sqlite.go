package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"somata/internal/model"

	_ "modernc.org/sqlite"
)

// Singleton rows share one table with a fixed key per kind.
const (
	reservoirKey = "brain"
	traitsKey    = "genome"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveReservoir(ctx context.Context, rec model.ReservoirRecord) error {
	payload, err := EncodeReservoir(rec)
	if err != nil {
		return err
	}
	return s.upsertSingleton(ctx, reservoirKey, payload)
}

func (s *SQLiteStore) GetReservoir(ctx context.Context) (model.ReservoirRecord, bool, error) {
	payload, ok, err := s.getSingleton(ctx, reservoirKey)
	if err != nil || !ok {
		return model.ReservoirRecord{}, false, err
	}
	rec, err := DecodeReservoir(payload)
	if err != nil {
		return model.ReservoirRecord{}, false, fmt.Errorf("decode reservoir: %w", err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) SaveTraits(ctx context.Context, rec model.TraitRecord) error {
	payload, err := EncodeTraits(rec)
	if err != nil {
		return err
	}
	return s.upsertSingleton(ctx, traitsKey, payload)
}

func (s *SQLiteStore) GetTraits(ctx context.Context) (model.TraitRecord, bool, error) {
	payload, ok, err := s.getSingleton(ctx, traitsKey)
	if err != nil || !ok {
		return model.TraitRecord{}, false, err
	}
	rec, err := DecodeTraits(payload)
	if err != nil {
		return model.TraitRecord{}, false, fmt.Errorf("decode traits: %w", err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, event model.EventRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	payload, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO events (id, voice, tick, created_ms, payload)
		VALUES (?, ?, ?, ?, ?)
	`, event.ID, string(event.Voice), event.Tick, event.CreatedMS, payload)
	return err
}

func (s *SQLiteStore) RecentEvents(ctx context.Context, limit int) ([]model.EventRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.QueryContext(ctx, `
		SELECT payload FROM events ORDER BY created_ms DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.EventRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		event, err := DecodeEvent(payload)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) upsertSingleton(ctx context.Context, key string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO singletons (key, payload)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload
	`, key, payload)
	return err
}

func (s *SQLiteStore) getSingleton(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM singletons WHERE key = ?`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS singletons (
			key TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			voice TEXT NOT NULL,
			tick INTEGER NOT NULL,
			created_ms INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS events_created ON events (created_ms);
	`)
	return err
}
