// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for persisted scores.
type Store struct {
	db *sql.DB
}

// Record is a persisted score with its last update time.
type Record struct {
	Rate      float64
	UpdatedAt time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scores (
			key TEXT PRIMARY KEY,
			rate REAL NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the rate stored under key, reporting absence without error.
func (s *Store) Get(ctx context.Context, key string) (float64, bool, error) {
	var rate float64
	err := s.db.QueryRowContext(ctx, `SELECT rate FROM scores WHERE key = ?`, key).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rate, true, nil
}

// Set stores the rate under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, rate float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (key, rate, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET rate = excluded.rate, updated_at = excluded.updated_at`,
		key, rate, time.Now().Format(time.RFC3339Nano))
	return err
}

// GetRecord returns the stored rate together with its update time.
func (s *Store) GetRecord(ctx context.Context, key string) (Record, bool, error) {
	var rec Record
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT rate, updated_at FROM scores WHERE key = ?`, key).Scan(&rec.Rate, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Record{}, false, err
	}
	rec.UpdatedAt = parsed
	return rec, true, nil
}
