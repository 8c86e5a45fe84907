// Package db persists conversions, their chunks, and provider settings in
// a local sqlite database. Every operation runs behind one coarse lock so
// a chunk update and its aggregate recompute are never observed
// half-applied by a concurrent reader.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

type Config struct {
	Path string `yaml:"path"`
}

type DB struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	text TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'queued',
	total_chunks INTEGER NOT NULL DEFAULT 0,
	processed_chunks INTEGER NOT NULL DEFAULT 0,
	last_played_index INTEGER NOT NULL DEFAULT -1,
	speaker TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL DEFAULT '',
	estimated_duration REAL NOT NULL DEFAULT 0.0,
	total_duration REAL NOT NULL DEFAULT 0.0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversion_id TEXT NOT NULL,
	seq_num INTEGER NOT NULL,
	text TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	audio_file TEXT NOT NULL DEFAULT '',
	duration REAL NOT NULL DEFAULT 0.0,
	UNIQUE (conversion_id, seq_num)
);

CREATE TABLE IF NOT EXISTS settings (
	category TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func New(ctx context.Context, cfg *Config) (*DB, error) {
	pool, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// modernc sqlite handles one writer at a time anyway, and the store is
	// serialized behind d.mu. A single connection keeps it simple.
	pool.SetMaxOpenConns(1)

	if err := pool.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := pool.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{db: pool}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
