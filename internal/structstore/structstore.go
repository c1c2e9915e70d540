// Package structstore reads the structured durable tier: a SQLite database
// describing the weight partitions the engine has materialized. From the
// reconciler's perspective this tier is a coarse, read-only signal of cache
// presence; only the engine records or drops partitions.
package structstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Partition is one engine-owned weight blob.
type Partition struct {
	ModelID     string
	SizeBytes   int64
	CreatedUnix int64
}

// Store wraps the partitions database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS partitions (
	model_id     TEXT PRIMARY KEY,
	size_bytes   INTEGER NOT NULL DEFAULT 0,
	created_unix INTEGER NOT NULL
);
`

// Open opens (creating if necessary) the partitions database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; the reconciler only reads
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// HasPartition reports whether a partition exists for modelID.
func (s *Store) HasPartition(ctx context.Context, modelID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM partitions WHERE model_id = ?`, modelID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListPartitions returns all partitions ordered by creation time.
func (s *Store) ListPartitions(ctx context.Context) ([]Partition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_id, size_bytes, created_unix FROM partitions ORDER BY created_unix, model_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Partition
	for rows.Next() {
		var p Partition
		if err := rows.Scan(&p.ModelID, &p.SizeBytes, &p.CreatedUnix); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordPartition upserts a partition row. Called by the engine after a
// successful materialize.
func (s *Store) RecordPartition(ctx context.Context, modelID string, sizeBytes int64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO partitions (model_id, size_bytes, created_unix) VALUES (?, ?, ?)
ON CONFLICT(model_id) DO UPDATE SET size_bytes = excluded.size_bytes`,
		modelID, sizeBytes, time.Now().Unix())
	return err
}

// RemovePartition drops the partition reference for modelID. It does not
// touch the underlying bytes. Removing an absent row is a no-op.
func (s *Store) RemovePartition(ctx context.Context, modelID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM partitions WHERE model_id = ?`, modelID)
	return err
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
