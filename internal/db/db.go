// Package db provides SQLite-backed persistence for every entity in §3,
// following the reference service's single-writer connection pattern:
// one *sql.DB, one open connection, WAL journal mode.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Database wraps the shared connection pool.
type Database struct {
	DB *sql.DB
}

// New opens (creating parent directories as needed) the SQLite file at path.
func New(path string) (*Database, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single writer avoids SQLITE_BUSY under the write-heavy ledger
	// workload; reads and writes share the one connection, matching the
	// reference service's posture.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Database{DB: sqlDB}, nil
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	return d.DB.Close()
}
