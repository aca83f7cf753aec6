// Package sqlitekit is the shared SQLite-open/transaction helper used by
// every repository (spec §4.11: "All repositories share: bounded
// per-operation connection ... WAL-mode storage, auto-commit on success,
// rollback on exception"). It generalizes the open/configure/ping
// sequence that both internal/database/database.go (teacher) and
// original_source's aragora/ranking/database.py EloDatabase repeat per
// store into one place, since internal/rating and internal/repo each
// need an identical store shape with only the schema differing.
package sqlitekit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a pooled *sql.DB opened in WAL mode. Go's database/sql pool
// already hands out connections safely across goroutines, so unlike
// Python's sqlite3 module there's no need to open a fresh connection per
// call; WAL mode alone is enough to keep concurrent readers unblocked by
// the writer.
type DB struct {
	SQL *sql.DB
}

// Open creates the parent directory if needed, opens dbPath in WAL mode,
// and applies schema (a `CREATE TABLE IF NOT EXISTS ...` batch).
func Open(dbPath, schema string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlitekit: create data dir: %w", err)
		}
	}

	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitekit: open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("sqlitekit: ping db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlitekit: apply schema: %w", err)
	}

	return &DB{SQL: sqlDB}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.SQL.Close()
}

// FetchAll runs query and returns the resulting rows; the caller must
// Close() them.
func (d *DB) FetchAll(query string, args ...any) (*sql.Rows, error) {
	return d.SQL.Query(query, args...)
}

// ExecuteWrite runs a single write statement in auto-commit mode.
func (d *DB) ExecuteWrite(query string, args ...any) error {
	_, err := d.SQL.Exec(query, args...)
	return err
}

// Transaction runs fn within a SQL transaction, committing on success
// and rolling back on error or panic.
func (d *DB) Transaction(fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.SQL.Begin()
	if err != nil {
		return fmt.Errorf("sqlitekit: begin tx: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
