// Package store owns the SQLite schema and all writes. One table per game
// release (resolved through the gamedef allow-list), batched inserts through
// a prepared statement inside the caller's transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/formdex/internal/gamedef"
)

// Row is one persisted record: plugin file name, 6-hex-char formid, label.
type Row struct {
	Plugin string
	FormID string
	Entry  string
}

// DBTX is the common surface of *sql.DB and *sql.Tx. Batch operations take it
// so the extractors decide transaction scope.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store wraps the single writer connection for a run.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if missing) the database at path and applies the
// write-side tuning. WAL keeps concurrent readers of the same file from
// blocking on the writer for the duration of a run.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	// A single writer connection; the pipeline is strictly sequential.
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path}, nil
}

// DB exposes the underlying connection for read-side callers.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// InitSchema creates the release's table and its two indexes if they do not
// exist. Safe to call on every run.
func (s *Store) InitSchema(ctx context.Context, release gamedef.Release) error {
	table, err := gamedef.TableName(release)
	if err != nil {
		return err
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plugin TEXT NOT NULL,
		formid TEXT NOT NULL,
		entry TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_plugin ON %[1]s(plugin);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_formid ON %[1]s(formid);
	`, table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema for %s: %w", release, err)
	}
	return nil
}

// Optimize reclaims space after a run. Purely hygiene; callers skip it on
// cancellation or failure.
func (s *Store) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// InsertBatch writes rows through one prepared statement, one round trip of
// preparation per batch regardless of row count. Transaction scope belongs to
// the caller.
func InsertBatch(ctx context.Context, dbtx DBTX, release gamedef.Release, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	table, err := gamedef.TableName(release)
	if err != nil {
		return err
	}
	stmt, err := dbtx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s (plugin, formid, entry) VALUES (?, ?, ?)", table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Plugin, r.FormID, r.Entry); err != nil {
			return fmt.Errorf("insert %s %s: %w", r.Plugin, r.FormID, err)
		}
	}
	return nil
}

// InsertRecord is the unbatched single-row variant.
func InsertRecord(ctx context.Context, dbtx DBTX, release gamedef.Release, row Row) error {
	table, err := gamedef.TableName(release)
	if err != nil {
		return err
	}
	_, err = dbtx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (plugin, formid, entry) VALUES (?, ?, ?)", table),
		row.Plugin, row.FormID, row.Entry)
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", row.Plugin, row.FormID, err)
	}
	return nil
}

// ClearPluginEntries deletes every row for pluginName. Clearing a plugin with
// no rows is a normal no-op.
func ClearPluginEntries(ctx context.Context, dbtx DBTX, release gamedef.Release, pluginName string) error {
	table, err := gamedef.TableName(release)
	if err != nil {
		return err
	}
	_, err = dbtx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE plugin = ?", table), pluginName)
	if err != nil {
		return fmt.Errorf("clear entries for %s: %w", pluginName, err)
	}
	return nil
}
