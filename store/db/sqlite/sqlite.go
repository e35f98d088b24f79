package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/nova/internal/profile"
	"github.com/hrygo/nova/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}
	if profile.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(profile.DSN), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	sqliteDB, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	sqliteDB.SetMaxOpenConns(1)

	d := &DB{db: sqliteDB, profile: profile}
	if err := d.configure(); err != nil {
		_ = sqliteDB.Close()
		return nil, err
	}
	if err := d.migrate(); err != nil {
		_ = sqliteDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := d.db.Exec(p); err != nil {
			return errors.Wrapf(err, "sqlite pragma %q", p)
		}
	}
	return nil
}

func (d *DB) migrate() error {
	stmt := `CREATE TABLE IF NOT EXISTS kv_entry (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_ts INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	)`
	if _, err := d.db.Exec(stmt); err != nil {
		return errors.Wrap(err, "failed to create kv_entry table")
	}
	return nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := d.db.QueryRowContext(ctx, `SELECT value FROM kv_entry WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to get %s", key)
	}
	return value, nil
}

func (d *DB) Set(ctx context.Context, key string, value []byte) error {
	stmt := `INSERT INTO kv_entry (key, value, updated_ts) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_ts = excluded.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt, key, value); err != nil {
		return errors.Wrapf(err, "failed to set %s", key)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM kv_entry WHERE key = ?`, key); err != nil {
		return errors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

func (d *DB) Usage(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := d.db.QueryRowContext(ctx, `SELECT SUM(LENGTH(key) + LENGTH(value)) FROM kv_entry`).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "failed to compute usage")
	}
	return total.Int64, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

var _ store.Driver = (*DB)(nil)
