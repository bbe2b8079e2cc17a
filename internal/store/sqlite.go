package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/paths"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const busyTimeoutMS = 10_000

// SQLite is a Store backed by a single options table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path, applies the
// connection pragmas and runs pending migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite store path is required")
	}
	if path != MemoryDSN {
		if err := paths.EnsureDir(filepath.Dir(path), 0); err != nil {
			return nil, errors.Wrap(err, "creating store directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite store")
	}
	// Every connection to :memory: is a separate database.
	if path == MemoryDSN {
		db.SetMaxOpenConns(1)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := newMigrationRunner(db).run(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrating sqlite store")
	}
	return &SQLite{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return errors.Wrapf(err, "%s", p)
		}
	}
	return nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) (any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %s", key)
	}
	v, err := decodeValue([]byte(raw))
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set implements Store.
func (s *SQLite) Set(ctx context.Context, key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().Unix(),
	)
	return errors.Wrapf(err, "writing %s", key)
}

// Remove implements Store.
func (s *SQLite) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE name = ?`, key)
	return errors.Wrapf(err, "removing %s", key)
}

// ListAll implements Store.
func (s *SQLite) ListAll(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM options WHERE substr(name, 1, ?) = ? ORDER BY name`,
		len(CustomizationPrefix), CustomizationPrefix,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing customization values")
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, errors.Wrap(err, "scanning option row")
		}
		name, _ := customizationName(key)
		v, err := decodeValue([]byte(raw))
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, errors.Wrap(rows.Err(), "iterating option rows")
}

// Close implements Backend.
func (s *SQLite) Close() error {
	return s.db.Close()
}
