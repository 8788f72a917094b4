// Package store persists small settings, currently just the speed
// preference, in a SQLite database so they survive restarts.
package store

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	// registers the pure-Go sqlite driver
	_ "modernc.org/sqlite"
)

const speedKey = "speed"

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// A Store is a tiny key/value settings database.
type Store struct {
	db     *sql.DB
	logger golog.Logger
}

// Open opens (creating if needed) the settings database at path.
func Open(ctx context.Context, path string, logger golog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open settings store %q", path)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		err = errors.Wrapf(err, "cannot initialize settings store %q", path)
		return nil, multierr.Combine(err, db.Close())
	}
	return &Store{db: db, logger: logger}, nil
}

// LoadSpeed returns the persisted speed clamped to [min, max]. A
// missing row, a legacy store without the settings table, or an
// unparsable value all fall back to def; loading never fails the
// caller.
func (s *Store) LoadSpeed(ctx context.Context, def, min, max int) int {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, speedKey).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warnw("cannot load persisted speed, using default", "error", err, "default", def)
		}
		return clamp(def, min, max)
	}
	pct, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Warnw("persisted speed is not a number, using default", "value", raw, "default", def)
		return clamp(def, min, max)
	}
	return clamp(pct, min, max)
}

// SaveSpeed upserts the speed preference.
func (s *Store) SaveSpeed(ctx context.Context, pct int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		speedKey, strconv.Itoa(pct))
	return errors.Wrap(err, "cannot save speed")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
