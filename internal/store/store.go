// Package store implements component B of spec.md: a single embedded
// relational store (SQLite via mattn/go-sqlite3, accessed through
// sqlx) backing typed repositories for tenants, devices, session
// metadata, outbox, inbox, events, webhooks, webhook logs, the dead
// letter queue, the audit log, device locks, and the LID↔phone map.
//
// Schema evolution is forward-only: a migrations table records applied
// versions and the migrator applies every version strictly greater than
// the current max, in ascending order, each inside its own transaction.
package store

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the embedded database handle. All repository methods in
// this package are defined as methods on *Store so callers use a single
// handle (e.g. st.CreateTenant(...), st.FindDeviceByTenant(...)).
type Store struct {
	DB *sqlx.DB
}

// Open opens (creating if needed) the SQLite database at path, enables
// WAL journaling for concurrent readers, enforces foreign keys, and
// runs all pending migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite: serialize writers through one connection

	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping verifies the store is responsive, used by the /ready handler.
func (s *Store) Ping() error {
	return s.DB.Ping()
}

type migration struct {
	version int
	name    string
	sql     string
}

func (s *Store) migrate() error {
	if _, err := s.DB.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("store: migrations table: %w", err)
	}

	var maxVersion int
	if err := s.DB.Get(&maxVersion, `SELECT COALESCE(MAX(version), 0) FROM migrations`); err != nil {
		return fmt.Errorf("store: read migration watermark: %w", err)
	}

	pending := make([]migration, 0, len(migrations))
	for _, m := range migrations {
		if m.version > maxVersion {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })

	for _, m := range pending {
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("store: migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(m migration) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO migrations (version, name, applied_at) VALUES (?, ?, strftime('%s','now'))`, m.version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}

// ErrNotFound is returned by find-by-id style methods when no row
// matches. Handlers translate it to a not-found apierr.
var ErrNotFound = sql.ErrNoRows
