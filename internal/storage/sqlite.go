package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteSlot stores blobs in a local SQLite database, one row per slot name.
// SQLite's own locking makes concurrent access from multiple processes safe;
// the last writer to the slot wins.
type SQLiteSlot struct {
	db   *sql.DB
	name string
}

// NewSQLiteSlot opens (creating if necessary) the database at path and
// prepares the slot with the given name. Schema migrations are embedded and
// applied on open.
func NewSQLiteSlot(path, name string) (*SQLiteSlot, error) {
	if path == "" || name == "" {
		return nil, fmt.Errorf("storage: sqlite path and slot name are required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY churn under write-through load.
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteSlot{db: db, name: name}, nil
}

// migrateSQLite applies all pending embedded migrations.
func migrateSQLite(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("storage: create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("storage: create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("storage: create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: run migrations: %w", err)
	}
	return nil
}

// Load reads the blob for this slot.
func (s *SQLiteSlot) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM slots WHERE name = ?`, s.name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load slot %q: %w", s.name, err)
	}
	return blob, nil
}

// Save replaces the blob for this slot.
func (s *SQLiteSlot) Save(ctx context.Context, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slots (name, blob, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		s.name, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: save slot %q: %w", s.name, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}
