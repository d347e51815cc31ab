// Package sqlite persists the registry snapshot in a local SQLite key/value
// table using the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"schoolcoord/pkg/domain"
)

const (
	// Driver is the name reported in logs and metrics.
	Driver = "sqlite"
	// SnapshotKey is the row key holding the registry snapshot.
	SnapshotKey = "coordination-schools"
	// DefaultPath is used when no path is configured.
	DefaultPath = "schoolcoord.db"
)

// Store persists the registry snapshot to a single SQLite row as JSON.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

var _ domain.PersistenceAdapter = (*Store)(nil)

// NewStore opens (creating if needed) the SQLite database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Driver() string { return Driver }

// Load reads the snapshot row. A missing row reports absent.
func (s *Store) Load(ctx context.Context) (domain.Registry, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, SnapshotKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Registry{}, false, nil
	}
	if err != nil {
		return domain.Registry{}, false, domain.WrapPersistence(Driver, "load", fmt.Errorf("select snapshot: %w", err))
	}
	var reg domain.Registry
	if err := json.Unmarshal(payload, &reg); err != nil {
		return domain.Registry{}, false, domain.WrapPersistence(Driver, "load", err)
	}
	return reg, true, nil
}

// Save upserts the snapshot row.
func (s *Store) Save(ctx context.Context, reg domain.Registry) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return domain.WrapPersistence(Driver, "save", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(key,value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		SnapshotKey, data); err != nil {
		return domain.WrapPersistence(Driver, "save", fmt.Errorf("upsert snapshot: %w", err))
	}
	return nil
}

// Subscribe is not supported; SQLite has no cross-process change feed.
func (s *Store) Subscribe(context.Context, func(domain.Registry)) (domain.Unsubscribe, error) {
	return nil, domain.ErrSubscribeUnsupported
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
