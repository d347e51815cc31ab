// Package postgres stores the registry document in a Postgres table and
// announces every write on a LISTEN/NOTIFY channel so that other processes
// can follow changes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"go.uber.org/zap"

	"schoolcoord/pkg/domain"
)

const (
	// Driver is the name reported in logs and metrics.
	Driver = "postgres"
	// DocumentID is the primary key of the registry document.
	DocumentID = "coordination/schools"
	// Channel is the NOTIFY channel carrying the writer origin.
	Channel = "schoolcoord_documents"

	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/schoolcoord?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// ListenFunc blocks until ctx is done, calling onNotify with the payload of
// each notification received on channel.
type ListenFunc func(ctx context.Context, channel string, onNotify func(payload string)) error

// Option configures a Store.
type Option func(*Store)

// WithOrigin sets the writer identity sent with notifications.
func WithOrigin(origin string) Option { return func(s *Store) { s.origin = origin } }

// WithLogger sets the logger used by subscriptions.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithListener replaces the LISTEN implementation.
func WithListener(fn ListenFunc) Option { return func(s *Store) { s.listen = fn } }

// WithClock overrides the timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// Store implements domain.PersistenceAdapter on a Postgres documents table.
type Store struct {
	db     *sql.DB
	dsn    string
	origin string
	now    func() time.Time
	logger *zap.Logger
	listen ListenFunc
}

var _ domain.PersistenceAdapter = (*Store)(nil)

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the documents table exists.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureDocumentsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{
		db:     db,
		dsn:    dsn,
		origin: uuid.NewString(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.listen == nil {
		s.listen = PGXListener(dsn, s.logger)
	}
	return s, nil
}

func ensureDocumentsTable(ctx context.Context, db *sql.DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *Store) Driver() string { return Driver }

// Origin returns the writer identity sent with notifications.
func (s *Store) Origin() string { return s.origin }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Load(ctx context.Context) (domain.Registry, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM documents WHERE id = $1`, DocumentID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Registry{}, false, nil
	}
	if err != nil {
		return domain.Registry{}, false, domain.WrapPersistence(Driver, "load", fmt.Errorf("select document: %w", err))
	}
	doc, ok, err := domain.DecodeDocument(payload)
	if err != nil {
		return domain.Registry{}, false, domain.WrapPersistence(Driver, "load", err)
	}
	return doc.Schools, ok, nil
}

// Save upserts the document and notifies listeners in the same transaction,
// so the notification is delivered only if the write commits.
func (s *Store) Save(ctx context.Context, reg domain.Registry) error {
	now := s.now().UTC()
	payload, err := domain.EncodeDocument(reg, s.origin, now)
	if err != nil {
		return domain.WrapPersistence(Driver, "save", err)
	}
	if err := s.persist(ctx, payload, now); err != nil {
		return domain.WrapPersistence(Driver, "save", err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, payload []byte, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents(id,payload,origin,updated_at) VALUES($1,$2,$3,$4) ON CONFLICT(id) DO UPDATE SET payload=EXCLUDED.payload, origin=EXCLUDED.origin, updated_at=EXCLUDED.updated_at`,
		DocumentID, string(payload), s.origin, now); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, s.origin); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Subscribe listens for notifications from other origins and reloads the
// document for each one.
func (s *Store) Subscribe(ctx context.Context, onChange func(domain.Registry)) (domain.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := s.listen(ctx, Channel, func(payload string) {
			if payload == s.origin {
				return
			}
			reg, ok, err := s.Load(ctx)
			if err != nil {
				s.logger.Warn("reload notified document", zap.String("origin", payload), zap.Error(err))
				return
			}
			if ok {
				onChange(reg)
			}
		})
		if err != nil && ctx.Err() == nil {
			s.logger.Error("document listener stopped", zap.Error(err))
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
