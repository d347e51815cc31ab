package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"schoolcoord/internal/infra/persistence/postgres/testutil"
	"schoolcoord/pkg/domain"
)

// fakeBus fans notifications out to every listener, standing in for a
// Postgres server's NOTIFY delivery.
type fakeBus struct {
	ch chan string
}

func newFakeBus() *fakeBus { return &fakeBus{ch: make(chan string, 8)} }

func (b *fakeBus) listen(ctx context.Context, channel string, onNotify func(string)) error {
	if channel != Channel {
		return errors.New("unexpected channel " + channel)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-b.ch:
			onNotify(payload)
		}
	}
}

func newStubStore(t *testing.T, db *sql.DB, opts ...Option) *Store {
	t.Helper()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	store, err := NewStore(context.Background(), "", opts...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestNewStoreEnsuresDocumentsTable(t *testing.T) {
	db, conn := testutil.NewStubDB()
	store := newStubStore(t, db)
	if store.Driver() != Driver || store.Origin() == "" || store.DB() != db {
		t.Fatalf("unexpected store identity")
	}
	var sawDDL bool
	for _, stmt := range conn.Statements() {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS documents") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected documents DDL, got %v", conn.Statements())
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestStoreSaveLoadAndNotify(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	fixed := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	store := newStubStore(t, db, WithOrigin("origin-1"), WithClock(func() time.Time { return fixed }))

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected absent document, ok=%v err=%v", ok, err)
	}
	reg, _ := domain.NewRegistry().With(domain.SchoolA, domain.School{AnimatorCount: 1, StudentCount: 9})
	if err := store.Save(ctx, reg); err != nil {
		t.Fatalf("save: %v", err)
	}
	reg, _ = reg.With(domain.SchoolB, domain.School{AnimatorCount: 4})
	if err := store.Save(ctx, reg); err != nil {
		t.Fatalf("save: %v", err)
	}
	rows := conn.Rows("documents")
	if len(rows) != 1 || rows[0]["id"] != DocumentID || rows[0]["origin"] != "origin-1" {
		t.Fatalf("unexpected rows %v", rows)
	}
	var notifies int
	for _, stmt := range conn.Statements() {
		if strings.Contains(stmt, "pg_notify") {
			notifies++
		}
	}
	if notifies != 2 {
		t.Fatalf("expected a notify per save, got %d", notifies)
	}
	got, ok, err := store.Load(ctx)
	if err != nil || !ok || got != reg {
		t.Fatalf("load: %+v ok=%v err=%v", got.Statuses(), ok, err)
	}
}

func TestStoreSaveFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		setup func(*testutil.StubConn)
	}{
		{name: "begin", setup: func(c *testutil.StubConn) { c.FailBegin = true }},
		{name: "upsert", setup: func(c *testutil.StubConn) { c.FailTables = map[string]bool{"documents": true} }},
		{name: "commit", setup: func(c *testutil.StubConn) { c.FailCommit = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, conn := testutil.NewStubDB()
			store := newStubStore(t, db)
			tc.setup(conn)
			err := store.Save(ctx, domain.NewRegistry())
			var pe *domain.PersistenceError
			if !errors.As(err, &pe) || pe.Op != "save" || pe.Driver != Driver {
				t.Fatalf("expected wrapped save error, got %v", err)
			}
		})
	}
}

func TestStoreLoadFailureIsWrapped(t *testing.T) {
	db, conn := testutil.NewStubDB()
	store := newStubStore(t, db)
	conn.FailTables = map[string]bool{"documents": true}
	_, _, err := store.Load(context.Background())
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) || pe.Op != "load" {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
}

func TestStoreSubscribeSkipsOwnOrigin(t *testing.T) {
	ctx := context.Background()
	db, _ := testutil.NewStubDB()
	bus := newFakeBus()
	local := newStubStore(t, db, WithOrigin("local"), WithListener(bus.listen))
	peer := newStubStore(t, db, WithOrigin("peer"))

	got := make(chan domain.Registry, 4)
	unsub, err := local.Subscribe(ctx, func(reg domain.Registry) { got <- reg })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if err := local.Save(ctx, domain.NewRegistry()); err != nil {
		t.Fatalf("local save: %v", err)
	}
	bus.ch <- local.Origin()
	want, _ := domain.NewRegistry().With(domain.SchoolC, domain.School{AnimatorCount: 6, StudentCount: 8})
	if err := peer.Save(ctx, want); err != nil {
		t.Fatalf("peer save: %v", err)
	}
	bus.ch <- peer.Origin()

	select {
	case reg := <-got:
		if reg != want {
			t.Fatalf("got %+v, want peer snapshot", reg.Statuses())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("peer notification not delivered")
	}
	unsub()
	select {
	case reg := <-got:
		t.Fatalf("unexpected extra delivery %+v", reg.Statuses())
	default:
	}
}
