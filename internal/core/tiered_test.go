package core

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"schoolcoord/internal/blob"
	"schoolcoord/internal/infra/persistence/blobdoc"
	"schoolcoord/internal/infra/persistence/memory"
	"schoolcoord/pkg/domain"
)

func TestTieredAdapter_LocalOnly(t *testing.T) {
	local := memory.NewStore()
	tiered := NewTieredAdapter(local, nil, nil)
	if tiered.Driver() != memory.Driver {
		t.Fatalf("driver = %s", tiered.Driver())
	}
	reg := mustWith(t, domain.NewRegistry(), domain.SchoolA, domain.School{AnimatorCount: 1})
	if err := tiered.Save(context.Background(), reg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := tiered.Load(context.Background())
	if err != nil || !ok || got != reg {
		t.Fatalf("load: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestTieredAdapter_LoadPrefersRemote(t *testing.T) {
	localReg := mustWith(t, domain.NewRegistry(), domain.SchoolA, domain.School{AnimatorCount: 1})
	remoteReg := mustWith(t, domain.NewRegistry(), domain.SchoolA, domain.School{AnimatorCount: 9})
	remote := &fakeAdapter{name: "remote", reg: remoteReg, present: true}
	tiered := NewTieredAdapter(memory.NewStoreWith(localReg), remote, zaptest.NewLogger(t))
	if tiered.Driver() != "memory+remote" {
		t.Fatalf("driver = %s", tiered.Driver())
	}
	got, ok, err := tiered.Load(context.Background())
	if err != nil || !ok || got != remoteReg {
		t.Fatalf("expected remote snapshot, got %+v ok=%v err=%v", got.Statuses(), ok, err)
	}
}

func TestTieredAdapter_LoadFallsBackToLocal(t *testing.T) {
	localReg := mustWith(t, domain.NewRegistry(), domain.SchoolB, domain.School{StudentCount: 3})
	cases := map[string]*fakeAdapter{
		"remote absent": {name: "remote"},
		"remote error":  {name: "remote", loadErr: errors.New("timeout")},
	}
	for name, remote := range cases {
		t.Run(name, func(t *testing.T) {
			tiered := NewTieredAdapter(memory.NewStoreWith(localReg), remote, zaptest.NewLogger(t))
			got, ok, err := tiered.Load(context.Background())
			if err != nil || !ok || got != localReg {
				t.Fatalf("expected local snapshot, got ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestTieredAdapter_SaveKeepsLocalWhenRemoteFails(t *testing.T) {
	local := memory.NewStore()
	remote := &fakeAdapter{name: "remote", saveErr: errors.New("unreachable")}
	tiered := NewTieredAdapter(local, remote, zaptest.NewLogger(t))
	reg := mustWith(t, domain.NewRegistry(), domain.SchoolC, domain.School{AnimatorCount: 2, StudentCount: 2})

	err := tiered.Save(context.Background(), reg)
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) || pe.Driver != "remote" || pe.Op != "save" {
		t.Fatalf("expected remote save error, got %v", err)
	}
	got, ok, _ := local.Load(context.Background())
	if !ok || got != reg {
		t.Fatalf("local write lost")
	}
}

func TestTieredAdapter_SaveReportsBothFailures(t *testing.T) {
	local := &fakeAdapter{name: "local", saveErr: errors.New("disk full")}
	remote := &fakeAdapter{name: "remote", saveErr: errors.New("unreachable")}
	err := NewTieredAdapter(local, remote, nil).Save(context.Background(), domain.NewRegistry())
	if err == nil || !errors.Is(err, local.saveErr) || !errors.Is(err, remote.saveErr) {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestTieredAdapter_SubscribeMirrorsRemoteIntoLocal(t *testing.T) {
	local := memory.NewStore()
	remote := &fakeAdapter{name: "remote"}
	tiered := NewTieredAdapter(local, remote, zaptest.NewLogger(t))
	var got []domain.Registry
	unsub, err := tiered.Subscribe(context.Background(), func(reg domain.Registry) { got = append(got, reg) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()
	external := mustWith(t, domain.NewRegistry(), domain.SchoolA, domain.School{StudentCount: 30})
	remote.push(external)
	if len(got) != 1 || got[0] != external {
		t.Fatalf("update not forwarded: %+v", got)
	}
	mirrored, ok, _ := local.Load(context.Background())
	if !ok || mirrored != external {
		t.Fatalf("update not mirrored locally")
	}
}

func TestTieredAdapter_SubscribeUsesLocalWithoutRemote(t *testing.T) {
	local := &fakeAdapter{name: "local", subErr: domain.ErrSubscribeUnsupported}
	_, err := NewTieredAdapter(local, nil, nil).Subscribe(context.Background(), func(domain.Registry) {})
	if !errors.Is(err, domain.ErrSubscribeUnsupported) {
		t.Fatalf("expected local subscribe error, got %v", err)
	}
}

func TestTieredAdapter_NullRemoteDocumentKeepsLocal(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	doc := []byte(`{"schools":null,"origin":"peer"}`)
	if _, err := blobs.Put(ctx, blobdoc.DefaultKey, bytes.NewReader(doc), blob.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	localReg := mustWith(t, domain.NewRegistry(), domain.SchoolB, domain.School{AnimatorCount: 3, StudentCount: 20})
	tiered := NewTieredAdapter(memory.NewStoreWith(localReg), blobdoc.New(blobs), zaptest.NewLogger(t))

	svc := NewService(tiered)
	ok, err := svc.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if svc.Registry().Snapshot() != localReg {
		t.Fatalf("null remote document overwrote local state: %+v", svc.Registry().Snapshot().Statuses())
	}
}
