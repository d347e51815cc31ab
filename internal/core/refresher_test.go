package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"schoolcoord/pkg/domain"
)

type slowLoader struct {
	delay    time.Duration
	err      error
	calls    atomic.Int32
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func (l *slowLoader) Load(ctx context.Context) (bool, error) {
	l.calls.Add(1)
	cur := l.inflight.Add(1)
	defer l.inflight.Add(-1)
	for {
		prev := l.maxSeen.Load()
		if cur <= prev || l.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	select {
	case <-time.After(l.delay):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return true, l.err
}

func TestRefresher_TicksWithoutOverlap(t *testing.T) {
	defer goleak.VerifyNone(t)
	loader := &slowLoader{delay: 15 * time.Millisecond}
	ticked := make(chan struct{}, 64)
	r := NewRefresher(loader, 2*time.Millisecond, WithTickHook(func(bool, error) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	}))
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-ticked:
		case <-time.After(5 * time.Second):
			t.Fatalf("tick %d not observed", i)
		}
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := loader.maxSeen.Load(); got != 1 {
		t.Fatalf("reloads overlapped: max in flight %d", got)
	}
	calls := loader.calls.Load()
	time.Sleep(10 * time.Millisecond)
	if loader.calls.Load() != calls {
		t.Fatalf("loader called after Stop")
	}
}

func TestRefresher_LifecycleErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := NewRefresher(&slowLoader{}, time.Hour)
	if r.Done() != nil {
		t.Fatalf("Done should be nil before Start")
	}
	if err := r.Stop(); !errors.Is(err, ErrRefresherNotStarted) {
		t.Fatalf("expected ErrRefresherNotStarted, got %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrRefresherStarted) {
		t.Fatalf("expected ErrRefresherStarted, got %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestRefresher_StopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRefresher(&slowLoader{}, time.Hour)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := r.Done()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not exit on cancel")
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop after cancel: %v", err)
	}
}

func TestRefresher_ReportsFailuresAndKeepsTicking(t *testing.T) {
	defer goleak.VerifyNone(t)
	loader := &slowLoader{err: errors.New("offline")}
	var mu sync.Mutex
	var errs int
	ticks := make(chan struct{}, 16)
	r := NewRefresher(loader, time.Millisecond, WithTickTimeout(time.Second), WithTickHook(func(_ bool, err error) {
		mu.Lock()
		if err != nil {
			errs++
		}
		mu.Unlock()
		select {
		case ticks <- struct{}{}:
		default:
		}
	}))
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(5 * time.Second):
			t.Fatalf("tick %d not observed", i)
		}
	}
	_ = r.Stop()
	mu.Lock()
	defer mu.Unlock()
	if errs < 2 {
		t.Fatalf("expected failures reported on each tick, got %d", errs)
	}
}

func TestRefresher_DefaultInterval(t *testing.T) {
	if got := NewRefresher(&slowLoader{}, 0).Interval(); got != DefaultRefreshInterval {
		t.Fatalf("interval = %s, want %s", got, DefaultRefreshInterval)
	}
	if DefaultRefreshInterval != 10*time.Minute {
		t.Fatalf("default refresh interval changed: %s", DefaultRefreshInterval)
	}
}

func TestRefresher_ReloadsServiceFromStore(t *testing.T) {
	defer goleak.VerifyNone(t)
	adapter := &fakeAdapter{}
	svc := NewService(adapter)
	want := mustWith(t, domain.NewRegistry(), domain.SchoolB, domain.School{AnimatorCount: 3, StudentCount: 30})
	_ = adapter.Save(context.Background(), want)

	loaded := make(chan struct{}, 1)
	r := NewRefresher(svc, time.Millisecond, WithTickHook(func(ok bool, err error) {
		if ok && err == nil {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	}))
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = r.Stop() }()
	select {
	case <-loaded:
	case <-time.After(5 * time.Second):
		t.Fatalf("refresh did not load")
	}
	if svc.Registry().Snapshot() != want {
		t.Fatalf("service registry not refreshed")
	}
}
