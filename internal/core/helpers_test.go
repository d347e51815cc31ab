package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"schoolcoord/pkg/domain"
)

// fakeAdapter is a scriptable PersistenceAdapter.
type fakeAdapter struct {
	mu      sync.Mutex
	name    string
	reg     domain.Registry
	present bool
	loadErr error
	saveErr error
	subErr  error
	saves   int
	onSub   func(domain.Registry)
}

func (f *fakeAdapter) Driver() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeAdapter) Load(context.Context) (domain.Registry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return domain.Registry{}, false, f.loadErr
	}
	return f.reg, f.present, nil
}

func (f *fakeAdapter) Save(_ context.Context, reg domain.Registry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.reg, f.present = reg, true
	f.saves++
	return nil
}

func (f *fakeAdapter) Subscribe(_ context.Context, onChange func(domain.Registry)) (domain.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.onSub = onChange
	return func() {
		f.mu.Lock()
		f.onSub = nil
		f.mu.Unlock()
	}, nil
}

// push simulates an external write.
func (f *fakeAdapter) push(reg domain.Registry) {
	f.mu.Lock()
	fn := f.onSub
	f.mu.Unlock()
	if fn != nil {
		fn(reg)
	}
}

type recordedOp struct {
	op      string
	success bool
}

type recordingMetrics struct {
	mu            sync.Mutex
	ops           []recordedOp
	notifications []domain.NotificationKind
}

func (m *recordingMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, recordedOp{op: op, success: success})
}

func (m *recordingMetrics) ObserveNotification(_ context.Context, n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n.Kind)
}

func mustWith(t *testing.T, reg domain.Registry, name domain.SchoolName, school domain.School) domain.Registry {
	t.Helper()
	next, err := reg.With(name, school)
	if err != nil {
		t.Fatalf("with %s: %v", name, err)
	}
	return next
}
