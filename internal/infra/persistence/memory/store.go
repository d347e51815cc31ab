// Package memory provides an in-process persistence adapter. It keeps the last
// saved snapshot in memory. Handles returned by Peer share that snapshot and
// act as separate writers: a save reaches the subscribers of every other
// handle, never the saving handle's own.
package memory

import (
	"context"
	"sync"

	"schoolcoord/pkg/domain"
)

// Driver is the name reported in logs and metrics.
const Driver = "memory"

type subscriber struct {
	owner    *Store
	onChange func(domain.Registry)
}

type shared struct {
	mu      sync.RWMutex
	reg     domain.Registry
	present bool
	subs    map[int]subscriber
	nextID  int
}

// Store implements domain.PersistenceAdapter in memory.
type Store struct {
	state *shared
}

var _ domain.PersistenceAdapter = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: &shared{subs: make(map[int]subscriber)}}
}

// NewStoreWith returns a store pre-populated with reg.
func NewStoreWith(reg domain.Registry) *Store {
	s := NewStore()
	s.state.reg = reg.Sanitized()
	s.state.present = true
	return s
}

// Peer returns another writer over the same snapshot.
func (s *Store) Peer() *Store { return &Store{state: s.state} }

func (s *Store) Driver() string { return Driver }

func (s *Store) Load(ctx context.Context) (domain.Registry, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Registry{}, false, domain.WrapPersistence(Driver, "load", err)
	}
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return s.state.reg, s.state.present, nil
}

// Save stores reg and synchronously notifies subscribers registered through
// other handles.
func (s *Store) Save(ctx context.Context, reg domain.Registry) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapPersistence(Driver, "save", err)
	}
	reg = reg.Sanitized()
	st := s.state
	st.mu.Lock()
	st.reg = reg
	st.present = true
	fns := make([]func(domain.Registry), 0, len(st.subs))
	for _, sub := range st.subs {
		if sub.owner != s {
			fns = append(fns, sub.onChange)
		}
	}
	st.mu.Unlock()
	for _, fn := range fns {
		fn(reg)
	}
	return nil
}

// Subscribe registers onChange until the returned function is called or ctx
// is done.
func (s *Store) Subscribe(ctx context.Context, onChange func(domain.Registry)) (domain.Unsubscribe, error) {
	st := s.state
	st.mu.Lock()
	id := st.nextID
	st.nextID++
	st.subs[id] = subscriber{owner: s, onChange: onChange}
	st.mu.Unlock()
	var once sync.Once
	remove := func() {
		once.Do(func() {
			st.mu.Lock()
			delete(st.subs, id)
			st.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}, nil
}
