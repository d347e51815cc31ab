// Package memory implements an in-memory blob Store for tests.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"schoolcoord/internal/blob/core"
)

type blobEntry struct {
	info core.Info
	data []byte
}

type watch struct {
	key string
	fn  func()
}

// Store implements core.Store and core.Watcher backed by process memory.
// Intended for tests and single-process runs.
type Store struct {
	mu      sync.RWMutex
	objs    map[string]blobEntry
	watches map[int]watch
	nextID  int
}

// New returns an in-memory blob store.
func New() *Store {
	return &Store{objs: make(map[string]blobEntry), watches: make(map[int]watch)}
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores a blob, replacing any previous value at key.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	sum := sha256.Sum256(b)
	info := core.Info{
		Key:          key,
		Size:         int64(len(b)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     cloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	s.mu.Lock()
	s.objs[key] = blobEntry{info: info, data: b}
	var fire []func()
	for _, w := range s.watches {
		if w.key == key {
			fire = append(fire, w.fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fire {
		fn()
	}
	out := info
	out.Metadata = cloneMetadata(info.Metadata)
	return out, nil
}

// Get returns blob metadata and a read closer to its content.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	dataCopy := make([]byte, len(obj.data))
	copy(dataCopy, obj.data)
	infoCopy := obj.info
	infoCopy.Metadata = cloneMetadata(infoCopy.Metadata)
	return infoCopy, io.NopCloser(bytes.NewReader(dataCopy)), nil
}

// Head returns blob metadata only.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	infoCopy := obj.info
	infoCopy.Metadata = cloneMetadata(infoCopy.Metadata)
	return infoCopy, nil
}

// Watch registers fn to run synchronously after every Put to key. The
// registration ends when stop is called or ctx is done.
func (s *Store) Watch(ctx context.Context, key string, fn func()) (func(), error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watches[id] = watch{key: key, fn: fn}
	s.mu.Unlock()
	var once sync.Once
	remove := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watches, id)
			s.mu.Unlock()
		})
	}
	stopAfter := context.AfterFunc(ctx, remove)
	return func() {
		stopAfter()
		remove()
	}, nil
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
