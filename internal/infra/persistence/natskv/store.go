// Package natskv keeps the registry document in a NATS JetStream key/value
// bucket and follows remote writes through a KV watcher.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"schoolcoord/pkg/domain"
)

const (
	// Driver is the name reported in logs and metrics.
	Driver = "nats"
	// DefaultBucket is the KV bucket holding coordination documents.
	DefaultBucket = "coordination"
	// DocumentKey is the key of the registry document inside the bucket.
	DocumentKey = "schools"
)

// Option configures a Store.
type Option func(*Store)

// WithOrigin sets the writer identity stamped on saved documents.
func WithOrigin(origin string) Option { return func(s *Store) { s.origin = origin } }

// WithLogger sets the logger used by subscriptions.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// Store implements domain.PersistenceAdapter on a JetStream KV bucket.
type Store struct {
	kv     jetstream.KeyValue
	nc     *nats.Conn // owned connection, nil when built with New
	origin string
	now    func() time.Time
	logger *zap.Logger
}

var _ domain.PersistenceAdapter = (*Store)(nil)

// New wraps an existing KV bucket.
func New(kv jetstream.KeyValue, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		origin: uuid.NewString(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials url, ensures bucket exists and returns a Store owning the
// connection. Close releases it.
func Connect(ctx context.Context, url, bucket string, opts ...Option) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	nc, err := nats.Connect(url, nats.Name("schoolcoord"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := ensureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "schoolcoord coordination documents",
		History:     1,
	}, 3)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s := New(kv, opts...)
	s.nc = nc
	return s, nil
}

func (s *Store) Driver() string { return Driver }

// Origin returns the writer identity stamped on saved documents.
func (s *Store) Origin() string { return s.origin }

// Close drains the owned connection, if any.
func (s *Store) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}

func (s *Store) Load(ctx context.Context) (domain.Registry, bool, error) {
	entry, err := s.kv.Get(ctx, DocumentKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return domain.Registry{}, false, nil
	}
	if err != nil {
		return domain.Registry{}, false, domain.WrapPersistence(Driver, "load", fmt.Errorf("get %s: %w", DocumentKey, err))
	}
	doc, ok, err := domain.DecodeDocument(entry.Value())
	if err != nil {
		return domain.Registry{}, false, domain.WrapPersistence(Driver, "load", err)
	}
	return doc.Schools, ok, nil
}

func (s *Store) Save(ctx context.Context, reg domain.Registry) error {
	data, err := domain.EncodeDocument(reg, s.origin, s.now())
	if err != nil {
		return domain.WrapPersistence(Driver, "save", err)
	}
	if _, err := s.kv.Put(ctx, DocumentKey, data); err != nil {
		return domain.WrapPersistence(Driver, "save", fmt.Errorf("put %s: %w", DocumentKey, err))
	}
	return nil
}

// Subscribe watches the document key and reports puts from other origins.
func (s *Store) Subscribe(ctx context.Context, onChange func(domain.Registry)) (domain.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	w, err := s.kv.Watch(ctx, DocumentKey, jetstream.UpdatesOnly())
	if err != nil {
		cancel()
		return nil, domain.WrapPersistence(Driver, "subscribe", fmt.Errorf("watch %s: %w", DocumentKey, err))
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-w.Updates():
				if !ok {
					return
				}
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}
				doc, present, err := domain.DecodeDocument(entry.Value())
				if err != nil {
					s.logger.Warn("decode watched document", zap.Uint64("revision", entry.Revision()), zap.Error(err))
					continue
				}
				if !present || doc.Origin == s.origin {
					continue
				}
				onChange(doc.Schools)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = w.Stop()
			<-done
		})
	}, nil
}
