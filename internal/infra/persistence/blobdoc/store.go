// Package blobdoc stores the registry as a JSON document in a blob store
// (filesystem, S3 or memory). Change notifications come from the blob store's
// watcher when it has one and from ETag polling otherwise.
package blobdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolcoord/internal/blob"
	"schoolcoord/pkg/domain"
)

const (
	// DefaultKey is the object key of the snapshot document.
	DefaultKey = "coordination/schools.json"
	// DefaultPollInterval is used for stores without a watcher.
	DefaultPollInterval = 30 * time.Second

	contentType = "application/json"
	originMeta  = "origin"
)

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the document key.
func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithOrigin sets the writer identity stamped on saved documents.
func WithOrigin(origin string) Option { return func(s *Store) { s.origin = origin } }

// WithPollInterval sets the ETag polling interval for stores without a watcher.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.poll = d
		}
	}
}

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

// Store implements domain.PersistenceAdapter on top of a blob.Store.
type Store struct {
	blobs  blob.Store
	key    string
	origin string
	poll   time.Duration
	now    func() time.Time
	logger *zap.Logger
}

var _ domain.PersistenceAdapter = (*Store)(nil)

// New wraps blobs. A random origin is generated unless WithOrigin is given.
func New(blobs blob.Store, opts ...Option) *Store {
	s := &Store{
		blobs:  blobs,
		key:    DefaultKey,
		origin: uuid.NewString(),
		poll:   DefaultPollInterval,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver reports "blob/<backend>".
func (s *Store) Driver() string { return "blob/" + string(s.blobs.Driver()) }

// Origin returns the writer identity stamped on saved documents.
func (s *Store) Origin() string { return s.origin }

func (s *Store) Load(ctx context.Context) (domain.Registry, bool, error) {
	doc, _, ok, err := s.read(ctx)
	if err != nil {
		return domain.Registry{}, false, domain.WrapPersistence(s.Driver(), "load", err)
	}
	return doc.Schools, ok, nil
}

func (s *Store) read(ctx context.Context) (domain.Document, blob.Info, bool, error) {
	info, rc, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		return domain.Document{}, blob.Info{}, false, nil
	}
	if err != nil {
		return domain.Document{}, blob.Info{}, false, fmt.Errorf("get %s: %w", s.key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.Document{}, blob.Info{}, false, fmt.Errorf("read %s: %w", s.key, err)
	}
	doc, ok, err := domain.DecodeDocument(data)
	if err != nil {
		return domain.Document{}, blob.Info{}, false, err
	}
	return doc, info, ok, nil
}

func (s *Store) Save(ctx context.Context, reg domain.Registry) error {
	data, err := domain.EncodeDocument(reg, s.origin, s.now())
	if err != nil {
		return domain.WrapPersistence(s.Driver(), "save", err)
	}
	_, err = s.blobs.Put(ctx, s.key, bytes.NewReader(data), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{originMeta: s.origin},
	})
	if err != nil {
		return domain.WrapPersistence(s.Driver(), "save", fmt.Errorf("put %s: %w", s.key, err))
	}
	return nil
}

// Subscribe reports documents written by other origins. It uses the blob
// store's watcher when available and polls Head for ETag changes otherwise.
func (s *Store) Subscribe(ctx context.Context, onChange func(domain.Registry)) (domain.Unsubscribe, error) {
	ch := &changeDetector{store: s, onChange: onChange}
	if info, err := s.blobs.Head(ctx, s.key); err == nil {
		ch.lastETag = info.ETag
	} else if !errors.Is(err, blob.ErrNotFound) {
		return nil, domain.WrapPersistence(s.Driver(), "subscribe", err)
	}
	if w, ok := s.blobs.(blob.Watcher); ok {
		stop, err := w.Watch(ctx, s.key, func() { ch.check(ctx) })
		if err != nil {
			return nil, domain.WrapPersistence(s.Driver(), "subscribe", err)
		}
		return domain.Unsubscribe(stop), nil
	}
	return s.pollLoop(ctx, ch), nil
}

func (s *Store) pollLoop(ctx context.Context, ch *changeDetector) domain.Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := s.blobs.Head(ctx, s.key)
				if err != nil {
					if !errors.Is(err, blob.ErrNotFound) && ctx.Err() == nil {
						s.logger.Warn("poll snapshot document", zap.String("key", s.key), zap.Error(err))
					}
					continue
				}
				if ch.seen(info.ETag) {
					continue
				}
				ch.check(ctx)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// changeDetector filters change events down to new documents from other
// writers.
type changeDetector struct {
	store    *Store
	onChange func(domain.Registry)

	mu       sync.Mutex
	lastETag string
}

func (c *changeDetector) seen(etag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return etag != "" && etag == c.lastETag
}

func (c *changeDetector) check(ctx context.Context) {
	doc, info, ok, err := c.store.read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.store.logger.Warn("read changed snapshot document", zap.String("key", c.store.key), zap.Error(err))
		}
		return
	}
	c.mu.Lock()
	if info.ETag != "" && info.ETag == c.lastETag {
		c.mu.Unlock()
		return
	}
	c.lastETag = info.ETag
	c.mu.Unlock()
	if !ok || doc.Origin == c.store.origin {
		return
	}
	c.onChange(doc.Schools)
}
