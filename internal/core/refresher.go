package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRefreshInterval is the period between two automatic reloads.
const DefaultRefreshInterval = 10 * time.Minute

// Refresher lifecycle errors.
var (
	ErrRefresherStarted    = errors.New("refresher already started")
	ErrRefresherNotStarted = errors.New("refresher not started")
)

// Loader is the reload step run on every tick.
type Loader interface {
	Load(ctx context.Context) (bool, error)
}

// Refresher reloads the registry from persistence at a fixed interval.
// Ticks run one after another on a single goroutine, so a slow reload delays
// the next tick instead of overlapping with it.
type Refresher struct {
	loader   Loader
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	onTick   func(loaded bool, err error)

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefreshLogger sets the refresher logger.
func WithRefreshLogger(logger *zap.Logger) RefresherOption {
	return func(r *Refresher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTickTimeout bounds each reload. Zero disables the bound.
func WithTickTimeout(timeout time.Duration) RefresherOption {
	return func(r *Refresher) { r.timeout = timeout }
}

// WithTickHook is called after every tick with the reload outcome.
func WithTickHook(fn func(loaded bool, err error)) RefresherOption {
	return func(r *Refresher) { r.onTick = fn }
}

// NewRefresher builds a refresher. A non-positive interval uses
// DefaultRefreshInterval.
func NewRefresher(loader Loader, interval time.Duration, opts ...RefresherOption) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	r := &Refresher{
		loader:   loader,
		interval: interval,
		timeout:  30 * time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the configured refresh period.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Start launches the background loop. The loop ends when Stop is called or
// ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrRefresherStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.started = true
	r.cancel = cancel
	r.doneCh = make(chan struct{})
	go r.loop(loopCtx, r.doneCh)
	r.logger.Info("refresher started", zap.Duration("interval", r.interval))
	return nil
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (r *Refresher) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return ErrRefresherNotStarted
	}
	r.started = false
	cancel, done := r.cancel, r.doneCh
	r.mu.Unlock()

	cancel()
	<-done
	r.logger.Info("refresher stopped")
	return nil
}

// Done is closed when the current loop exits. It is nil before Start.
func (r *Refresher) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doneCh
}

func (r *Refresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	tickCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	loaded, err := r.loader.Load(tickCtx)
	if err != nil {
		r.logger.Warn("refresh failed", zap.Error(err))
	} else {
		r.logger.Debug("refresh completed", zap.Bool("loaded", loaded))
	}
	if r.onTick != nil {
		r.onTick(loaded, err)
	}
}
