package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"schoolcoord/internal/infra/persistence/memory"
	"schoolcoord/pkg/domain"
)

// Service couples the live school registry with a persistence adapter. It is
// the boundary where persistence failures are caught, logged and reported.
type Service struct {
	registry *SchoolRegistry
	adapter  domain.PersistenceAdapter
	logger   *zap.Logger
	metrics  MetricsRecorder
	nowFn    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithClock overrides the time source used for operation timings.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewService constructs a service backed by the supplied adapter. A nil
// adapter falls back to an in-memory store.
func NewService(adapter domain.PersistenceAdapter, opts ...Option) *Service {
	if adapter == nil {
		adapter = memory.NewStore()
	}
	s := &Service{
		registry: NewSchoolRegistry(),
		adapter:  adapter,
		logger:   zap.NewNop(),
		metrics:  noopMetrics{},
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry.OnChange(func(_ domain.Registry, n domain.Notification) {
		s.metrics.ObserveNotification(context.Background(), n)
		s.logger.Debug("notification recomputed",
			zap.String("kind", string(n.Kind)),
			zap.String("helper", string(n.Helper)),
			zap.String("helped", string(n.Helped)),
			zap.Int("amount", n.Amount),
			zap.Int("needed", n.Needed),
		)
	})
	return s
}

// Registry returns the live registry.
func (s *Service) Registry() *SchoolRegistry {
	return s.registry
}

// Adapter returns the persistence adapter.
func (s *Service) Adapter() domain.PersistenceAdapter {
	return s.adapter
}

// Load replaces the registry with the stored snapshot. It reports whether a
// snapshot existed. On failure the registry is left unchanged.
func (s *Service) Load(ctx context.Context) (bool, error) {
	start := s.nowFn()
	reg, ok, err := s.adapter.Load(ctx)
	s.observe(ctx, "load", start, err)
	if err != nil {
		err = domain.WrapPersistence(s.adapter.Driver(), "load", err)
		s.logger.Error("load snapshot failed", zap.String("driver", s.adapter.Driver()), zap.Error(err))
		return false, err
	}
	if !ok {
		s.logger.Debug("no stored snapshot", zap.String("driver", s.adapter.Driver()))
		return false, nil
	}
	n := s.registry.Replace(reg)
	s.logger.Info("snapshot loaded", zap.String("driver", s.adapter.Driver()), zap.String("notification", string(n.Kind)))
	return true, nil
}

// Save persists the current registry. A failure is logged and returned; the
// in-memory registry keeps its state.
func (s *Service) Save(ctx context.Context) error {
	start := s.nowFn()
	err := s.adapter.Save(ctx, s.registry.Snapshot())
	s.observe(ctx, "save", start, err)
	if err != nil {
		err = domain.WrapPersistence(s.adapter.Driver(), "save", err)
		s.logger.Error("save snapshot failed", zap.String("driver", s.adapter.Driver()), zap.Error(err))
		return err
	}
	s.logger.Info("snapshot saved", zap.String("driver", s.adapter.Driver()))
	return nil
}

// SetField edits one counter of one school and returns the new notification.
func (s *Service) SetField(name domain.SchoolName, field domain.Field, raw string) (domain.Notification, error) {
	n, err := s.registry.SetField(name, field, raw)
	if err != nil {
		s.logger.Warn("rejected edit", zap.String("school", string(name)), zap.String("field", string(field)), zap.Error(err))
		return n, err
	}
	return n, nil
}

// ResetSchool zeroes one school.
func (s *Service) ResetSchool(name domain.SchoolName) (domain.Notification, error) {
	return s.registry.ResetSchool(name)
}

// ResetAll zeroes every school.
func (s *Service) ResetAll() domain.Notification {
	return s.registry.ResetAll()
}

// Subscribe applies external snapshot updates to the registry until the
// returned function is called or ctx ends. Adapters without a change feed
// yield a no-op subscription.
func (s *Service) Subscribe(ctx context.Context) (domain.Unsubscribe, error) {
	unsubscribe, err := s.adapter.Subscribe(ctx, func(reg domain.Registry) {
		n := s.registry.Replace(reg)
		s.logger.Info("external snapshot applied", zap.String("driver", s.adapter.Driver()), zap.String("notification", string(n.Kind)))
	})
	if errors.Is(err, domain.ErrSubscribeUnsupported) {
		s.logger.Info("live updates unavailable", zap.String("driver", s.adapter.Driver()))
		return func() {}, nil
	}
	if err != nil {
		err = domain.WrapPersistence(s.adapter.Driver(), "subscribe", err)
		s.logger.Error("subscribe failed", zap.String("driver", s.adapter.Driver()), zap.Error(err))
		return func() {}, err
	}
	return unsubscribe, nil
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, s.nowFn().Sub(start))
}
