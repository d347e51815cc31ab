package core

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"schoolcoord/pkg/domain"
)

// MetricsRecorder receives service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	ObserveNotification(ctx context.Context, n domain.Notification)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration)   {}
func (noopMetrics) ObserveNotification(context.Context, domain.Notification) {}

// PrometheusMetricsRecorder publishes operation counters, durations and
// notification outcomes to a Prometheus registerer.
type PrometheusMetricsRecorder struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	operations    *prometheus.CounterVec
	durations     *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	shortfall     prometheus.Gauge
}

// NewPrometheusMetricsRecorder builds a recorder. A nil registerer falls back
// to prometheus.DefaultRegisterer and an empty namespace to "schoolcoord".
func NewPrometheusMetricsRecorder(reg prometheus.Registerer, namespace string) *PrometheusMetricsRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "schoolcoord"
	}
	return &PrometheusMetricsRecorder{reg: reg, namespace: namespace}
}

func (p *PrometheusMetricsRecorder) ensureRegistered() {
	p.once.Do(func() {
		p.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "operations_total",
			Help:      "Service operations by name and result.",
		}, []string{"operation", "result"})
		p.durations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"})
		p.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "notifications_total",
			Help:      "Recomputed notifications by kind.",
		}, []string{"kind"})
		p.shortfall = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "uncovered_animators",
			Help:      "Animators still missing at the addressed school after the suggested loan.",
		})
		p.reg.MustRegister(p.operations, p.durations, p.notifications, p.shortfall)
	})
}

// Observe records a service operation outcome.
func (p *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	p.ensureRegistered()
	result := "error"
	if success {
		result = "success"
	}
	p.operations.WithLabelValues(operation, result).Inc()
	p.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveNotification records the kind of a recomputed notification.
func (p *PrometheusMetricsRecorder) ObserveNotification(_ context.Context, n domain.Notification) {
	p.ensureRegistered()
	p.notifications.WithLabelValues(string(n.Kind)).Inc()
	p.shortfall.Set(float64(n.Needed - n.Amount))
}
