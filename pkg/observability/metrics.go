package observability

import (
	"context"

	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/selector"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "branchtale"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	sessionsStarted  *prometheus.CounterVec
	sessionsEnded    *prometheus.CounterVec
	advances         *prometheus.CounterVec
	selections       *prometheus.HistogramVec
	fallbackPads     *prometheus.CounterVec
	attempts         *prometheus.CounterVec
	attemptDurations *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// It panics if a collector is already registered, like promauto.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of stories started, by mode.",
		}, []string{"mode"}),
		sessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of stories ended, by mode.",
		}, []string{"mode"}),
		advances: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advances_total",
			Help:      "Total number of accepted reader choices, by mode.",
		}, []string{"mode"}),
		selections: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "choice_selection_duration_seconds",
			Help:      "Time spent computing a ChoiceSet, by mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		fallbackPads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_choices_total",
			Help:      "Total number of fallback choices used to pad a ChoiceSet, by mode.",
		}, []string{"mode"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_attempts_total",
			Help:      "Total number of generator round-trips, by outcome.",
		}, []string{"outcome"}),
		attemptDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generator_attempt_duration_seconds",
			Help:      "Latency of single generator round-trips, by outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"outcome"}),
	}
}

// Hooks returns lifecycle hooks that record session metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(_ context.Context, e *domain.SessionEvent) {
			m.sessionsStarted.WithLabelValues(string(e.Mode)).Inc()
		},
		OnAdvance: func(_ context.Context, e *domain.SessionEvent) {
			m.advances.WithLabelValues(string(e.Mode)).Inc()
		},
		OnSessionEnd: func(_ context.Context, e *domain.SessionEvent) {
			m.sessionsEnded.WithLabelValues(string(e.Mode)).Inc()
		},
		OnChoicesSelected: func(_ context.Context, e *domain.SelectionEvent) {
			mode := string(e.Mode)
			m.selections.WithLabelValues(mode).Observe(e.Duration.Seconds())
			if e.Padded > 0 {
				m.fallbackPads.WithLabelValues(mode).Add(float64(e.Padded))
			}
		},
	}
}

// SelectorHooks returns selector hooks that record generator attempts.
func (m *Metrics) SelectorHooks() selector.Hooks {
	return selector.Hooks{
		OnAttempt: func(_ context.Context, e *selector.AttemptEvent) {
			outcome := string(e.Outcome)
			m.attempts.WithLabelValues(outcome).Inc()
			m.attemptDurations.WithLabelValues(outcome).Observe(e.Duration.Seconds())
		},
	}
}
