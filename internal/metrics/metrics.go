// Package metrics exposes Prometheus counters for the cook-along engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hammamikhairi/basil/internal/logger"
)

const namespace = "basil"

// Metrics holds the engine's counters on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	transitions *prometheus.CounterVec
	images      *prometheus.CounterVec
	narrations  *prometheus.CounterVec
	sessions    *prometheus.CounterVec
	tips        *prometheus.CounterVec
}

// New creates a metrics set registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_transitions_total",
				Help:      "Step transitions by cause (manual, expiry) and target (step, finished).",
			},
			[]string{"cause", "target"},
		),
		images: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_requests_total",
				Help:      "Image requests by kind (step, finish) and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		narrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "narrations_total",
				Help:      "Narrations by outcome (played, superseded, failed).",
			},
			[]string{"outcome"},
		),
		sessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Cook-along sessions by outcome (started, completed, abandoned, rejected).",
			},
			[]string{"outcome"},
		),
		tips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tip_requests_total",
				Help:      "Sensory tip requests by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// Transition counts one step transition.
func (m *Metrics) Transition(cause, target string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(cause, target).Inc()
}

// Image counts one resolved image request.
func (m *Metrics) Image(kind, outcome string) {
	if m == nil {
		return
	}
	m.images.WithLabelValues(kind, outcome).Inc()
}

// Narration counts one narration outcome.
func (m *Metrics) Narration(outcome string) {
	if m == nil {
		return
	}
	m.narrations.WithLabelValues(outcome).Inc()
}

// Session counts one session lifecycle event.
func (m *Metrics) Session(outcome string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
}

// Tips counts one tip request outcome.
func (m *Metrics) Tips(outcome string) {
	if m == nil {
		return
	}
	m.tips.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler returns the scrape handler for this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
