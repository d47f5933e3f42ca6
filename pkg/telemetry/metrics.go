package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for an acceptance run. A Metrics built
// from a disabled config records nothing.
type Metrics struct {
	config MetricsConfig

	// Convergence loop metrics
	probes              *prometheus.CounterVec
	convergenceDuration *prometheus.HistogramVec

	// Step metrics
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	// Manifest apply metrics
	applies *prometheus.CounterVec

	// Run metrics
	runs        *prometheus.CounterVec
	activeHosts prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "convergence_probes_total",
				Help:      "Total number of observations made by convergence loops",
			},
			[]string{"loop"},
		),
		convergenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "convergence_duration_seconds",
				Help:      "Time spent in convergence loops in seconds",
				Buckets:   buckets,
			},
			[]string{"loop", "outcome"},
		),

		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of acceptance steps run",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of acceptance steps in seconds",
				Buckets:   buckets,
			},
			[]string{"step"},
		),

		applies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "manifest_applies_total",
				Help:      "Total number of manifest applies by outcome",
			},
			[]string{"host", "outcome"},
		),

		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "host_runs_total",
				Help:      "Total number of per-host scenario runs by status",
			},
			[]string{"status"},
		),
		activeHosts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_hosts",
				Help:      "Current number of hosts running a scenario",
			},
		),
	}

	registry.MustRegister(
		m.probes,
		m.convergenceDuration,
		m.steps,
		m.stepDuration,
		m.applies,
		m.runs,
		m.activeHosts,
	)

	return m, nil
}

// RecordProbe counts one observation of loop.
func (m *Metrics) RecordProbe(loop string) {
	if m == nil || m.probes == nil {
		return
	}
	m.probes.WithLabelValues(loop).Inc()
}

// RecordConvergence records how a loop ended and how long it ran.
func (m *Metrics) RecordConvergence(loop string, outcome string, duration time.Duration) {
	if m == nil || m.convergenceDuration == nil {
		return
	}
	m.convergenceDuration.WithLabelValues(loop, outcome).Observe(duration.Seconds())
}

// RecordStep records a finished step.
func (m *Metrics) RecordStep(step, status string, duration time.Duration) {
	if m == nil || m.steps == nil {
		return
	}
	m.steps.WithLabelValues(step, status).Inc()
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordApply records a manifest apply outcome.
func (m *Metrics) RecordApply(host string, outcome string) {
	if m == nil || m.applies == nil {
		return
	}
	m.applies.WithLabelValues(host, outcome).Inc()
}

// RecordHostStarted marks a host scenario as running.
func (m *Metrics) RecordHostStarted() {
	if m == nil || m.activeHosts == nil {
		return
	}
	m.activeHosts.Inc()
}

// RecordHostCompleted records the end of a host scenario.
func (m *Metrics) RecordHostCompleted(status string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.activeHosts.Dec()
}

// Registry returns the metrics registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer binds the listen address and serves metrics until ctx
// is done. A bind failure is returned to the caller. It is a no-op when
// metrics are disabled or no listen address is configured.
func (m *Metrics) StartMetricsServer(ctx context.Context) error {
	if m == nil || !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	listener, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to bind metrics address %s: %w", m.config.ListenAddress, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("address", m.config.ListenAddress).Msg("metrics server error")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("address", listener.Addr().String()).Str("path", path).Msg("serving metrics")
	return nil
}
