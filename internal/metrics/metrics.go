// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdfvault"

// Metrics holds the counters updated by the ingest and retry pipelines.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	documents *prometheus.CounterVec
	batches   *prometheus.CounterVec
	archives  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	searches  *prometheus.CounterVec
}

// Outcome labels.
const (
	OutcomeExtracted = "extracted"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeCommitted = "committed"
	OutcomeProcessed = "processed"
	OutcomeRecovered = "recovered"
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// New creates a Metrics with its own registry so repeated calls never
// collide on collector registration.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents seen by the ingest pipeline, by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batch commits, by outcome.",
		}, []string{"outcome"}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archives_total",
			Help:      "Archives opened by the ingest pipeline, by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_entries_total",
			Help:      "Ledger entries handled by the retry pipeline, by outcome.",
		}, []string{"outcome"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Full-text queries served, by interface and outcome.",
		}, []string{"interface", "outcome"}),
	}
	m.registry.MustRegister(m.documents, m.batches, m.archives, m.retries, m.searches)
	return m
}

// Document records one document outcome.
func (m *Metrics) Document(outcome string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome).Inc()
}

// Batch records one batch commit outcome.
func (m *Metrics) Batch(outcome string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
}

// Archive records one archive outcome.
func (m *Metrics) Archive(outcome string) {
	if m == nil {
		return
	}
	m.archives.WithLabelValues(outcome).Inc()
}

// Retry records one retried ledger entry outcome.
func (m *Metrics) Retry(outcome string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(outcome).Inc()
}

// Search records one query served through iface (http, ws, mcp).
func (m *Metrics) Search(iface, outcome string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(iface, outcome).Inc()
}

// Registry returns the underlying registry, for registering extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics on its own listener while a long run is in
// progress.
type Server struct {
	server   *http.Server
	listener net.Listener
}

// Serve starts an HTTP server at addr serving m on /metrics.
func Serve(addr string, m *Metrics, logger *slog.Logger) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	return &Server{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Close shuts the server down.
func (s *Server) Close() error {
	if err := s.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
