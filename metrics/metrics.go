// Package metrics exposes Prometheus counters for storage and integrity
// operations, plus a standalone metrics HTTP server.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts successful uploads per backend.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptstore_uploads_total",
		Help: "Number of successful uploads, labeled by backend name.",
	}, []string{"backend"})

	// UploadFallbacksTotal counts uploads that fell back from the durable
	// backend to local storage.
	UploadFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scriptstore_upload_fallbacks_total",
		Help: "Number of uploads that fell back to local storage after a durable-store failure.",
	})

	// ExistenceChecksTotal counts existence probes by outcome
	// (found, missing, unknown).
	ExistenceChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptstore_existence_checks_total",
		Help: "Number of storage existence checks, labeled by outcome.",
	}, []string{"outcome"})

	// ReconciliationActionsTotal counts corrective writes by action
	// (delete_file, clear_cover, clear_photo, error).
	ReconciliationActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptstore_reconciliation_actions_total",
		Help: "Number of reconciliation actions applied, labeled by action.",
	}, []string{"action"})

	// ScansTotal counts integrity scans.
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scriptstore_integrity_scans_total",
		Help: "Number of integrity scans performed.",
	})
)

// MetricsServer serves the Prometheus scrape endpoint on its own listener.
type MetricsServer struct {
	name string
	srv  *http.Server
}

// New creates a metrics server for the given service name listening on addr.
func New(name, addr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		name: name,
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts serving and blocks until the server is shut down.
func (m *MetricsServer) Run() error {
	err := m.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
