// Package http exposes the gateway's public surface: tool dispatch, approval
// release, health, and metrics.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/approval"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/service"
)

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// Transport is the inbound HTTP adapter. It owns the listener, the
// middleware chain, and the Prometheus registry.
type Transport struct {
	dispatcher   *service.Dispatcher
	index        *service.PolicyIndex
	approvals    *approval.Store
	addr         string
	logger       *slog.Logger
	adminHandler http.Handler
	metrics      *Metrics
	server       *http.Server
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is ":8080".
func WithAddr(addr string) Option {
	return func(t *Transport) { t.addr = addr }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithAdminHandler mounts the admin API under /api/admin/.
func WithAdminHandler(h http.Handler) Option {
	return func(t *Transport) { t.adminHandler = h }
}

// NewTransport creates the HTTP transport over the gateway core.
func NewTransport(dispatcher *service.Dispatcher, index *service.PolicyIndex, approvals *approval.Store, opts ...Option) *Transport {
	t := &Transport{
		dispatcher: dispatcher,
		index:      index,
		approvals:  approvals,
		addr:       ":8080",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Metrics returns the transport's metrics set. Nil until Start runs.
func (t *Transport) Metrics() *Metrics {
	return t.metrics
}

// Handler builds the full route table with the middleware chain applied.
// Exposed separately from Start so tests can drive it with httptest.
func (t *Transport) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.metrics = NewMetrics(reg, t.approvals)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tools/{tool}/{action}", t.handleDispatch)
	mux.HandleFunc("POST /api/approve/{id}", t.handleApprove)
	mux.Handle("GET /health", NewHealthChecker(t.index).Handler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	if t.adminHandler != nil {
		mux.Handle("/api/admin/", t.adminHandler)
	}

	// Middleware order, outermost first: metrics capture the full duration,
	// then the request id enriches the logger for everything below.
	var handler http.Handler = mux
	handler = RequestIDMiddleware(t.logger)(handler)
	handler = MetricsMiddleware(t.metrics)(handler)
	return handler
}

// Start begins serving and blocks until ctx is cancelled or the listener
// fails. A bind failure is returned immediately so the caller can exit with
// a distinct code.
func (t *Transport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown drains in-flight requests with a bounded grace period.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}
	t.logger.Info("HTTP server shutdown complete")
	return nil
}
