package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/approval"
)

// Metrics holds the gateway's Prometheus metrics. Pass to components that
// need to record them.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	DecisionsTotal     *prometheus.CounterVec
	PolicyReloadsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry. The
// pending-approvals gauge reads the store lazily at scrape time.
func NewMetrics(reg prometheus.Registerer, approvals *approval.Store) *Metrics {
	if approvals != nil {
		promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "aegis",
				Name:      "pending_approvals",
				Help:      "Number of approvals awaiting release",
			},
			func() float64 { return float64(len(approvals.ListPending())) },
		)
	}

	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aegis",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "decisions_total",
				Help:      "Total policy decisions by tool and outcome",
			},
			[]string{"tool", "decision"},
		),
		PolicyReloadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aegis",
				Name:      "policy_reloads_total",
				Help:      "Total policy reload attempts",
			},
			[]string{"result"},
		),
	}
}
