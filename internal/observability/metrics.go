// Package observability holds the Prometheus metrics surface for the
// decision core: counters and histograms for decisions, cache, circuit
// breaker, and VM behavior. Adapted from the teacher's
// internal/adapter/inbound/http/metrics.go, which tracks the HTTP gateway's
// request volume — this package tracks the decision pipeline itself instead.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the decision core records. Pass to
// NewEngine and the adapters that need to record against it.
type Metrics struct {
	DecisionsTotal    *prometheus.CounterVec
	DecisionDuration  *prometheus.HistogramVec
	ValidatorDuration *prometheus.HistogramVec
	CacheHitsTotal    *prometheus.CounterVec
	CacheSize         prometheus.Gauge
	BreakerState      *prometheus.GaugeVec
	SyncTicksTotal    *prometheus.CounterVec
	VMLimitHitsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers every metric against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "veto",
				Name:      "decisions_total",
				Help:      "Total number of policy decisions rendered",
			},
			[]string{"tool", "decision"}, // decision=allow/deny/modify
		),
		DecisionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "veto",
				Name:      "decision_duration_seconds",
				Help:      "Time to render one aggregated decision",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		ValidatorDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "veto",
				Name:      "validator_duration_seconds",
				Help:      "Time spent in one validator",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"validator"},
		),
		CacheHitsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "veto",
				Name:      "cache_hits_total",
				Help:      "Compiled-policy cache lookups",
			},
			[]string{"result"}, // result=hit/miss/last_known_good
		),
		CacheSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "veto",
				Name:      "cache_entries",
				Help:      "Number of compiled programs currently cached",
			},
		),
		BreakerState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "veto",
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"validator"},
		),
		SyncTicksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "veto",
				Name:      "sync_ticks_total",
				Help:      "Background policy sync tick outcomes",
			},
			[]string{"result"}, // result=updated/error
		),
		VMLimitHitsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "veto",
				Name:      "vm_limit_hits_total",
				Help:      "VM evaluations that hit a stack or instruction limit",
			},
			[]string{"kind"}, // kind=stack/instructions
		),
	}
}
