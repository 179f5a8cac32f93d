package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type swapMetrics struct {
	executed   *prometheus.CounterVec
	rejections *prometheus.CounterVec
	feesPaid   *prometheus.CounterVec
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	swapMetricsOnce sync.Once
	swapRegistry    *swapMetrics
)

// RPC returns the lazily-initialised registry recording JSON-RPC activity.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stellavault",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stellavault",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stellavault",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.errors, rpcRegistry.latency)
	})
	return rpcRegistry
}

// ObserveRequest records one handled RPC call.
func (m *rpcMetrics) ObserveRequest(method, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(took.Seconds())
}

// ObserveError records one failed RPC call by error code.
func (m *rpcMetrics) ObserveError(method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, code).Inc()
}

// Swaps returns the lazily-initialised registry recording swap engine
// activity.
func Swaps() *swapMetrics {
	swapMetricsOnce.Do(func() {
		swapRegistry = &swapMetrics{
			executed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stellavault",
				Subsystem: "swap",
				Name:      "executed_total",
				Help:      "Completed swaps segmented by input and output asset.",
			}, []string{"asset_in", "asset_out"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stellavault",
				Subsystem: "swap",
				Name:      "rejections_total",
				Help:      "Swaps aborted by an invariant check, segmented by reason.",
			}, []string{"reason"}),
			feesPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stellavault",
				Subsystem: "swap",
				Name:      "fees_paid_total",
				Help:      "Platform fee units collected, segmented by asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(swapRegistry.executed, swapRegistry.rejections, swapRegistry.feesPaid)
	})
	return swapRegistry
}

// ObserveExecuted records a completed swap and the fee it paid.
func (m *swapMetrics) ObserveExecuted(assetIn, assetOut string, feeUnits float64) {
	if m == nil {
		return
	}
	m.executed.WithLabelValues(assetIn, assetOut).Inc()
	if feeUnits > 0 {
		m.feesPaid.WithLabelValues(assetIn).Add(feeUnits)
	}
}

// ObserveRejection records a swap stopped by a named invariant.
func (m *swapMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}
