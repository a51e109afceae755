package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	TGIncomingMessages *prometheus.CounterVec
	TGOutgoingMessages *prometheus.CounterVec
	WooRequests        *prometheus.CounterVec
	WooLatency         *prometheus.HistogramVec
	TorobRequests      *prometheus.CounterVec
	Exports            *prometheus.CounterVec
	ExportedProducts   prometheus.Histogram
	RateLimited        prometheus.Counter
	Errors             *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			TGIncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tg_incoming_messages_total",
				Help:      "Total incoming Telegram messages processed.",
			}, []string{"type"}),
			TGOutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tg_outgoing_messages_total",
				Help:      "Total outgoing Telegram messages sent.",
			}, []string{"type"}),
			WooRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "woo_requests_total",
				Help:      "Total WooCommerce API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			WooLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "woo_request_duration_seconds",
				Help:      "Latency distribution for WooCommerce API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			TorobRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "torob_requests_total",
				Help:      "Total Torob price lookups by status.",
			}, []string{"status"}),
			Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Catalog exports by outcome.",
			}, []string{"outcome"}),
			ExportedProducts: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "exported_products",
				Help:      "Number of products per delivered spreadsheet.",
				Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 5000},
			}),
			RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_messages_total",
				Help:      "Inbound messages rejected by the per-user rate limiter.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.TGIncomingMessages,
			metricsInstance.TGOutgoingMessages,
			metricsInstance.WooRequests,
			metricsInstance.WooLatency,
			metricsInstance.TorobRequests,
			metricsInstance.Exports,
			metricsInstance.ExportedProducts,
			metricsInstance.RateLimited,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
