// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "formscan_relay_request_duration_seconds",
			Help:    "Total time taken for relay requests in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120, 180},
		},
		[]string{"relay"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "formscan_relay_upstream_duration_seconds",
			Help:    "Time spent waiting on the identity service or model api",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120, 180},
		},
		[]string{"upstream", "operation"},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formscan_relay_request_count_total",
			Help: "Total number of relay requests processed",
		},
		[]string{"relay", "status"},
	)

	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formscan_relay_error_count",
			Help: "Error count by kind",
		},
		[]string{"relay", "kind"},
	)

	DecodedBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "formscan_relay_decoded_media_bytes",
			Help:    "Size of decoded media payloads",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 9),
		},
		[]string{"relay"},
	)

	InflightUpstream = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "formscan_relay_inflight_upstream_requests",
			Help: "Current in-flight calls to upstream services",
		},
		[]string{"upstream"},
	)

	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formscan_relay_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
	)
)
