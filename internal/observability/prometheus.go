// Package observability records client activity as Prometheus metrics.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"secondpilot/internal/llmclient"
)

// PrometheusHooks implements llmclient.Hooks on its own registry, so several
// clients in one process (and tests) never collide on global registration.
type PrometheusHooks struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokenRefreshes  prometheus.Counter
	tokenExpiresAt  prometheus.Gauge
	streamBytes     prometheus.Counter
	streamChunks    prometheus.Counter
}

var _ llmclient.Hooks = (*PrometheusHooks)(nil)

// NewPrometheusHooks creates the metrics and registers them on a new registry.
func NewPrometheusHooks() *PrometheusHooks {
	h := &PrometheusHooks{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secondpilot_requests_total",
			Help: "HTTP exchanges with the remote service by endpoint and status code (0 = not sent)",
		}, []string{"endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secondpilot_request_duration_seconds",
			Help:    "Time until response headers were received",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		tokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secondpilot_token_refreshes_total",
			Help: "Session tokens fetched and cached",
		}),
		tokenExpiresAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "secondpilot_token_expires_at_seconds",
			Help: "Expiry of the cached session token as a Unix timestamp",
		}),
		streamBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secondpilot_stream_bytes_total",
			Help: "Bytes read from completion streams",
		}),
		streamChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secondpilot_stream_chunks_total",
			Help: "Reads that returned data from completion streams",
		}),
	}

	h.registry.MustRegister(
		h.requests,
		h.requestDuration,
		h.tokenRefreshes,
		h.tokenExpiresAt,
		h.streamBytes,
		h.streamChunks,
	)
	return h
}

// Registry exposes the registry the metrics live on.
func (h *PrometheusHooks) Registry() *prometheus.Registry {
	return h.registry
}

func (h *PrometheusHooks) OnRequest(endpoint string, statusCode int, duration time.Duration) {
	h.requests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	h.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (h *PrometheusHooks) OnTokenRefresh(expiresAt int64) {
	h.tokenRefreshes.Inc()
	h.tokenExpiresAt.Set(float64(expiresAt))
}

func (h *PrometheusHooks) OnStreamChunk(bytes int) {
	h.streamChunks.Inc()
	h.streamBytes.Add(float64(bytes))
}

// WriteTextfile writes the current metrics to path in the text exposition
// format read by node_exporter's textfile collector.
func (h *PrometheusHooks) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, h.registry)
}
