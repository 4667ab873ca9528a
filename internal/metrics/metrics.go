// Package metrics holds the Prometheus collectors of the core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	// ContentLookups counts resolutions by tier: memory, local, network, failed.
	ContentLookups = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "sefaria",
		Name:      "content_lookups_total",
		Help:      "Content cache resolutions by tier.",
	}, []string{"tier"})

	Downloads = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "sefaria",
		Name:      "downloads_total",
		Help:      "Archive transfers by result.",
	}, []string{"result"})

	DownloadQueueLength = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "sefaria",
		Name:      "download_queue_length",
		Help:      "Titles waiting in the download queue.",
	})

	HTTPRequests = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "sefaria",
		Name:      "http_requests_total",
		Help:      "API requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sefaria",
		Name:      "http_request_duration_seconds",
		Help:      "API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	HistorySyncs = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "sefaria",
		Name:      "history_syncs_total",
		Help:      "History sync attempts by result.",
	}, []string{"result"})
)

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
