package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unclassifiedLabel is the provider label for requests with no detected provider
const unclassifiedLabel = "none"

// Recorder exposes webhook receiver metrics on its own registry
type Recorder struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	historySize prometheus.Gauge
	snapshots   *prometheus.CounterVec
}

// NewRecorder creates a recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webhookrecv",
			Name:      "requests_total",
			Help:      "Captured requests by method and detected provider.",
		}, []string{"method", "provider"}),
		historySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webhookrecv",
			Name:      "history_size",
			Help:      "Requests currently held in memory.",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webhookrecv",
			Name:      "snapshot_operations_total",
			Help:      "Snapshot save/load operations by result.",
		}, []string{"operation", "result"}),
	}

	r.registry.MustRegister(
		r.requests,
		r.historySize,
		r.snapshots,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveCapture counts a captured request; provider is "" when unclassified
func (r *Recorder) ObserveCapture(method, provider string, historySize int) {
	if provider == "" {
		provider = unclassifiedLabel
	}
	r.requests.WithLabelValues(method, provider).Inc()
	r.historySize.Set(float64(historySize))
}

// SetHistorySize updates the history gauge after clears and restores
func (r *Recorder) SetHistorySize(n int) {
	r.historySize.Set(float64(n))
}

// ObserveSnapshot counts a save or load operation
func (r *Recorder) ObserveSnapshot(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.snapshots.WithLabelValues(operation, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
