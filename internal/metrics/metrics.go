// Package metrics holds the Prometheus collectors shared by the suite.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Provider labels for ExternalAPICallsTotal.
const (
	ProviderLLM      = "azure_openai"
	ProviderDocIntel = "document_intelligence"
	ProviderWhisper  = "whisper"
	ProviderPostgres = "postgres"
	ProviderSQLite   = "sqlite"
	ProviderDrive    = "google_drive"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suite_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "suite_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "endpoint"},
	)
	ExternalAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_api_calls_total",
			Help: "Total number of external API calls",
		},
		[]string{"provider", "status"},
	)
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline runs by pipeline and last node visited",
		},
		[]string{"pipeline", "exit"},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of summary cache hits",
		},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of summary cache misses",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ExternalAPICallsTotal)
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// ObserveExternal counts one call to an upstream provider.
func ObserveExternal(provider string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ExternalAPICallsTotal.WithLabelValues(provider, status).Inc()
}
