package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip", Name: "cache_events_total", Help: "Cache hits/misses/sets/evictions/expirations."},
		[]string{"cache", "event"}, // event: hit|miss|set|del|evict|expire
	)
	AgentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip", Name: "agent_runs_total", Help: "Domain agent runs by outcome."},
		[]string{"domain", "status"},
	)
	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip", Name: "agent_duration_seconds",
			Help:    "Domain agent run duration seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"domain"},
	)
	Orchestrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip", Name: "orchestrations_total", Help: "Orchestrations by dispatch mode and outcome."},
		[]string{"mode", "outcome"}, // outcome: ok|partial|empty|failed|timeout|early_stop
	)
	ExtractionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip", Name: "extraction_failures_total", Help: "Trace entries skipped by the extractor."},
		[]string{"domain"},
	)
)

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency,
		ExternalRequests, ExternalLatency,
		CacheEvents,
		AgentRuns, AgentLatency, Orchestrations, ExtractionFailures,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve exposes the registry on a dedicated listener when addr is set.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) {
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveCacheN(cache, event string, n int) {
	if n <= 0 {
		return
	}
	CacheEvents.WithLabelValues(cache, event).Add(float64(n))
}

func ObserveAgent(domain string, ok bool, dur time.Duration) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	AgentRuns.WithLabelValues(domain, status).Inc()
	AgentLatency.WithLabelValues(domain).Observe(dur.Seconds())
}

func ObserveOrchestration(mode, outcome string) {
	Orchestrations.WithLabelValues(mode, outcome).Inc()
}

func ObserveExtractionFailure(domain string) {
	ExtractionFailures.WithLabelValues(domain).Inc()
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
