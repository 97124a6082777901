// pkg/server/selfmetrics.go

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collection error reasons.
const (
	ReasonCommand     = "command"
	ReasonOutput      = "output"
	ReasonBreakerOpen = "breaker_open"
)

// selfMetrics describe the exporter itself. They live on their own registry
// so the borg gauges registry only ever holds borg data.
type selfMetrics struct {
	registry    *prometheus.Registry
	errors      *prometheus.CounterVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

func newSelfMetrics() *selfMetrics {
	m := &selfMetrics{
		registry: prometheus.NewRegistry(),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "borgmatic_exporter_collect_errors_total",
			Help: "Collection passes that failed or were skipped, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "borgmatic_exporter_collect_duration_seconds",
			Help:    "Duration of collection passes that ran borgmatic.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "borgmatic_exporter_last_collect_success",
			Help: "1 if the last collection pass updated every repository, 0 otherwise.",
		}),
	}
	m.registry.MustRegister(
		m.errors,
		m.duration,
		m.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	// expose every reason from the first scrape
	for _, r := range []string{ReasonCommand, ReasonOutput, ReasonBreakerOpen} {
		m.errors.WithLabelValues(r)
	}
	return m
}
