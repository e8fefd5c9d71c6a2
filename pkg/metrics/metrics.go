// Package metrics holds the Prometheus collectors of the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "access_router"

// Dispatch instruments the origin dispatcher.
type Dispatch struct {
	OriginsProcessed *prometheus.CounterVec
	OriginDuration   prometheus.Histogram
	WorkerFailures   prometheus.Counter
	ActiveWorkers    prometheus.Gauge
	BatchDuration    prometheus.Histogram
}

// NewDispatch registers dispatcher collectors with reg. A nil reg uses a
// private registry, which keeps tests from colliding on the default one.
func NewDispatch(reg prometheus.Registerer) *Dispatch {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Dispatch{
		OriginsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "origins_total",
			Help:      "Origins processed, by outcome",
		}, []string{"status"}),
		OriginDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "origin_duration_seconds",
			Help:      "Time to compute all trees of one origin",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		WorkerFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "worker_failures_total",
			Help:      "Workers that stopped with an error or panic",
		}),
		ActiveWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "active_workers",
			Help:      "Workers currently draining the origin queue",
		}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a dispatcher batch",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
}

// HTTP instruments the API server.
type HTTP struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

// NewHTTP registers API collectors with reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &HTTP{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route and status code",
		}, []string{"route", "code"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
