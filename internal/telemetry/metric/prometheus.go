package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filekv"

// Operation results used as the "result" label when no error code applies.
const (
	ResultOK = "ok"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Store operations
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	LockContention    prometheus.Counter

	// Index
	IndexEvictions prometheus.Counter

	// Reaper
	ReaperSweeps        prometheus.Counter
	ReaperReaped        prometheus.Counter
	ReaperFailures      prometheus.Counter
	ReaperAbandoned     prometheus.Counter
	ReaperSweepDuration prometheus.Histogram
}

var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// NewRegistry creates a registry with all filekv metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,

		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by type and result",
		}, []string{"op", "result"}),

		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"op"}),

		LockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Operations rejected because a key or file lock was held",
		}),

		IndexEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "evictions_total",
			Help:      "Entries dropped from the index at capacity",
		}),

		ReaperSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "sweeps_total",
			Help:      "Completed reaper sweeps",
		}),

		ReaperReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "reaped_total",
			Help:      "Expired entries removed by the reaper",
		}),

		ReaperFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "failures_total",
			Help:      "Expired record deletions that failed and will be retried",
		}),

		ReaperAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "abandoned_total",
			Help:      "Expired entries dropped after repeated delete failures; their files remain on disk",
		}),

		ReaperSweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "sweep_duration_seconds",
			Help:      "Reaper sweep latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		r.OperationsTotal,
		r.OperationDuration,
		r.LockContention,
		r.IndexEvictions,
		r.ReaperSweeps,
		r.ReaperReaped,
		r.ReaperFailures,
		r.ReaperAbandoned,
		r.ReaperSweepDuration,
	)

	return r
}

// Registerer exposes the underlying registry for extra collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Handler returns the /metrics handler of the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// ObserveOperation records one store operation.
func (r *Registry) ObserveOperation(op, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.OperationsTotal.WithLabelValues(op, result).Inc()
	r.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// IncLockContention counts an operation rejected by a held lock.
func (r *Registry) IncLockContention() {
	if r == nil {
		return
	}
	r.LockContention.Inc()
}

// IncIndexEviction counts an index capacity eviction.
func (r *Registry) IncIndexEviction() {
	if r == nil {
		return
	}
	r.IndexEvictions.Inc()
}

// ObserveSweep records a completed reaper sweep.
func (r *Registry) ObserveSweep(reaped, failed, abandoned int, d time.Duration) {
	if r == nil {
		return
	}
	r.ReaperSweeps.Inc()
	r.ReaperReaped.Add(float64(reaped))
	r.ReaperFailures.Add(float64(failed))
	r.ReaperAbandoned.Add(float64(abandoned))
	r.ReaperSweepDuration.Observe(d.Seconds())
}
