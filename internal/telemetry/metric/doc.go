// Package metric provides Prometheus metrics for filekv.
//
//   - prometheus.go: Registry with counters/histograms and the HTTP handler
//   - collector.go: Collector exporting index state on scrape
//
// Metrics are exposed at /metrics in Prometheus format. A nil *Registry is
// valid and records nothing, so components can be built without metrics.
package metric
