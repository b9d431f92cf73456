package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IndexStats is a point-in-time view of the index.
type IndexStats struct {
	Live     int
	Total    int
	Capacity int
}

// IndexSource reports index state at scrape time.
type IndexSource interface {
	IndexStats() IndexStats
}

// Collector exports index gauges by querying an IndexSource on scrape.
type Collector struct {
	source IndexSource

	entries  *prometheus.Desc
	expired  *prometheus.Desc
	capacity *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source IndexSource) *Collector {
	return &Collector{
		source: source,
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "index", "entries"),
			"Non-expired entries in the index",
			nil, nil),
		expired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "index", "expired_entries"),
			"Expired entries waiting for the reaper",
			nil, nil),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "index", "capacity"),
			"Maximum number of index entries",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.expired
	ch <- c.capacity
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.IndexStats()
	expired := s.Total - s.Live
	if expired < 0 {
		expired = 0
	}
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Live))
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.GaugeValue, float64(expired))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
}

// RegisterCollector registers c with the registry.
func (r *Registry) RegisterCollector(c prometheus.Collector) error {
	if r == nil {
		return nil
	}
	return r.registry.Register(c)
}
