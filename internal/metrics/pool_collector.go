package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStatsFunc reports how many connections a storage driver holds open and
// how many of those are checked out by a request.
type PoolStatsFunc func() (open, inUse int64)

// Pool connection states exported on the state label.
const (
	poolOpen  = "open"
	poolInUse = "in_use"
	poolIdle  = "idle"
)

// poolCollector reads the pool on every scrape so the gauges never drift from
// the driver's own view.
type poolCollector struct {
	stats PoolStatsFunc
	conns *prometheus.Desc
}

func newPoolCollector(driver string, stats PoolStatsFunc) *poolCollector {
	return &poolCollector{
		stats: stats,
		conns: prometheus.NewDesc(
			"talentcontrol_db_pool_connections",
			"Connections held by the storage driver, by state.",
			[]string{"state"},
			prometheus.Labels{"driver": driver},
		),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.conns
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	open, inUse := c.stats()
	// In-use can briefly lead open while driver events are in flight.
	open = max(open, 0)
	inUse = min(max(inUse, 0), open)
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(open), poolOpen)
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(inUse), poolInUse)
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(open-inUse), poolIdle)
}
