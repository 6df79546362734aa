package monitor

import (
	"math"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"onlinemon/internal/factory"
	"onlinemon/internal/histogram"
	"onlinemon/internal/registry"
)

// DefaultMaxBuckets caps the exported buckets per histogram.
const DefaultMaxBuckets = 32

// Collector exports every histogram on scrape: 1-D histograms as Prometheus
// histograms with coarsened buckets, and entry counts for all of them.
type Collector struct {
	reg        *registry.Registry
	table      *factory.Table
	maxBuckets int

	histDesc    *prometheus.Desc
	entriesDesc *prometheus.Desc
}

// NewCollector returns a collector over table. maxBuckets <= 0 uses
// DefaultMaxBuckets.
func NewCollector(reg *registry.Registry, table *factory.Table, maxBuckets int) *Collector {
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	labels := []string{"name", "unique_id"}
	return &Collector{
		reg:        reg,
		table:      table,
		maxBuckets: maxBuckets,
		histDesc: prometheus.NewDesc(
			"onlinemon_histogram",
			"Contents of a monitored 1-D histogram",
			labels, nil,
		),
		entriesDesc: prometheus.NewDesc(
			"onlinemon_histogram_entries",
			"Fills since the last reset of a monitored histogram",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.histDesc
	ch <- c.entriesDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	entries := c.reg.Entries()
	for i, h := range c.table.Histograms() {
		snap := h.Snapshot()
		labels := []string{entries[i].Name, strconv.FormatInt(int64(entries[i].Unique), 10)}

		ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue, float64(snap.Entries), labels...)
		if snap.Dimension != 1 {
			continue
		}
		ch <- prometheus.MustNewConstHistogram(c.histDesc, snap.Entries, snap.Sum, cumulativeBuckets(snap, c.maxBuckets), labels...)
	}
}

// cumulativeBuckets converts bin counts into at most max cumulative buckets
// keyed by upper edge. Underflow counts into every bucket and overflow only
// into the implicit +Inf bucket.
func cumulativeBuckets(snap histogram.Snapshot, max int) map[float64]uint64 {
	bins := snap.X.Bins
	step := int(math.Ceil(float64(bins) / float64(max)))
	out := make(map[float64]uint64, bins/step+1)

	cum := snap.Counts[0]
	for i := 1; i <= bins; i++ {
		cum += snap.Counts[i]
		if i%step == 0 || i == bins {
			out[snap.X.UpperEdge(i)] = cum
		}
	}
	return out
}
