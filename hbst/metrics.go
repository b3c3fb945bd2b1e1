package hbst

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds optional Prometheus collectors for a tree. A nil *Metrics is a no-op.
type Metrics struct {
	MatchablesAdded  prometheus.Counter
	MatchablesMerged prometheus.Counter
	LeafSplits       prometheus.Counter
	Queries          *prometheus.CounterVec
	LeafScanSize     prometheus.Histogram
	Leaves           prometheus.Gauge
	Matchables       prometheus.Gauge
}

// NewMetrics registers the tree collectors on reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MatchablesAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matchables_added_total",
			Help:      "Total number of matchables integrated into the tree",
		}),
		MatchablesMerged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matchables_merged_total",
			Help:      "Total number of matchables absorbed by an existing resident",
		}),
		LeafSplits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaf_splits_total",
			Help:      "Total number of leaves turned into internal nodes",
		}),
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_descriptors_total",
			Help:      "Total number of query descriptors processed, by operation",
		}, []string{"op"}),
		LeafScanSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "leaf_scan_size",
			Help:      "Number of leaf residents compared per query descriptor",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		Leaves: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leaves",
			Help:      "Current number of leaves",
		}),
		Matchables: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matchables",
			Help:      "Current number of stored (compressed) matchables",
		}),
	}
}

func (m *Metrics) added(n int) {
	if m == nil || n == 0 {
		return
	}
	m.MatchablesAdded.Add(float64(n))
}

func (m *Metrics) merged(n int) {
	if m == nil || n == 0 {
		return
	}
	m.MatchablesMerged.Add(float64(n))
}

func (m *Metrics) split() {
	if m == nil {
		return
	}
	m.LeafSplits.Inc()
}

func (m *Metrics) queried(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Queries.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) scanned(n int) {
	if m == nil {
		return
	}
	m.LeafScanSize.Observe(float64(n))
}

func (m *Metrics) size(leaves, matchables uint64) {
	if m == nil {
		return
	}
	m.Leaves.Set(float64(leaves))
	m.Matchables.Set(float64(matchables))
}
