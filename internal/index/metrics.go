package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels: tree, flavour (keyword, semantic).
var (
	// ObjectsIndexed counts documents written to the full collection.
	ObjectsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grampsindex",
			Subsystem: "indexer",
			Name:      "objects_indexed_total",
			Help:      "Objects written to the search index",
		},
		[]string{"tree", "flavour"},
	)

	// ObjectsDeleted counts objects removed from both collections.
	ObjectsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grampsindex",
			Subsystem: "indexer",
			Name:      "objects_deleted_total",
			Help:      "Objects removed from the search index",
		},
		[]string{"tree", "flavour"},
	)

	// ReindexDuration observes bulk runs. Extra label: mode (full, incremental).
	ReindexDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grampsindex",
			Subsystem: "indexer",
			Name:      "reindex_duration_seconds",
			Help:      "Duration of reindex runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"tree", "flavour", "mode"},
	)

	// SearchDuration observes Search calls.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grampsindex",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Duration of search requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tree", "flavour"},
	)

	// Errors counts failed operations. Extra label: operation.
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grampsindex",
			Subsystem: "indexer",
			Name:      "errors_total",
			Help:      "Failed index operations",
		},
		[]string{"tree", "flavour", "operation"},
	)
)

func (ix *Indexer) recordError(op string) {
	Errors.WithLabelValues(ix.tree, string(ix.flavour), op).Inc()
}
