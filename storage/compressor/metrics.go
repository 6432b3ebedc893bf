package compressor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	trials   *prometheus.CounterVec
	selected *prometheus.CounterVec
	ratio    prometheus.Histogram
}

// newMetrics registers with r; a nil r keeps the metrics unregistered.
func newMetrics(r prometheus.Registerer) *metrics {
	return &metrics{
		trials: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "compressor",
			Name:      "trials_total",
			Help:      "Candidate encodings tried, by encoding and outcome.",
		}, []string{"encoding", "outcome"}),
		selected: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "compressor",
			Name:      "selected_total",
			Help:      "Encodings chosen for an array or a child array.",
		}, []string{"encoding"}),
		ratio: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
			Namespace: "cascade",
			Subsystem: "compressor",
			Name:      "ratio",
			Help:      "Uncompressed over compressed size of each compressed array.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}
