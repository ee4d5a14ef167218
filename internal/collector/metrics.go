package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess   = "success"
	resultTransport = "transport"
	resultSave      = "save"
)

type metrics struct {
	collects *prometheus.CounterVec
	records  prometheus.Counter
	duration prometheus.Histogram
}

// newMetrics registers the collector metrics on reg. A nil reg creates
// unregistered metrics.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		collects: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackcollector_collect_total",
				Help: "Number of collections from a target, by result.",
			},
			[]string{"result"},
		),
		records: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "stackcollector_records_appended_total",
				Help: "Number of stack records appended to the store.",
			},
		),
		duration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stackcollector_collect_duration_seconds",
				Help:    "Time taken to collect from one target, store write included.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	for _, result := range []string{resultSuccess, resultTransport, resultSave} {
		m.collects.WithLabelValues(result)
	}

	return m
}
