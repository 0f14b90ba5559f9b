package hooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Skryldev/image-fetcher/core"
)

// PromMetrics exports fetch metrics to a Prometheus registry.
type PromMetrics struct {
	stageSeconds *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	fetchSeconds *prometheus.HistogramVec
	throughputB  prometheus.Counter
	errorsTotal  *prometheus.CounterVec
}

// NewPromMetrics registers the fetcher's metrics on reg and returns the
// collector. Pass nil to use the default registerer; pass a fresh registry
// when constructing more than one collector per process.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PromMetrics{
		stageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imagefetcher",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"stage"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagefetcher",
			Name:      "cache_lookups_total",
			Help:      "Disk cache lookups by result",
		}, []string{"result"}),
		fetchSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imagefetcher",
			Name:      "fetch_duration_seconds",
			Help:      "End-to-end fetch latency by outcome",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		throughputB: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "imagefetcher",
			Name:      "payload_bytes_total",
			Help:      "Total payload bytes run through pipelines",
		}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagefetcher",
			Name:      "errors_total",
			Help:      "Errors by stage and category",
		}, []string{"stage", "category"}),
	}
}

func (m *PromMetrics) RecordStageTime(stage string, d time.Duration) {
	m.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *PromMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *PromMetrics) RecordFetchOutcome(outcome string, d time.Duration) {
	m.fetchSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *PromMetrics) RecordThroughput(bytes int64) {
	m.throughputB.Add(float64(bytes))
}

func (m *PromMetrics) RecordError(stage string, category string) {
	m.errorsTotal.WithLabelValues(stage, category).Inc()
}

var _ core.MetricsCollector = (*PromMetrics)(nil)
