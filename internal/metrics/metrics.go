package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FixesIngestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotrack_fixes_ingested_total",
		Help: "Total number of fixes accepted by the ingest endpoint",
	})
	BroadcastFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotrack_broadcast_fail_total",
		Help: "Total number of failed broadcast publishes",
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotrack_prefix_cache_hits_total",
		Help: "Prefix cache lookups answered from cache",
	}, []string{"cache"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotrack_prefix_cache_misses_total",
		Help: "Prefix cache lookups that fell through to the store",
	}, []string{"cache"})
	ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotrack_resolutions_total",
		Help: "Resolutions by region kind and outcome (resolved, unresolved, error)",
	}, []string{"kind", "outcome"})
	TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotrack_presence_transitions_total",
		Help: "Presence transitions by kind",
	}, []string{"kind"})
	ItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotrack_work_items_total",
		Help: "Processed work items by outcome (updated, unresolved, failed)",
	}, []string{"outcome"})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geotrack_queue_depth",
		Help: "Pending work items waiting for enrichment",
	})
	ProcessDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geotrack_process_duration_ms",
		Help:    "Per-item enrichment duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
)

func init() {
	prometheus.MustRegister(FixesIngestedTotal)
	prometheus.MustRegister(BroadcastFailTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(ResolutionsTotal)
	prometheus.MustRegister(TransitionsTotal)
	prometheus.MustRegister(ItemsTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(ProcessDurationMs)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
