package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tms_cache_lookups_total",
			Help: "Cache lookups by outcome",
		},
		[]string{"view", "outcome"}, // HIT, MISS, BYPASS
	)

	lookupSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tms_cache_lookup_duration_seconds",
			Help:    "Time to serve a cacheable read, including the store load on a miss",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"view", "outcome"},
	)

	storeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tms_cache_store_errors_total",
			Help: "Cache backend failures by operation",
		},
		[]string{"op"}, // get, set, delete
	)
)
