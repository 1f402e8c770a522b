package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datapoint",
			Name:      "cache_hits_total",
			Help:      "Cache namespace reads served without the store.",
		},
		[]string{"tier"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datapoint",
			Name:      "cache_misses_total",
			Help:      "Cache namespace reads that fell back to the store.",
		},
		[]string{"tier"},
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datapoint",
			Name:      "cache_errors_total",
			Help:      "Cache operations that failed and were degraded to misses.",
		},
		[]string{"tier"},
	)

	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "datapoint",
			Name:      "cache_invalidations_total",
			Help:      "Namespace invalidations issued after store mutations.",
		},
		[]string{"tier"},
	)
)

// Cache tier label values.
const (
	TierDevice    = "device"
	TierDeveloper = "developer"
	TierPlatform  = "platform"
)

func CacheHit(tier string)          { cacheHits.WithLabelValues(tier).Inc() }
func CacheMiss(tier string)         { cacheMisses.WithLabelValues(tier).Inc() }
func CacheError(tier string)        { cacheErrors.WithLabelValues(tier).Inc() }
func CacheInvalidation(tier string) { cacheInvalidations.WithLabelValues(tier).Inc() }
