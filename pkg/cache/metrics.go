package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks lookups that returned a live entry.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storybook_image_cache_hits_total",
			Help: "Total number of image cache hits",
		},
	)

	// cacheMisses tracks lookups for absent or expired keys.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storybook_image_cache_misses_total",
			Help: "Total number of image cache misses",
		},
	)

	// cacheEvictions tracks removed entries by reason.
	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storybook_image_cache_evictions_total",
			Help: "Total number of image cache evictions",
		},
		[]string{"reason"}, // "lru", "expired"
	)

	// cacheEntries tracks the current number of stored entries.
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storybook_image_cache_entries",
			Help: "Current number of entries in the image cache",
		},
	)
)
