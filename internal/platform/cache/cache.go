// Package cache provides write-once, time-boxed string caches shared by the
// organisation, custodian, hashtag and telemetry-context lookups.
package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rosterclaim_cache_lookups_total",
	Help: "Cache lookups partitioned by cache name and result (hit, miss)",
}, []string{"cache", "result"})

func recordLookup(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	lookups.WithLabelValues(name, result).Inc()
}
