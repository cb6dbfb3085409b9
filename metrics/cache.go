package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type CacheReadStatus string

const (
	CacheReadStatusHit      CacheReadStatus = "hit"
	CacheReadStatusMiss     CacheReadStatus = "miss"
	CacheReadStatusBadValue CacheReadStatus = "bad_value" // Value in cache was not valid (likely because of mismatched types / CBOR encoding).
	CacheReadStatusError    CacheReadStatus = "error"     // Other internal error reading from cache.
)

// CacheMetrics counts reads of a local cache.
type CacheMetrics struct {
	cache           string
	localCacheReads *prometheus.CounterVec
}

func NewDefaultCacheMetrics(cache string) *CacheMetrics {
	return &CacheMetrics{
		cache: cache,
		localCacheReads: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "local_cache_reads",
				Help: "How many local cache reads occur, partitioned by status (hit, miss, bad_data, error).",
			},
			[]string{"cache", "status"},
		)),
	}
}

// LocalCacheReads returns the counter for the local cache read.
func (m *CacheMetrics) LocalCacheReads(status CacheReadStatus) prometheus.Counter {
	return m.localCacheReads.WithLabelValues(m.cache, string(status))
}
