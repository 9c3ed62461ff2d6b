package cogrange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rangeRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogrange_range_requests_total",
		Help: "The total number of range requests issued to range sources",
	})
	rangeBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogrange_range_bytes_total",
		Help: "The total number of bytes fetched from range sources",
	})
	tagCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogrange_tag_cache_hits_total",
		Help: "The total number of hits on the materialized tag cache",
	})
	tagCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogrange_tag_cache_misses_total",
		Help: "The total number of misses on the materialized tag cache",
	})
	coalescedRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogrange_coalesced_runs_total",
		Help: "The total number of range requests that served multiple tiles",
	})
)
