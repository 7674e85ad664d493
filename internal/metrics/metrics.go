package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PastesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_pastes_created_total",
		Help: "no. of pastes created",
	})
	PastesUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_pastes_updated_total",
		Help: "no. of pastes updated",
	})
	PastesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_pastes_deleted_total",
		Help: "no. of pastes deleted by their owner",
	})
	PastesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_pastes_read_total",
		Help: "no. of pastes served",
	})
	PastesExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pastebin_pastes_expired_total",
			Help: "no. of expired pastes removed",
		},
		[]string{"by"},
	)
	NameCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_name_collisions_total",
		Help: "no. of generated short names that were already taken",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_cache_hits_total",
		Help: "no. of read cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_cache_misses_total",
		Help: "no. of read cache misses",
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pastebin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_rate_limit_hits_total",
		Help: "no. of requests rejected by the rate limiter",
	})
)
