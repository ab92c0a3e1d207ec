package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts persisted notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_notifications_created_total",
		Help: "Total number of persisted notifications by type",
	}, []string{"type"})

	// NotificationsSuppressed counts notifications dropped before persistence.
	NotificationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_notifications_suppressed_total",
		Help: "Total number of notifications suppressed before persistence",
	}, []string{"reason"})

	// RealtimePushes counts realtime delivery attempts by outcome.
	RealtimePushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_realtime_push_total",
		Help: "Realtime notification pushes by result",
	}, []string{"result"})

	// RealtimeConnections is the gauge of registered realtime clients.
	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_realtime_connections",
		Help: "Number of registered realtime connections",
	})

	// LikeToggles counts like toggles by target kind and action.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_like_toggles_total",
		Help: "Like toggles by target and action",
	}, []string{"target", "action"})

	// TrendingSweepPosts counts posts rescored by the periodic sweep.
	TrendingSweepPosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_trending_sweep_posts_total",
		Help: "Posts rescored by the trending sweep",
	})

	// FeedRequests counts assembled feed pages by sort mode and personalization.
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_feed_requests_total",
		Help: "Feed pages assembled by sort mode and personalization",
	}, []string{"mode", "personalized"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)
