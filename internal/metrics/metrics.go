package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PushMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_messages_total",
		Help: "Inbound event-lifecycle messages by outcome",
	}, []string{"result"})

	NotificationsPostedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_posted_total",
		Help: "Alerts posted to a slot, by phase",
	}, []string{"phase"})

	NotificationsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_cancelled_total",
		Help: "Slot cancellations (clear flag or DISCARDED phase)",
	})

	ImageCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_image_cache_hits_total",
		Help: "Image cache hits across phase handlers",
	})

	ImageCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_image_cache_misses_total",
		Help: "Image cache misses (including TTL expiries)",
	})

	ImageSourceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_image_source_total",
		Help: "Where the notification image finally came from",
	}, []string{"source"})

	UnreadEffective = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "unread_effective_count",
		Help: "Effective unread count after the locally-resolved overlay",
	})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alert_ws_clients",
		Help: "Currently connected alert feed clients",
	})
)

// Handler exposes the default registry for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
