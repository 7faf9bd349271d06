package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_auth_events_total",
		Help: "Authentication events by kind and result",
	}, []string{"event", "result"})

	votesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_votes_total",
		Help: "Votes cast by target type and value",
	}, []string{"target", "value"})

	contentCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_content_created_total",
		Help: "Posts, answers and comments created",
	}, []string{"kind"})

	socketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agora_websocket_connections",
		Help: "Open notification sockets",
	})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_notifications_total",
		Help: "Notification deliveries by result",
	}, []string{"result"})

	mailDispatch = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_mail_dispatch_total",
		Help: "Outgoing mail by template and result",
	}, []string{"template", "result"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"scope"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func ObserveAuth(event string, ok bool) {
	authEvents.WithLabelValues(event, result(ok)).Inc()
}

func ObserveVote(target string, value int) {
	label := "withdraw"
	switch value {
	case 1:
		label = "up"
	case -1:
		label = "down"
	}
	votesCast.WithLabelValues(target, label).Inc()
}

func ObserveContentCreated(kind string) {
	contentCreated.WithLabelValues(kind).Inc()
}

func SocketOpened() { socketConnections.Inc() }
func SocketClosed() { socketConnections.Dec() }

func ObserveNotification(delivered bool) {
	if delivered {
		notifications.WithLabelValues("delivered").Inc()
		return
	}
	notifications.WithLabelValues("dropped").Inc()
}

func ObserveMail(template string, ok bool) {
	mailDispatch.WithLabelValues(template, result(ok)).Inc()
}

func ObserveRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
