package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkerhub_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkerhub_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Ledger metrics
	ConversationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkerhub_conversations_created_total",
			Help: "Conversations created or reused on booking request",
		},
		[]string{"outcome"}, // "created" or "reused"
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkerhub_transitions_total",
			Help: "Applied conversation status transitions",
		},
		[]string{"event", "to"},
	)

	TransitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkerhub_transition_conflicts_total",
			Help: "Guarded transitions refused because of the current status",
		},
		[]string{"event"},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkerhub_messages_sent_total",
			Help: "Total messages sent",
		},
	)

	SupportForks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkerhub_support_forks_total",
			Help: "Manual-payment support conversations opened",
		},
		[]string{"outcome"}, // "created", "reused" or "failed"
	)

	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkerhub_payment_verifications_total",
			Help: "Hosted-checkout verification results",
		},
		[]string{"result"},
	)

	// Realtime metrics
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkerhub_sse_clients",
			Help: "Connected SSE clients",
		},
	)

	SSEDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkerhub_sse_dropped_total",
			Help: "Events not queued because a connection buffer was full",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkerhub_events_published_total",
			Help: "Realtime events published",
		},
		[]string{"type"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkerhub_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)
)
