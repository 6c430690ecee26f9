package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry Metrics
var (
	// RegistryUsers tracks number of user buckets with at least one live session
	RegistryUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_users",
			Help: "Number of users with at least one live session",
		},
	)

	// RegistrySessions tracks total live sessions across all users
	RegistrySessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_sessions",
			Help: "Total live sessions across all users",
		},
	)

	// RegistryUnauthenticatedSessions tracks sessions occupying registry space before authenticating
	RegistryUnauthenticatedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_unauthenticated_sessions",
			Help: "Registered sessions that have not yet completed the authentication handshake",
		},
	)
)

// Dispatcher Metrics
var (
	// EventsPublishedTotal tracks events accepted by the dispatcher by kind and outcome
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events handed to the dispatcher by kind and outcome (delivered/no_sessions/broadcast)",
		},
		[]string{"kind", "outcome"},
	)

	// DeliveryAttemptsTotal tracks per-session delivery attempts by result
	DeliveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Per-session delivery attempts by result (sent/unauthenticated/dropped)",
		},
		[]string{"result"},
	)
)

// Session Metrics
var (
	// SessionsOpenedTotal tracks accepted WebSocket connections by result
	SessionsOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_opened_total",
			Help: "WebSocket connection attempts by result (accepted/rejected/upgrade_error)",
		},
		[]string{"result"},
	)

	// SessionDuration tracks how long sessions stay connected
	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_duration_seconds",
			Help:    "WebSocket session duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)

	// SessionSendDuration tracks outbound frame write duration
	SessionSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_send_duration_seconds",
			Help:    "Outbound frame write duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// HeartbeatReapsTotal tracks sessions force-closed after heartbeat silence
	HeartbeatReapsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeat_reaps_total",
			Help: "Sessions force-closed because no pong arrived within the heartbeat timeout",
		},
	)

	// HeartbeatPingFailures tracks ping write failures
	HeartbeatPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeat_ping_failures_total",
			Help: "Ping writes that failed (client likely gone)",
		},
	)

	// SlowSessionsClosedTotal tracks sessions closed because their send buffer was full
	SlowSessionsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slow_sessions_closed_total",
			Help: "Sessions closed because the outbound buffer could not accept a delivery",
		},
	)
)

// Authentication Metrics
var (
	// AuthAttemptsTotal tracks in-band credential frames by result
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "In-band authentication attempts by result (ok/invalid_token/identity_mismatch/no_identity)",
		},
		[]string{"result"},
	)
)

// Connection Limit Metrics
var (
	// ConnectionsRejectedTotal tracks rejected connection attempts by reason
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connections_rejected_total",
			Help: "WebSocket connections rejected by reason (global_limit/ip_limit)",
		},
		[]string{"reason"},
	)

	// ConnectionCapacity tracks global connection capacity utilization as percentage
	ConnectionCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connection_capacity_percent",
			Help: "Global WebSocket connection capacity utilization (0-100%)",
		},
	)

	// UniqueIPs tracks number of unique IP addresses with active connections
	UniqueIPs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connection_unique_ips",
			Help: "Number of unique IP addresses with active WebSocket connections",
		},
	)
)

// Redis Feed Metrics
var (
	// FeedMessagesTotal tracks Redis feed messages by result
	FeedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_messages_total",
			Help: "Redis feed messages by result (published/malformed/rejected)",
		},
		[]string{"result"},
	)

	// FeedConnected tracks whether the Redis feed subscription is up
	FeedConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_connected",
			Help: "1 if the Redis event feed subscription is active, 0 otherwise",
		},
	)

	// FeedReconnectsTotal tracks feed resubscribe attempts
	FeedReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_reconnects_total",
			Help: "Redis feed resubscribe attempts after a dropped subscription",
		},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)
