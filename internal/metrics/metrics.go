package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Labels are bounded: no player or room ids.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "duel_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167},
	})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duel_active_rooms",
		Help: "Rooms currently hosting a match",
	})

	connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duel_websocket_connections",
		Help: "Currently connected websocket clients",
	})

	violations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duel_violations_total",
		Help: "Anti-cheat violations by type",
	}, []string{"type"}) // speed_hack, timestamp_mismatch, fire_rate, invalid_input

	kicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duel_kicks_total",
		Help: "Players kicked by anti-cheat",
	})

	hits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duel_hits_total",
		Help: "Confirmed projectile hits",
	}, []string{"lag_compensated"})

	deaths = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duel_deaths_total",
		Help: "Player deaths",
	})

	poolFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duel_projectile_pool_fallbacks_total",
		Help: "Projectiles allocated outside the pool",
	})

	snapshotBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "duel_snapshot_bytes",
		Help:    "Encoded snapshot size",
		Buckets: prometheus.ExponentialBuckets(64, 2, 8),
	})

	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duel_messages_dropped_total",
		Help: "Websocket messages dropped",
	}, []string{"reason"}) // rate_limit, buffer_full

	auditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duel_audit_dropped_total",
		Help: "Audit records dropped because the sink was full",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

func SetActiveRooms(n int) {
	activeRooms.Set(float64(n))
}

func SetConnections(n int) {
	connections.Set(float64(n))
}

// RecordViolation counts a violation. kind must be one of the anti-cheat
// violation types.
func RecordViolation(kind string) {
	violations.WithLabelValues(kind).Inc()
}

func RecordKick() {
	kicks.Inc()
}

func RecordHit(lagCompensated bool) {
	label := "false"
	if lagCompensated {
		label = "true"
	}
	hits.WithLabelValues(label).Inc()
}

func RecordDeath() {
	deaths.Inc()
}

func RecordPoolFallbacks(n uint64) {
	if n > 0 {
		poolFallbacks.Add(float64(n))
	}
}

func ObserveSnapshot(size int) {
	snapshotBytes.Observe(float64(size))
}

// RecordMessageDropped counts a dropped websocket message. reason must be
// "rate_limit" or "buffer_full".
func RecordMessageDropped(reason string) {
	messagesDropped.WithLabelValues(reason).Inc()
}

func RecordAuditDropped() {
	auditDropped.Inc()
}

var connectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "duel_connections_rejected_total",
	Help: "Websocket upgrades refused",
}, []string{"reason"}) // origin, upgrade

// RecordConnectionRejected counts a refused websocket upgrade.
func RecordConnectionRejected(reason string) {
	connectionsRejected.WithLabelValues(reason).Inc()
}
