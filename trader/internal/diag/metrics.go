package diag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traderig",
		Name:      "attempts_total",
		Help:      "Action attempts, by operation name.",
	}, []string{"operation"})
	metricFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traderig",
		Name:      "failures_total",
		Help:      "Failed operations, by failure kind.",
	}, []string{"operation", "kind"})
	metricVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traderig",
		Name:      "verifications_total",
		Help:      "Verification outcomes against the positions table.",
	}, []string{"outcome"})
	metricPositionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traderig",
		Name:      "positions_closed_total",
		Help:      "Positions confirmed closed.",
	})
	metricSnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "traderig",
		Name:      "snapshots_total",
		Help:      "Diagnostic screenshots captured.",
	})
	metricLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traderig",
		Name:      "logins_total",
		Help:      "Login attempts, including session recoveries.",
	}, []string{"outcome"})
)

// RecordAttempts adds the attempt count consumed by an operation.
func RecordAttempts(operation string, n int) {
	if n > 0 {
		metricAttempts.WithLabelValues(operation).Add(float64(n))
	}
}

// RecordFailure counts a terminal operation failure.
func RecordFailure(operation, kind string) {
	metricFailures.WithLabelValues(operation, kind).Inc()
}

// RecordVerification counts a verification outcome ("confirmed" or
// "mismatch").
func RecordVerification(outcome string) {
	metricVerifications.WithLabelValues(outcome).Inc()
}

// RecordPositionClosed counts one confirmed closure.
func RecordPositionClosed() {
	metricPositionsClosed.Inc()
}

// RecordSnapshot counts one captured screenshot.
func RecordSnapshot() {
	metricSnapshots.Inc()
}

// RecordLogin counts a login attempt outcome ("success" or "failure").
func RecordLogin(outcome string) {
	metricLogins.WithLabelValues(outcome).Inc()
}
