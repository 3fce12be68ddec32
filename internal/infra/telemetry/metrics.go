package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the domain-level Prometheus collectors. HTTP request
// instrumentation lives in the transport middleware.
type Metrics struct {
	LoginOutcomes   *prometheus.CounterVec
	CodesIssued     prometheus.Counter
	IncidentsOpened *prometheus.CounterVec
	AccountsLocked  *prometheus.CounterVec
}

// NewMetrics registers and returns the service metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		LoginOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wfiam",
			Name:      "login_outcomes_total",
			Help:      "Login attempts by outcome code",
		}, []string{"outcome"}),

		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "wfiam",
			Name:      "one_time_codes_issued_total",
			Help:      "One-time codes dispatched across all channels",
		}),

		IncidentsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wfiam",
			Name:      "recovery_incidents_opened_total",
			Help:      "Recovery incidents opened by type",
		}, []string{"type"}),

		AccountsLocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wfiam",
			Name:      "accounts_locked_total",
			Help:      "Accounts disabled after exhausting a failure budget",
		}, []string{"surface"}),
	}
}
