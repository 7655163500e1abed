package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	profileExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idhub_profile_executions_total",
		Help: "Total translation profile executions by outcome",
	}, []string{"profile", "outcome"})

	rulesInvoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idhub_profile_rules_invoked_total",
		Help: "Total rule actions invoked across all profile executions",
	})

	executionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "idhub_profile_execution_duration_seconds",
		Help:    "Duration of translation profile executions",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
)

// ObserveExecution records one finished profile execution.
func ObserveExecution(profile, outcome string, start time.Time) {
	profileExecutions.WithLabelValues(profile, outcome).Inc()
	executionDuration.Observe(time.Since(start).Seconds())
}

// IncRuleInvoked records one invoked rule action.
func IncRuleInvoked() {
	rulesInvoked.Inc()
}
