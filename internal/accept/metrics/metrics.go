// Package metrics exposes request pipeline counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idhub_registration_requests_submitted_total",
		Help: "Registration requests submitted, by form and auto decision",
	}, []string{"form", "decision"})

	requestsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idhub_registration_requests_finalized_total",
		Help: "Registration requests accepted or rejected, by form and outcome",
	}, []string{"form", "outcome"})

	acceptanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "idhub_registration_acceptance_duration_seconds",
		Help:    "Latency of the acceptance pipeline",
		Buckets: prometheus.DefBuckets,
	})
)

func IncSubmitted(form, decision string) {
	requestsSubmitted.WithLabelValues(form, decision).Inc()
}

func IncFinalized(form, outcome string) {
	requestsFinalized.WithLabelValues(form, outcome).Inc()
}

func ObserveAcceptance(seconds float64) {
	acceptanceDuration.Observe(seconds)
}
