package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups the admission pipeline's Prometheus collectors.
type Registry struct {
	Decisions         *prometheus.CounterVec
	EstimatorFailures *prometheus.CounterVec
	LedgerOutcomes    *prometheus.CounterVec
	ChallengeOutcomes *prometheus.CounterVec
	ThreatAlerts      prometheus.Counter
	ScoreLatency      prometheus.Histogram
}

func NewRegistry() *Registry {
	return &Registry{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "admitgate_decisions_total",
			Help: "Admission decisions by action",
		}, []string{"action"}),
		EstimatorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "admitgate_estimator_failures_total",
			Help: "Ensemble estimator failures by estimator name",
		}, []string{"estimator"}),
		LedgerOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "admitgate_ledger_outcomes_total",
			Help: "Ledger reservation and debit outcomes",
		}, []string{"operation", "outcome"}),
		ChallengeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "admitgate_challenge_outcomes_total",
			Help: "Challenge resolutions by terminal status",
		}, []string{"type", "status"}),
		ThreatAlerts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "admitgate_threat_alerts_total",
			Help: "High-confidence threat alerts emitted",
		}),
		ScoreLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "admitgate_score_latency_seconds",
			Help:    "Risk scoring latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
