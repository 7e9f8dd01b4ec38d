package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthDecisions tracks authorization outcomes by result and deny reason
	AuthDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_authorize_decisions_total",
		Help: "Total number of authorization decisions",
	}, []string{"result", "reason"})

	// EvaluationDuration tracks time spent in the authorization pipeline
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "keygate_authorize_duration_seconds",
		Help:    "Histogram of authorization evaluation duration",
		Buckets: prometheus.DefBuckets,
	})

	// KeysIssued tracks issued keys by kind
	KeysIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_keys_issued_total",
		Help: "Total number of API keys issued",
	}, []string{"kind"})

	// KeysRevoked tracks revoked keys
	KeysRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keygate_keys_revoked_total",
		Help: "Total number of API keys revoked",
	})
)
