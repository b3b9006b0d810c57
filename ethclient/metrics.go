package ethclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civilchain_ledger_calls_total",
			Help: "Total number of calls made to the ledger by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	ledgerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "civilchain_ledger_call_duration_seconds",
			Help:    "Time taken by ledger calls, writes include waiting for the receipt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ledgerCalls.WithLabelValues(op, outcome).Inc()
	ledgerCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
