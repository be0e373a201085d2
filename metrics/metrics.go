// Package metrics exposes prometheus metrics of the signature ledger, the
// broadcast coordinator and the node client. All metrics register with the
// default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cosign"

var (
	signatures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "signatures_total",
		Help:      "Number of signature submissions by result",
	}, []string{"result"})

	thresholdReached = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "threshold_reached_total",
		Help:      "Number of transactions that became ready to broadcast",
	})

	broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "attempts_total",
		Help:      "Number of broadcast requests by outcome",
	}, []string{"outcome"})

	broadcastDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "node_duration_seconds",
		Help:      "Time spent waiting for the node to accept a transaction",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	nodeRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "node",
		Name:      "request_duration_seconds",
		Help:      "Duration of chain node requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "result"})
)

// SignatureSubmitted counts a ledger submission. Result is "accepted" or an
// error description.
func SignatureSubmitted(result string) {
	signatures.With(prometheus.Labels{"result": result}).Inc()
}

// ThresholdReached counts a transaction that moved to ReadyToBroadcast.
func ThresholdReached() {
	thresholdReached.Inc()
}

// BroadcastOutcome counts a broadcast request.
func BroadcastOutcome(outcome string) {
	broadcasts.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// ObserveBroadcast records how long the node took to answer a broadcast.
func ObserveBroadcast(d time.Duration) {
	broadcastDuration.Observe(d.Seconds())
}

// ObserveNodeRequest records the duration of a node call.
func ObserveNodeRequest(method string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	nodeRequests.With(prometheus.Labels{"method": method, "result": result}).Observe(d.Seconds())
}
