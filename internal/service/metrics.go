package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	consistencyErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_consistency_errors_total",
			Help: "Consistency errors escalated for manual review",
		},
		[]string{"operation"},
	)

	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_webhook_events_total",
			Help: "Gateway callbacks by target kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	settlementReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_settlement_releases_total",
			Help: "Earnings released to worker balances by trigger",
		},
		[]string{"trigger"},
	)

	payoutTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payout_transitions_total",
			Help: "Payout request status transitions",
		},
		[]string{"status"},
	)

	gatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_gateway_call_duration_seconds",
			Help:    "Outbound payment gateway call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
