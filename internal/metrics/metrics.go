// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Simulations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scalysis",
		Name:      "simulations_total",
		Help:      "Simulations served, by outcome (ok, waiting, error).",
	}, []string{"outcome"})

	SimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scalysis",
		Name:      "simulation_duration_seconds",
		Help:      "Time to assemble a simulation including curve and order supply.",
		Buckets:   prometheus.DefBuckets,
	})

	CurveCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scalysis",
		Name:      "curve_cache_total",
		Help:      "Curve cache lookups, by result (hit, miss).",
	}, []string{"result"})

	FlagOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scalysis",
		Name:      "flag_outcomes_total",
		Help:      "Orders tagged on Shopify, by result (success, failure).",
	}, []string{"result"})

	Webhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scalysis",
		Name:      "webhooks_total",
		Help:      "Webhooks received, by topic and status code.",
	}, []string{"topic", "status"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scalysis",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
