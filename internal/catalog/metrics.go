package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider call outcomes.
const (
	outcomeHit     = "hit"
	outcomeMiss    = "miss"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
	outcomeCached  = "cached"
)

var (
	// ProviderRequestsTotal counts adapter calls by provider and outcome.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_catalog_provider_requests_total",
			Help: "Total number of catalog provider calls",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderDuration tracks adapter call latency.
	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwise_catalog_provider_duration_seconds",
			Help:    "Duration of catalog provider calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	// LookupsTotal counts router lookups by container, mode and outcome.
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_catalog_lookups_total",
			Help: "Total number of catalog lookups",
		},
		[]string{"container", "mode", "outcome"},
	)

	// ConfigReloadsTotal counts provider config reloads by result.
	ConfigReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwise_catalog_config_reloads_total",
			Help: "Total number of provider config reloads",
		},
		[]string{"result"},
	)
)
