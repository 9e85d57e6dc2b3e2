package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hydration results, used as the "result" label of HydrationsTotal.
const (
	hydrateFound   = "found"
	hydrateEmpty   = "empty"
	hydrateCorrupt = "corrupt"
	hydrateError   = "error"
)

var (
	// MutationsTotal counts mutations that changed a cart, by operation.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Total number of cart mutations that changed state",
		},
		[]string{"operation"},
	)

	// PersistFailuresTotal counts snapshot saves that failed. The session
	// keeps working from memory when this happens.
	PersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_persist_failures_total",
			Help: "Total number of cart snapshot saves that failed",
		},
	)

	// HydrationsTotal counts store hydrations by outcome.
	HydrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_hydrations_total",
			Help: "Total number of cart hydrations from persistence by result",
		},
		[]string{"result"},
	)

	// LiveStores is the number of session stores held in memory.
	LiveStores = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cart_live_stores",
			Help: "Number of cart session stores currently held in memory",
		},
	)

	// EvictionsTotal counts stores dropped by the idle sweeper.
	EvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_evictions_total",
			Help: "Total number of idle cart stores evicted from memory",
		},
	)
)
