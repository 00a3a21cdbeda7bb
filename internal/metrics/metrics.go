package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "rankedbedwars"

// Collectors holds every metric the core records. A nil *Collectors is valid
// and records nothing.
type Collectors struct {
	gamesScored     *prometheus.CounterVec
	gamesVoided     prometheus.Counter
	rejected        *prometheus.CounterVec
	playerFailures  *prometheus.CounterVec
	platformErrors  *prometheus.CounterVec
	reconcileTiming prometheus.Histogram
	teardowns       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		gamesScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_scored_total",
			Help:      "Games transitioned to scored, by game type.",
		}, []string{"gametype"}),
		gamesVoided: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_voided_total",
			Help:      "Games transitioned to voided.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_rejected_total",
			Help:      "Operations rejected because the game was missing or in an ineligible state.",
		}, []string{"op"}),
		playerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "player_update_failures_total",
			Help:      "Per-player failures recovered inside a batch.",
		}, []string{"op"}),
		platformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_errors_total",
			Help:      "Failed platform calls by kind.",
		}, []string{"kind"}),
		reconcileTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent reconciling one player.",
			Buckets:   prometheus.DefBuckets,
		}),
		teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teardowns_total",
			Help:      "Scheduled channel teardowns by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		c.gamesScored,
		c.gamesVoided,
		c.rejected,
		c.playerFailures,
		c.platformErrors,
		c.reconcileTiming,
		c.teardowns,
	)
	return c
}

// NewRegistry is the fx constructor for the process registry.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewFromRegistry(reg *prometheus.Registry) *Collectors {
	return New(reg)
}

func (c *Collectors) GameScored(gameType string) {
	if c == nil {
		return
	}
	c.gamesScored.WithLabelValues(gameType).Inc()
}

func (c *Collectors) GameVoided() {
	if c == nil {
		return
	}
	c.gamesVoided.Inc()
}

func (c *Collectors) Rejected(op string) {
	if c == nil {
		return
	}
	c.rejected.WithLabelValues(op).Inc()
}

func (c *Collectors) PlayerFailure(op string) {
	if c == nil {
		return
	}
	c.playerFailures.WithLabelValues(op).Inc()
}

func (c *Collectors) PlatformError(kind string) {
	if c == nil {
		return
	}
	c.platformErrors.WithLabelValues(kind).Inc()
}

func (c *Collectors) ObserveReconcile(d time.Duration) {
	if c == nil {
		return
	}
	c.reconcileTiming.Observe(d.Seconds())
}

func (c *Collectors) Teardown(outcome string) {
	if c == nil {
		return
	}
	c.teardowns.WithLabelValues(outcome).Inc()
}
