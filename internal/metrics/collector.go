// internal/metrics/collector.go
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xtbhelper"

// Collector owns the engine's Prometheus metrics. It satisfies the observer
// interfaces of the quote chain, the cache and the valuation loop.
type Collector struct {
	providerAttempts *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	cyclesSkipped    prometheus.Counter
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		providerAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_attempts_total",
				Help:      "Quote provider attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_latency_seconds",
				Help:      "Quote provider attempt latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"provider"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of completed valuation cycles",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		cyclesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_skipped_total",
				Help:      "Triggers dropped because a cycle was in flight",
			},
		),
	}

	for _, m := range []prometheus.Collector{
		c.providerAttempts,
		c.providerLatency,
		c.cacheLookups,
		c.cycleDuration,
		c.cyclesSkipped,
	} {
		if err := reg.Register(m); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, err
		}
	}
	return c, nil
}

// ObserveAttempt records one provider attempt.
func (c *Collector) ObserveAttempt(provider, outcome string, elapsed time.Duration) {
	c.providerAttempts.WithLabelValues(provider, outcome).Inc()
	c.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveLookup records one cache lookup.
func (c *Collector) ObserveLookup(result string) {
	c.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCycle records a completed valuation cycle.
func (c *Collector) ObserveCycle(elapsed time.Duration) {
	c.cycleDuration.Observe(elapsed.Seconds())
}

// CycleSkipped counts a dropped trigger.
func (c *Collector) CycleSkipped() {
	c.cyclesSkipped.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
