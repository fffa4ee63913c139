package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DetailCollector exposes metrics for the site detail endpoint client.
type DetailCollector struct {
	gatherer prometheus.Gatherer

	FetchDuration *prometheus.HistogramVec
	CacheLookups  *prometheus.CounterVec
	CacheErrors   prometheus.Counter
}

// NewDetailCollector registers detail client metrics against the provided registerer.
func NewDetailCollector(reg prometheus.Registerer) (*DetailCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	fetch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitemap_detail_fetch_duration_seconds",
		Help:    "Latency of site detail requests, labeled by outcome (ok, error).",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"outcome"})
	fetch, err := registerHistogramVec(reg, fetch, "sitemap_detail_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_detail_cache_lookups_total",
		Help: "Detail cache lookups by result (hit, miss).",
	}, []string{"result"})
	lookups, err = registerCounterVec(reg, lookups, "sitemap_detail_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	cacheErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_detail_cache_errors_total",
		Help: "Detail cache reads or writes that failed and fell through to the endpoint.",
	}), "sitemap_detail_cache_errors_total")
	if err != nil {
		return nil, err
	}

	return &DetailCollector{
		gatherer:      gatherer,
		FetchDuration: fetch,
		CacheLookups:  lookups,
		CacheErrors:   cacheErrors,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *DetailCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFetch records one request to the detail endpoint.
func (c *DetailCollector) ObserveFetch(d time.Duration, err error) {
	if c == nil || c.FetchDuration == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.FetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncCacheLookup counts a cache hit or miss.
func (c *DetailCollector) IncCacheLookup(hit bool) {
	if c == nil || c.CacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// IncCacheError counts a failed cache operation.
func (c *DetailCollector) IncCacheError() {
	if c == nil || c.CacheErrors == nil {
		return
	}
	c.CacheErrors.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
