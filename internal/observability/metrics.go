package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// Outcome and label values shared by the session components.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"

	ClickFeature  = "feature"
	ClickEmpty    = "empty"
	ClickMeasured = "measurement"

	PopupShown  = "shown"
	PopupFailed = "failed"
	PopupStale  = "stale"

	StageResolve = "resolve"
	StageCamera  = "camera"
	StagePopup   = "popup"
	StageFilter  = "filter"
)

// SessionCollector bundles Prometheus metrics for the interaction layer: focus
// resolutions, clicks, popups and hover state.
type SessionCollector struct {
	gatherer prometheus.Gatherer

	Resolutions        *prometheus.CounterVec
	ResolutionAttempts prometheus.Histogram
	StaleResults       *prometheus.CounterVec
	Clicks             *prometheus.CounterVec
	Popups             *prometheus.CounterVec
	ClipboardFailures  prometheus.Counter
	HoveredFeature     prometheus.Gauge
}

// NewSessionCollector registers session metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSessionCollector(reg prometheus.Registerer) (*SessionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	resolutions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_resolutions_total",
		Help: "Feature resolutions by outcome (found, not_found).",
	}, []string{"outcome"}), "sitemap_resolutions_total")
	if err != nil {
		return nil, err
	}

	attempts, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitemap_resolution_attempts",
		Help:    "Readiness signals consumed per feature resolution.",
		Buckets: []float64{0, 1, 2, 3, 4, 5},
	}), "sitemap_resolution_attempts")
	if err != nil {
		return nil, err
	}

	stale, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_stale_results_total",
		Help: "Async results discarded because a newer request superseded them, by stage.",
	}, []string{"stage"}), "sitemap_stale_results_total")
	if err != nil {
		return nil, err
	}

	clicks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_clicks_total",
		Help: "Map clicks by target (feature, empty, measurement).",
	}, []string{"target"}), "sitemap_clicks_total")
	if err != nil {
		return nil, err
	}

	popups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_popups_total",
		Help: "Detail popups by outcome (shown, failed, stale).",
	}, []string{"outcome"}), "sitemap_popups_total")
	if err != nil {
		return nil, err
	}

	clipboard, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_clipboard_failures_total",
		Help: "Clipboard writes that failed.",
	}), "sitemap_clipboard_failures_total")
	if err != nil {
		return nil, err
	}

	hovered, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sitemap_hovered_feature",
		Help: "Id of the hovered site feature, -1 when none.",
	}), "sitemap_hovered_feature")
	if err != nil {
		return nil, err
	}
	hovered.Set(-1)

	return &SessionCollector{
		gatherer:           gatherer,
		Resolutions:        resolutions,
		ResolutionAttempts: attempts,
		StaleResults:       stale,
		Clicks:             clicks,
		Popups:             popups,
		ClipboardFailures:  clipboard,
		HoveredFeature:     hovered,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SessionCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveResolution records the end of a feature resolution.
func (c *SessionCollector) ObserveResolution(found bool, attempts int) {
	if c == nil {
		return
	}
	outcome := OutcomeNotFound
	if found {
		outcome = OutcomeFound
	}
	if c.Resolutions != nil {
		c.Resolutions.WithLabelValues(outcome).Inc()
	}
	if c.ResolutionAttempts != nil {
		c.ResolutionAttempts.Observe(float64(attempts))
	}
}

// IncStale counts a discarded stale continuation.
func (c *SessionCollector) IncStale(stage string) {
	if c == nil || c.StaleResults == nil {
		return
	}
	c.StaleResults.WithLabelValues(stage).Inc()
}

// IncClick counts a map click by target.
func (c *SessionCollector) IncClick(target string) {
	if c == nil || c.Clicks == nil {
		return
	}
	c.Clicks.WithLabelValues(target).Inc()
}

// IncPopup counts a popup outcome.
func (c *SessionCollector) IncPopup(outcome string) {
	if c == nil || c.Popups == nil {
		return
	}
	c.Popups.WithLabelValues(outcome).Inc()
}

// IncClipboardFailure counts a failed clipboard write.
func (c *SessionCollector) IncClipboardFailure() {
	if c == nil || c.ClipboardFailures == nil {
		return
	}
	c.ClipboardFailures.Inc()
}

// SetHovered publishes the hovered feature, or -1 when ok is false.
func (c *SessionCollector) SetHovered(id model.FeatureID, ok bool) {
	if c == nil || c.HoveredFeature == nil {
		return
	}
	if !ok {
		c.HoveredFeature.Set(-1)
		return
	}
	c.HoveredFeature.Set(float64(id))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
