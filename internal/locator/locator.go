// Package locator finds a site feature by id inside the tiled site source.
// Tiles load lazily, so a lookup that misses is retried on each "tiles
// settled" event until the retry budget runs out.
package locator

import (
	"context"

	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/internal/retry"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// DefaultMaxAttempts is the number of idle events a resolution waits through.
const DefaultMaxAttempts = 5

// Locator resolves feature ids to coordinates.
type Locator struct {
	m           mapengine.Map
	source      string
	sourceLayer string
	maxAttempts int
	log         logging.Logger
	metrics     *observability.SessionCollector
}

// Option customises a Locator.
type Option func(*Locator)

// WithSource overrides the vector source and source layer that are scanned.
func WithSource(source, sourceLayer string) Option {
	return func(l *Locator) {
		l.source = source
		l.sourceLayer = sourceLayer
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(l *Locator) {
		if n >= 0 {
			l.maxAttempts = n
		}
	}
}

// New builds a Locator over the site source of m.
func New(m mapengine.Map, log logging.Logger, metrics *observability.SessionCollector, opts ...Option) *Locator {
	if log == nil {
		log = logging.Noop()
	}
	l := &Locator{
		m:           m,
		source:      mapengine.SiteSource,
		sourceLayer: mapengine.SiteSourceLayer,
		maxAttempts: DefaultMaxAttempts,
		log:         log,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Find scans the currently loaded tiles once.
func (l *Locator) Find(id model.FeatureID) (model.Coordinate, bool) {
	for _, f := range l.m.QuerySourceFeatures(l.source, l.sourceLayer) {
		if f.ID != id {
			continue
		}
		if c, ok := f.Coordinate(); ok {
			return c, true
		}
	}
	return model.Coordinate{}, false
}

// Resolve looks id up now and after each of the next idle events, calling done
// once with the coordinate or with false when the feature never showed up.
// A miss is a normal outcome. Cancel the returned attempt to stop waiting.
func (l *Locator) Resolve(ctx context.Context, id model.FeatureID, done func(model.Coordinate, bool)) *retry.Attempt {
	log := logging.FromContext(ctx, l.log)
	var attempt *retry.Attempt
	attempt = retry.AwaitThen(
		func() (model.Coordinate, bool) { return l.Find(id) },
		IdleSignal(l.m),
		l.maxAttempts,
		func(c model.Coordinate, ok bool) {
			made := 0
			if attempt != nil {
				made = attempt.Budget().Made
			}
			l.metrics.ObserveResolution(ok, made)
			if ok {
				log.Debug(ctx, "feature resolved",
					logging.Feature(id),
					logging.Int("attempts", made),
				)
			} else {
				log.Debug(ctx, "feature not found in loaded tiles",
					logging.Feature(id),
					logging.Int("attempts", made),
				)
			}
			done(c, ok)
		},
	)
	return attempt
}

// IdleSignal exposes the map's idle event as a retry.Signal.
func IdleSignal(m mapengine.Map) retry.Signal {
	return retry.SignalFunc(func(fn func()) func() {
		fired := false
		var off func()
		off = m.On(mapengine.EventIdle, "", func(mapengine.Event) {
			if fired {
				return
			}
			fired = true
			off()
			fn()
		})
		return off
	})
}
