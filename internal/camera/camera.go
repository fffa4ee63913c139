// Package camera issues eased camera flights and reports when the latest one
// has settled.
package camera

import (
	"context"
	"time"

	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

const (
	DefaultZoom     = 18.0
	DefaultDuration = 2000 * time.Millisecond
	DefaultCurve    = 1.6
)

// EaseOutQuad decelerates towards the target.
func EaseOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

// Options parameterise one flight. Zero fields take the defaults.
type Options struct {
	Zoom     float64
	Duration time.Duration
	Curve    float64
	Easing   func(t float64) float64
}

func (o Options) withDefaults() Options {
	if o.Zoom <= 0 {
		o.Zoom = DefaultZoom
	}
	if o.Duration <= 0 {
		o.Duration = DefaultDuration
	}
	if o.Curve <= 0 {
		o.Curve = DefaultCurve
	}
	if o.Easing == nil {
		o.Easing = EaseOutQuad
	}
	return o
}

// Controller owns the map camera. Only the most recent flight may report
// completion; listeners of superseded flights are detached before the next one
// is attached.
type Controller struct {
	m   mapengine.Map
	log logging.Logger

	generation uint64
	off        func()
}

// New builds a Controller for m.
func New(m mapengine.Map, log logging.Logger) *Controller {
	if log == nil {
		log = logging.Noop()
	}
	return &Controller{m: m, log: log}
}

// FlyTo starts a flight to target and calls onSettled once it ends. A move-end
// caused by the flight being interrupted does not count as settling. It
// returns the flight's generation.
func (c *Controller) FlyTo(target model.Coordinate, opts Options, onSettled func()) uint64 {
	opts = opts.withDefaults()
	c.detach()
	c.generation++
	gen := c.generation

	var off func()
	off = c.m.On(mapengine.EventMoveEnd, "", func(ev mapengine.Event) {
		if ev.Interrupted || gen != c.generation {
			return
		}
		off()
		if c.generation == gen {
			c.off = nil
		}
		if onSettled != nil {
			onSettled()
		}
	})
	c.off = off

	c.log.Debug(context.Background(), "camera flight started",
		logging.Float("lng", target.Lng),
		logging.Float("lat", target.Lat),
		logging.Float("zoom", opts.Zoom),
		logging.Int("generation", int(gen)),
	)
	c.m.FlyTo(mapengine.FlyToOptions{
		Center:   target,
		Zoom:     opts.Zoom,
		Duration: opts.Duration,
		Curve:    opts.Curve,
		Easing:   opts.Easing,
	})
	return gen
}

// Cancel forgets the pending flight so it never reports settling. The camera
// itself is left where it is.
func (c *Controller) Cancel() {
	c.detach()
	c.generation++
}

// Pending reports whether a flight is waiting to settle.
func (c *Controller) Pending() bool {
	return c.off != nil
}

// Generation returns the generation of the latest flight.
func (c *Controller) Generation() uint64 {
	return c.generation
}

func (c *Controller) detach() {
	if c.off != nil {
		c.off()
		c.off = nil
	}
}
