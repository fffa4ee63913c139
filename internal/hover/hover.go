// Package hover owns the hovered site feature and animates the pulse and wave
// highlight around it on every frame.
package hover

import (
	"math"
	"time"

	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/model"
	"github.com/signalsfoundry/sites-fouilles-map/timectrl"
)

// Animation constants, in pixels.
const (
	BaseRadius    = 6.0
	MaxWaveRadius = 15.0
	PulseAmpl     = 1.5
	PulsePeriod   = 300.0 // ms per radian
	FrameStep     = 0.3
)

// Visual holds the per-frame paint values of the highlight layers.
type Visual struct {
	PulseRadius float64
	WaveRadius  float64
	WaveOpacity float64
}

// Params computes the highlight for an animation timestamp and frame counter.
func Params(ts time.Duration, frame float64) Visual {
	ms := float64(ts) / float64(time.Millisecond)
	wave := math.Mod(frame, MaxWaveRadius) + BaseRadius
	return Visual{
		PulseRadius: BaseRadius + math.Sin(ms/PulsePeriod)*PulseAmpl,
		WaveRadius:  wave,
		WaveOpacity: math.Max(0, 1-wave/(MaxWaveRadius+BaseRadius)),
	}
}

// Loop is the sole owner of the hovered feature.
type Loop struct {
	m       mapengine.Map
	metrics *observability.SessionCollector

	hovered    model.FeatureID
	hasHovered bool
	frame      float64
	last       Visual
}

// New builds a hover loop. Call Attach to receive pointer events and Drive to
// animate.
func New(m mapengine.Map, metrics *observability.SessionCollector) *Loop {
	return &Loop{m: m, metrics: metrics}
}

// Attach subscribes to pointer events on the site layer.
func (l *Loop) Attach() (detach func()) {
	offMove := l.m.On(mapengine.EventMouseMove, mapengine.SiteLayer, func(ev mapengine.Event) {
		if len(ev.Features) > 0 {
			l.MouseMove(ev.Features[0].ID)
		}
	})
	offLeave := l.m.On(mapengine.EventMouseLeave, mapengine.SiteLayer, func(mapengine.Event) {
		l.MouseLeave()
	})
	return func() {
		offMove()
		offLeave()
	}
}

// Drive ticks the loop on every frame of tc, posting onto exec.
func (l *Loop) Drive(tc *timectrl.TimeController, exec eventloop.Executor) {
	tc.AddListener(func(now time.Time) {
		ts := now.Sub(tc.StartTime)
		exec.Post(func() { l.Tick(ts) })
	})
}

// MouseMove marks id as hovered. The previous feature is cleared first so
// only one feature is ever highlighted.
func (l *Loop) MouseMove(id model.FeatureID) {
	if l.hasHovered && l.hovered == id {
		return
	}
	if l.hasHovered {
		l.setHover(l.hovered, false)
	}
	l.hovered, l.hasHovered = id, true
	l.setHover(id, true)
	l.metrics.SetHovered(id, true)
}

// MouseLeave clears the highlight and restarts the wave phase.
func (l *Loop) MouseLeave() {
	if l.hasHovered {
		l.setHover(l.hovered, false)
	}
	l.hovered, l.hasHovered = 0, false
	l.frame = 0
	l.last = Visual{}
	l.metrics.SetHovered(0, false)
}

// Tick advances the animation by one frame at timestamp ts.
func (l *Loop) Tick(ts time.Duration) {
	if !l.hasHovered {
		l.m.SetFilter(mapengine.PulseLayer, mapengine.MatchNothing())
		l.m.SetFilter(mapengine.WavesLayer, mapengine.MatchNothing())
		l.frame = 0
		l.last = Visual{}
		return
	}
	filter := mapengine.IDEquals(l.hovered)
	l.m.SetFilter(mapengine.PulseLayer, filter)
	l.m.SetFilter(mapengine.WavesLayer, filter)

	v := Params(ts, l.frame)
	l.m.SetPaintProperty(mapengine.PulseLayer, "circle-radius", v.PulseRadius)
	l.m.SetPaintProperty(mapengine.WavesLayer, "circle-radius", v.WaveRadius)
	l.m.SetPaintProperty(mapengine.WavesLayer, "circle-opacity", v.WaveOpacity)
	l.last = v
	l.frame += FrameStep
}

// Hovered returns the hovered feature, if any.
func (l *Loop) Hovered() (model.FeatureID, bool) {
	return l.hovered, l.hasHovered
}

// Frame returns the animation frame counter.
func (l *Loop) Frame() float64 {
	return l.frame
}

// Last returns the paint values applied by the latest tick.
func (l *Loop) Last() Visual {
	return l.last
}

func (l *Loop) setHover(id model.FeatureID, on bool) {
	l.m.SetFeatureState(mapengine.FeatureRef{
		Source:      mapengine.SiteSource,
		SourceLayer: mapengine.SiteSourceLayer,
		ID:          id,
	}, map[string]any{"hover": on})
}
