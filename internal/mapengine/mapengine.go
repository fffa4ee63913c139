// Package mapengine describes the map rendering/tiling engine the session
// drives. The session depends only on these primitives; internal/mapengine/memory
// provides an in-process implementation.
package mapengine

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// Source, layer and style ids of the excavation-site data.
const (
	SiteSource      = "tegola_points"
	SiteSourceLayer = "sites_fouilles"
	SiteLayer       = "sites_fouilles-points"
	PulseLayer      = "sites_fouilles-pulse"
	WavesLayer      = "sites_fouilles-waves"
)

// EventType identifies map events.
type EventType int

const (
	EventClick EventType = iota
	EventMouseMove
	EventMouseEnter
	EventMouseLeave
	// EventIdle fires once the visible tiles have finished loading.
	EventIdle
	// EventMoveEnd fires when a camera transition ends, including one that was
	// interrupted by a newer transition.
	EventMoveEnd
)

func (t EventType) String() string {
	switch t {
	case EventClick:
		return "click"
	case EventMouseMove:
		return "mousemove"
	case EventMouseEnter:
		return "mouseenter"
	case EventMouseLeave:
		return "mouseleave"
	case EventIdle:
		return "idle"
	case EventMoveEnd:
		return "moveend"
	default:
		return "unknown"
	}
}

// ScreenPoint is a pixel position on the map canvas.
type ScreenPoint struct {
	X float64
	Y float64
}

// Feature is a vector feature as returned by rendered or source queries.
type Feature struct {
	ID          model.FeatureID
	Source      string
	SourceLayer string
	Layer       string
	Geometry    orb.Geometry
	Properties  map[string]any
}

// Coordinate returns the feature's point coordinate. Non-point geometries
// report false.
func (f Feature) Coordinate() (model.Coordinate, bool) {
	p, ok := f.Geometry.(orb.Point)
	if !ok {
		return model.Coordinate{}, false
	}
	return model.CoordinateFromPoint(p), true
}

// Event is delivered to listeners registered with Map.On.
type Event struct {
	Type     EventType
	Point    ScreenPoint
	LngLat   model.Coordinate
	Features []Feature

	// Interrupted is set on a move-end emitted because a newer transition
	// replaced the running one.
	Interrupted bool
}

// FlyToOptions parameterise an eased camera flight.
type FlyToOptions struct {
	Center   model.Coordinate
	Zoom     float64
	Duration time.Duration
	Curve    float64
	Easing   func(t float64) float64
}

// FeatureRef addresses one feature for feature-state updates.
type FeatureRef struct {
	Source      string
	SourceLayer string
	ID          model.FeatureID
}

// LayerType is the style type of a layer.
type LayerType string

const (
	LayerRaster     LayerType = "raster"
	LayerFill       LayerType = "fill"
	LayerLine       LayerType = "line"
	LayerCircle     LayerType = "circle"
	LayerBackground LayerType = "background"
)

// LayerInfo describes a style layer in drawing order.
type LayerInfo struct {
	ID       string
	Type     LayerType
	Metadata map[string]string
}

// Map is the engine surface used by the session.
type Map interface {
	// QueryRenderedFeatures returns features drawn under the screen point,
	// restricted to the given layers (all layers when none are given).
	QueryRenderedFeatures(p ScreenPoint, layers ...string) []Feature
	// QuerySourceFeatures returns features of source/sourceLayer contained in
	// currently loaded tiles, whether or not they are visible.
	QuerySourceFeatures(source, sourceLayer string) []Feature

	FlyTo(opts FlyToOptions)

	// On subscribes fn to events. A non-empty layer restricts pointer events
	// to that layer. The returned function detaches the listener.
	On(event EventType, layer string, fn func(Event)) (off func())

	SetFeatureState(ref FeatureRef, state map[string]any)
	SetFilter(layerID string, f *Filter)
	SetPaintProperty(layerID, name string, value any)
	SetLayoutProperty(layerID, name string, value any)

	Layer(layerID string) (LayerInfo, bool)
	Layers() []LayerInfo
}
