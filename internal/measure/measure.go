// Package measure is the distance measurement tool. While it is active it owns
// map clicks: each click adds a vertex to the measured path.
package measure

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// Tool owns the session's InteractionMode.
type Tool struct {
	m   mapengine.Map
	log logging.Logger

	mode   model.InteractionMode
	path   orb.LineString
	onMode []func(model.InteractionMode)
}

// New builds an idle tool.
func New(m mapengine.Map, log logging.Logger) *Tool {
	if log == nil {
		log = logging.Noop()
	}
	return &Tool{m: m, log: log, mode: model.ModeIdle}
}

// Attach starts collecting clicks while the tool is active.
func (t *Tool) Attach() (detach func()) {
	return t.m.On(mapengine.EventClick, "", func(ev mapengine.Event) {
		if t.mode == model.ModeMeasurementActive {
			t.AddPoint(ev.LngLat)
		}
	})
}

// Mode returns the current interaction mode.
func (t *Tool) Mode() model.InteractionMode {
	return t.mode
}

// Active reports whether measurement owns clicks.
func (t *Tool) Active() bool {
	return t.mode == model.ModeMeasurementActive
}

// OnModeChange subscribes to mode transitions.
func (t *Tool) OnModeChange(fn func(model.InteractionMode)) {
	t.onMode = append(t.onMode, fn)
}

// Activate starts a fresh measurement.
func (t *Tool) Activate() {
	t.path = nil
	t.setMode(model.ModeMeasurementActive)
}

// Deactivate ends the measurement and discards its path.
func (t *Tool) Deactivate() {
	t.path = nil
	t.setMode(model.ModeIdle)
}

// Toggle flips between idle and measuring and returns the new mode.
func (t *Tool) Toggle() model.InteractionMode {
	if t.Active() {
		t.Deactivate()
	} else {
		t.Activate()
	}
	return t.mode
}

// AddPoint appends a vertex. Ignored while idle.
func (t *Tool) AddPoint(c model.Coordinate) {
	if !t.Active() {
		return
	}
	t.path = append(t.path, c.Point())
	t.log.Debug(context.Background(), "measurement point added",
		logging.Int("points", len(t.path)),
		logging.Float("meters", t.Distance()),
	)
}

// Points returns the measured vertices.
func (t *Tool) Points() []model.Coordinate {
	out := make([]model.Coordinate, len(t.path))
	for i, p := range t.path {
		out[i] = model.CoordinateFromPoint(p)
	}
	return out
}

// Distance returns the path length in meters.
func (t *Tool) Distance() float64 {
	total := 0.0
	for i := 1; i < len(t.path); i++ {
		total += geo.DistanceHaversine(t.path[i-1], t.path[i])
	}
	return total
}

// Label formats the path length for display.
func (t *Tool) Label() string {
	return FormatDistance(t.Distance())
}

// FormatDistance renders meters below one kilometre and kilometres above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.2f km", meters/1000)
}

func (t *Tool) setMode(mode model.InteractionMode) {
	if t.mode == mode {
		return
	}
	t.mode = mode
	t.log.Info(context.Background(), "interaction mode changed", logging.String("mode", mode.String()))
	for _, fn := range t.onMode {
		fn(mode)
	}
}
