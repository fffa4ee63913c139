package session

import (
	"github.com/signalsfoundry/sites-fouilles-map/internal/navsync"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// Snapshot is a read-only view of session state, shaped for JSON.
type Snapshot struct {
	Mode        string       `json:"mode"`
	Point       string       `json:"point,omitempty"`
	Hovered     *uint64      `json:"hovered,omitempty"`
	HoverFrame  float64      `json:"hover_frame"`
	Focused     *FocusedView `json:"focused,omitempty"`
	Generation  uint64       `json:"generation"`
	Measurement []LngLat     `json:"measurement,omitempty"`
	Distance    string       `json:"distance,omitempty"`
	Layers      []string     `json:"layers"`
}

// FocusedView is the focused point as reported by Snapshot.
type FocusedView struct {
	ID        uint64  `json:"id"`
	Lng       float64 `json:"lng"`
	Lat       float64 `json:"lat"`
	PopupOpen bool    `json:"popup_open"`
}

// LngLat is one measured vertex.
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Snapshot reads the current state. Call it on the session thread.
func (a *App) Snapshot() Snapshot {
	s := Snapshot{
		Mode:       a.measure.Mode().String(),
		HoverFrame: a.hover.Frame(),
		Generation: a.navigator.Generation(),
		Layers:     make([]string, 0, len(a.layerList)),
	}
	if v, ok := a.history.Query(navsync.PointParam); ok {
		s.Point = v
	}
	if id, ok := a.hover.Hovered(); ok {
		v := uint64(id)
		s.Hovered = &v
	}
	if fp, ok := a.navigator.Focused(); ok {
		s.Focused = focusedView(fp)
	}
	for _, c := range a.measure.Points() {
		s.Measurement = append(s.Measurement, LngLat{Lng: c.Lng, Lat: c.Lat})
	}
	if len(s.Measurement) > 1 {
		s.Distance = a.measure.Label()
	}
	for _, l := range a.layerList {
		s.Layers = append(s.Layers, l.ID)
	}
	return s
}

func focusedView(fp model.FocusedPoint) *FocusedView {
	return &FocusedView{
		ID:        uint64(fp.ID),
		Lng:       fp.Coordinate.Lng,
		Lat:       fp.Coordinate.Lat,
		PopupOpen: fp.PopupOpen,
	}
}
