// Package dispatch decides who owns a map click: the measurement tool, a site
// feature, or empty map.
package dispatch

import (
	"context"

	"github.com/signalsfoundry/sites-fouilles-map/internal/browser"
	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// CopiedPrefix starts every clipboard confirmation.
const CopiedPrefix = "Copied to clipboard: "

// ModeReader exposes the interaction mode owned by the measurement tool.
type ModeReader interface {
	Mode() model.InteractionMode
}

// Focuser receives clicked sites. Navigation Sync implements it.
type Focuser interface {
	FocusResolved(ctx context.Context, id model.FeatureID, coord model.Coordinate)
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Map       mapengine.Map
	Mode      ModeReader
	Clipboard browser.Clipboard
	Notifier  browser.Notifier
	Cursor    browser.Cursor
	Focus     Focuser
	Log       logging.Logger
	Metrics   *observability.SessionCollector
}

// Dispatcher routes clicks.
type Dispatcher struct {
	Deps
}

// New builds a Dispatcher.
func New(d Deps) *Dispatcher {
	if d.Log == nil {
		d.Log = logging.Noop()
	}
	return &Dispatcher{Deps: d}
}

// Attach subscribes to map clicks and to pointer enter/leave on the site
// layer for the cursor affordance.
func (d *Dispatcher) Attach(ctx context.Context) (detach func()) {
	offs := []func(){
		d.Map.On(mapengine.EventClick, "", func(ev mapengine.Event) { d.HandleClick(ctx, ev) }),
	}
	if d.Cursor != nil {
		offs = append(offs,
			d.Map.On(mapengine.EventMouseEnter, mapengine.SiteLayer, func(mapengine.Event) {
				d.Cursor.SetCursor(browser.CursorPointer)
			}),
			d.Map.On(mapengine.EventMouseLeave, mapengine.SiteLayer, func(mapengine.Event) {
				d.Cursor.SetCursor(browser.CursorDefault)
			}),
		)
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// HandleClick processes one click. While measuring it does nothing. On a site
// it copies the site's coordinate, confirms, then hands the site to the
// focuser. On empty map it copies the clicked coordinate and confirms.
func (d *Dispatcher) HandleClick(ctx context.Context, ev mapengine.Event) {
	if d.Mode != nil && d.Mode.Mode() == model.ModeMeasurementActive {
		d.Metrics.IncClick(observability.ClickMeasured)
		return
	}

	hits := d.Map.QueryRenderedFeatures(ev.Point, mapengine.SiteLayer)
	if len(hits) == 0 {
		d.Metrics.IncClick(observability.ClickEmpty)
		d.copyAndConfirm(ctx, ev.LngLat)
		return
	}

	site := hits[0]
	coord, ok := site.Coordinate()
	if !ok {
		coord = ev.LngLat
	}
	d.Metrics.IncClick(observability.ClickFeature)
	d.copyAndConfirm(ctx, coord)
	if d.Focus != nil {
		d.Focus.FocusResolved(ctx, site.ID, coord)
	}
}

func (d *Dispatcher) copyAndConfirm(ctx context.Context, coord model.Coordinate) {
	text := coord.ClipboardText()
	if err := d.Clipboard.WriteText(text); err != nil {
		d.Metrics.IncClipboardFailure()
		d.Log.Error(ctx, "unable to copy coordinates", logging.String("text", text), logging.Err(err))
	}
	d.Notifier.Show(CopiedPrefix + text)
}
