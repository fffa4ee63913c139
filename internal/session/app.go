// Package session hosts one map session: it builds the coordination
// components around a map engine and the browser surface and wires them up
// in a fixed order.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/sites-fouilles-map/internal/browser"
	"github.com/signalsfoundry/sites-fouilles-map/internal/camera"
	"github.com/signalsfoundry/sites-fouilles-map/internal/detail"
	"github.com/signalsfoundry/sites-fouilles-map/internal/dispatch"
	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/filters"
	"github.com/signalsfoundry/sites-fouilles-map/internal/hover"
	"github.com/signalsfoundry/sites-fouilles-map/internal/locator"
	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/internal/measure"
	"github.com/signalsfoundry/sites-fouilles-map/internal/navsync"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/internal/popup"
	"github.com/signalsfoundry/sites-fouilles-map/timectrl"
)

var (
	// ErrSiteLayerMissing indicates the map style has no site layer to wire.
	ErrSiteLayerMissing = errors.New("site layer missing from style")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("session already initialized")
)

// Deps are the collaborators a session runs against.
type Deps struct {
	Map       mapengine.Map
	History   browser.History
	Clipboard browser.Clipboard
	Notifier  browser.Notifier
	Cursor    browser.Cursor
	Popups    browser.PopupRenderer
	Details   detail.Fetcher
	Filters   filters.Source
	Exec      eventloop.Executor

	// Frames drives the hover animation. Without it the hover loop only
	// reacts to pointer events and Tick must be called by hand.
	Frames *timectrl.TimeController

	Log     logging.Logger
	Metrics *observability.SessionCollector

	CameraOptions  camera.Options
	LocatorOptions []locator.Option
}

// App is one running session.
type App struct {
	m       mapengine.Map
	history browser.History
	frames  *timectrl.TimeController
	exec    eventloop.Executor
	log     logging.Logger

	locator    *locator.Locator
	camera     *camera.Controller
	popup      *popup.Presenter
	navigator  *navsync.Navigator
	dispatcher *dispatch.Dispatcher
	hover      *hover.Loop
	measure    *measure.Tool
	applier    *filters.Applier
	watcher    filters.Watcher
	layers     *filters.Layers

	layerList   []mapengine.LayerInfo
	detach      []func()
	initialized bool
	closed      bool
}

// New builds the components. Nothing is subscribed until Initialize.
func New(d Deps) *App {
	log := d.Log
	if log == nil {
		log = logging.Noop()
	}
	exec := d.Exec
	if exec == nil {
		exec = eventloop.Inline{}
	}

	a := &App{
		m:       d.Map,
		history: d.History,
		frames:  d.Frames,
		exec:    exec,
		log:     log,
	}
	a.locator = locator.New(d.Map, log, d.Metrics, d.LocatorOptions...)
	a.camera = camera.New(d.Map, log)
	a.popup = popup.New(d.Details, d.Popups, exec, log, d.Metrics)
	a.navigator = navsync.New(navsync.Deps{
		History:       d.History,
		Locator:       a.locator,
		Camera:        a.camera,
		Popup:         a.popup,
		Log:           log,
		Metrics:       d.Metrics,
		CameraOptions: d.CameraOptions,
	})
	a.measure = measure.New(d.Map, log)
	a.dispatcher = dispatch.New(dispatch.Deps{
		Map:       d.Map,
		Mode:      a.measure,
		Clipboard: d.Clipboard,
		Notifier:  d.Notifier,
		Cursor:    d.Cursor,
		Focus:     a.navigator,
		Log:       log,
		Metrics:   d.Metrics,
	})
	a.hover = hover.New(d.Map, d.Metrics)
	a.layers = filters.NewLayers(d.Map, log)
	if d.Filters != nil {
		a.applier = filters.NewApplier(d.Map, d.Filters, exec, log, d.Metrics)
		a.watcher, _ = d.Filters.(filters.Watcher)
	}
	return a
}

// Initialize wires the session: filters, layer list, filter change listener,
// click dispatcher, deep-link handling, hover loop, then the measurement tool. A
// failing step stops the sequence; the error is logged and returned so the
// host can keep running with whatever was wired.
func (a *App) Initialize(ctx context.Context) error {
	if a.initialized {
		return ErrAlreadyInitialized
	}
	a.initialized = true
	if err := a.initialize(ctx); err != nil {
		a.log.Error(ctx, "session initialization failed", logging.Err(err))
		return err
	}
	a.log.Info(ctx, "session initialized", logging.Int("layers", len(a.layerList)))
	return nil
}

func (a *App) initialize(ctx context.Context) error {
	if _, ok := a.m.Layer(mapengine.SiteLayer); !ok {
		return fmt.Errorf("%w: %s", ErrSiteLayerMissing, mapengine.SiteLayer)
	}

	if a.applier != nil {
		a.applier.Update(ctx, func(err error) {
			if err != nil {
				a.log.Warn(ctx, "initial filter update failed", logging.Err(err))
			}
		})
	}

	a.layerList = filters.OrderForUI(a.m.Layers())

	if a.watcher != nil {
		a.watcher.OnChange(func() {
			a.exec.Post(func() {
				if !a.closed {
					a.RefreshFilters(ctx, nil)
				}
			})
		})
	}

	a.detach = append(a.detach, a.dispatcher.Attach(ctx))

	a.navigator.Start(ctx)
	a.detach = append(a.detach, a.navigator.Stop)

	a.detach = append(a.detach, a.hover.Attach())
	if a.frames != nil {
		a.hover.Drive(a.frames, a.exec)
	}

	a.detach = append(a.detach, a.measure.Attach())
	return nil
}

// Close detaches every listener and abandons pending focus work.
func (a *App) Close() {
	for i := len(a.detach) - 1; i >= 0; i-- {
		a.detach[i]()
	}
	a.detach = nil
	a.closed = true
}

// RefreshFilters re-applies the active filters to the site layer.
func (a *App) RefreshFilters(ctx context.Context, done func(error)) {
	if a.applier == nil {
		if done != nil {
			done(nil)
		}
		return
	}
	a.applier.Update(ctx, done)
}

// LayerList is the layer list in UI order, as computed by Initialize.
func (a *App) LayerList() []mapengine.LayerInfo {
	return append([]mapengine.LayerInfo(nil), a.layerList...)
}

// Component accessors, for hosts that drive the session directly.
func (a *App) Navigator() *navsync.Navigator    { return a.navigator }
func (a *App) Measure() *measure.Tool           { return a.measure }
func (a *App) Hover() *hover.Loop               { return a.hover }
func (a *App) Layers() *filters.Layers          { return a.layers }
func (a *App) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }
