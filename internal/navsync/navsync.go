// Package navsync binds the "point" URL parameter to the focused site. It is
// the single owner of the focused point: a deep link, a back/forward
// navigation or a site click all become a focus request here, and only the
// latest request may move the camera or open a popup.
package navsync

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/sites-fouilles-map/internal/browser"
	"github.com/signalsfoundry/sites-fouilles-map/internal/camera"
	"github.com/signalsfoundry/sites-fouilles-map/internal/locator"
	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/internal/popup"
	"github.com/signalsfoundry/sites-fouilles-map/internal/retry"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// PointParam is the query parameter carrying the focused feature id.
const PointParam = "point"

// Origins of a focus request, used in logs and spans.
const (
	OriginClick    = "click"
	OriginDeepLink = "deeplink"
	OriginPopState = "popstate"
)

// Deps are the collaborators of a Navigator.
type Deps struct {
	History browser.History
	Locator *locator.Locator
	Camera  *camera.Controller
	Popup   *popup.Presenter
	Log     logging.Logger
	Metrics *observability.SessionCollector
	// CameraOptions apply to every focus flight; zero values take the camera
	// defaults.
	CameraOptions camera.Options
}

// Navigator keeps URL, camera and popup consistent.
type Navigator struct {
	history    browser.History
	locator    *locator.Locator
	camera     *camera.Controller
	popup      *popup.Presenter
	log        logging.Logger
	metrics    *observability.SessionCollector
	cameraOpts camera.Options

	generation uint64
	attempt    *retry.Attempt
	span       trace.Span
	focused    *model.FocusedPoint
	offPop     func()
}

// New builds a Navigator. Call Start to honour the current URL.
func New(d Deps) *Navigator {
	log := d.Log
	if log == nil {
		log = logging.Noop()
	}
	return &Navigator{
		history:    d.History,
		locator:    d.Locator,
		camera:     d.Camera,
		popup:      d.Popup,
		log:        log,
		metrics:    d.Metrics,
		cameraOpts: d.CameraOptions,
	}
}

// Start focuses the feature named by the current URL, if any, and follows
// back/forward navigation from then on.
func (n *Navigator) Start(ctx context.Context) {
	if raw, ok := n.history.Query(PointParam); ok && raw != "" {
		if id, err := model.ParseFeatureID(raw); err != nil {
			n.log.Warn(ctx, "ignoring invalid point parameter", logging.String("point", raw), logging.Err(err))
		} else {
			n.focusFeature(ctx, OriginDeepLink, id)
		}
	}
	if n.offPop == nil {
		n.offPop = n.history.OnPopState(func() { n.onPopState(ctx) })
	}
}

// Stop detaches from history and abandons any pending request.
func (n *Navigator) Stop() {
	if n.offPop != nil {
		n.offPop()
		n.offPop = nil
	}
	n.supersede()
}

// FocusFeature runs the deep-link pipeline for id: locate, fly, then popup.
// The URL is left alone.
func (n *Navigator) FocusFeature(ctx context.Context, id model.FeatureID) {
	n.focusFeature(ctx, OriginDeepLink, id)
}

// FocusResolved focuses a feature whose coordinate is already known, as after
// a site click. The id is pushed into history as a new entry.
func (n *Navigator) FocusResolved(ctx context.Context, id model.FeatureID, coord model.Coordinate) {
	gen, ctx, log := n.begin(ctx, OriginClick, id)
	n.history.PushQuery(PointParam, id.String())
	log.Info(ctx, "focus requested", logging.Feature(id), logging.String("origin", OriginClick))
	n.fly(ctx, log, gen, id, coord)
}

// Clear drops the focus: popup closed, pending continuations abandoned.
func (n *Navigator) Clear(ctx context.Context) {
	if n.focused != nil || n.attempt != nil {
		n.log.Debug(ctx, "focus cleared")
	}
	n.supersede()
	n.generation++
}

// Focused returns the focused point, if any.
func (n *Navigator) Focused() (model.FocusedPoint, bool) {
	if n.focused == nil {
		return model.FocusedPoint{}, false
	}
	fp := *n.focused
	openID, open := n.popup.Open()
	fp.PopupOpen = open && openID == fp.ID
	return fp, true
}

// Generation returns the current request generation.
func (n *Navigator) Generation() uint64 {
	return n.generation
}

func (n *Navigator) onPopState(ctx context.Context) {
	raw, ok := n.history.Query(PointParam)
	if !ok || raw == "" {
		n.Clear(ctx)
		return
	}
	id, err := model.ParseFeatureID(raw)
	if err != nil {
		n.log.Warn(ctx, "ignoring invalid point parameter", logging.String("point", raw), logging.Err(err))
		return
	}
	n.focusFeature(ctx, OriginPopState, id)
}

func (n *Navigator) focusFeature(ctx context.Context, origin string, id model.FeatureID) {
	gen, ctx, log := n.begin(ctx, origin, id)
	log.Info(ctx, "focus requested", logging.Feature(id), logging.String("origin", origin))

	attempt := n.locator.Resolve(ctx, id, func(coord model.Coordinate, found bool) {
		if gen != n.generation {
			n.metrics.IncStale(observability.StageResolve)
			return
		}
		n.attempt = nil
		if !found {
			log.Info(ctx, "focus target not found", logging.Feature(id))
			n.endSpan(false)
			return
		}
		n.fly(ctx, log, gen, id, coord)
	})
	if !attempt.Done() {
		n.attempt = attempt
	}
}

// begin starts a new request generation and abandons the previous request.
func (n *Navigator) begin(ctx context.Context, origin string, id model.FeatureID) (uint64, context.Context, logging.Logger) {
	n.supersede()
	n.generation++
	ctx, log := logging.WithRequestLogger(ctx, n.log)
	ctx, n.span = observability.StartFocusSpan(ctx, origin, id)
	return n.generation, ctx, log
}

func (n *Navigator) fly(ctx context.Context, log logging.Logger, gen uint64, id model.FeatureID, coord model.Coordinate) {
	n.focused = &model.FocusedPoint{ID: id, Coordinate: coord}
	n.camera.FlyTo(coord, n.cameraOpts, func() {
		if gen != n.generation {
			n.metrics.IncStale(observability.StageCamera)
			return
		}
		n.popup.Show(ctx, id, coord, func() {
			if gen != n.generation {
				return
			}
			log.Debug(ctx, "focus popup open", logging.Feature(id))
			n.endSpan(true)
		})
	})
}

// supersede abandons whatever the current request is still waiting on.
func (n *Navigator) supersede() {
	if n.attempt != nil {
		n.attempt.Cancel()
		n.attempt = nil
	}
	n.camera.Cancel()
	n.popup.Close()
	n.focused = nil
	n.endSpan(false)
}

func (n *Navigator) endSpan(completed bool) {
	if n.span == nil {
		return
	}
	n.span.SetAttributes(attribute.Bool("sitemap.focus.completed", completed))
	n.span.End()
	n.span = nil
}
