// Package popup shows the detail panel of a site anchored at its coordinate.
// At most one popup exists; a fetch that finishes after a newer Show or a
// Close is dropped.
package popup

import (
	"context"

	"github.com/signalsfoundry/sites-fouilles-map/internal/browser"
	"github.com/signalsfoundry/sites-fouilles-map/internal/detail"
	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// Presenter fetches and places detail popups.
type Presenter struct {
	fetcher  detail.Fetcher
	renderer browser.PopupRenderer
	exec     eventloop.Executor
	log      logging.Logger
	metrics  *observability.SessionCollector

	generation uint64
	open       bool
	openID     model.FeatureID
}

// New builds a Presenter. Fetches run through exec.Spawn and land back on the
// session thread through exec.Post.
func New(fetcher detail.Fetcher, renderer browser.PopupRenderer, exec eventloop.Executor, log logging.Logger, metrics *observability.SessionCollector) *Presenter {
	if log == nil {
		log = logging.Noop()
	}
	return &Presenter{
		fetcher:  fetcher,
		renderer: renderer,
		exec:     exec,
		log:      log,
		metrics:  metrics,
	}
}

// Show removes any popup, then fetches details for id and opens the panel at
// coord. onOpen, if set, runs once the popup is on screen. Fetch failures are
// logged and leave no popup.
func (p *Presenter) Show(ctx context.Context, id model.FeatureID, coord model.Coordinate, onOpen func()) {
	p.Close()
	gen := p.generation
	log := logging.FromContext(ctx, p.log)

	p.exec.Spawn(func() {
		details, err := p.fetcher.Fetch(ctx, id)
		p.exec.Post(func() {
			if gen != p.generation {
				p.metrics.IncPopup(observability.PopupStale)
				log.Debug(ctx, "dropping stale popup", logging.Feature(id))
				return
			}
			if err != nil {
				p.metrics.IncPopup(observability.PopupFailed)
				log.Error(ctx, "failed to load site details", logging.Feature(id), logging.Err(err))
				return
			}
			html, err := Render(details)
			if err != nil {
				p.metrics.IncPopup(observability.PopupFailed)
				log.Error(ctx, "failed to render site popup", logging.Feature(id), logging.Err(err))
				return
			}
			p.renderer.Open(coord, html)
			p.open, p.openID = true, id
			p.metrics.IncPopup(observability.PopupShown)
			if onOpen != nil {
				onOpen()
			}
		})
	})
}

// Close removes the popup and invalidates in-flight fetches.
func (p *Presenter) Close() {
	p.generation++
	if p.open {
		p.renderer.Remove()
	}
	p.open, p.openID = false, 0
}

// Open reports the feature whose popup is on screen.
func (p *Presenter) Open() (model.FeatureID, bool) {
	return p.openID, p.open
}
