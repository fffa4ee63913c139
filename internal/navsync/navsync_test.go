package navsync

import (
	"context"
	"testing"
	"time"

	"github.com/signalsfoundry/sites-fouilles-map/internal/browser"
	"github.com/signalsfoundry/sites-fouilles-map/internal/camera"
	"github.com/signalsfoundry/sites-fouilles-map/internal/detail"
	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/locator"
	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine/memory"
	"github.com/signalsfoundry/sites-fouilles-map/internal/popup"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

var (
	siteA = model.Coordinate{Lng: 29.9187, Lat: 31.2001}
	siteB = model.Coordinate{Lng: 29.9550, Lat: 31.2150}
)

type fetcher struct{}

func (fetcher) Fetch(_ context.Context, id model.FeatureID) (*model.SiteDetails, error) {
	if id == 500 {
		return nil, detail.ErrUnexpectedStatus
	}
	return &model.SiteDetails{Details: model.Discovery{Inventeur: model.Text("site " + id.String())}}, nil
}

type harness struct {
	nav     *Navigator
	engine  *memory.Engine
	sched   *eventloop.FakeScheduler
	history *browser.MemoryHistory
	popups  *browser.MemoryPopups
}

func newHarness(t *testing.T, rawURL string) *harness {
	t.Helper()
	sched := eventloop.NewFakeScheduler(time.Unix(0, 0))
	e := memory.New(sched, memory.Options{Center: siteA, Zoom: 13})
	e.InstallDefaultStyle()
	e.AddFeatures(mapengine.SiteSource, mapengine.SiteSourceLayer,
		mapengine.Feature{ID: 42, Geometry: siteA.Point()},
		mapengine.Feature{ID: 43, Geometry: siteB.Point()},
		mapengine.Feature{ID: 500, Geometry: siteB.Point()},
	)
	h, err := browser.NewMemoryHistory(rawURL)
	if err != nil {
		t.Fatalf("NewMemoryHistory: %v", err)
	}
	popups := &browser.MemoryPopups{}
	log := logging.Noop()
	nav := New(Deps{
		History: h,
		Locator: locator.New(e, log, nil),
		Camera:  camera.New(e, log),
		Popup:   popup.New(fetcher{}, popups, eventloop.Inline{}, log, nil),
		Log:     log,
	})
	return &harness{nav: nav, engine: e, sched: sched, history: h, popups: popups}
}

func (h *harness) settleCamera() {
	h.sched.Advance(camera.DefaultDuration)
}

func (h *harness) assertPopup(t *testing.T, id model.FeatureID, at model.Coordinate) {
	t.Helper()
	p, ok := h.popups.Current()
	if !ok {
		t.Fatalf("no popup on screen, want popup for %s", id)
	}
	if p.Anchor != at {
		t.Fatalf("popup anchored at %v, want %v", p.Anchor, at)
	}
	fp, ok := h.nav.Focused()
	if !ok || fp.ID != id || !fp.PopupOpen {
		t.Fatalf("Focused() = %+v, %v, want %s with popup", fp, ok, id)
	}
}

func TestURLRoundTrip(t *testing.T) {
	h := newHarness(t, "https://sites.example/carte")
	h.engine.LoadAll()
	h.nav.Start(context.Background())

	h.nav.FocusResolved(context.Background(), 42, siteA)
	if v, _ := h.history.Query(PointParam); v != "42" {
		t.Fatalf("point = %q, want 42", v)
	}
	if _, ok := h.popups.Current(); ok {
		t.Fatalf("popup opened before the camera settled")
	}
	h.settleCamera()
	h.assertPopup(t, 42, siteA)

	h.history.Back()
	if _, ok := h.popups.Current(); ok {
		t.Fatalf("popup still open after navigating back")
	}
	if _, ok := h.nav.Focused(); ok {
		t.Fatalf("focus survived navigating back")
	}

	h.history.Forward()
	h.settleCamera()
	h.assertPopup(t, 42, siteA)
	if center, _ := h.engine.Camera(); center != siteA {
		t.Fatalf("camera at %v, want %v", center, siteA)
	}
}

func TestSuccessiveClicksAccumulateHistory(t *testing.T) {
	h := newHarness(t, "https://sites.example/carte")
	h.engine.LoadAll()
	h.nav.Start(context.Background())

	h.nav.FocusResolved(context.Background(), 42, siteA)
	h.settleCamera()
	h.nav.FocusResolved(context.Background(), 43, siteB)
	h.settleCamera()

	if h.history.Len() != 3 {
		t.Fatalf("history entries = %d, want 3", h.history.Len())
	}
	h.history.Back()
	h.settleCamera()
	h.assertPopup(t, 42, siteA)
}

func TestDeepLinkWaitsForTiles(t *testing.T) {
	h := newHarness(t, "https://sites.example/carte?point=42")
	h.nav.Start(context.Background())

	if _, ok := h.nav.Focused(); ok {
		t.Fatalf("focused before the feature was located")
	}
	h.engine.Settle()
	h.engine.LoadTiles(h.engine.TileFor(siteA))
	h.engine.Settle()

	fp, ok := h.nav.Focused()
	if !ok || fp.ID != 42 || fp.PopupOpen {
		t.Fatalf("Focused() = %+v, %v, want 42 without popup yet", fp, ok)
	}
	h.settleCamera()
	h.assertPopup(t, 42, siteA)
	if h.history.Len() != 1 {
		t.Fatalf("deep link pushed history: %d entries", h.history.Len())
	}
}

func TestInvalidDeepLinkIsIgnored(t *testing.T) {
	for _, raw := range []string{"abc", "-4", "4.5"} {
		h := newHarness(t, "https://sites.example/carte?point="+raw)
		h.nav.Start(context.Background())
		if n := h.engine.ListenerCount(mapengine.EventIdle); n != 0 {
			t.Fatalf("point=%s started a resolution", raw)
		}
		if h.engine.Flying() {
			t.Fatalf("point=%s moved the camera", raw)
		}
	}
}

func TestUnresolvableDeepLinkIsSilent(t *testing.T) {
	h := newHarness(t, "https://sites.example/carte?point=999")
	h.engine.LoadAll()
	h.nav.Start(context.Background())

	for i := 0; i < locator.DefaultMaxAttempts; i++ {
		h.engine.Settle()
	}
	if n := h.engine.ListenerCount(mapengine.EventIdle); n != 0 {
		t.Fatalf("idle listeners after exhaustion = %d", n)
	}
	if _, ok := h.nav.Focused(); ok || h.engine.Flying() {
		t.Fatalf("unresolved feature focused or moved the camera")
	}
}

func TestLatestRequestWins(t *testing.T) {
	h := newHarness(t, "https://sites.example/carte")
	h.nav.Start(context.Background())

	h.nav.FocusFeature(context.Background(), 42)
	h.nav.FocusFeature(context.Background(), 43)
	if n := h.engine.ListenerCount(mapengine.EventIdle); n != 1 {
		t.Fatalf("idle listeners = %d, want only the latest resolution", n)
	}

	h.engine.LoadAll()
	h.engine.Settle()
	h.settleCamera()

	h.assertPopup(t, 43, siteB)
	if center, _ := h.engine.Camera(); center != siteB {
		t.Fatalf("camera at %v, want %v", center, siteB)
	}
	if h.popups.Opened() != 1 {
		t.Fatalf("popups opened = %d, want 1", h.popups.Opened())
	}
}

func TestClickSupersedesRetryingDeepLink(t *testing.T) {
	h := newHarness(t, "https://sites.example/carte?point=42")
	h.nav.Start(context.Background())

	h.nav.FocusResolved(context.Background(), 43, siteB)
	h.engine.LoadAll()
	h.engine.Settle()
	h.settleCamera()

	h.assertPopup(t, 43, siteB)
	if v, _ := h.history.Query(PointParam); v != "43" {
		t.Fatalf("point = %q, want 43", v)
	}
}

func TestSupersededFlightNeverOpensPopup(t *testing.T) {
	h := newHarness(t, "https://sites.example/carte")
	h.engine.LoadAll()
	h.nav.Start(context.Background())

	h.nav.FocusResolved(context.Background(), 42, siteA)
	h.sched.Advance(time.Second)
	h.nav.FocusResolved(context.Background(), 43, siteB)
	h.settleCamera()

	h.assertPopup(t, 43, siteB)
	if h.popups.Opened() != 1 {
		t.Fatalf("popups opened = %d, want 1", h.popups.Opened())
	}
}

func TestPopupFetchFailureKeepsFocusWithoutPopup(t *testing.T) {
	h := newHarness(t, "https://sites.example/carte")
	h.nav.Start(context.Background())

	h.nav.FocusResolved(context.Background(), 500, siteB)
	h.settleCamera()

	if _, ok := h.popups.Current(); ok {
		t.Fatalf("popup shown for failed fetch")
	}
	fp, ok := h.nav.Focused()
	if !ok || fp.PopupOpen {
		t.Fatalf("Focused() = %+v, %v", fp, ok)
	}
}

func TestStopDetachesPopState(t *testing.T) {
	h := newHarness(t, "https://sites.example/carte")
	h.engine.LoadAll()
	h.nav.Start(context.Background())
	h.nav.FocusResolved(context.Background(), 42, siteA)
	h.settleCamera()
	h.nav.Stop()

	h.history.Back()
	h.history.Forward()
	if h.engine.Flying() {
		t.Fatalf("stopped navigator reacted to history")
	}
	if _, ok := h.popups.Current(); ok {
		t.Fatalf("popup open after Stop")
	}
}
