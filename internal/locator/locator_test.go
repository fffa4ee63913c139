package locator

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine/memory"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

var site = model.Coordinate{Lng: 29.9187, Lat: 31.2001}

func newEngine(t *testing.T) *memory.Engine {
	t.Helper()
	e := memory.New(eventloop.NewFakeScheduler(time.Unix(0, 0)), memory.Options{Center: site, Zoom: 16})
	e.InstallDefaultStyle()
	e.AddFeatures(mapengine.SiteSource, mapengine.SiteSourceLayer,
		mapengine.Feature{ID: 42, Geometry: site.Point()},
		mapengine.Feature{ID: 43, Geometry: orb.LineString{{29.9, 31.2}, {29.91, 31.21}}},
	)
	return e
}

type outcome struct {
	coord model.Coordinate
	ok    bool
	calls int
}

func (o *outcome) done(c model.Coordinate, ok bool) {
	o.coord, o.ok = c, ok
	o.calls++
}

func TestResolveFindsLoadedFeatureWithoutWaiting(t *testing.T) {
	e := newEngine(t)
	e.LoadAll()
	l := New(e, logging.Noop(), nil)

	var got outcome
	l.Resolve(context.Background(), 42, got.done)

	if got.calls != 1 || !got.ok || got.coord != site {
		t.Fatalf("outcome = %+v, want %v", got, site)
	}
	if n := e.ListenerCount(mapengine.EventIdle); n != 0 {
		t.Fatalf("idle listeners = %d, want 0", n)
	}
}

func TestResolveGivesUpAfterFiveIdleEvents(t *testing.T) {
	e := newEngine(t)
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewSessionCollector(reg)
	if err != nil {
		t.Fatalf("NewSessionCollector: %v", err)
	}
	l := New(e, logging.Noop(), metrics)

	var got outcome
	l.Resolve(context.Background(), 999, got.done)

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		e.Settle()
	}
	if got.calls != 0 {
		t.Fatalf("resolution finished after %d idle events", DefaultMaxAttempts-1)
	}
	e.Settle()
	if got.calls != 1 || got.ok {
		t.Fatalf("outcome = %+v, want NotFound after 5 idle events", got)
	}
	if n := e.ListenerCount(mapengine.EventIdle); n != 0 {
		t.Fatalf("idle listeners after exhaustion = %d, want 0", n)
	}
	if v := testutil.ToFloat64(metrics.Resolutions.WithLabelValues(observability.OutcomeNotFound)); v != 1 {
		t.Fatalf("not_found counter = %v, want 1", v)
	}
}

func TestResolveSucceedsOnceTileLoads(t *testing.T) {
	e := newEngine(t)
	l := New(e, logging.Noop(), nil)

	var got outcome
	attempt := l.Resolve(context.Background(), 42, got.done)

	e.Settle()
	e.LoadTiles(e.TileFor(site))
	e.Settle()

	if got.calls != 1 || !got.ok || got.coord != site {
		t.Fatalf("outcome = %+v, want hit on second idle", got)
	}
	if made := attempt.Budget().Made; made != 2 {
		t.Fatalf("attempts made = %d, want 2", made)
	}
}

func TestResolveMatchesNumericIDOnPointsOnly(t *testing.T) {
	e := newEngine(t)
	e.LoadAll()
	l := New(e, logging.Noop(), nil, WithMaxAttempts(0))

	if _, ok := l.Find(43); ok {
		t.Fatalf("line feature should not resolve to a coordinate")
	}
	var got outcome
	l.Resolve(context.Background(), 43, got.done)
	if got.calls != 1 || got.ok {
		t.Fatalf("outcome = %+v, want immediate NotFound with zero budget", got)
	}
}

func TestCancelledResolutionDetachesFromIdle(t *testing.T) {
	e := newEngine(t)
	l := New(e, logging.Noop(), nil)

	var got outcome
	attempt := l.Resolve(context.Background(), 42, got.done)
	if n := e.ListenerCount(mapengine.EventIdle); n != 1 {
		t.Fatalf("idle listeners = %d, want 1", n)
	}
	attempt.Cancel()
	if n := e.ListenerCount(mapengine.EventIdle); n != 0 {
		t.Fatalf("idle listeners after cancel = %d, want 0", n)
	}
	e.LoadAll()
	e.Settle()
	if got.calls != 0 {
		t.Fatalf("cancelled resolution reported %+v", got)
	}
}

func TestWithSourceScansAnotherLayer(t *testing.T) {
	e := newEngine(t)
	e.AddFeatures("other", "points", mapengine.Feature{ID: 5, Geometry: site.Point()})
	e.LoadAll()
	l := New(e, nil, nil, WithSource("other", "points"))
	if _, ok := l.Find(42); ok {
		t.Fatalf("site feature found in other source")
	}
	if c, ok := l.Find(5); !ok || c != site {
		t.Fatalf("Find(5) = %v, %v", c, ok)
	}
}
