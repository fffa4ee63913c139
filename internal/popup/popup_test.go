package popup

import (
	"context"
	"strings"
	"testing"

	"github.com/signalsfoundry/sites-fouilles-map/internal/browser"
	"github.com/signalsfoundry/sites-fouilles-map/internal/detail"
	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

type fakeFetcher map[model.FeatureID]*model.SiteDetails

func (f fakeFetcher) Fetch(_ context.Context, id model.FeatureID) (*model.SiteDetails, error) {
	d, ok := f[id]
	if !ok {
		return nil, detail.ErrUnexpectedStatus
	}
	return d, nil
}

// deferredSpawn holds spawned work until the test releases it.
type deferredSpawn struct {
	spawned []func()
}

func (d *deferredSpawn) Post(fn func())  { fn() }
func (d *deferredSpawn) Spawn(fn func()) { d.spawned = append(d.spawned, fn) }

var sample = &model.SiteDetails{
	Details: model.Discovery{Inventeur: "Breccia", DateDecouverte: "1905", NumTkaczow: "12"},
	Vestiges: []model.Vestige{
		{Caracterisation: "Mosaïque", Periode: "Romaine (Ier s.)"},
		{Caracterisation: "Citerne"},
	},
	Bibliographies: []model.Bibliography{
		{Auteur: "Tkaczow", NomDocument: "Topography of Ancient Alexandria", Annee: "1993", Pages: "112"},
		{Auteur: "Adriani", Annee: "1934"},
	},
}

func TestRenderFormatsPanel(t *testing.T) {
	html, err := Render(sample)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		"<b>Fouilles Breccia (1905)</b><br>Num Tkaczow: 12",
		"<strong>Vestiges:</strong>",
		"<li>Mosaïque (Romaine)</li>",
		"<li>Citerne (N/A)</li>",
		"<strong>Bibliographie sélective:</strong>",
		"<li>Tkaczow, “Topography of Ancient Alexandria”, 1993, 112.</li>",
		"<li>Adriani, , 1934, 0.</li>",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("popup html missing %q:\n%s", want, html)
		}
	}
}

func TestRenderOmitsEmptySectionsAndEscapes(t *testing.T) {
	html, err := Render(&model.SiteDetails{Details: model.Discovery{Inventeur: "<script>x</script>"}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(html, "Vestiges") || strings.Contains(html, "Bibliographie") {
		t.Fatalf("empty sections rendered: %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("inventeur not escaped: %s", html)
	}
}

func TestHelpers(t *testing.T) {
	if got := PeriodLabel("Ptolémaïque (IIIe s. av. J.-C.) (tardif)"); got != "Ptolémaïque" {
		t.Fatalf("PeriodLabel = %q", got)
	}
	if got := PeriodLabel("Byzantine"); got != "Byzantine" {
		t.Fatalf("PeriodLabel without qualifier = %q", got)
	}
	if got := BibliographyLine(model.Bibliography{Auteur: "Botti"}); got != "Botti, , , 0." {
		t.Fatalf("BibliographyLine = %q", got)
	}
}

func TestShowOpensPopupAtCoordinate(t *testing.T) {
	var popups browser.MemoryPopups
	p := New(fakeFetcher{42: sample}, &popups, eventloop.Inline{}, logging.Noop(), nil)
	at := model.Coordinate{Lng: 29.9, Lat: 31.2}

	opened := 0
	p.Show(context.Background(), 42, at, func() { opened++ })

	cur, ok := popups.Current()
	if !ok || cur.Anchor != at || !strings.Contains(cur.HTML, "Breccia") {
		t.Fatalf("popup = %+v, %v", cur, ok)
	}
	if id, ok := p.Open(); !ok || id != 42 || opened != 1 {
		t.Fatalf("Open() = %v, %v; onOpen calls = %d", id, ok, opened)
	}
}

func TestShowFailureLeavesNoPopup(t *testing.T) {
	var popups browser.MemoryPopups
	p := New(fakeFetcher{42: sample}, &popups, eventloop.Inline{}, nil, nil)

	p.Show(context.Background(), 42, model.Coordinate{}, nil)
	p.Show(context.Background(), 99, model.Coordinate{}, nil)

	if _, ok := popups.Current(); ok {
		t.Fatalf("failed fetch left a popup on screen")
	}
	if _, ok := p.Open(); ok {
		t.Fatalf("presenter reports an open popup after failure")
	}
}

func TestLateFetchForSupersededShowIsDropped(t *testing.T) {
	var popups browser.MemoryPopups
	exec := &deferredSpawn{}
	other := &model.SiteDetails{Details: model.Discovery{Inventeur: "Botti"}}
	p := New(fakeFetcher{1: sample, 2: other}, &popups, exec, nil, nil)

	p.Show(context.Background(), 1, model.Coordinate{Lng: 1}, nil)
	p.Show(context.Background(), 2, model.Coordinate{Lng: 2}, nil)

	exec.spawned[1]()
	exec.spawned[0]()

	cur, ok := popups.Current()
	if !ok || !strings.Contains(cur.HTML, "Botti") || cur.Anchor.Lng != 2 {
		t.Fatalf("popup = %+v, want the second site's", cur)
	}
	if popups.Opened() != 1 {
		t.Fatalf("opened = %d, want 1", popups.Opened())
	}
}

func TestCloseInvalidatesInFlightFetch(t *testing.T) {
	var popups browser.MemoryPopups
	exec := &deferredSpawn{}
	p := New(fakeFetcher{1: sample}, &popups, exec, nil, nil)

	p.Show(context.Background(), 1, model.Coordinate{}, nil)
	p.Close()
	exec.spawned[0]()

	if _, ok := popups.Current(); ok {
		t.Fatalf("popup opened after Close")
	}
}
