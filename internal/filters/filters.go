// Package filters applies the active site filters to the map and exposes the
// layer controls (visibility, opacity, layer list order).
package filters

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// Criterion is one selected filter value set, e.g. periode in {Romaine}.
type Criterion struct {
	Key    string
	Values []string
}

func (c Criterion) String() string {
	return c.Key + "=" + strings.Join(c.Values, ",")
}

// Source is the filter query subsystem.
type Source interface {
	// ActiveFilters lists the selected criteria, in selection order.
	ActiveFilters() []Criterion
	// FilteredIDs returns the features matching every active criterion. It
	// may block.
	FilteredIDs(ctx context.Context) ([]model.FeatureID, error)
}

// Snapshotter is implemented by sources whose query reads session state, such
// as the map's loaded tiles. Snapshot runs on the session thread and returns a
// Source that may be queried from any goroutine.
type Snapshotter interface {
	Snapshot() Source
}

// Watcher is implemented by sources that announce selection changes.
type Watcher interface {
	OnChange(fn func())
}

// Applier pushes the filter result onto the site layer.
type Applier struct {
	m       mapengine.Map
	src     Source
	exec    eventloop.Executor
	log     logging.Logger
	metrics *observability.SessionCollector

	generation uint64
}

// NewApplier builds an Applier. Id queries run through exec.Spawn.
func NewApplier(m mapengine.Map, src Source, exec eventloop.Executor, log logging.Logger, metrics *observability.SessionCollector) *Applier {
	if log == nil {
		log = logging.Noop()
	}
	return &Applier{m: m, src: src, exec: exec, log: log, metrics: metrics}
}

// Update re-applies the filters. With no active filter the site layer filter
// is removed and every site shows. With active filters the layer shows only
// the matching ids, or nothing when none match. A result that arrives after a
// newer Update is dropped. done, if set, runs on the session thread once this
// update has been applied or dropped.
func (a *Applier) Update(ctx context.Context, done func(error)) {
	a.generation++
	gen := a.generation
	finish := func(err error) {
		if done != nil {
			done(err)
		}
	}

	active := a.src.ActiveFilters()
	if len(active) == 0 {
		a.m.SetFilter(mapengine.SiteLayer, nil)
		a.log.Debug(ctx, "site filter cleared")
		finish(nil)
		return
	}

	src := a.src
	if s, ok := src.(Snapshotter); ok {
		src = s.Snapshot()
	}
	a.exec.Spawn(func() {
		ids, err := src.FilteredIDs(ctx)
		a.exec.Post(func() {
			if gen != a.generation {
				a.metrics.IncStale(observability.StageFilter)
				finish(nil)
				return
			}
			if err != nil {
				a.log.Error(ctx, "filter query failed", logging.Err(err))
				finish(err)
				return
			}
			if len(ids) == 0 {
				a.m.SetFilter(mapengine.SiteLayer, mapengine.MatchNothing())
			} else {
				a.m.SetFilter(mapengine.SiteLayer, mapengine.IDIn(ids...))
			}
			a.log.Debug(ctx, "site filter applied",
				logging.Int("criteria", len(active)),
				logging.Int("matches", len(ids)),
			)
			finish(nil)
		})
	})
}

// PropertySource filters features on their properties. Values of one key are
// alternatives; different keys must all match.
type PropertySource struct {
	features func() []mapengine.Feature

	mu        sync.Mutex
	order     []string
	selected  map[string][]string
	listeners []func()
}

var (
	_ Source      = (*PropertySource)(nil)
	_ Watcher     = (*PropertySource)(nil)
	_ Snapshotter = (*PropertySource)(nil)
)

// NewPropertySource filters the features returned by features.
func NewPropertySource(features func() []mapengine.Feature) *PropertySource {
	return &PropertySource{features: features, selected: make(map[string][]string)}
}

// Select sets the accepted values of key. No values deselects the key.
func (s *PropertySource) Select(key string, values ...string) {
	s.mu.Lock()
	if len(values) == 0 {
		delete(s.selected, key)
		for i, k := range s.order {
			if k == key {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	} else {
		if _, ok := s.selected[key]; !ok {
			s.order = append(s.order, key)
		}
		s.selected[key] = append([]string(nil), values...)
	}
	s.mu.Unlock()
	s.notify()
}

// Reset deselects everything.
func (s *PropertySource) Reset() {
	s.mu.Lock()
	s.order = nil
	s.selected = make(map[string][]string)
	s.mu.Unlock()
	s.notify()
}

// OnChange implements Watcher. Listeners run on the caller of Select/Reset.
func (s *PropertySource) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *PropertySource) notify() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Snapshot implements Snapshotter. It copies the current features and
// selection; later Select calls and tile loads do not affect it.
func (s *PropertySource) Snapshot() Source {
	features := append([]mapengine.Feature(nil), s.features()...)
	frozen := NewPropertySource(func() []mapengine.Feature { return features })
	for _, c := range s.ActiveFilters() {
		frozen.order = append(frozen.order, c.Key)
		frozen.selected[c.Key] = c.Values
	}
	return frozen
}

// ActiveFilters implements Source.
func (s *PropertySource) ActiveFilters() []Criterion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Criterion, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, Criterion{Key: k, Values: append([]string(nil), s.selected[k]...)})
	}
	return out
}

// FilteredIDs implements Source. Ids are returned in ascending order.
func (s *PropertySource) FilteredIDs(ctx context.Context) ([]model.FeatureID, error) {
	active := s.ActiveFilters()
	seen := make(map[model.FeatureID]bool)
	var ids []model.FeatureID
	for _, f := range s.features() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[f.ID] || !matchesAll(f, active) {
			continue
		}
		seen[f.ID] = true
		ids = append(ids, f.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func matchesAll(f mapengine.Feature, criteria []Criterion) bool {
	for _, c := range criteria {
		v, ok := f.Properties[c.Key]
		if !ok {
			return false
		}
		if !matchesAny(propertyText(v), c.Values) {
			return false
		}
	}
	return true
}

func matchesAny(value string, accepted []string) bool {
	for _, a := range accepted {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}

func propertyText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
