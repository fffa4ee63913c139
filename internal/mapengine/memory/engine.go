// Package memory is an in-process map engine: vector features bucketed into
// slippy-map tiles that load on demand, a camera animated on the session
// scheduler, and pointer hit-testing in screen space.
package memory

import (
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// Options configure the engine. Zero values take the defaults below.
type Options struct {
	Width, Height float64      // viewport in pixels
	TileSize      float64      // world tile size in pixels
	TileZoom      maptile.Zoom // zoom at which vector tiles are cut
	HitRadius     float64      // pointer tolerance in pixels
	Center        model.Coordinate
	Zoom          float64
	// AutoLoad loads the tiles under the viewport after every camera
	// transition and then emits idle, like a real tile pipeline.
	AutoLoad bool
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1024
	}
	if o.Height <= 0 {
		o.Height = 768
	}
	if o.TileSize <= 0 {
		o.TileSize = 512
	}
	if o.TileZoom == 0 {
		o.TileZoom = 14
	}
	if o.HitRadius <= 0 {
		o.HitRadius = 8
	}
	if o.Zoom <= 0 {
		o.Zoom = 13
	}
	return o
}

type sourceKey struct {
	source      string
	sourceLayer string
}

type tileBucket struct {
	order []maptile.Tile
	tiles map[maptile.Tile][]mapengine.Feature
}

type layerState struct {
	info        mapengine.LayerInfo
	source      string
	sourceLayer string
	filter      *mapengine.Filter
	paint       map[string]any
	layout      map[string]any
}

type listener struct {
	event   mapengine.EventType
	layer   string
	fn      func(mapengine.Event)
	removed bool
}

type flight struct {
	id       string
	from     model.Coordinate
	fromZoom float64
	opts     mapengine.FlyToOptions
	started  time.Time
}

// Engine implements mapengine.Map. It is not safe for concurrent use; the
// session drives it from its event loop.
type Engine struct {
	opts  Options
	sched eventloop.Scheduler

	sources map[sourceKey]*tileBucket
	loaded  map[maptile.Tile]bool

	layers     []*layerState
	layerIndex map[string]*layerState

	states    map[mapengine.FeatureRef]map[string]any
	listeners []*listener
	inside    map[string]bool

	center model.Coordinate
	zoom   float64
	flight *flight
}

var _ mapengine.Map = (*Engine)(nil)

// New constructs an engine with no layers and no tiles loaded.
func New(sched eventloop.Scheduler, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		opts:       opts,
		sched:      sched,
		sources:    make(map[sourceKey]*tileBucket),
		loaded:     make(map[maptile.Tile]bool),
		layerIndex: make(map[string]*layerState),
		states:     make(map[mapengine.FeatureRef]map[string]any),
		inside:     make(map[string]bool),
		center:     opts.Center,
		zoom:       opts.Zoom,
	}
}

// AddLayer appends a style layer on top of the existing ones. Layers without a
// source are rasters or decorations and never hit-test.
func (e *Engine) AddLayer(info mapengine.LayerInfo, source, sourceLayer string) {
	ls := &layerState{
		info:        info,
		source:      source,
		sourceLayer: sourceLayer,
		paint:       make(map[string]any),
		layout:      make(map[string]any),
	}
	if old, ok := e.layerIndex[info.ID]; ok {
		*old = *ls
		return
	}
	e.layers = append(e.layers, ls)
	e.layerIndex[info.ID] = ls
}

// AddFeatures files features under the tile that contains them.
func (e *Engine) AddFeatures(source, sourceLayer string, features ...mapengine.Feature) {
	key := sourceKey{source, sourceLayer}
	bucket, ok := e.sources[key]
	if !ok {
		bucket = &tileBucket{tiles: make(map[maptile.Tile][]mapengine.Feature)}
		e.sources[key] = bucket
	}
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		f.Source = source
		f.SourceLayer = sourceLayer
		tile := maptile.At(anchor(f.Geometry), e.opts.TileZoom)
		if _, seen := bucket.tiles[tile]; !seen {
			bucket.order = append(bucket.order, tile)
		}
		bucket.tiles[tile] = append(bucket.tiles[tile], f)
	}
}

// TileFor returns the vector tile that holds a coordinate.
func (e *Engine) TileFor(c model.Coordinate) maptile.Tile {
	return maptile.At(c.Point(), e.opts.TileZoom)
}

// LoadTiles marks tiles as fetched. Call Settle to announce it.
func (e *Engine) LoadTiles(tiles ...maptile.Tile) {
	for _, t := range tiles {
		e.loaded[t] = true
	}
}

// LoadAll marks every tile that holds data as fetched.
func (e *Engine) LoadAll() {
	for _, bucket := range e.sources {
		e.LoadTiles(bucket.order...)
	}
}

// UnloadAll evicts every tile.
func (e *Engine) UnloadAll() {
	e.loaded = make(map[maptile.Tile]bool)
}

// LoadedTiles reports how many tiles are loaded.
func (e *Engine) LoadedTiles() int {
	return len(e.loaded)
}

// LoadVisible fetches the tiles under the viewport and emits idle.
func (e *Engine) LoadVisible() {
	minX, minY, maxX, maxY := e.visibleTileRange()
	for _, bucket := range e.sources {
		for _, t := range bucket.order {
			if t.X >= minX && t.X <= maxX && t.Y >= minY && t.Y <= maxY {
				e.loaded[t] = true
			}
		}
	}
	e.Settle()
}

// Settle emits the idle event: visible tiles have finished loading.
func (e *Engine) Settle() {
	e.emit(mapengine.Event{Type: mapengine.EventIdle})
}

// Camera returns the current camera, interpolated along a running flight.
func (e *Engine) Camera() (model.Coordinate, float64) {
	if e.flight == nil {
		return e.center, e.zoom
	}
	f := e.flight
	progress := 1.0
	if f.opts.Duration > 0 {
		progress = float64(e.sched.Now().Sub(f.started)) / float64(f.opts.Duration)
	}
	progress = math.Max(0, math.Min(1, progress))
	if f.opts.Easing != nil {
		progress = f.opts.Easing(progress)
	}
	c := model.Coordinate{
		Lng: f.from.Lng + (f.opts.Center.Lng-f.from.Lng)*progress,
		Lat: f.from.Lat + (f.opts.Center.Lat-f.from.Lat)*progress,
	}
	return c, f.fromZoom + (f.opts.Zoom-f.fromZoom)*progress
}

// Flying reports whether a camera transition is running.
func (e *Engine) Flying() bool {
	return e.flight != nil
}

// FlyTo starts a camera transition. A running transition is stopped first and
// emits an interrupted move-end.
func (e *Engine) FlyTo(opts mapengine.FlyToOptions) {
	from, fromZoom := e.Camera()
	if e.flight != nil {
		e.sched.Cancel(e.flight.id)
		e.flight = nil
		e.center, e.zoom = from, fromZoom
		e.emit(mapengine.Event{Type: mapengine.EventMoveEnd, Interrupted: true})
	}
	if opts.Duration <= 0 {
		e.finishFlight(opts)
		return
	}
	f := &flight{from: from, fromZoom: fromZoom, opts: opts, started: e.sched.Now()}
	f.id = e.sched.Schedule(f.started.Add(opts.Duration), func() {
		if e.flight != f {
			return
		}
		e.flight = nil
		e.finishFlight(opts)
	})
	e.flight = f
}

func (e *Engine) finishFlight(opts mapengine.FlyToOptions) {
	e.center = opts.Center
	if opts.Zoom > 0 {
		e.zoom = opts.Zoom
	}
	e.emit(mapengine.Event{Type: mapengine.EventMoveEnd})
	if e.opts.AutoLoad {
		e.LoadVisible()
	}
}

// On subscribes to map events.
func (e *Engine) On(event mapengine.EventType, layer string, fn func(mapengine.Event)) func() {
	l := &listener{event: event, layer: layer, fn: fn}
	e.listeners = append(e.listeners, l)
	return func() {
		if l.removed {
			return
		}
		l.removed = true
		for i, existing := range e.listeners {
			if existing == l {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				break
			}
		}
	}
}

// ListenerCount reports live listeners for an event type, for leak checks.
func (e *Engine) ListenerCount(event mapengine.EventType) int {
	n := 0
	for _, l := range e.listeners {
		if l.event == event {
			n++
		}
	}
	return n
}

func (e *Engine) emit(ev mapengine.Event) {
	e.emitScoped(ev, func(string) ([]mapengine.Feature, bool) { return nil, true })
}

// emitScoped delivers ev to map-wide listeners and to layer listeners for
// which scope reports a hit.
func (e *Engine) emitScoped(ev mapengine.Event, scope func(layer string) ([]mapengine.Feature, bool)) {
	snapshot := append([]*listener(nil), e.listeners...)
	for _, l := range snapshot {
		if l.removed || l.event != ev.Type {
			continue
		}
		delivered := ev
		if l.layer != "" {
			features, ok := scope(l.layer)
			if !ok {
				continue
			}
			delivered.Features = features
		}
		l.fn(delivered)
	}
}

// Click simulates a primary click at a screen point.
func (e *Engine) Click(p mapengine.ScreenPoint) {
	ev := mapengine.Event{Type: mapengine.EventClick, Point: p, LngLat: e.Unproject(p)}
	e.emitScoped(ev, func(layer string) ([]mapengine.Feature, bool) {
		hits := e.QueryRenderedFeatures(p, layer)
		return hits, len(hits) > 0
	})
}

// ClickAt clicks wherever a coordinate is currently drawn.
func (e *Engine) ClickAt(c model.Coordinate) {
	e.Click(e.Project(c))
}

// MoveMouse simulates the pointer moving to p, emitting enter/move/leave for
// every layer that has pointer listeners.
func (e *Engine) MoveMouse(p mapengine.ScreenPoint) {
	lngLat := e.Unproject(p)
	for _, layer := range e.pointerLayers() {
		hits := e.QueryRenderedFeatures(p, layer)
		switch {
		case len(hits) > 0:
			if !e.inside[layer] {
				e.inside[layer] = true
				e.emitLayer(mapengine.Event{Type: mapengine.EventMouseEnter, Point: p, LngLat: lngLat, Features: hits}, layer)
			}
			e.emitLayer(mapengine.Event{Type: mapengine.EventMouseMove, Point: p, LngLat: lngLat, Features: hits}, layer)
		case e.inside[layer]:
			e.inside[layer] = false
			e.emitLayer(mapengine.Event{Type: mapengine.EventMouseLeave, Point: p, LngLat: lngLat}, layer)
		}
	}
	e.emitLayer(mapengine.Event{Type: mapengine.EventMouseMove, Point: p, LngLat: lngLat}, "")
}

// MouseOut simulates the pointer leaving the canvas.
func (e *Engine) MouseOut() {
	for layer, in := range e.inside {
		if in {
			e.inside[layer] = false
			e.emitLayer(mapengine.Event{Type: mapengine.EventMouseLeave}, layer)
		}
	}
}

func (e *Engine) emitLayer(ev mapengine.Event, layer string) {
	snapshot := append([]*listener(nil), e.listeners...)
	for _, l := range snapshot {
		if !l.removed && l.event == ev.Type && l.layer == layer {
			l.fn(ev)
		}
	}
}

func (e *Engine) pointerLayers() []string {
	seen := make(map[string]bool)
	var layers []string
	for _, l := range e.listeners {
		if l.layer == "" || seen[l.layer] {
			continue
		}
		switch l.event {
		case mapengine.EventMouseEnter, mapengine.EventMouseMove, mapengine.EventMouseLeave:
			seen[l.layer] = true
			layers = append(layers, l.layer)
		}
	}
	sort.Strings(layers)
	return layers
}

// QueryRenderedFeatures returns visible, filtered features under p, topmost
// layer first and nearest first within a layer.
func (e *Engine) QueryRenderedFeatures(p mapengine.ScreenPoint, layers ...string) []mapengine.Feature {
	wanted := make(map[string]bool, len(layers))
	for _, id := range layers {
		wanted[id] = true
	}

	var out []mapengine.Feature
	for i := len(e.layers) - 1; i >= 0; i-- {
		ls := e.layers[i]
		if len(wanted) > 0 && !wanted[ls.info.ID] {
			continue
		}
		if ls.source == "" || ls.layout["visibility"] == "none" {
			continue
		}
		type hit struct {
			f    mapengine.Feature
			dist float64
		}
		var hits []hit
		for _, f := range e.loadedFeatures(ls.source, ls.sourceLayer) {
			if !ls.filter.Matches(f.ID) {
				continue
			}
			sp := e.projectPoint(anchor(f.Geometry))
			d := math.Hypot(sp.X-p.X, sp.Y-p.Y)
			if d <= e.opts.HitRadius {
				f.Layer = ls.info.ID
				hits = append(hits, hit{f: f, dist: d})
			}
		}
		sort.SliceStable(hits, func(a, b int) bool { return hits[a].dist < hits[b].dist })
		for _, h := range hits {
			out = append(out, h.f)
		}
	}
	return out
}

// QuerySourceFeatures returns features of loaded tiles regardless of filters
// and visibility.
func (e *Engine) QuerySourceFeatures(source, sourceLayer string) []mapengine.Feature {
	return e.loadedFeatures(source, sourceLayer)
}

func (e *Engine) loadedFeatures(source, sourceLayer string) []mapengine.Feature {
	bucket, ok := e.sources[sourceKey{source, sourceLayer}]
	if !ok {
		return nil
	}
	var out []mapengine.Feature
	for _, t := range bucket.order {
		if e.loaded[t] {
			out = append(out, bucket.tiles[t]...)
		}
	}
	return out
}

// SetFeatureState merges state into a feature's state map.
func (e *Engine) SetFeatureState(ref mapengine.FeatureRef, state map[string]any) {
	current, ok := e.states[ref]
	if !ok {
		current = make(map[string]any, len(state))
		e.states[ref] = current
	}
	for k, v := range state {
		current[k] = v
	}
}

// FeatureState returns a copy of a feature's state.
func (e *Engine) FeatureState(ref mapengine.FeatureRef) map[string]any {
	out := make(map[string]any, len(e.states[ref]))
	for k, v := range e.states[ref] {
		out[k] = v
	}
	return out
}

// SetFilter replaces a layer's filter. Unknown layers are ignored.
func (e *Engine) SetFilter(layerID string, f *mapengine.Filter) {
	if ls, ok := e.layerIndex[layerID]; ok {
		ls.filter = f
	}
}

// Filter returns a layer's current filter.
func (e *Engine) Filter(layerID string) *mapengine.Filter {
	if ls, ok := e.layerIndex[layerID]; ok {
		return ls.filter
	}
	return nil
}

// SetPaintProperty sets a paint property. Unknown layers are ignored.
func (e *Engine) SetPaintProperty(layerID, name string, value any) {
	if ls, ok := e.layerIndex[layerID]; ok {
		ls.paint[name] = value
	}
}

// PaintProperty returns a paint property value.
func (e *Engine) PaintProperty(layerID, name string) (any, bool) {
	ls, ok := e.layerIndex[layerID]
	if !ok {
		return nil, false
	}
	v, ok := ls.paint[name]
	return v, ok
}

// SetLayoutProperty sets a layout property. Unknown layers are ignored.
func (e *Engine) SetLayoutProperty(layerID, name string, value any) {
	if ls, ok := e.layerIndex[layerID]; ok {
		ls.layout[name] = value
	}
}

// LayoutProperty returns a layout property value.
func (e *Engine) LayoutProperty(layerID, name string) (any, bool) {
	ls, ok := e.layerIndex[layerID]
	if !ok {
		return nil, false
	}
	v, ok := ls.layout[name]
	return v, ok
}

// Layer looks up a layer by id.
func (e *Engine) Layer(layerID string) (mapengine.LayerInfo, bool) {
	ls, ok := e.layerIndex[layerID]
	if !ok {
		return mapengine.LayerInfo{}, false
	}
	return ls.info, true
}

// Layers returns layers in drawing order, bottom first.
func (e *Engine) Layers() []mapengine.LayerInfo {
	out := make([]mapengine.LayerInfo, len(e.layers))
	for i, ls := range e.layers {
		out[i] = ls.info
	}
	return out
}

// Project converts a coordinate to a screen point under the current camera.
func (e *Engine) Project(c model.Coordinate) mapengine.ScreenPoint {
	return e.projectPoint(c.Point())
}

// Unproject converts a screen point to a coordinate under the current camera.
func (e *Engine) Unproject(p mapengine.ScreenPoint) model.Coordinate {
	center, zoom := e.Camera()
	size := e.opts.TileSize * math.Exp2(zoom)
	cx, cy := worldXY(center.Point(), size)
	x := p.X - e.opts.Width/2 + cx
	y := p.Y - e.opts.Height/2 + cy
	lng := x/size*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*y/size))) * 180 / math.Pi
	return model.Coordinate{Lng: lng, Lat: lat}
}

func (e *Engine) projectPoint(pt orb.Point) mapengine.ScreenPoint {
	center, zoom := e.Camera()
	size := e.opts.TileSize * math.Exp2(zoom)
	cx, cy := worldXY(center.Point(), size)
	x, y := worldXY(pt, size)
	return mapengine.ScreenPoint{
		X: x - cx + e.opts.Width/2,
		Y: y - cy + e.opts.Height/2,
	}
}

func (e *Engine) visibleTileRange() (minX, minY, maxX, maxY uint32) {
	nw := e.Unproject(mapengine.ScreenPoint{X: 0, Y: 0})
	se := e.Unproject(mapengine.ScreenPoint{X: e.opts.Width, Y: e.opts.Height})
	a := maptile.At(clampPoint(nw.Point()), e.opts.TileZoom)
	b := maptile.At(clampPoint(se.Point()), e.opts.TileZoom)
	return min(a.X, b.X), min(a.Y, b.Y), max(a.X, b.X), max(a.Y, b.Y)
}

// worldXY projects to Web Mercator pixels for a world of the given size.
func worldXY(p orb.Point, size float64) (float64, float64) {
	lat := math.Max(-85.05112878, math.Min(85.05112878, p.Lat()))
	x := (p.Lon() + 180) / 360 * size
	sin := math.Sin(lat * math.Pi / 180)
	y := (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * size
	return x, y
}

func clampPoint(p orb.Point) orb.Point {
	return orb.Point{
		math.Max(-180, math.Min(179.999999, p.Lon())),
		math.Max(-85.05112878, math.Min(85.05112878, p.Lat())),
	}
}

func anchor(g orb.Geometry) orb.Point {
	if p, ok := g.(orb.Point); ok {
		return p
	}
	return g.Bound().Center()
}
