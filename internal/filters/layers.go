package filters

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
)

var (
	// ErrLayerNotFound is returned for an unknown layer id.
	ErrLayerNotFound = errors.New("layer not found")
	// ErrOpacityUnsupported is returned for layers without an opacity paint
	// property.
	ErrOpacityUnsupported = errors.New("layer type does not support opacity")
)

// lineCompanions are outline layers toggled together with their fill.
var lineCompanions = map[string]string{
	"espaces_publics-fill": "espaces_publics-line",
	"emprises-fill":        "emprises-line",
}

// PreferredOrder is the layer list order shown to the user, top first.
var PreferredOrder = []string{
	mapengine.SiteLayer,
	"emprises-fill",
	"espaces_publics-fill",
	"littoral-line",
	"parcelles_region-fill",
	"Plan de Tkaczow west",
	"Plan de Tkaczow east",
	"Plan de Tkaczow, 1993",
	"Plan d'Adriani, 1934",
	"Restitution de Mahmoud bey el-Falaki, 1866",
	"satellite-background",
	"osm-background",
}

// Layers drives layer visibility and opacity. Failures are logged as warnings
// and leave the map untouched.
type Layers struct {
	m   mapengine.Map
	log logging.Logger
}

// NewLayers builds layer controls for m.
func NewLayers(m mapengine.Map, log logging.Logger) *Layers {
	if log == nil {
		log = logging.Noop()
	}
	return &Layers{m: m, log: log}
}

// SetVisibility shows or hides a layer, with its outline companion if any.
func (l *Layers) SetVisibility(ctx context.Context, layerID string, visible bool) error {
	if _, ok := l.m.Layer(layerID); !ok {
		l.log.Warn(ctx, "visibility requested on a non-existent layer", logging.String("layer", layerID))
		return fmt.Errorf("%w: %s", ErrLayerNotFound, layerID)
	}
	visibility := "none"
	if visible {
		visibility = "visible"
	}
	l.m.SetLayoutProperty(layerID, "visibility", visibility)
	if line, ok := lineCompanions[layerID]; ok {
		l.m.SetLayoutProperty(line, "visibility", visibility)
	}
	return nil
}

// SetOpacity sets raster-opacity or fill-opacity, clamped to [0, 1].
func (l *Layers) SetOpacity(ctx context.Context, layerID string, opacity float64) error {
	info, ok := l.m.Layer(layerID)
	if !ok {
		l.log.Warn(ctx, "opacity requested on a non-existent layer", logging.String("layer", layerID))
		return fmt.Errorf("%w: %s", ErrLayerNotFound, layerID)
	}
	opacity = max(0, min(1, opacity))
	switch info.Type {
	case mapengine.LayerRaster:
		l.m.SetPaintProperty(layerID, "raster-opacity", opacity)
	case mapengine.LayerFill:
		l.m.SetPaintProperty(layerID, "fill-opacity", opacity)
	default:
		l.log.Warn(ctx, "layer type does not support opacity control",
			logging.String("layer", layerID),
			logging.String("type", string(info.Type)),
		)
		return fmt.Errorf("%w: %s is %s", ErrOpacityUnsupported, layerID, info.Type)
	}
	return nil
}

// OrderForUI drops layers whose metadata marks them filter-ui=ignore and
// sorts the rest by PreferredOrder. Unlisted layers keep their relative order
// at the end.
func OrderForUI(layers []mapengine.LayerInfo) []mapengine.LayerInfo {
	rank := make(map[string]int, len(PreferredOrder))
	for i, id := range PreferredOrder {
		rank[id] = i
	}
	out := make([]mapengine.LayerInfo, 0, len(layers))
	for _, layer := range layers {
		if layer.Metadata["filter-ui"] == "ignore" {
			continue
		}
		out = append(out, layer)
	}
	position := func(id string) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return len(PreferredOrder)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return position(out[i].ID) < position(out[j].ID)
	})
	return out
}
