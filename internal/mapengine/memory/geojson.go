package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// LoadGeoJSON reads a FeatureCollection and files its features under
// source/sourceLayer. Feature ids come from the GeoJSON "id" member, falling
// back to an "id" or "fid" property; features without a numeric id are
// skipped. It returns the number of features added.
func (e *Engine) LoadGeoJSON(source, sourceLayer string, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return 0, fmt.Errorf("decode geojson: %w", err)
	}

	features := make([]mapengine.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		id, ok := featureID(f.ID)
		if !ok {
			id, ok = featureID(f.Properties["id"])
		}
		if !ok {
			id, ok = featureID(f.Properties["fid"])
		}
		if !ok || f.Geometry == nil {
			continue
		}
		features = append(features, mapengine.Feature{
			ID:         id,
			Geometry:   f.Geometry,
			Properties: map[string]any(f.Properties),
		})
	}
	e.AddFeatures(source, sourceLayer, features...)
	return len(features), nil
}

func featureID(v any) (model.FeatureID, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return 0, false
		}
		return model.FeatureID(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return model.FeatureID(n), true
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return model.FeatureID(u), err == nil
	case string:
		id, err := model.ParseFeatureID(n)
		return id, err == nil
	default:
		return 0, false
	}
}
