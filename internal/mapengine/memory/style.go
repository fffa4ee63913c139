package memory

import "github.com/signalsfoundry/sites-fouilles-map/internal/mapengine"

// HistoricalMapIDs are the georeferenced historical plans drawn as rasters.
var HistoricalMapIDs = []string{
	"Plan d'Adriani, 1934",
	"Plan de Tkaczow, 1993",
	"Restitution de Mahmoud bey el-Falaki, 1866",
	"Plan de Tkaczow east",
	"Plan de Tkaczow west",
}

// InstallDefaultStyle adds the Alexandria excavation style, bottom layer first.
// The pulse, wave and companion line layers are hidden from the layer list.
func (e *Engine) InstallDefaultStyle() {
	ignore := map[string]string{"filter-ui": "ignore"}

	e.AddLayer(mapengine.LayerInfo{ID: "osm-background", Type: mapengine.LayerRaster}, "", "")
	e.AddLayer(mapengine.LayerInfo{ID: "satellite-background", Type: mapengine.LayerRaster}, "", "")
	for _, id := range HistoricalMapIDs {
		e.AddLayer(mapengine.LayerInfo{ID: id, Type: mapengine.LayerRaster}, "", "")
	}
	e.AddLayer(mapengine.LayerInfo{ID: "parcelles_region-fill", Type: mapengine.LayerFill}, "tegola_parcelles", "parcelles_region")
	e.AddLayer(mapengine.LayerInfo{ID: "littoral-line", Type: mapengine.LayerLine}, "tegola_littoral", "littoral")
	e.AddLayer(mapengine.LayerInfo{ID: "espaces_publics-fill", Type: mapengine.LayerFill}, "tegola_espaces", "espaces_publics")
	e.AddLayer(mapengine.LayerInfo{ID: "espaces_publics-line", Type: mapengine.LayerLine, Metadata: ignore}, "tegola_espaces", "espaces_publics")
	e.AddLayer(mapengine.LayerInfo{ID: "emprises-fill", Type: mapengine.LayerFill}, "tegola_emprises", "emprises")
	e.AddLayer(mapengine.LayerInfo{ID: "emprises-line", Type: mapengine.LayerLine, Metadata: ignore}, "tegola_emprises", "emprises")
	e.AddLayer(mapengine.LayerInfo{ID: mapengine.WavesLayer, Type: mapengine.LayerCircle, Metadata: ignore}, mapengine.SiteSource, mapengine.SiteSourceLayer)
	e.AddLayer(mapengine.LayerInfo{ID: mapengine.PulseLayer, Type: mapengine.LayerCircle, Metadata: ignore}, mapengine.SiteSource, mapengine.SiteSourceLayer)
	e.AddLayer(mapengine.LayerInfo{ID: mapengine.SiteLayer, Type: mapengine.LayerCircle}, mapengine.SiteSource, mapengine.SiteSourceLayer)

	// Highlight layers start empty; the hover loop filters them to one id.
	e.SetFilter(mapengine.PulseLayer, mapengine.MatchNothing())
	e.SetFilter(mapengine.WavesLayer, mapengine.MatchNothing())
}
