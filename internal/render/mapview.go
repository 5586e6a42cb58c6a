package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/pavelength/pavelength/internal/dataset"
)

// SimplifyTolerance is the Douglas-Peucker threshold in map units.
const SimplifyTolerance = 0.0001

// MapLayer is the GeoJSON payload of the map view.
type MapLayer struct {
	Center        orb.Point                  `json:"center"`
	Zoom          int                        `json:"zoom"`
	PCIColumn     string                     `json:"pci_column"`
	SegmentColumn string                     `json:"segment_column"`
	Features      *geojson.FeatureCollection `json:"features"`
}

// Map builds one feature per record with color and popup properties.
// An empty view yields an empty collection centered on (0, 0).
func Map(src Source) *MapLayer {
	layer := &MapLayer{
		Zoom:          2,
		PCIColumn:     src.PCIColumn,
		SegmentColumn: src.SegmentColumn,
		Features:      geojson.NewFeatureCollection(),
	}
	if src.View.IsZero() || src.View.Len() == 0 {
		return layer
	}

	fields, cols := src.mappedColumns()
	simplifier := simplify.DouglasPeucker(SimplifyTolerance)

	var sumX, sumY float64
	for _, rec := range src.View.Records() {
		geom := simplifier.Simplify(orb.Clone(rec.Geometry))
		if !dataset.ValidGeometry(geom) {
			geom = rec.Geometry
		}

		class := Unrated
		if src.PCIColumn != "" {
			class = Classify(rec.Get(src.PCIColumn))
		}

		lines := make([]string, 0, len(fields))
		for i, f := range fields {
			lines = append(lines, fmt.Sprintf("<b>%s:</b> %s", html.EscapeString(string(f)), html.EscapeString(rec.Get(cols[i]).String())))
		}

		feat := geojson.NewFeature(geom)
		feat.Properties["color"] = colors[class]
		feat.Properties["condition"] = class
		feat.Properties["popup"] = strings.Join(lines, "<br>")
		if src.SegmentColumn != "" {
			feat.Properties["segment_id"] = rec.Get(src.SegmentColumn).String()
		}
		layer.Features.Append(feat)

		c, _ := planar.CentroidArea(rec.Geometry)
		sumX += c[0]
		sumY += c[1]
	}

	n := float64(src.View.Len())
	layer.Center = orb.Point{sumX / n, sumY / n}
	layer.Zoom = 12
	return layer
}
