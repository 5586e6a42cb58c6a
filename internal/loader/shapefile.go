package loader

import (
	"errors"
	"fmt"
	"os"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/pavelength/pavelength/internal/dataset"
)

func sidecar(shpPath, ext string) string {
	return strings.TrimSuffix(shpPath, ".shp") + ext
}

func readShapefile(path string) (*dataset.Dataset, []string, error) {
	if _, err := os.Stat(sidecar(path, ".dbf")); err != nil {
		return nil, nil, &LoadError{Reason: "attribute table (.dbf) missing", Err: err}
	}

	var warnings []string
	dec, warn := decoderFor(sidecar(path, ".cpg"))
	if warn != "" {
		warnings = append(warnings, warn)
	}
	projection, warn := readProjection(sidecar(path, ".prj"))
	if warn != "" {
		warnings = append(warnings, warn)
	}

	r, err := shp.Open(path)
	if err != nil {
		return nil, nil, &LoadError{Reason: "open shapefile", Err: err}
	}
	defer r.Close()

	fields := r.Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = dec(f.String())
	}

	var rows []dataset.Row
	for n := 0; r.Next(); n++ {
		_, shape := r.Shape()
		values := make([]dataset.Value, len(fields))
		for i, f := range fields {
			values[i] = cell(f, dec(r.ReadAttribute(n, i)))
		}
		rows = append(rows, dataset.Row{Values: values, Geometry: toGeometry(shape)})
	}
	if err := r.Err(); err != nil {
		return nil, nil, &LoadError{Reason: "read shapefile", Err: err}
	}

	ds, err := dataset.New(columns, rows, projection)
	if err != nil {
		return nil, nil, &LoadError{Reason: "build dataset", Err: err}
	}
	return ds, warnings, nil
}

// cell types an attribute by its DBF field type. Blank cells are null.
func cell(f shp.Field, raw string) dataset.Value {
	s := strings.TrimSpace(strings.Trim(raw, "\x00"))
	if s == "" || strings.Trim(s, "*") == "" {
		return dataset.Null()
	}
	switch f.Fieldtype {
	case 'N', 'F':
		return dataset.ParseNumber(dataset.Text(s))
	default:
		return dataset.Text(s)
	}
}

func readProjection(path string) (string, string) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", "no .prj file; coordinates are assumed to be longitude/latitude"
	}
	if err != nil {
		return "", fmt.Sprintf("unreadable .prj file: %v", err)
	}
	wkt := strings.TrimSpace(string(data))
	if strings.HasPrefix(strings.ToUpper(wkt), "PROJCS") {
		return wkt, "projected coordinate system is not reprojected; map positions may be off"
	}
	return wkt, ""
}

func toGeometry(s shp.Shape) orb.Geometry {
	switch g := s.(type) {
	case *shp.Point:
		return orb.Point{g.X, g.Y}
	case *shp.PointZ:
		return orb.Point{g.X, g.Y}
	case *shp.PointM:
		return orb.Point{g.X, g.Y}
	case *shp.MultiPoint:
		return multiPoint(g.Points)
	case *shp.MultiPointZ:
		return multiPoint(g.Points)
	case *shp.MultiPointM:
		return multiPoint(g.Points)
	case *shp.PolyLine:
		return lines(g.Parts, g.Points)
	case *shp.PolyLineZ:
		return lines(g.Parts, g.Points)
	case *shp.PolyLineM:
		return lines(g.Parts, g.Points)
	case *shp.Polygon:
		return polygons(g.Parts, g.Points)
	case *shp.PolygonZ:
		return polygons(g.Parts, g.Points)
	case *shp.PolygonM:
		return polygons(g.Parts, g.Points)
	default:
		return nil
	}
}

func multiPoint(pts []shp.Point) orb.Geometry {
	out := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

func split(parts []int32, pts []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(pts) {
			return nil
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

func lines(parts []int32, pts []shp.Point) orb.Geometry {
	segs := split(parts, pts)
	switch len(segs) {
	case 0:
		return nil
	case 1:
		return orb.LineString(segs[0])
	}
	out := make(orb.MultiLineString, len(segs))
	for i, p := range segs {
		out[i] = orb.LineString(p)
	}
	return out
}

// polygons groups rings: each clockwise ring starts a polygon and the
// counter-clockwise rings after it are its holes.
func polygons(parts []int32, pts []shp.Point) orb.Geometry {
	var out orb.MultiPolygon
	for _, p := range split(parts, pts) {
		ring := orb.Ring(p)
		if len(out) == 0 || ring.Orientation() != orb.CCW {
			out = append(out, orb.Polygon{ring})
			continue
		}
		last := len(out) - 1
		out[last] = append(out[last], ring)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
