package dataset

import (
	"math"

	"github.com/paulmach/orb"
)

// ValidGeometry reports whether g can take part in spatial rendering:
// non-nil, finite coordinates, line strings with at least two points and
// closed polygon rings with at least four points.
func ValidGeometry(g orb.Geometry) bool {
	switch geom := g.(type) {
	case nil:
		return false
	case orb.Point:
		return finite(geom)
	case orb.MultiPoint:
		if len(geom) == 0 {
			return false
		}
		for _, p := range geom {
			if !finite(p) {
				return false
			}
		}
		return true
	case orb.LineString:
		return validLine(geom)
	case orb.MultiLineString:
		if len(geom) == 0 {
			return false
		}
		for _, ls := range geom {
			if !validLine(ls) {
				return false
			}
		}
		return true
	case orb.Ring:
		return validRing(geom)
	case orb.Polygon:
		return validPolygon(geom)
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return false
		}
		for _, p := range geom {
			if !validPolygon(p) {
				return false
			}
		}
		return true
	case orb.Collection:
		if len(geom) == 0 {
			return false
		}
		for _, part := range geom {
			if !ValidGeometry(part) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

func validLine(ls orb.LineString) bool {
	if len(ls) < 2 {
		return false
	}
	for _, p := range ls {
		if !finite(p) {
			return false
		}
	}
	return true
}

func validRing(r orb.Ring) bool {
	if len(r) < 4 || r[0] != r[len(r)-1] {
		return false
	}
	for _, p := range r {
		if !finite(p) {
			return false
		}
	}
	return true
}

func validPolygon(p orb.Polygon) bool {
	if len(p) == 0 {
		return false
	}
	for _, r := range p {
		if !validRing(r) {
			return false
		}
	}
	return true
}
