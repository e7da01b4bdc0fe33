package geo

import (
	"fmt"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// Polygon is an implicitly closed ring of vertices: the last vertex connects
// back to the first.
type Polygon struct {
	lats []float64
	lons []float64
}

// NewPolygon builds a polygon from parallel latitude and longitude slices.
func NewPolygon(lats, lons []float64) (Polygon, error) {
	if len(lats) != len(lons) {
		return Polygon{}, fmt.Errorf("polygon has %d latitudes and %d longitudes", len(lats), len(lons))
	}
	if len(lats) < 3 {
		return Polygon{}, fmt.Errorf("%w: got %d", domain.ErrInvalidPolygon, len(lats))
	}
	return Polygon{
		lats: append([]float64(nil), lats...),
		lons: append([]float64(nil), lons...),
	}, nil
}

func mustPolygon(lats, lons []float64) Polygon {
	p, err := NewPolygon(lats, lons)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of vertices.
func (p Polygon) Len() int { return len(p.lats) }

// Contains reports whether c lies inside the polygon using the crossing-number
// rule: a ray from c towards increasing latitude crosses the boundary an odd
// number of times.
func (p Polygon) Contains(c domain.GeoCoordinate) bool {
	inside := false
	n := len(p.lats)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if p.crosses(i, j, c.Lat, c.Lon) {
			inside = !inside
		}
	}
	return inside
}

// crosses reports whether edge (i, j) straddles lon and passes above lat.
// Edges with equal longitudes never straddle, so the division is safe.
func (p Polygon) crosses(i, j int, lat, lon float64) bool {
	if (p.lons[i] > lon) == (p.lons[j] > lon) {
		return false
	}
	edgeLat := (p.lats[j]-p.lats[i])*(lon-p.lons[i])/(p.lons[j]-p.lons[i]) + p.lats[i]
	return lat < edgeLat
}

// Region is a named set of polygons. Discontiguous landmasses share a name.
type Region struct {
	Name     string
	Polygons []Polygon
}

// Contains reports whether any polygon of the region contains c.
func (r Region) Contains(c domain.GeoCoordinate) bool {
	for _, p := range r.Polygons {
		if p.Contains(c) {
			return true
		}
	}
	return false
}
