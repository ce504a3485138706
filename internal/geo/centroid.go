package geo

import (
	"fmt"

	"github.com/gridata-nz/population.report/internal/geojson"
)

// Centroid computes the area-weighted centroid of a Polygon or MultiPolygon
// geometry, using exterior rings only. Holes are ignored, which is exact
// enough for 250m grid squares.
func Centroid(g *geojson.Geometry) (Point, error) {
	switch g.Type {
	case geojson.TypePolygon:
		rings, err := g.PolygonRings()
		if err != nil {
			return Point{}, err
		}
		if len(rings) == 0 {
			return Point{}, fmt.Errorf("polygon has no rings")
		}
		c, _, err := ringCentroid(rings[0])
		return c, err
	case geojson.TypeMultiPolygon:
		polys, err := g.MultiPolygonRings()
		if err != nil {
			return Point{}, err
		}
		var sumX, sumY, sumArea float64
		for _, rings := range polys {
			if len(rings) == 0 {
				continue
			}
			c, area, err := ringCentroid(rings[0])
			if err != nil {
				return Point{}, err
			}
			sumX += c.X * area
			sumY += c.Y * area
			sumArea += area
		}
		if sumArea == 0 {
			return Point{}, fmt.Errorf("multipolygon has zero total area")
		}
		return Point{X: sumX / sumArea, Y: sumY / sumArea}, nil
	default:
		return Point{}, fmt.Errorf("cannot compute centroid of %q geometry", g.Type)
	}
}

// ringCentroid returns the centroid and absolute area of one closed ring
// via the shoelace formula. Degenerate (zero-area) rings fall back to the
// vertex mean.
func ringCentroid(ring geojson.Ring) (Point, float64, error) {
	if len(ring) < 4 {
		return Point{}, 0, fmt.Errorf("ring has %d positions, need at least 4", len(ring))
	}

	var areaSum, cxSum, cySum float64
	for i := 0; i < len(ring)-1; i++ {
		x0, y0 := ring[i][0], ring[i][1]
		x1, y1 := ring[i+1][0], ring[i+1][1]
		cross := x0*y1 - x1*y0
		areaSum += cross
		cxSum += (x0 + x1) * cross
		cySum += (y0 + y1) * cross
	}

	if areaSum == 0 {
		var mx, my float64
		n := len(ring) - 1
		for i := 0; i < n; i++ {
			mx += ring[i][0]
			my += ring[i][1]
		}
		return Point{X: mx / float64(n), Y: my / float64(n)}, 0, nil
	}

	area := areaSum / 2
	c := Point{X: cxSum / (6 * area), Y: cySum / (6 * area)}
	if area < 0 {
		area = -area
	}
	return c, area, nil
}
