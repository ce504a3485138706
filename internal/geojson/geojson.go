// Package geojson implements the subset of GeoJSON used by the pipeline:
// FeatureCollections of Polygon/MultiPolygon grid cells with free-form
// properties. Features are decoded once by the fetcher and treated as
// immutable by every downstream stage.
package geojson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Well-known GeoJSON type tags.
const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
	TypePoint             = "Point"
	TypePolygon           = "Polygon"
	TypeMultiPolygon      = "MultiPolygon"
)

// FeatureCollection is an ordered sequence of Features. The features slice
// preserves server-returned order; no deduplication is performed anywhere.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one grid cell: a geometry plus a mapping of named properties
// (population count, cell id, centroid coordinates).
type Feature struct {
	Type       string                 `json:"type"`
	ID         json.Number            `json:"id,omitempty"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Geometry holds a geometry type tag and its raw coordinate array. The
// coordinates are kept raw so features round-trip without loss; typed
// accessors decode on demand.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Ring is a closed sequence of [lon, lat] positions.
type Ring [][]float64

// NewFeatureCollection wraps features in a collection envelope. A nil slice
// is normalised to an empty one so the encoded document always carries a
// well-formed (possibly empty) features array.
func NewFeatureCollection(features []Feature) *FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return &FeatureCollection{Type: TypeFeatureCollection, Features: features}
}

// Decode reads a single GeoJSON document from r.
func Decode(r io.Reader) (*FeatureCollection, error) {
	var fc FeatureCollection
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if fc.Type != TypeFeatureCollection {
		return nil, fmt.Errorf("unexpected top-level type %q", fc.Type)
	}
	if fc.Features == nil {
		fc.Features = []Feature{}
	}
	return &fc, nil
}

// DecodeBytes decodes a GeoJSON document held in memory.
func DecodeBytes(data []byte) (*FeatureCollection, error) {
	return Decode(bytes.NewReader(data))
}

// Marshal returns fc as a single UTF-8 JSON document with no trailing
// newline. Map keys are sorted by the encoder, so output is deterministic
// for a fixed feature sequence and repeated runs with identical inputs are
// byte-for-byte identical.
func (fc *FeatureCollection) Marshal() ([]byte, error) {
	if fc.Features == nil {
		fc.Features = []Feature{}
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return data, nil
}

// Encode writes the marshalled document to w.
func (fc *FeatureCollection) Encode(w io.Writer) error {
	data, err := fc.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write feature collection: %w", err)
	}
	return nil
}

// Property returns a named property value and whether it was present.
func (f *Feature) Property(name string) (interface{}, bool) {
	if f.Properties == nil {
		return nil, false
	}
	v, ok := f.Properties[name]
	return v, ok
}

// NumericProperty returns a named property coerced to float64. It accepts
// json.Number and float64 values; anything else reports not-present.
func (f *Feature) NumericProperty(name string) (float64, bool) {
	v, ok := f.Property(name)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Point decodes a Point geometry as [lon, lat].
func (g *Geometry) Point() ([]float64, error) {
	if g.Type != TypePoint {
		return nil, fmt.Errorf("geometry is %q, not a point", g.Type)
	}
	var pt []float64
	if err := json.Unmarshal(g.Coordinates, &pt); err != nil {
		return nil, fmt.Errorf("decode point coordinates: %w", err)
	}
	return pt, nil
}

// PolygonRings decodes a Polygon geometry's rings. The first ring is the
// exterior boundary; any remaining rings are holes.
func (g *Geometry) PolygonRings() ([]Ring, error) {
	if g.Type != TypePolygon {
		return nil, fmt.Errorf("geometry is %q, not a polygon", g.Type)
	}
	var rings []Ring
	if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
		return nil, fmt.Errorf("decode polygon coordinates: %w", err)
	}
	return rings, nil
}

// MultiPolygonRings decodes a MultiPolygon geometry as a slice of polygons,
// each a slice of rings.
func (g *Geometry) MultiPolygonRings() ([][]Ring, error) {
	if g.Type != TypeMultiPolygon {
		return nil, fmt.Errorf("geometry is %q, not a multipolygon", g.Type)
	}
	var polys [][]Ring
	if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
		return nil, fmt.Errorf("decode multipolygon coordinates: %w", err)
	}
	return polys, nil
}

// IsEmpty reports whether the geometry is missing or carries no coordinates.
func (g *Geometry) IsEmpty() bool {
	if g == nil || len(g.Coordinates) == 0 {
		return true
	}
	trimmed := bytes.TrimSpace(g.Coordinates)
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte("[]"))
}

// Validate checks structural integrity of a Polygon or MultiPolygon
// geometry: every ring must have at least four positions, be explicitly
// closed, and contain only finite coordinates. Point geometries are checked
// for finiteness only. Other geometry types are rejected.
func (g *Geometry) Validate() error {
	if g.IsEmpty() {
		return fmt.Errorf("empty geometry")
	}
	switch g.Type {
	case TypePoint:
		pt, err := g.Point()
		if err != nil {
			return err
		}
		if len(pt) < 2 {
			return fmt.Errorf("point has %d coordinates, need at least 2", len(pt))
		}
		if !finite(pt[0]) || !finite(pt[1]) {
			return fmt.Errorf("point has non-finite coordinates")
		}
		return nil
	case TypePolygon:
		rings, err := g.PolygonRings()
		if err != nil {
			return err
		}
		return validateRings(rings)
	case TypeMultiPolygon:
		polys, err := g.MultiPolygonRings()
		if err != nil {
			return err
		}
		if len(polys) == 0 {
			return fmt.Errorf("multipolygon has no polygons")
		}
		for i, rings := range polys {
			if err := validateRings(rings); err != nil {
				return fmt.Errorf("polygon %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func validateRings(rings []Ring) error {
	if len(rings) == 0 {
		return fmt.Errorf("polygon has no rings")
	}
	for i, ring := range rings {
		if len(ring) < 4 {
			return fmt.Errorf("ring %d has %d positions, need at least 4", i, len(ring))
		}
		for j, pos := range ring {
			if len(pos) < 2 {
				return fmt.Errorf("ring %d position %d has %d coordinates", i, j, len(pos))
			}
			if !finite(pos[0]) || !finite(pos[1]) {
				return fmt.Errorf("ring %d position %d has non-finite coordinates", i, j)
			}
		}
		first, last := ring[0], ring[len(ring)-1]
		if first[0] != last[0] || first[1] != last[1] {
			return fmt.Errorf("ring %d is not closed", i)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
