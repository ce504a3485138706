package geojson

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func polygonGeometry(t *testing.T, rings []Ring) *Geometry {
	t.Helper()
	coords, err := json.Marshal(rings)
	require.NoError(t, err)
	return &Geometry{Type: TypePolygon, Coordinates: coords}
}

func squareRing() Ring {
	return Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
}

func TestDecode_RoundTrip(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[` +
		`{"type":"Feature","id":1,"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]},"properties":{"GridID":"A1","PopEst2023":42}}` +
		`]}`

	fc, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, TypeFeature, f.Type)

	pop, ok := f.NumericProperty("PopEst2023")
	require.True(t, ok)
	assert.Equal(t, 42.0, pop)

	rings, err := f.Geometry.PolygonRings()
	require.NoError(t, err)
	require.Len(t, rings, 1)
	assert.Len(t, rings[0], 5)

	// Decoding the marshalled output yields an identical collection.
	out, err := fc.Marshal()
	require.NoError(t, err)
	again, err := DecodeBytes(out)
	require.NoError(t, err)
	if diff := cmp.Diff(fc, again); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_RejectsWrongTopLevelType(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"type":"Feature","features":[]}`))
	assert.Error(t, err)
}

func TestDecode_NilFeaturesNormalised(t *testing.T) {
	fc, err := Decode(strings.NewReader(`{"type":"FeatureCollection"}`))
	require.NoError(t, err)
	assert.NotNil(t, fc.Features)
	assert.Empty(t, fc.Features)
}

func TestMarshal_EmptyCollection(t *testing.T) {
	fc := NewFeatureCollection(nil)
	data, err := fc.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestMarshal_Deterministic(t *testing.T) {
	fc := NewFeatureCollection([]Feature{
		{
			Type:     TypeFeature,
			Geometry: polygonGeometry(t, []Ring{squareRing()}),
			Properties: map[string]interface{}{
				"PopEst2023": 10.0,
				"GridID":     "B2",
				"CENTROID_X": 174.5,
			},
		},
	})

	first, err := fc.Marshal()
	require.NoError(t, err)
	second, err := fc.Marshal()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The document must parse back cleanly.
	_, err = DecodeBytes(first)
	assert.NoError(t, err)
}

func TestNumericProperty(t *testing.T) {
	f := Feature{Properties: map[string]interface{}{
		"count":  json.Number("17"),
		"rate":   3.5,
		"name":   "Wellington",
		"absent": nil,
	}}

	v, ok := f.NumericProperty("count")
	assert.True(t, ok)
	assert.Equal(t, 17.0, v)

	v, ok = f.NumericProperty("rate")
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)

	_, ok = f.NumericProperty("name")
	assert.False(t, ok)

	_, ok = f.NumericProperty("absent")
	assert.False(t, ok)

	_, ok = f.NumericProperty("missing")
	assert.False(t, ok)
}

func TestGeometry_IsEmpty(t *testing.T) {
	var nilGeom *Geometry
	assert.True(t, nilGeom.IsEmpty())
	assert.True(t, (&Geometry{Type: TypePolygon}).IsEmpty())
	assert.True(t, (&Geometry{Type: TypePolygon, Coordinates: json.RawMessage(`null`)}).IsEmpty())
	assert.True(t, (&Geometry{Type: TypePolygon, Coordinates: json.RawMessage(`[]`)}).IsEmpty())
	assert.False(t, polygonGeometry(t, []Ring{squareRing()}).IsEmpty())
}

func TestGeometry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rings   []Ring
		wantErr string
	}{
		{name: "valid square", rings: []Ring{squareRing()}},
		{
			name:    "unclosed ring",
			rings:   []Ring{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}},
			wantErr: "not closed",
		},
		{
			name:    "too few positions",
			rings:   []Ring{{{0, 0}, {1, 1}, {0, 0}}},
			wantErr: "positions",
		},
		{
			name:    "no rings",
			rings:   []Ring{},
			wantErr: "no rings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := polygonGeometry(t, tt.rings).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGeometry_Validate_MultiPolygon(t *testing.T) {
	coords, err := json.Marshal([][]Ring{{squareRing()}, {squareRing()}})
	require.NoError(t, err)
	g := &Geometry{Type: TypeMultiPolygon, Coordinates: coords}
	assert.NoError(t, g.Validate())

	empty, err := json.Marshal([][]Ring{})
	require.NoError(t, err)
	g = &Geometry{Type: TypeMultiPolygon, Coordinates: empty}
	assert.Error(t, g.Validate())
}

func TestGeometry_Validate_NonFinite(t *testing.T) {
	// NaN cannot be produced via json.Marshal, so build the raw document.
	g := &Geometry{Type: TypePoint, Coordinates: json.RawMessage(`[1e999,0]`)}
	assert.Error(t, g.Validate())
}

func TestGeometry_Validate_UnsupportedType(t *testing.T) {
	g := &Geometry{Type: "LineString", Coordinates: json.RawMessage(`[[0,0],[1,1]]`)}
	assert.Error(t, g.Validate())
}
