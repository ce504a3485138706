// Package testutil provides shared test fixtures for the pipeline packages.
//
// It centralises feature construction and fixture files so individual test
// files do not repeat GeoJSON boilerplate.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gridata-nz/population.report/internal/geojson"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// GridFeature builds a grid-cell Feature with a unit-square polygon at
// (x, y) and the given id and population, matching the shape of the source
// dataset's cells.
func GridFeature(id string, x, y, population float64) geojson.Feature {
	ring := geojson.Ring{
		{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y},
	}
	coords, err := json.Marshal([]geojson.Ring{ring})
	if err != nil {
		panic(err) // static input, cannot fail
	}
	return geojson.Feature{
		Type:     geojson.TypeFeature,
		Geometry: &geojson.Geometry{Type: geojson.TypePolygon, Coordinates: coords},
		Properties: map[string]interface{}{
			"GridID":     id,
			"PopEst2023": population,
			"CENTROID_X": x + 0.5,
			"CENTROID_Y": y + 0.5,
		},
	}
}

// GridCollection builds a FeatureCollection of n grid features with
// predictable ids (C0001...) and populations (10, 20, 30 ...).
func GridCollection(n int) *geojson.FeatureCollection {
	features := make([]geojson.Feature, 0, n)
	for i := 0; i < n; i++ {
		features = append(features, GridFeature(
			fmt.Sprintf("C%04d", i+1),
			float64(i), 0,
			float64((i+1)*10),
		))
	}
	return geojson.NewFeatureCollection(features)
}

// WriteGeoJSONFile marshals fc into a file under dir and returns its path.
func WriteGeoJSONFile(t *testing.T, dir string, fc *geojson.FeatureCollection) string {
	t.Helper()
	data, err := fc.Marshal()
	AssertNoError(t, err)
	path := filepath.Join(dir, "fixture.geojson")
	AssertNoError(t, os.WriteFile(path, data, 0644))
	return path
}
