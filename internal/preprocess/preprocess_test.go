package preprocess

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridata-nz/population.report/internal/fsutil"
	"github.com/gridata-nz/population.report/internal/geo"
	"github.com/gridata-nz/population.report/internal/geojson"
	"github.com/gridata-nz/population.report/internal/testutil"
)

func TestCleanKeepsOrderAndProjects(t *testing.T) {
	fc := testutil.GridCollection(3)
	res := Clean(fc)

	require.Len(t, res.Cells, 3)
	assert.Equal(t, 0, res.Audit.MissingGridID)
	assert.Equal(t, 3, res.Audit.FeatureCount)
	assert.Equal(t, 3, res.Audit.Kept())

	assert.Equal(t, "C0001", res.Cells[0].GridID)
	assert.Equal(t, "C0002", res.Cells[1].GridID)
	assert.Equal(t, "C0003", res.Cells[2].GridID)

	// Lon/lat centroids are projected to NZTM metres.
	want := geo.ToNZTM(0.5, 0.5)
	assert.InDelta(t, want.X, res.Cells[0].Easting, 1e-6)
	assert.InDelta(t, want.Y, res.Cells[0].Northing, 1e-6)

	// Density is population over the 250m cell area.
	assert.InDelta(t, 10.0/0.0625, res.Cells[0].DensityKm2, 1e-9)
	assert.InDelta(t, 20.0/0.0625, res.Cells[1].DensityKm2, 1e-9)
}

func TestCleanPassesThroughNZTMCentroids(t *testing.T) {
	f := testutil.GridFeature("C0001", 0, 0, 40)
	f.Properties["CENTROID_X"] = 1750000.0
	f.Properties["CENTROID_Y"] = 5400000.0
	res := Clean(geojson.NewFeatureCollection([]geojson.Feature{f}))

	require.Len(t, res.Cells, 1)
	assert.Equal(t, 1750000.0, res.Cells[0].Easting)
	assert.Equal(t, 5400000.0, res.Cells[0].Northing)
}

func TestCleanAuditsDroppedFeatures(t *testing.T) {
	noID := testutil.GridFeature("", 0, 0, 10)
	noID.Properties["GridID"] = ""

	noPop := testutil.GridFeature("C0002", 1, 0, 0)
	delete(noPop.Properties, "PopEst2023")

	nanPop := testutil.GridFeature("C0003", 2, 0, 0)
	nanPop.Properties["PopEst2023"] = math.NaN()

	noLocation := testutil.GridFeature("C0004", 3, 0, 10)
	delete(noLocation.Properties, "CENTROID_X")
	delete(noLocation.Properties, "CENTROID_Y")
	noLocation.Geometry = nil

	keep := testutil.GridFeature("C0005", 4, 0, 50)

	fc := geojson.NewFeatureCollection([]geojson.Feature{noID, noPop, nanPop, noLocation, keep})
	res := Clean(fc)

	assert.Equal(t, 5, res.Audit.FeatureCount)
	assert.Equal(t, 1, res.Audit.MissingGridID)
	assert.Equal(t, 2, res.Audit.MissingPopulation)
	assert.Equal(t, 1, res.Audit.MissingCentroid)
	require.Len(t, res.Cells, 1)
	assert.Equal(t, "C0005", res.Cells[0].GridID)
}

func TestCleanFallsBackToGeometryCentroid(t *testing.T) {
	f := testutil.GridFeature("C0001", 10, 20, 30)
	delete(f.Properties, "CENTROID_X")
	delete(f.Properties, "CENTROID_Y")

	res := Clean(geojson.NewFeatureCollection([]geojson.Feature{f}))

	require.Len(t, res.Cells, 1)
	assert.Equal(t, 1, res.Audit.ComputedCentroids)
	want := geo.ToNZTM(10.5, 20.5)
	assert.InDelta(t, want.X, res.Cells[0].Easting, 1e-6)
	assert.InDelta(t, want.Y, res.Cells[0].Northing, 1e-6)
}

func TestSummarize(t *testing.T) {
	cells := []Cell{
		{GridID: "a", Population: 10},
		{GridID: "b", Population: 20},
		{GridID: "c", Population: 60},
	}
	s := Summarize(cells)
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 90.0, s.Total, 1e-9)
	assert.InDelta(t, 30.0, s.Mean, 1e-9)
	assert.InDelta(t, 60.0, s.Max, 1e-9)
	assert.InDelta(t, 10.0, s.Min, 1e-9)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestWriteCSV(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	p := New(fs)

	cells := []Cell{
		{GridID: "C0001", Population: 12, Easting: 1750000.25, Northing: 5400000.5, DensityKm2: 192},
		{GridID: "C0002", Population: 3, Easting: 1750250, Northing: 5400000.5, DensityKm2: 48},
	}
	require.NoError(t, p.WriteCSV("out/cells.csv", cells))

	data, err := fs.ReadFile("out/cells.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "GridID,PopEst2023,Easting,Northing,DensityKm2", lines[0])
	assert.Equal(t, "C0001,12,1750000.25,5400000.50,192.00", lines[1])
	assert.Equal(t, "C0002,3,1750250.00,5400000.50,48.00", lines[2])
}

func TestWriteCSVPropagatesWriteFailure(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	fs.FailWrites = assert.AnError
	p := New(fs)

	err := p.WriteCSV("out/cells.csv", []Cell{{GridID: "C0001"}})
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	p := New(fs)

	_, err := p.Load("missing.geojson")
	assert.Error(t, err)

	require.NoError(t, fs.WriteFile("bad.geojson", []byte("{not json"), 0644))
	_, err = p.Load("bad.geojson")
	assert.Error(t, err)
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteGeoJSONFile(t, dir, testutil.GridCollection(4))

	p := New(nil)
	res, err := p.Load(path)
	require.NoError(t, err)
	assert.Len(t, res.Cells, 4)
	assert.InDelta(t, 100.0, res.Summary.Total, 1e-9)
}
