package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridata-nz/population.report/internal/analyze"
	"github.com/gridata-nz/population.report/internal/store"
	"github.com/gridata-nz/population.report/internal/timeutil"
	"github.com/gridata-nz/population.report/internal/units"
)

func sampleAnalysis() *analyze.Analysis {
	chunks := []analyze.ChunkSummary{
		{
			Index: 1, Placename: "Wellington", Label: "Wellington (Chunk 1)",
			Mean: 40, Sum: 400, Max: 90, Min: 5,
			Easting: 1749000, Northing: 5428000,
			Livability: 72, Analysis: "Dense urban core.", Policy: "Zone for housing.",
		},
		{
			Index: 2, Placename: "Hawke's Bay", Label: "Hawke's Bay (Chunk 2)",
			Mean: 12, Sum: 120, Max: 30, Min: 0,
			Easting: 1930000, Northing: 5605000,
			Livability: 85, Analysis: "Sparse rural area.", Policy: "Improve transport.",
		},
	}
	return &analyze.Analysis{
		CellCount:     20,
		Chunks:        chunks,
		TopPopulation: []analyze.ChunkSummary{chunks[0], chunks[1]},
		TopLivability: []analyze.ChunkSummary{chunks[1], chunks[0]},
		ModelName:     "disabled",
	}
}

func sampleCells() []store.GridCell {
	cells := make([]store.GridCell, 20)
	for i := range cells {
		cells[i] = store.GridCell{
			GridID:     "C0001",
			Population: float64(i),
			Easting:    1749000 + float64(i)*250,
			Northing:   5428000,
			DensityKm2: units.DensityPerKm2(float64(i)),
		}
	}
	return cells
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g := NewGenerator(t.TempDir())
	g.Clock = timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return g
}

func TestGenerateWritesArtifacts(t *testing.T) {
	g := newTestGenerator(t)

	run, err := g.Generate(sampleAnalysis(), sampleCells())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(run.RunID, "20250601_120000-"))
	assert.Equal(t, filepath.Join(g.BaseDir, "20250601_120000"), run.Dir)

	require.Len(t, run.Charts, 3)
	for _, chart := range run.Charts {
		info, err := os.Stat(chart)
		require.NoError(t, err, chart)
		assert.Greater(t, info.Size(), int64(0), chart)
	}

	dash, err := os.ReadFile(run.DashboardPath)
	require.NoError(t, err)
	assert.Contains(t, string(dash), "echarts")
	assert.Contains(t, string(dash), "Top Chunks by Total Population")

	pdfData, err := os.ReadFile(run.PDFPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfData, []byte("%PDF")))
	assert.Equal(t, filepath.Join(run.Dir, "NZ_Population_Report_20250601_120000.pdf"), run.PDFPath)

	// Chunk narratives are saved under sanitized names.
	assert.FileExists(t, filepath.Join(run.Dir, "chunks", "Wellington_Chunk_1.txt"))
	assert.FileExists(t, filepath.Join(run.Dir, "chunks", "Hawke_s_Bay_Chunk_2.txt"))
}

func TestGenerateRecordsRun(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer db.Close()

	g := newTestGenerator(t)
	g.DB = db

	run, err := g.Generate(sampleAnalysis(), sampleCells())
	require.NoError(t, err)

	runs, err := db.RecentReportRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)
	assert.Equal(t, run.PDFPath, runs[0].PDFPath)
	assert.Equal(t, 20, runs[0].FeatureCount)
	assert.Equal(t, 2, runs[0].ChunkCount)
	assert.Equal(t, "disabled", runs[0].ModelName)
}

func TestGenerateRejectsEmptyAnalysis(t *testing.T) {
	g := newTestGenerator(t)

	_, err := g.Generate(nil, nil)
	assert.Error(t, err)

	_, err = g.Generate(&analyze.Analysis{}, sampleCells())
	assert.Error(t, err)
}

func TestPDFFilename(t *testing.T) {
	now := time.Date(2025, 12, 31, 23, 59, 9, 0, time.UTC)
	assert.Equal(t, "NZ_Population_Report_20251231_235909.pdf", PDFFilename(now))
}

func TestChartsRequireData(t *testing.T) {
	dir := t.TempDir()

	_, err := DensityMap(nil, dir)
	assert.Error(t, err)
	_, err = TopPopulationBar(nil, dir)
	assert.Error(t, err)
	_, err = TopLivabilityBar(nil, dir)
	assert.Error(t, err)
}

func TestDensityMapWritesFile(t *testing.T) {
	dir := t.TempDir()
	path, err := DensityMap(sampleCells(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DensityMapFile), path)
	assert.FileExists(t, path)
}

func TestCountTickerLabels(t *testing.T) {
	ticks := countTicker{}.Ticks(0, 50000)
	require.NotEmpty(t, ticks)
	for _, tick := range ticks {
		if tick.Label == "" {
			continue
		}
		assert.Equal(t, units.FormatCount(tick.Value), tick.Label)
	}
}

func TestRenderDashboardEmptyAnalysis(t *testing.T) {
	var buf bytes.Buffer
	err := RenderDashboard(&buf, &analyze.Analysis{}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, buf.String())
}
