package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridata-nz/population.report/internal/geo"
	"github.com/gridata-nz/population.report/internal/store"
)

type fakeGeocoder struct {
	name  string
	err   error
	calls int
}

func (g *fakeGeocoder) Placename(_ context.Context, lon, lat float64) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.name, nil
}

// fakeModel answers livability prompts with a fixed score and everything
// else with a canned narrative.
type fakeModel struct {
	score     string
	narrative string
	err       error
}

func (m *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if strings.Contains(prompt, "scale of 1 to 100") {
		return m.score, nil
	}
	return m.narrative, nil
}

func (m *fakeModel) Model() string { return "fake" }
func (m *fakeModel) Enabled() bool { return true }

func nztmCells(n int, lon, lat float64) []store.GridCell {
	base := geo.ToNZTM(lon, lat)
	cells := make([]store.GridCell, n)
	for i := range cells {
		cells[i] = store.GridCell{
			GridID:     fmt.Sprintf("C%04d", i+1),
			Population: float64((i + 1) * 10),
			Easting:    base.X + float64(i)*250,
			Northing:   base.Y,
		}
	}
	return cells
}

func TestSplit(t *testing.T) {
	cells := nztmCells(25, 174.78, -41.29)

	chunks := Split(cells, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, 1, chunks[0].Index)
	assert.Equal(t, 10, len(chunks[0].Cells))
	assert.Equal(t, 10, len(chunks[1].Cells))
	assert.Equal(t, 5, len(chunks[2].Cells))
	assert.Equal(t, "C0001", chunks[0].Cells[0].GridID)
	assert.Equal(t, "C0011", chunks[1].Cells[0].GridID)
	assert.Equal(t, "C0021", chunks[2].Cells[0].GridID)

	assert.Nil(t, Split(nil, 10))

	// Non-positive size falls back to the default, one chunk here.
	assert.Len(t, Split(cells, 0), 1)
}

func TestSummarize(t *testing.T) {
	cells := []store.GridCell{
		{GridID: "a", Population: 10, Easting: 1740000, Northing: 5420000},
		{GridID: "b", Population: 30, Easting: 1740500, Northing: 5420000},
	}
	s, err := Summarize(Chunk{Index: 2, Cells: cells})
	require.NoError(t, err)

	assert.Equal(t, 2, s.Index)
	assert.InDelta(t, 20.0, s.Mean, 1e-9)
	assert.InDelta(t, 40.0, s.Sum, 1e-9)
	assert.InDelta(t, 30.0, s.Max, 1e-9)
	assert.InDelta(t, 10.0, s.Min, 1e-9)
	assert.InDelta(t, 1740250, s.Easting, 1e-6)
	assert.InDelta(t, 5420000, s.Northing, 1e-6)

	// The WGS84 centroid round-trips back to the NZTM mean.
	p := geo.ToNZTM(s.Lon, s.Lat)
	assert.InDelta(t, s.Easting, p.X, 0.01)
	assert.InDelta(t, s.Northing, p.Y, 0.01)

	_, err = Summarize(Chunk{Index: 3})
	assert.Error(t, err)
}

func TestChunkSummaryCSV(t *testing.T) {
	s := ChunkSummary{Mean: 12.5, Sum: 125, Max: 40, Min: 0}
	assert.Equal(t, "mean,sum,max,min\n12.50,125.00,40.00,0.00\n", s.CSV())
}

func TestParseLivability(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"85", 85},
		{"I would rate it 72 out of 100.", 72},
		{"0 or maybe 150, but 60 fits", 60},
		{"no score here", 50},
		{"999", 50},
		{"", 50},
		{"100", 100},
		{"1", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLivability(tt.in), "input %q", tt.in)
	}
}

func TestHeuristicLivability(t *testing.T) {
	assert.Equal(t, 1, HeuristicLivability(ChunkSummary{Mean: 0}))
	assert.Equal(t, 100, HeuristicLivability(ChunkSummary{Mean: 25}))
	assert.Equal(t, 65, HeuristicLivability(ChunkSummary{Mean: 2.5}))
	assert.Equal(t, 65, HeuristicLivability(ChunkSummary{Mean: 250}))
	assert.Equal(t, 1, HeuristicLivability(ChunkSummary{Mean: 25e6}))

	// Closer to the target mean scores at least as high.
	near := HeuristicLivability(ChunkSummary{Mean: 20})
	far := HeuristicLivability(ChunkSummary{Mean: 2000})
	assert.Greater(t, near, far)
}

func TestTopRankings(t *testing.T) {
	sums := []ChunkSummary{
		{Index: 1, Sum: 100, Livability: 40},
		{Index: 2, Sum: 300, Livability: 90},
		{Index: 3, Sum: 200, Livability: 90},
		{Index: 4, Sum: 50, Livability: 10},
	}

	topPop := TopByPopulation(sums, 2)
	require.Len(t, topPop, 2)
	assert.Equal(t, 2, topPop[0].Index)
	assert.Equal(t, 3, topPop[1].Index)

	// Livability tie between chunks 2 and 3 keeps chunk order.
	topLiv := TopByLivability(sums, 3)
	require.Len(t, topLiv, 3)
	assert.Equal(t, 2, topLiv[0].Index)
	assert.Equal(t, 3, topLiv[1].Index)
	assert.Equal(t, 1, topLiv[2].Index)

	// n beyond the slice returns everything.
	assert.Len(t, TopByPopulation(sums, 10), 4)

	// Input order is untouched.
	assert.Equal(t, 1, sums[0].Index)
}

func TestRunDisabledModel(t *testing.T) {
	geocoder := &fakeGeocoder{name: "Wellington"}
	a := New(geocoder, nil)
	a.ChunkSize = 10

	res, err := a.Run(context.Background(), nztmCells(25, 174.78, -41.29))
	require.NoError(t, err)

	assert.Equal(t, 25, res.CellCount)
	assert.Equal(t, "disabled", res.ModelName)
	require.Len(t, res.Chunks, 3)
	assert.Equal(t, 3, geocoder.calls)

	first := res.Chunks[0]
	assert.Equal(t, "Wellington", first.Placename)
	assert.Equal(t, "Wellington (Chunk 1)", first.Label)
	assert.True(t, strings.HasPrefix(first.Analysis, "[LLM disabled] "))
	assert.True(t, strings.HasPrefix(first.Policy, "[LLM disabled] "))

	// Disabled mode scores with the heuristic, not the echoed prompt.
	want := HeuristicLivability(first)
	assert.Equal(t, want, first.Livability)

	assert.Len(t, res.TopPopulation, 3)
	assert.Len(t, res.TopLivability, 3)
	// Chunk 2 holds ten cells with populations 110..200, the largest sum.
	assert.Equal(t, 2, res.TopPopulation[0].Index)
}

func TestRunEnabledModel(t *testing.T) {
	geocoder := &fakeGeocoder{name: "Auckland"}
	model := &fakeModel{score: "88", narrative: "Steady growth around the centre."}
	a := New(geocoder, model)
	a.ChunkSize = 100

	res, err := a.Run(context.Background(), nztmCells(5, 174.76, -36.85))
	require.NoError(t, err)

	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "fake", res.ModelName)
	assert.Equal(t, 88, res.Chunks[0].Livability)
	assert.Equal(t, "Steady growth around the centre.", res.Chunks[0].Analysis)
}

func TestRunGeocoderFailure(t *testing.T) {
	geocoder := &fakeGeocoder{err: errors.New("rate limited")}
	a := New(geocoder, nil)

	res, err := a.Run(context.Background(), nztmCells(3, 174.78, -41.29))
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.True(t, strings.HasPrefix(res.Chunks[0].Placename, "Error Region ("))
}

func TestRunModelFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("model not loaded")}
	a := New(&fakeGeocoder{name: "Dunedin"}, model)

	res, err := a.Run(context.Background(), nztmCells(3, 170.5, -45.87))
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.True(t, strings.HasPrefix(res.Chunks[0].Analysis, "[Error generating text:"))
	assert.Equal(t, DefaultLivability, res.Chunks[0].Livability)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(&fakeGeocoder{name: "Nelson"}, nil)
	_, err := a.Run(ctx, nztmCells(3, 173.28, -41.27))
	assert.Error(t, err)
}
