package report

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/gridata-nz/population.report/internal/analyze"
	"github.com/gridata-nz/population.report/internal/store"
	"github.com/gridata-nz/population.report/internal/units"
)

// Chart file names within a run directory.
const (
	DensityMapFile    = "population_density_map.png"
	PopulationBarFile = "top_population_chunks.png"
	LivabilityBarFile = "top_livability_chunks.png"
)

// countTicker relabels default ticks with compact counts ("12k", "1.2M").
type countTicker struct{}

func (countTicker) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = units.FormatCount(ticks[i].Value)
		}
	}
	return ticks
}

// DensityMap renders the grid as an NZTM scatter coloured by population
// density and returns the file path.
func DensityMap(cells []store.GridCell, dir string) (string, error) {
	if len(cells) == 0 {
		return "", fmt.Errorf("no cells to plot")
	}

	p := plot.New()
	p.Title.Text = "NZ 250m Grid Population Density"
	p.X.Label.Text = "Easting (m)"
	p.Y.Label.Text = "Northing (m)"

	pts := make(plotter.XYs, len(cells))
	maxDensity := 0.0
	for i, c := range cells {
		pts[i] = plotter.XY{X: c.Easting, Y: c.Northing}
		if c.DensityKm2 > maxDensity {
			maxDensity = c.DensityKm2
		}
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("build density scatter: %w", err)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{
			Color:  densityColor(cells[i].DensityKm2, maxDensity),
			Radius: vg.Points(1.5),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(scatter)

	path := filepath.Join(dir, DensityMapFile)
	if err := p.Save(10*vg.Inch, 10*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save density map: %w", err)
	}
	return path, nil
}

// TopPopulationBar renders the top chunks by total population and
// returns the file path.
func TopPopulationBar(top []analyze.ChunkSummary, dir string) (string, error) {
	if len(top) == 0 {
		return "", fmt.Errorf("no chunks to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Top %d Chunks by Total Population", len(top))
	p.Y.Label.Text = "Total Population"
	p.X.Label.Text = "Chunk Placename"
	p.Y.Tick.Marker = countTicker{}

	values := make(plotter.Values, len(top))
	labels := make([]string, len(top))
	for i, s := range top {
		values[i] = s.Sum
		labels[i] = s.Label
	}

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return "", fmt.Errorf("build population bars: %w", err)
	}
	bars.LineStyle.Width = 0
	bars.Color = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 255}
	p.Add(bars)
	p.NominalX(labels...)

	path := filepath.Join(dir, PopulationBarFile)
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save population bar chart: %w", err)
	}
	return path, nil
}

// TopLivabilityBar renders the top chunks by livability score (fixed
// 0..100 axis) and returns the file path.
func TopLivabilityBar(top []analyze.ChunkSummary, dir string) (string, error) {
	if len(top) == 0 {
		return "", fmt.Errorf("no chunks to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Top %d Most 'Livable' Chunks (AI-Generated Score)", len(top))
	p.Y.Label.Text = "Livability Score (out of 100)"
	p.X.Label.Text = "Chunk Placename"
	p.Y.Min = 0
	p.Y.Max = 100

	values := make(plotter.Values, len(top))
	labels := make([]string, len(top))
	for i, s := range top {
		values[i] = float64(s.Livability)
		labels[i] = s.Label
	}

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return "", fmt.Errorf("build livability bars: %w", err)
	}
	bars.LineStyle.Width = 0
	bars.Color = color.RGBA{R: 0x9c, G: 0x17, B: 0x9e, A: 255}
	p.Add(bars)
	p.NominalX(labels...)

	path := filepath.Join(dir, LivabilityBarFile)
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save livability bar chart: %w", err)
	}
	return path, nil
}

// densityColor maps a density into a dark-to-warm ramp.
func densityColor(density, maxDensity float64) color.Color {
	if maxDensity <= 0 {
		return color.RGBA{R: 0x44, G: 0x01, B: 0x54, A: 255}
	}
	t := density / maxDensity
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	// Interpolate dark purple -> orange -> red.
	ramp := []color.RGBA{
		{R: 0x44, G: 0x01, B: 0x54, A: 255},
		{R: 0xfd, G: 0x9e, B: 0x2b, A: 255},
		{R: 0xd7, G: 0x19, B: 0x1c, A: 255},
	}
	pos := t * float64(len(ramp)-1)
	lo := int(pos)
	if lo >= len(ramp)-1 {
		return ramp[len(ramp)-1]
	}
	frac := pos - float64(lo)
	a, b := ramp[lo], ramp[lo+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + frac*(float64(y)-float64(x)))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}
