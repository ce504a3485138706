package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gridata-nz/population.report/internal/analyze"
	"github.com/gridata-nz/population.report/internal/store"
)

// DashboardFile is the HTML dashboard name within a run directory.
const DashboardFile = "dashboard.html"

// RenderDashboard writes an interactive HTML page with a population bar
// chart and a density scatter of the grid.
func RenderDashboard(w io.Writer, a *analyze.Analysis, cells []store.GridCell) error {
	page := components.NewPage()
	page.PageTitle = "NZ Population Report"

	if bar := populationBar(a); bar != nil {
		page.AddCharts(bar)
	}
	if scatter := densityScatter(cells); scatter != nil {
		page.AddCharts(scatter)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write dashboard: %w", err)
	}
	return nil
}

func populationBar(a *analyze.Analysis) *charts.Bar {
	if a == nil || len(a.TopPopulation) == 0 {
		return nil
	}

	labels := make([]string, len(a.TopPopulation))
	data := make([]opts.BarData, len(a.TopPopulation))
	for i, s := range a.TopPopulation {
		labels[i] = s.Label
		data[i] = opts.BarData{Value: s.Sum}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Top Chunks by Total Population",
			Subtitle: fmt.Sprintf("cells=%d chunks=%d model=%s", a.CellCount, len(a.Chunks), a.ModelName),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("population", data)
	return bar
}

func densityScatter(cells []store.GridCell) *charts.Scatter {
	if len(cells) == 0 {
		return nil
	}

	data := make([]opts.ScatterData, 0, len(cells))
	maxDensity := 0.0
	for _, c := range cells {
		if c.DensityKm2 > maxDensity {
			maxDensity = c.DensityKm2
		}
		data = append(data, opts.ScatterData{Value: []interface{}{c.Easting, c.Northing, c.DensityKm2}})
	}
	if maxDensity == 0 {
		maxDensity = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "NZ Population Density", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Population Density (NZTM2000)", Subtitle: fmt.Sprintf("points=%d", len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Easting (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Northing (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxDensity),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("density", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	return scatter
}
