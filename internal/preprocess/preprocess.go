// Package preprocess turns a fetched grid GeoJSON file into the cleaned
// tabular dataset the analysis stage consumes. It keeps the grid id,
// population estimate and a cell centroid, audits missing values,
// converts centroids to NZTM2000 and computes per-cell density.
package preprocess

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gridata-nz/population.report/internal/fsutil"
	"github.com/gridata-nz/population.report/internal/geo"
	"github.com/gridata-nz/population.report/internal/geojson"
	"github.com/gridata-nz/population.report/internal/monitoring"
	"github.com/gridata-nz/population.report/internal/store"
	"github.com/gridata-nz/population.report/internal/units"
)

// Property names expected on each fetched feature.
const (
	PropGridID     = "GridID"
	PropPopulation = "PopEst2023"
	PropCentroidX  = "CENTROID_X"
	PropCentroidY  = "CENTROID_Y"
)

// Cell is one cleaned grid cell. Easting and Northing are NZTM2000
// metres regardless of the coordinate system the feature arrived in.
type Cell struct {
	GridID     string
	Population float64
	Easting    float64
	Northing   float64
	DensityKm2 float64
}

// Audit counts features dropped or repaired during cleaning.
type Audit struct {
	FeatureCount      int // features in the input file
	MissingGridID     int // dropped: no usable grid id
	MissingPopulation int // dropped: no usable population value
	MissingCentroid   int // dropped: no centroid property and no geometry
	ComputedCentroids int // kept: centroid derived from the geometry
}

// Kept returns the number of features that survived cleaning.
func (a Audit) Kept() int {
	return a.FeatureCount - a.MissingGridID - a.MissingPopulation - a.MissingCentroid
}

// Summary holds the population statistics reported after cleaning.
type Summary struct {
	Count int
	Total float64
	Mean  float64
	Max   float64
	Min   float64
}

// Result is the output of one preprocessing run.
type Result struct {
	Cells   []Cell
	Audit   Audit
	Summary Summary
}

// Preprocessor loads, cleans and writes grid datasets.
type Preprocessor struct {
	FS fsutil.FileSystem
}

// New returns a Preprocessor backed by the given filesystem, or the OS
// filesystem if nil.
func New(fs fsutil.FileSystem) *Preprocessor {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Preprocessor{FS: fs}
}

// Load reads a GeoJSON file and cleans it into cells.
func (p *Preprocessor) Load(path string) (*Result, error) {
	data, err := p.FS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	fc, err := geojson.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return Clean(fc), nil
}

// Clean extracts cells from a feature collection, auditing anything it
// drops. Feature order is preserved for cells that survive.
func Clean(fc *geojson.FeatureCollection) *Result {
	res := &Result{Audit: Audit{FeatureCount: len(fc.Features)}}

	for i := range fc.Features {
		f := &fc.Features[i]

		id, ok := stringProperty(f, PropGridID)
		if !ok {
			res.Audit.MissingGridID++
			continue
		}
		pop, ok := f.NumericProperty(PropPopulation)
		if !ok || math.IsNaN(pop) {
			res.Audit.MissingPopulation++
			continue
		}

		x, y, ok := centroidOf(f)
		if !ok {
			res.Audit.MissingCentroid++
			continue
		}
		if fromGeometry := !hasCentroidProps(f); fromGeometry {
			res.Audit.ComputedCentroids++
		}

		e, n := toNZTM(x, y)
		res.Cells = append(res.Cells, Cell{
			GridID:     id,
			Population: pop,
			Easting:    e,
			Northing:   n,
			DensityKm2: units.DensityPerKm2(pop),
		})
	}

	res.Summary = Summarize(res.Cells)
	logAudit(res)
	return res
}

// Summarize computes the population statistics over the cleaned cells.
func Summarize(cells []Cell) Summary {
	if len(cells) == 0 {
		return Summary{}
	}
	pops := make([]float64, len(cells))
	for i, c := range cells {
		pops[i] = c.Population
	}
	return Summary{
		Count: len(cells),
		Total: floats.Sum(pops),
		Mean:  stat.Mean(pops, nil),
		Max:   floats.Max(pops),
		Min:   floats.Min(pops),
	}
}

// WriteCSV writes the cleaned cells as a CSV file with a header row.
// The write is atomic so a crashed run never leaves a truncated file.
func (p *Preprocessor) WriteCSV(path string, cells []Cell) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"GridID", "PopEst2023", "Easting", "Northing", "DensityKm2"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range cells {
		rec := []string{
			c.GridID,
			strconv.FormatFloat(c.Population, 'f', -1, 64),
			strconv.FormatFloat(c.Easting, 'f', 2, 64),
			strconv.FormatFloat(c.Northing, 'f', 2, 64),
			strconv.FormatFloat(c.DensityKm2, 'f', 2, 64),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s: %w", c.GridID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	if err := p.FS.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	monitoring.Logf("Preprocessed data saved to: %s", path)
	return nil
}

// Cache replaces the sqlite cache contents with the cleaned cells.
func Cache(db *store.DB, cells []Cell) error {
	rows := make([]store.GridCell, len(cells))
	for i, c := range cells {
		rows[i] = store.GridCell{
			GridID:     c.GridID,
			Population: c.Population,
			Easting:    c.Easting,
			Northing:   c.Northing,
			DensityKm2: c.DensityKm2,
		}
	}
	if err := db.ReplaceCells(rows); err != nil {
		return fmt.Errorf("cache cells: %w", err)
	}
	monitoring.Logf("Cached %d cells", len(rows))
	return nil
}

func logAudit(res *Result) {
	a := res.Audit
	monitoring.Logf("Loaded %d features: kept %d (missing id %d, missing population %d, missing centroid %d, computed centroids %d)",
		a.FeatureCount, a.Kept(), a.MissingGridID, a.MissingPopulation, a.MissingCentroid, a.ComputedCentroids)
	s := res.Summary
	monitoring.Logf("Population: total %.0f, mean %.2f, max %.0f, min %.0f over %d cells",
		s.Total, s.Mean, s.Max, s.Min, s.Count)
}

func stringProperty(f *geojson.Feature, name string) (string, bool) {
	v, ok := f.Property(name)
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// centroidOf prefers the dataset's centroid properties and falls back
// to the geometric centroid of the cell polygon.
func centroidOf(f *geojson.Feature) (x, y float64, ok bool) {
	cx, okX := f.NumericProperty(PropCentroidX)
	cy, okY := f.NumericProperty(PropCentroidY)
	if okX && okY && !math.IsNaN(cx) && !math.IsNaN(cy) {
		return cx, cy, true
	}
	if f.Geometry == nil || f.Geometry.IsEmpty() {
		return 0, 0, false
	}
	p, err := geo.Centroid(f.Geometry)
	if err != nil {
		return 0, 0, false
	}
	return p.X, p.Y, true
}

func hasCentroidProps(f *geojson.Feature) bool {
	cx, okX := f.NumericProperty(PropCentroidX)
	cy, okY := f.NumericProperty(PropCentroidY)
	return okX && okY && !math.IsNaN(cx) && !math.IsNaN(cy)
}

// toNZTM converts a centroid to NZTM2000. Coordinates in the lon/lat
// range are projected; anything else is assumed to be NZTM metres
// already, which is how the source publishes its centroid attributes.
func toNZTM(x, y float64) (easting, northing float64) {
	if x >= -180 && x <= 180 && y >= -90 && y <= 90 {
		p := geo.ToNZTM(x, y)
		return p.X, p.Y
	}
	return x, y
}
