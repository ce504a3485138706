// Package analyze computes per-chunk population metrics over the cleaned
// grid, labels each chunk with a geocoded place name, and collects
// model-generated narrative, policy and livability text for reporting.
package analyze

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gridata-nz/population.report/internal/geo"
	"github.com/gridata-nz/population.report/internal/llm"
	"github.com/gridata-nz/population.report/internal/monitoring"
	"github.com/gridata-nz/population.report/internal/store"
)

// DefaultChunkSize is the number of grid cells grouped per chunk.
const DefaultChunkSize = 10000

// DefaultTopN is the ranking depth used by the charts.
const DefaultTopN = 5

// DefaultLivability is assigned when no valid score can be parsed.
const DefaultLivability = 50

// Chunk is one contiguous slice of the cleaned grid.
type Chunk struct {
	Index int // 1-based
	Cells []store.GridCell
}

// Split partitions cells into chunks of at most chunkSize, preserving
// order. The last chunk may be short.
func Split(cells []store.GridCell, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	var chunks []Chunk
	for start := 0; start < len(cells); start += chunkSize {
		end := start + chunkSize
		if end > len(cells) {
			end = len(cells)
		}
		chunks = append(chunks, Chunk{Index: len(chunks) + 1, Cells: cells[start:end]})
	}
	return chunks
}

// ChunkSummary is the analyzed form of one chunk.
type ChunkSummary struct {
	Index     int
	Placename string
	Label     string // "Placename (Chunk N)"

	Mean float64
	Sum  float64
	Max  float64
	Min  float64

	// Mean cell centroid, NZTM metres and WGS84 degrees.
	Easting  float64
	Northing float64
	Lon      float64
	Lat      float64

	Livability int
	Analysis   string
	Policy     string
}

// CSV renders the summary statistics as a two-line CSV block for prompts.
func (s *ChunkSummary) CSV() string {
	return fmt.Sprintf("mean,sum,max,min\n%.2f,%.2f,%.2f,%.2f\n", s.Mean, s.Sum, s.Max, s.Min)
}

// Summarize computes the statistics and mean centroid for one chunk.
func Summarize(ch Chunk) (ChunkSummary, error) {
	if len(ch.Cells) == 0 {
		return ChunkSummary{}, fmt.Errorf("chunk %d is empty", ch.Index)
	}

	pops := make([]float64, len(ch.Cells))
	eastings := make([]float64, len(ch.Cells))
	northings := make([]float64, len(ch.Cells))
	for i, c := range ch.Cells {
		pops[i] = c.Population
		eastings[i] = c.Easting
		northings[i] = c.Northing
	}

	s := ChunkSummary{
		Index:    ch.Index,
		Mean:     stat.Mean(pops, nil),
		Sum:      floats.Sum(pops),
		Max:      floats.Max(pops),
		Min:      floats.Min(pops),
		Easting:  stat.Mean(eastings, nil),
		Northing: stat.Mean(northings, nil),
	}
	if math.IsNaN(s.Easting) || math.IsNaN(s.Northing) {
		return ChunkSummary{}, fmt.Errorf("chunk %d has no usable centroid", ch.Index)
	}
	s.Lon, s.Lat = geo.FromNZTM(s.Easting, s.Northing)
	return s, nil
}

var digitsRe = regexp.MustCompile(`\d+`)

// ParseLivability extracts the first integer in [1, 100] from model
// output, defaulting when none is present.
func ParseLivability(text string) int {
	for _, numStr := range digitsRe.FindAllString(text, -1) {
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		if n >= 1 && n <= 100 {
			return n
		}
	}
	monitoring.Logf("Warning: no valid livability score in model output, defaulting to %d", DefaultLivability)
	return DefaultLivability
}

// HeuristicLivability scores a chunk without a model. The score peaks
// for moderately settled areas and falls toward the empty and crowded
// extremes.
func HeuristicLivability(s ChunkSummary) int {
	if s.Mean <= 0 {
		return 1
	}
	const targetMean = 25.0
	distance := math.Abs(math.Log10(s.Mean) - math.Log10(targetMean))
	score := int(math.Round(100 - 35*distance))
	if score < 1 {
		return 1
	}
	if score > 100 {
		return 100
	}
	return score
}

// TopByPopulation returns the n chunks with the largest population sums,
// highest first. Ties keep chunk order.
func TopByPopulation(sums []ChunkSummary, n int) []ChunkSummary {
	return topBy(sums, n, func(s *ChunkSummary) float64 { return s.Sum })
}

// TopByLivability returns the n chunks with the highest livability,
// highest first. Ties keep chunk order.
func TopByLivability(sums []ChunkSummary, n int) []ChunkSummary {
	return topBy(sums, n, func(s *ChunkSummary) float64 { return float64(s.Livability) })
}

func topBy(sums []ChunkSummary, n int, key func(*ChunkSummary) float64) []ChunkSummary {
	out := make([]ChunkSummary, len(sums))
	copy(out, sums)
	sort.SliceStable(out, func(i, j int) bool {
		return key(&out[i]) > key(&out[j])
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Geocoder resolves a WGS84 coordinate to a place name.
type Geocoder interface {
	Placename(ctx context.Context, lon, lat float64) (string, error)
}

// Analyzer runs the full analysis over a cleaned dataset.
type Analyzer struct {
	Geocoder  Geocoder
	LLM       llm.Client
	ChunkSize int
	TopN      int
}

// New returns an Analyzer with default chunking. A nil geocoder labels
// chunks by coordinate; a nil model client falls back to disabled mode.
func New(geocoder Geocoder, model llm.Client) *Analyzer {
	if model == nil {
		model = llm.DisabledClient{}
	}
	return &Analyzer{
		Geocoder:  geocoder,
		LLM:       model,
		ChunkSize: DefaultChunkSize,
		TopN:      DefaultTopN,
	}
}

// Analysis is the complete result of one analyzer run.
type Analysis struct {
	CellCount     int
	Chunks        []ChunkSummary
	TopPopulation []ChunkSummary
	TopLivability []ChunkSummary
	ModelName     string
}

// Run analyzes the cells chunk by chunk. Chunks that cannot be
// summarized are skipped with a log line rather than failing the run;
// ctx cancellation aborts it.
func (a *Analyzer) Run(ctx context.Context, cells []store.GridCell) (*Analysis, error) {
	chunkSize := a.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunks := Split(cells, chunkSize)
	res := &Analysis{CellCount: len(cells), ModelName: a.LLM.Model()}

	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis canceled at chunk %d: %w", ch.Index, err)
		}
		monitoring.Logf("--- Processing Chunk %d/%d (Size: %d) ---", ch.Index, len(chunks), len(ch.Cells))

		s, err := Summarize(ch)
		if err != nil {
			monitoring.Logf("Skipping chunk %d: %v", ch.Index, err)
			continue
		}

		s.Placename = a.placename(ctx, s.Lon, s.Lat)
		s.Label = fmt.Sprintf("%s (Chunk %d)", s.Placename, s.Index)
		monitoring.Logf("Chunk placename: %s", s.Placename)

		s.Analysis = a.generate(ctx, analysisPrompt(s.Placename, s.CSV()))
		s.Policy = a.generate(ctx, policyPrompt(s.Placename, s.CSV()))
		s.Livability = a.livability(ctx, &s)
		monitoring.Logf("Livability score generated: %d", s.Livability)

		res.Chunks = append(res.Chunks, s)
	}

	topN := a.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	res.TopPopulation = TopByPopulation(res.Chunks, topN)
	res.TopLivability = TopByLivability(res.Chunks, topN)
	return res, nil
}

func (a *Analyzer) placename(ctx context.Context, lon, lat float64) string {
	if a.Geocoder == nil {
		return fmt.Sprintf("Region (%.2f,%.2f)", lat, lon)
	}
	name, err := a.Geocoder.Placename(ctx, lon, lat)
	if err != nil {
		monitoring.Logf("Geocoding failed for %.2f,%.2f: %v", lat, lon, err)
		return fmt.Sprintf("Error Region (%.2f,%.2f)", lat, lon)
	}
	return name
}

func (a *Analyzer) generate(ctx context.Context, prompt string) string {
	text, err := a.LLM.Generate(ctx, prompt)
	if err != nil {
		monitoring.Logf("Model call failed: %v", err)
		return fmt.Sprintf("[Error generating text: %v]", err)
	}
	return llm.CleanOutput(text)
}

// livability asks the model for a score when enabled, otherwise uses
// the heuristic. Disabled-mode echo text would otherwise parse the
// prompt's own "1 to 100" scale as a score.
func (a *Analyzer) livability(ctx context.Context, s *ChunkSummary) int {
	if !a.LLM.Enabled() {
		return HeuristicLivability(*s)
	}
	text, err := a.LLM.Generate(ctx, livabilityPrompt(s.CSV()))
	if err != nil {
		monitoring.Logf("Model call failed: %v", err)
		return DefaultLivability
	}
	return ParseLivability(llm.CleanOutput(text))
}

func analysisPrompt(placename, csv string) string {
	return fmt.Sprintf(`Based ONLY on the data provided in the CSV below for %s, summarize the population trends and centers. Do not use any external knowledge or statistics.
CSV:
%s`, placename, csv)
}

func policyPrompt(placename, csv string) string {
	return fmt.Sprintf(`Based ONLY on the demographic summary CSV provided for %s, provide 3-5 detailed policy recommendations. For each, state the 'Problem' and a 'Specific Proposal'. Do not use external knowledge.
CSV:
%s`, placename, csv)
}

func livabilityPrompt(csv string) string {
	return fmt.Sprintf(`Based ONLY on the summary statistics below for a region in New Zealand, rate its 'livability' on a scale of 1 to 100. Consider factors like population density (mean) and size (sum). A good score might represent a place that is neither too crowded nor too sparse. Output ONLY a single integer number and nothing else.
CSV:
%s`, csv)
}
