// Package report renders the analysis into chart images, an HTML
// dashboard and the final PDF document, and records each generated run.
package report

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/gridata-nz/population.report/internal/analyze"
	"github.com/gridata-nz/population.report/internal/fsutil"
	"github.com/gridata-nz/population.report/internal/monitoring"
	"github.com/gridata-nz/population.report/internal/security"
	"github.com/gridata-nz/population.report/internal/store"
	"github.com/gridata-nz/population.report/internal/timeutil"
)

// Generator assembles report artifacts under a base directory.
type Generator struct {
	FS      fsutil.FileSystem
	Clock   timeutil.Clock
	DB      *store.DB // optional; records report_runs when set
	BaseDir string
}

// NewGenerator returns a Generator writing under baseDir.
func NewGenerator(baseDir string) *Generator {
	return &Generator{
		FS:      fsutil.OSFileSystem{},
		Clock:   timeutil.RealClock{},
		BaseDir: baseDir,
	}
}

// Run describes the artifacts of one generated report.
type Run struct {
	RunID         string
	Dir           string
	PDFPath       string
	DashboardPath string
	Charts        []string
}

// Generate renders every artifact for the analysis into a timestamped
// run directory. Individual chart failures are logged and skipped; a
// PDF or dashboard failure fails the run.
func (g *Generator) Generate(a *analyze.Analysis, cells []store.GridCell) (*Run, error) {
	if a == nil || len(a.Chunks) == 0 {
		return nil, fmt.Errorf("nothing to report: no analyzed chunks")
	}

	now := g.Clock.Now()
	run := &Run{
		RunID: timeutil.FormatRunID(now) + "-" + uuid.NewString(),
		Dir:   filepath.Join(g.BaseDir, timeutil.FormatRunID(now)),
	}
	if err := g.FS.MkdirAll(run.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	// Chart images render straight to disk; a failed chart drops out of
	// the PDF instead of failing the run.
	if path, err := DensityMap(cells, run.Dir); err != nil {
		monitoring.Logf("Error generating density map: %v", err)
	} else {
		run.Charts = append(run.Charts, path)
	}
	if path, err := TopPopulationBar(a.TopPopulation, run.Dir); err != nil {
		monitoring.Logf("Error generating population bar chart: %v", err)
	} else {
		run.Charts = append(run.Charts, path)
	}
	if path, err := TopLivabilityBar(a.TopLivability, run.Dir); err != nil {
		monitoring.Logf("Error generating livability bar chart: %v", err)
	} else {
		run.Charts = append(run.Charts, path)
	}

	var dash bytes.Buffer
	if err := RenderDashboard(&dash, a, cells); err != nil {
		return nil, err
	}
	run.DashboardPath = filepath.Join(run.Dir, DashboardFile)
	if err := g.FS.WriteFileAtomic(run.DashboardPath, dash.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("write dashboard: %w", err)
	}

	if err := g.writeChunkTexts(run.Dir, a); err != nil {
		return nil, err
	}

	run.PDFPath = filepath.Join(run.Dir, PDFFilename(now))
	if err := BuildPDF(a, run.Charts, now, run.PDFPath); err != nil {
		return nil, err
	}

	if g.DB != nil {
		rec := &store.ReportRun{
			RunID:        run.RunID,
			PDFPath:      run.PDFPath,
			ChartDir:     run.Dir,
			FeatureCount: a.CellCount,
			ChunkCount:   len(a.Chunks),
			ModelName:    a.ModelName,
		}
		if err := g.DB.InsertReportRun(rec); err != nil {
			return nil, fmt.Errorf("record report run: %w", err)
		}
	}

	monitoring.Logf("Report %s generated in %s", run.RunID, run.Dir)
	return run, nil
}

// writeChunkTexts saves each chunk's narrative under chunks/, named by
// its sanitized label so place names cannot escape the run directory.
func (g *Generator) writeChunkTexts(dir string, a *analyze.Analysis) error {
	chunkDir := filepath.Join(dir, "chunks")
	if err := g.FS.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}

	for _, s := range a.Chunks {
		name := security.SanitizeFilename(s.Label) + ".txt"
		path := filepath.Join(chunkDir, name)
		if err := security.ValidatePathWithinDirectory(path, chunkDir); err != nil {
			return fmt.Errorf("chunk %d: %w", s.Index, err)
		}
		body := fmt.Sprintf("%s\nLivability: %d\n\n%s\n\n%s\n", s.Label, s.Livability, s.Analysis, s.Policy)
		if err := g.FS.WriteFileAtomic(path, []byte(body), 0644); err != nil {
			return fmt.Errorf("write chunk %d text: %w", s.Index, err)
		}
	}
	return nil
}
