// Package diagnose independently validates a GeoJSON file's structural
// integrity: parseability, feature count, and empty or invalid geometries.
// It sits outside the critical path; downstream stages rely only on the
// file itself.
package diagnose

import (
	"fmt"
	"strings"

	"github.com/gridata-nz/population.report/internal/fsutil"
	"github.com/gridata-nz/population.report/internal/geojson"
)

// Issue describes one problematic feature.
type Issue struct {
	Index  int    // position within the features array
	ID     string // feature id if present
	Reason string
}

// Report summarises one diagnostic run.
type Report struct {
	Path              string
	FeatureCount      int
	EmptyGeometries   []Issue
	InvalidGeometries []Issue
}

// Clean reports whether no geometry problems were found.
func (r *Report) Clean() bool {
	return len(r.EmptyGeometries) == 0 && len(r.InvalidGeometries) == 0
}

// Verdict renders a one-paragraph conclusion in the same spirit as the
// per-check summaries: invalid geometries are the most likely rendering
// problem, empty ones a possible problem, otherwise the file passes.
func (r *Report) Verdict() string {
	switch {
	case len(r.InvalidGeometries) > 0:
		return fmt.Sprintf("%d invalid geometries found; these are the most likely cause of downstream rendering failures", len(r.InvalidGeometries))
	case len(r.EmptyGeometries) > 0:
		return fmt.Sprintf("%d empty geometries found; these may cause problems downstream", len(r.EmptyGeometries))
	default:
		return "no obvious geometry errors found in this basic check"
	}
}

// Summary renders the full human-readable report.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "diagnosing %s\n", r.Path)
	fmt.Fprintf(&b, "loaded %d features\n", r.FeatureCount)
	if len(r.EmptyGeometries) > 0 {
		fmt.Fprintf(&b, "warning: %d empty geometries\n", len(r.EmptyGeometries))
	} else {
		b.WriteString("no empty geometries\n")
	}
	if len(r.InvalidGeometries) > 0 {
		fmt.Fprintf(&b, "problem: %d invalid geometries\n", len(r.InvalidGeometries))
		for _, issue := range r.InvalidGeometries {
			fmt.Fprintf(&b, "  feature %d (id %s): %s\n", issue.Index, issue.ID, issue.Reason)
		}
	} else {
		b.WriteString("all geometries are valid\n")
	}
	fmt.Fprintf(&b, "conclusion: %s\n", r.Verdict())
	return b.String()
}

// File loads and checks a GeoJSON file. A file that cannot be read or
// parsed is reported as an error, not a Report; a structurally sound file
// with bad geometries yields a Report with issues.
func File(fs fsutil.FileSystem, path string) (*Report, error) {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	fc, err := geojson.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: the file may be corrupt or not valid GeoJSON: %w", path, err)
	}

	return Collection(fc, path), nil
}

// Collection checks an already-decoded FeatureCollection.
func Collection(fc *geojson.FeatureCollection, path string) *Report {
	report := &Report{Path: path, FeatureCount: len(fc.Features)}

	for i, f := range fc.Features {
		id := f.ID.String()
		if id == "" {
			id = "?"
		}
		if f.Geometry.IsEmpty() {
			report.EmptyGeometries = append(report.EmptyGeometries, Issue{
				Index: i, ID: id, Reason: "empty geometry",
			})
			continue
		}
		if err := f.Geometry.Validate(); err != nil {
			report.InvalidGeometries = append(report.InvalidGeometries, Issue{
				Index: i, ID: id, Reason: err.Error(),
			})
		}
	}
	return report
}
