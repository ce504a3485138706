// Package units holds the measurement constants and formatting helpers for
// the 250m population grid.
package units

import "fmt"

// Grid cell dimensions. The source dataset is a fixed 250m x 250m grid.
const (
	CellSideMeters = 250.0
	CellAreaKm2    = (CellSideMeters / 1000.0) * (CellSideMeters / 1000.0) // 0.0625
)

// DensityPerKm2 converts a per-cell population count to persons per km².
func DensityPerKm2(population float64) float64 {
	return population / CellAreaKm2
}

// FormatCount renders a population count for axis labels and summaries,
// abbreviating thousands ("12k") and millions ("1.2M").
func FormatCount(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.0fk", v/1_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatDensity renders a persons-per-km² value.
func FormatDensity(v float64) string {
	return fmt.Sprintf("%.1f /km²", v)
}
