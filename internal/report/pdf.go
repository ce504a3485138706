package report

import (
	"fmt"
	"os"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/gridata-nz/population.report/internal/analyze"
	"github.com/gridata-nz/population.report/internal/monitoring"
	"github.com/gridata-nz/population.report/internal/timeutil"
)

const pdfFont = "Helvetica"

const livabilityExplanation = "The 'livability' score is an experimental metric. " +
	"It is generated for each region chunk based on its population statistics " +
	"(mean, sum, max, min), considering factors like whether a region is too " +
	"crowded or too sparse. This score is subjective and intended for " +
	"illustrative purposes."

// PDFFilename returns the timestamped report file name.
func PDFFilename(now time.Time) string {
	return fmt.Sprintf("NZ_Population_Report_%s.pdf", timeutil.FormatRunID(now))
}

// BuildPDF assembles the report document: a title page with the chart
// images, the livability explanation, per-chunk analysis and policy
// pages, and a metadata footer page. Missing images are skipped with a
// log line.
func BuildPDF(a *analyze.Analysis, images []string, generatedAt time.Time, outPath string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)

	// Title and charts
	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 10, "New Zealand Population Distribution Report", "", 1, "C", false, 0, "")
	pdf.Ln(10)

	for _, img := range images {
		if _, err := os.Stat(img); err != nil {
			monitoring.Logf("Warning: image file not found: %s", img)
			continue
		}
		pdf.ImageOptions(img, 15, -1, 180, 0, true, fpdf.ImageOptions{ReadDpi: true}, 0, "")
		pdf.Ln(10)
	}

	// Livability explanation
	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 14)
	pdf.CellFormat(0, 10, "About the 'Livability' Score", "", 1, "L", false, 0, "")
	pdf.Ln(5)
	pdf.SetFont(pdfFont, "", 12)
	pdf.MultiCell(0, 6, livabilityExplanation, "", "L", false)

	// Per-chunk analysis
	for _, s := range a.Chunks {
		pdf.AddPage()
		pdf.SetFont(pdfFont, "B", 14)
		pdf.CellFormat(0, 10, fmt.Sprintf("Chunk %d (%s) Analysis Report", s.Index, s.Placename), "", 1, "L", false, 0, "")
		pdf.Ln(5)
		pdf.SetFont(pdfFont, "", 12)
		pdf.MultiCell(0, 6, s.Analysis, "", "L", false)
	}

	// Per-chunk policy proposals
	for _, s := range a.Chunks {
		pdf.AddPage()
		pdf.SetFont(pdfFont, "B", 14)
		pdf.CellFormat(0, 10, fmt.Sprintf("Chunk %d (%s) Policy Proposal Summary", s.Index, s.Placename), "", 1, "L", false, 0, "")
		pdf.Ln(5)
		pdf.SetFont(pdfFont, "", 12)
		pdf.MultiCell(0, 6, s.Policy, "", "L", false)
		pdf.Ln(5)
	}

	// Metadata footer
	pdf.AddPage()
	pdf.SetFont(pdfFont, "", 10)
	meta := fmt.Sprintf("Generated automatically using model %q and OpenStreetMap.\nDate: %s",
		a.ModelName, generatedAt.Format("2006-01-02 15:04:05"))
	pdf.MultiCell(0, 6, meta, "", "L", false)

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf %s: %w", outPath, err)
	}
	monitoring.Logf("PDF generation completed: %s", outPath)
	return nil
}
