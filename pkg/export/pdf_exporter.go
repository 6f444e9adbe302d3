package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a history Dataset into a landscape tabular PDF. The
// last column is treated as free text and wraps; the rest stay single line.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with a title line and the history table.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Generated "+time.Now().UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	widths := columnWidths(len(data.Headers), 277)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 7, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	last := len(data.Headers) - 1
	for _, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return nil, fmt.Errorf("row has %d cells, want %d", len(row), len(data.Headers))
		}
		y := pdf.GetY()
		for i, cell := range row {
			if i == last {
				// MultiCell wraps and drops the cursor below the row.
				pdf.MultiCell(widths[i], 6, cell, "1", "L", false)
				continue
			}
			pdf.CellFormat(widths[i], 6, cell, "1", 0, "L", false, 0, "")
		}
		if pdf.GetY() < y+6 {
			pdf.SetY(y + 6)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths gives the trailing free-text column double weight.
func columnWidths(n int, total float64) []float64 {
	widths := make([]float64, n)
	if n == 1 {
		widths[0] = total
		return widths
	}
	unit := total / float64(n+1)
	for i := 0; i < n-1; i++ {
		widths[i] = unit
	}
	widths[n-1] = unit * 2
	return widths
}
