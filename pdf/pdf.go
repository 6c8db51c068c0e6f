// Package pdf generates the PDF documents of the service: Anlage V summary,
// capital gains report and rent receipt.
package pdf

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// page is an A4 page writer with the layout shared by all documents.
type page struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newPage(title string, created time.Time) *page {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("immotax", true)
	if !created.IsZero() {
		pdf.SetCreationDate(created)
	}
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	p := &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	p.pdf.SetFont("Helvetica", "B", 16)
	p.pdf.CellFormat(0, 10, p.tr(title), "", 1, "L", false, 0, "")
	p.pdf.Ln(4)
	return p
}

// heading writes a section title.
func (p *page) heading(s string) {
	p.pdf.Ln(4)
	p.pdf.SetFont("Helvetica", "B", 12)
	p.pdf.CellFormat(0, 8, p.tr(s), "B", 1, "L", false, 0, "")
	p.pdf.Ln(1)
}

// text writes a paragraph.
func (p *page) text(s string) {
	p.pdf.SetFont("Helvetica", "", 10)
	p.pdf.MultiCell(0, 5, p.tr(s), "", "L", false)
}

// row writes a label and a right aligned value.
func (p *page) row(label, value string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	p.pdf.SetFont("Helvetica", style, 10)
	p.pdf.CellFormat(120, 6, p.tr(label), "", 0, "L", false, 0, "")
	p.pdf.CellFormat(0, 6, p.tr(value), "", 1, "R", false, 0, "")
}

// table writes a table with a header row. The first column is left aligned,
// the others right aligned.
func (p *page) table(widths []float64, header []string, rows [][]string) {
	p.pdf.SetFont("Helvetica", "B", 9)
	p.pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		p.pdf.CellFormat(widths[i], 7, p.tr(h), "1", 0, align(i), true, 0, "")
	}
	p.pdf.Ln(-1)
	p.pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		for i, c := range r {
			p.pdf.CellFormat(widths[i], 6, p.tr(c), "1", 0, align(i), false, 0, "")
		}
		p.pdf.Ln(-1)
	}
}

func align(col int) string {
	if col == 0 {
		return "L"
	}
	return "R"
}

// footer writes the generation date at the bottom of the page.
func (p *page) footer(created time.Time) {
	p.pdf.SetY(-25)
	p.pdf.SetFont("Helvetica", "I", 8)
	p.pdf.CellFormat(0, 5, p.tr(fmt.Sprintf("Generated on %s. This document is not a tax assessment.", created.Format("2006-01-02"))), "", 1, "C", false, 0, "")
}

func (p *page) output(w io.Writer) error {
	if err := p.pdf.Output(w); err != nil {
		return fmt.Errorf("cannot generate PDF: %w", err)
	}
	return nil
}
