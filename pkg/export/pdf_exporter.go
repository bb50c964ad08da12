package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Document is a renderable note snapshot. Meta rows appear as a small
// key/value table under the title, Body is free text.
type Document struct {
	Title string
	Meta  []MetaRow
	Body  string
}

// MetaRow is a single labelled value in the document header.
type MetaRow struct {
	Label string
	Value string
}

// PDFExporter renders documents into a printable PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF for the given document.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, doc.Title, "", "L", false)
	pdf.Ln(3)

	if len(doc.Meta) > 0 {
		pdf.SetFont("Arial", "", 10)
		for _, row := range doc.Meta {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(40, 6, row.Label, "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.MultiCell(0, 6, row.Value, "", "L", false)
		}
		pdf.Ln(4)
	}

	pdf.SetDrawColor(180, 180, 180)
	left, _, right, _ := pdf.GetMargins()
	pageWidth, _ := pdf.GetPageSize()
	y := pdf.GetY()
	pdf.Line(left, y, pageWidth-right, y)
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	for _, paragraph := range strings.Split(doc.Body, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			pdf.Ln(4)
			continue
		}
		pdf.MultiCell(0, 6, paragraph, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
