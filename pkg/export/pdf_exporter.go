package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Field is a single label/value line of a document section.
type Field struct {
	Label string
	Value string
}

// Section groups related fields under a heading.
type Section struct {
	Title  string
	Fields []Field
}

// Document describes a single record profile.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
	Footer   string
}

// PDFExporter renders profile documents with gofpdf.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

const (
	labelWidth = 55.0
	lineHeight = 7.0
)

// Render lays out the document as an A4 portrait page.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("pdf requires at least one section")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(doc.Title)), "", 1, "C", false, 0, "")
	}
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range doc.Sections {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(230, 236, 245)
		pdf.CellFormat(0, 8, tr(strings.ToUpper(section.Title)), "", 1, "L", true, 0, "")
		pdf.Ln(1)

		for _, f := range section.Fields {
			value := f.Value
			if strings.TrimSpace(value) == "" {
				value = "-"
			}
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(labelWidth, lineHeight, tr(f.Label), "", 0, "L", false, 0, "")
			pdf.CellFormat(4, lineHeight, ":", "", 0, "L", false, 0, "")
			pdf.MultiCell(0, lineHeight, tr(value), "", "L", false)
		}
		pdf.Ln(3)
	}

	if doc.Footer != "" {
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, tr(doc.Footer), "", 1, "R", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
