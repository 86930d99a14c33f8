package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Field is a labelled line in a document header block.
type Field struct {
	Label string
	Value string
}

// Document is a single-page PDF with a field block and an optional table.
type Document struct {
	Title  string
	Fields []Field
	Table  *Dataset
	Footer string
}

// PDFExporter renders documents with gofpdf.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out the document on A4 portrait.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if doc.Title == "" && len(doc.Fields) == 0 && doc.Table == nil {
		return nil, fmt.Errorf("pdf document is empty")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, doc.Title, "", 1, "L", false, 0, "")
		pdf.Ln(4)
	}

	for _, f := range doc.Fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 7, f.Label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, f.Value, "", 1, "L", false, 0, "")
	}

	if doc.Table != nil && len(doc.Table.Columns) > 0 {
		pdf.Ln(6)
		width := 180.0 / float64(len(doc.Table.Columns))
		pdf.SetFont("Arial", "B", 10)
		for _, col := range doc.Table.Columns {
			pdf.CellFormat(width, 8, col.Label, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, row := range doc.Table.Rows {
			for _, col := range doc.Table.Columns {
				pdf.CellFormat(width, 7, row[col.Key], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if doc.Footer != "" {
		pdf.Ln(8)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 5, doc.Footer, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
