package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReportDocument carries the fields rendered into a report PDF.
type ReportDocument struct {
	Title       string
	PatientName string
	ReportType  string
	Version     int
	CreatedBy   string
	CreatedAt   time.Time
	Sections    []Section
}

// Section is one labelled block of the report body.
type Section struct {
	Heading string
	Lines   []string
}

// RenderReportPDF lays out a report document as an A4 PDF and returns the
// raw bytes.
func RenderReportPDF(doc ReportDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, doc.Title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addDetail(pdf, "Patient", doc.PatientName)
	addDetail(pdf, "Report type", doc.ReportType)
	addDetail(pdf, "Version", fmt.Sprintf("%d", doc.Version))
	addDetail(pdf, "Created by", doc.CreatedBy)
	addDetail(pdf, "Created at", doc.CreatedAt.Format("02 Jan 2006 15:04"))
	pdf.Ln(6)

	for _, sec := range doc.Sections {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 9, sec.Heading, "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		for _, line := range sec.Lines {
			pdf.MultiCell(0, 6, line, "", "L", false)
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func addDetail(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(40, 7, label+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
}
