package export

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/ftl/sms-carver/carve"
)

const (
	pdfCreator   = "smscarve"
	pdfQRName    = "digest-qr"
	pdfQRSize    = 30.0
	pdfMargin    = 15.0
	pdfLineWidth = 4.5
)

var pdfColumnWidths = []float64{24, 20, 32, 111, 44, 36}

// WritePDF renders the report as a PDF document: a summary of the run, a QR code of the image digest,
// and a table of all records.
func WritePDF(w io.Writer, report Report) error {
	pdf := newReportPDF(report)
	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}

// SavePDF renders the report into the given file.
func SavePDF(report Report, out string) error {
	pdf := newReportPDF(report)
	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func newReportPDF(report Report) *gofpdf.Fpdf {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("SMS Carving Report", false)
	pdf.SetAuthor(pdfCreator, false)
	pdf.SetCreator(pdfCreator, false)
	pdf.SetMargins(pdfMargin, 20, pdfMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Run %s - page %d/{nb}", report.RunID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	addPDFTitle(pdf, "SMS Carving Report")
	addDigestQR(pdf, report.Digest)
	addSummarySection(pdf, tr, report)
	addRecordsSection(pdf, tr, report.Records)
	return pdf
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addDigestQR(pdf *gofpdf.Fpdf, digest string) {
	png, err := DigestQR(digest, 256)
	if err != nil {
		return
	}
	options := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(pdfQRName, options, bytes.NewReader(png))
	pageWidth, _ := pdf.GetPageSize()
	pdf.ImageOptions(pdfQRName, pageWidth-pdfMargin-pdfQRSize, 20, pdfQRSize, pdfQRSize, false, options, 0, "")
}

func addSummarySection(pdf *gofpdf.Fpdf, tr func(string) string, report Report) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	sent, received := report.Count()
	pdf.SetFont("Helvetica", "", 10)
	items := []struct {
		label string
		value string
	}{
		{label: "Run", value: report.RunID.String()},
		{label: "Created", value: report.Created.Format(time.RFC3339)},
		{label: "Image", value: emptyFallback(report.Image, "-")},
		{label: "Size", value: fmt.Sprintf("%d bytes", report.Size)},
		{label: "SHA-256", value: emptyFallback(report.Digest, "-")},
		{label: "Parsers", value: emptyFallback(strings.Join(report.Parsers, ", "), "-")},
		{label: "Filters", value: emptyFallback(strings.Join(report.Filters, ", "), "-")},
		{label: "Messages", value: strconv.Itoa(len(report.Records))},
		{label: "Sent", value: strconv.Itoa(sent)},
		{label: "Received", value: strconv.Itoa(received)},
	}
	for _, item := range items {
		pdf.CellFormat(30, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(item.value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addRecordsSection(pdf *gofpdf.Fpdf, tr func(string) string, records []carve.Record) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Messages")
	pdf.Ln(9)

	if len(records) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, "No messages recovered.", "", "L", false)
		return
	}

	addTableHeader(pdf)
	pdf.SetFont("Helvetica", "", 8)
	for _, record := range records {
		row := carve.Row(record)
		for i := range row {
			row[i] = codePageRunes(tr, row[i])
		}
		renderTableRow(pdf, row)
	}
}

func addTableHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 8)
	for i, title := range carve.RowHeader {
		pdf.CellFormat(pdfColumnWidths[i], 7, title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func renderTableRow(pdf *gofpdf.Fpdf, values []string) {
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, pdfColumnWidths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * pdfLineWidth

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottomMargin := pdf.GetMargins()
	if pdf.GetY()+rowHeight > pageHeight-bottomMargin {
		pdf.AddPage()
		addTableHeader(pdf)
		pdf.SetFont("Helvetica", "", 8)
	}

	xStart := pdf.GetX()
	yStart := pdf.GetY()
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := codePageBytes(strings.Join(lines, "\n"))
		pdf.MultiCell(pdfColumnWidths[i], rowHeight/float64(len(lines)), cellText, "1", "L", false)
		x += pdfColumnWidths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

// codePageRunes translates the text into the code page of the core fonts. Each rune of the result
// carries one byte of the code page, as SplitText expects it.
func codePageRunes(tr func(string) string, text string) string {
	encoded := tr(text)
	result := make([]rune, len(encoded))
	for i := 0; i < len(encoded); i++ {
		result[i] = rune(encoded[i])
	}
	return string(result)
}

func codePageBytes(text string) string {
	result := make([]byte, 0, len(text))
	for _, r := range text {
		result = append(result, byte(r))
	}
	return string(result)
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
