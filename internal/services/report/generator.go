package report

import (
	"bytes"
	"fmt"

	"github.com/hikyaku-io/dataport/internal/importer"
	"github.com/hikyaku-io/dataport/internal/models"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// GenerateJobReport renders a one-page PDF summary for a terminal import
// job: file metadata, the three counters, an excerpt of the error list, and
// a QR code linking back to the job status endpoint.
func GenerateJobReport(job *models.ImportJob, statusURL string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Import Report")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 10)
	line := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
	}

	line("Job ID", job.ID)
	line("File", job.FileName)
	line("Size", fmt.Sprintf("%d bytes", job.FileBytes))
	line("Encoding", job.Encoding)
	line("Status", job.Status)
	if job.FailReason != "" {
		line("Reason", job.FailReason)
	}
	line("Rows", fmt.Sprintf("%d", job.TotalRows))
	line("Inserted", fmt.Sprintf("%d", job.InsertedRows))
	line("Updated", fmt.Sprintf("%d", job.UpdatedRows))
	line("Errors", fmt.Sprintf("%d", job.ErrorRows))
	if job.CompletedAt != nil {
		line("Completed", job.CompletedAt.Format("2006-01-02 15:04:05 UTC"))
	}
	pdf.Ln(6)

	res := importer.Summarize(job)
	if len(res.Errors) > 0 {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 8, fmt.Sprintf("First %d errors", len(res.Errors)))
		pdf.Ln(9)
		pdf.SetFont("Courier", "", 9)
		for _, e := range res.Errors {
			pdf.CellFormat(0, 5, fmt.Sprintf("row %d: %s", e.Row, e.Message), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	// QR code to the live status page
	qrPng, err := qrcode.Encode(statusURL, qrcode.Low, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to render status QR: %w", err)
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	_ = pdf.RegisterImageOptionsReader("status_qr", imgOptions, bytes.NewReader(qrPng))
	pdf.ImageOptions("status_qr", 20, pdf.GetY()+4, 30, 30, false, imgOptions, 0, "")
	pdf.SetY(pdf.GetY() + 38)
	pdf.SetFont("Arial", "", 8)
	pdf.Cell(0, 5, statusURL)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report PDF: %w", err)
	}
	return buf.Bytes(), nil
}
