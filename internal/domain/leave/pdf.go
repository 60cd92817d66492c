package leave

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderMonthlyPDF renders the monthly report as a printable leave statement.
func RenderMonthlyPDF(report MonthlyReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Leave Statement")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s (#%d)", report.User.FullName, report.User.EmployeeID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Department: %s    Branch: %s    City: %s", report.User.Department, report.User.Branch, report.User.City))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %04d-%02d", report.Period.Year, report.Period.Month))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	widths := []float64{24, 24, 18, 22, 18, 22, 62}
	headers := []string{"From", "To", "Type", "Category", "Days", "Status", "Reason"}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, e := range report.Entries {
		reason := e.Reason
		if len(reason) > 40 {
			reason = reason[:37] + "..."
		}
		row := []string{
			e.FromDate.Format("2006-01-02"),
			e.ToDate.Format("2006-01-02"),
			string(e.LeaveType),
			string(e.LeaveCategory),
			formatDays(e.DurationDays),
			string(e.Status),
			reason,
		}
		for i, v := range row {
			pdf.CellFormat(widths[i], 6, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(report.Entries) == 0 {
		pdf.CellFormat(190, 6, "No leave recorded for this period.", "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, "Totals")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Requested: %s    Approved: %s", formatDays(report.Totals.Requested), formatDays(report.Totals.Approved)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Annual allowance: %s    Used: %s    Remaining: %s",
		formatDays(report.Allowance.Allowed), formatDays(report.Allowance.Used), formatDays(report.Allowance.Remaining)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
