package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// renderPDF lays out the full report on a single A4 page.
func renderPDF(view *View) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("MetroCheck CRB Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "MetroCheck CRB Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Phone: %s", view.PhoneNumber), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Package: %s", view.PackageTier), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Credit Score: %d", view.CreditScore), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("CRB Status: %s", view.CRBStatus), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Loan Eligibility: %s", view.LoanEligibility), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(view.CreditHistory) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 9, "Credit Score History", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, point := range view.CreditHistory {
			pdf.CellFormat(0, 6, fmt.Sprintf("%s: Score %d", point.Month, point.Score), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}

	if view.DetailedAnalysis != nil {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 9, "Detailed Credit Analysis", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		analysis := view.DetailedAnalysis
		pdf.CellFormat(0, 6, fmt.Sprintf("Payment History: %d%%", analysis.PaymentHistory), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Credit Utilization: %d%%", analysis.CreditUtilization), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Credit Age: %d years", analysis.CreditAge), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Credit Mix: %d%%", analysis.CreditMix), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Recent Inquiries: %d inquiries", analysis.RecentInquiries), "", 1, "L", false, 0, "")
		pdf.Ln(3)
	}

	if len(view.LenderRecommendations) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 9, "Recommended Lenders", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, offer := range view.LenderRecommendations {
			pdf.CellFormat(0, 6, fmt.Sprintf("%s - Up to KES %d at %s", offer.Name, offer.MaxLoan, offer.Rate), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}

	pdf.SetY(-30)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "This report is provided by MetroCheck CRB Checker.", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "For disputes or inquiries, contact support@metrocheck.co.ke", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
