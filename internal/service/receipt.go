package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"transit/internal/domain"
)

const qrDataURIPrefix = "data:image/png;base64,"

// GetPaymentReceipt renders a PDF receipt for a completed or refunded payment.
func (s *PaymentService) GetPaymentReceipt(ctx context.Context, paymentID string, caller domain.Caller) ([]byte, error) {
	details, err := s.GetPaymentDetails(ctx, paymentID, caller)
	if err != nil {
		return nil, err
	}

	switch details.Payment.Status {
	case domain.PaymentStatusCompleted, domain.PaymentStatusRefunded:
	default:
		return nil, ErrReceiptUnavailable
	}

	doc, err := renderReceipt(details, s.now())
	if err != nil {
		return nil, wrapError(KindInternal, "failed to render receipt", err)
	}
	return doc, nil
}

func renderReceipt(details *PaymentDetails, now time.Time) ([]byte, error) {
	p := details.Payment

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Receipt", false)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BUS TICKET RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Payment ID : " + p.ID,
		"Order ID   : " + p.PayPalOrderID,
		"Status     : " + string(p.Status),
		"Issued     : " + now.Format("2006-01-02 15:04"),
	}
	if id := p.CaptureID(); id != "" {
		lines = append(lines, "Capture ID : "+id)
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	drawSectionTitle(pdf, "JOURNEYS")
	pdf.SetFont("Helvetica", "", 11)
	for i, j := range details.Journeys {
		ticket := j.TicketNumber
		if ticket == "" {
			ticket = "-"
		}
		name := "Primary passenger"
		if j.AdditionalPassengerInfo != nil && j.AdditionalPassengerInfo.Name != "" {
			name = j.AdditionalPassengerInfo.Name
		}
		pdf.MultiCell(0, 6, fmt.Sprintf("%d) %s  Ticket: %s  Route: %s  Departs: %s  Fare: $%.2f",
			i+1, name, ticket, routeName(j), j.StartTime.Format("2006-01-02 15:04"), j.Fare), "", "", false)
		pdf.Ln(1)
	}
	pdf.Ln(4)

	drawSectionTitle(pdf, "PAYMENT")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, fmt.Sprintf("Passengers : %d", p.PassengerCount))
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Total      : %s %.2f", p.Currency, p.Amount))
	pdf.Ln(10)

	if p.RefundDetails != nil {
		switch p.RefundDetails.Status {
		case domain.RefundStatusCompleted:
			pdf.SetFont("Helvetica", "", 12)
			pdf.Cell(0, 7, fmt.Sprintf("Refunded   : %s %.2f on %s", p.Currency, p.RefundDetails.Amount,
				p.RefundDetails.RefundedAt.Format("2006-01-02")))
			pdf.Ln(10)
		case domain.RefundStatusPending:
			pdf.SetFont("Helvetica", "", 12)
			pdf.Cell(0, 7, fmt.Sprintf("Refund     : %s %.2f pending since %s", p.Currency, p.RefundDetails.Amount,
				p.RefundDetails.RefundedAt.Format("2006-01-02")))
			pdf.Ln(10)
		}
	}

	if len(details.Journeys) > 0 {
		if img, ok := decodeQR(details.Journeys[0].QRCode); ok {
			pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "png"}, bytes.NewReader(img))
			if pdf.Err() {
				// Unreadable QR image; the receipt is still valid without it.
				pdf.ClearError()
			} else {
				pdf.ImageOptions("qr", 15, pdf.GetY(), 45, 0, false, gofpdf.ImageOptions{ImageType: "png"}, 0, "")
				pdf.SetY(pdf.GetY() + 50)
				pdf.SetFont("Helvetica", "I", 10)
				pdf.Cell(0, 6, "Show this QR code to the driver when boarding.")
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawSectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(3)
}

func decodeQR(dataURI string) ([]byte, bool) {
	if !strings.HasPrefix(dataURI, qrDataURIPrefix) {
		return nil, false
	}
	img, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, qrDataURIPrefix))
	if err != nil {
		return nil, false
	}
	return img, true
}
