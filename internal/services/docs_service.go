package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// DocsService renders the payment receipt PDF for a booking.
type DocsService struct {
	Bookings   BookingStore
	Properties PropertyStore
	Now        func() time.Time
	Loader     func(ctx context.Context, bookingID int64) (receiptData, error)
}

type receiptData struct {
	Booking  models.Booking
	Property models.Property
}

// GenerateReceipt returns the PDF bytes and a download filename. Only the
// booking's guest, host or an admin may fetch it, and only once it was paid.
func (s DocsService) GenerateReceipt(ctx context.Context, actor domain.Actor, bookingID int64) ([]byte, string, error) {
	data, err := s.loadReceiptData(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}
	if err := canView(actor, data.Booking); err != nil {
		return nil, "", err
	}
	switch data.Booking.PaymentStatus {
	case models.PaymentPaid, models.PaymentRefunded:
	default:
		return nil, "", domain.StateError{
			Current: string(data.Booking.PaymentStatus),
			Msg:     "A receipt is only available for paid bookings",
		}
	}
	utils.LogEvent(utils.RequestID(ctx), "docs", "generate_receipt", fmt.Sprintf("booking_id=%d", bookingID))
	issued := utils.NowUTC()
	if s.Now != nil {
		issued = s.Now().UTC()
	}
	return buildReceiptPDF(data, issued)
}

func (s DocsService) loadReceiptData(ctx context.Context, bookingID int64) (receiptData, error) {
	if s.Loader != nil {
		return s.Loader(ctx, bookingID)
	}
	var out receiptData
	b, err := s.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return out, err
	}
	out.Booking = b
	if p, err := s.Properties.GetProperty(ctx, b.PropertyID); err == nil {
		out.Property = p
	}
	return out, nil
}

func buildReceiptPDF(d receiptData, issued time.Time) ([]byte, string, error) {
	b := d.Booking
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "PAYMENT RECEIPT")
	pdf.Ln(12)

	receiptNo := fmt.Sprintf("RCPT-%06d", b.ID)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Receipt no : "+receiptNo)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Issued     : "+utils.FormatDateTime(issued))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Billed to:")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Name  : "+utils.Fallback(b.GuestName, "-"))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Email : "+utils.Fallback(b.GuestEmail, "-"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Stay:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	place := utils.Fallback(d.Property.Title, fmt.Sprintf("Property #%d", b.PropertyID))
	if d.Property.City != "" {
		place += ", " + d.Property.City
	}
	pdf.MultiCell(0, 6, place, "", "", false)
	pdf.Cell(0, 6, fmt.Sprintf("Check-in %s, check-out %s (%d night(s), %d guest(s))",
		b.CheckIn.String(), b.CheckOut.String(), b.Nights(), b.GuestsCount))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total paid: "+utils.FormatCurrency(b.TotalAmount.Cents(), b.Currency))
	pdf.Ln(8)
	if b.PaymentStatus == models.PaymentRefunded {
		refunded := b.RefundAmount
		if refunded <= 0 {
			refunded = b.TotalAmount
		}
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 7, "Refunded: "+utils.FormatCurrency(refunded.Cents(), b.Currency))
		pdf.Ln(8)
	}
	if b.PaymentIntentID != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, "Payment reference: "+b.PaymentIntentID)
		pdf.Ln(10)
	}

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Booking #%d, status %s.", b.ID, b.Status), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("RECEIPT_%d_%s.pdf", b.ID, utils.SafeFilenamePart(b.GuestName))
	return buf.Bytes(), filename, nil
}
