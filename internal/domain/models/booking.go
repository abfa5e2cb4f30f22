package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingFailed    BookingStatus = "failed"
)

var bookingEdges = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled, BookingFailed},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted, BookingFailed:
		return true
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingCancelled || s == BookingCompleted || s == BookingFailed
}

// Blocking statuses occupy the calendar.
func (s BookingStatus) Blocking() bool {
	return s == BookingPending || s == BookingConfirmed
}

// CanTransitionTo reports whether next is reachable in one step. Staying put is always allowed.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s == next {
		return true
	}
	for _, n := range bookingEdges[s] {
		if n == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending                PaymentStatus = "pending"
	PaymentProcessing             PaymentStatus = "processing"
	PaymentPaid                   PaymentStatus = "paid"
	PaymentFailed                 PaymentStatus = "failed"
	PaymentCancelled              PaymentStatus = "cancelled"
	PaymentRequiresAuthentication PaymentStatus = "requires_authentication"
	PaymentRefunded               PaymentStatus = "refunded"
)

// Booking is one guest's stay request for one property.
type Booking struct {
	ID                 int64         `json:"id"`
	PropertyID         int64         `json:"propertyId"`
	GuestID            int64         `json:"guestId"`
	HostID             int64         `json:"hostId"`
	CheckIn            Date          `json:"checkIn"`
	CheckOut           Date          `json:"checkOut"`
	GuestsCount        int           `json:"guestsCount"`
	TotalAmount        Money         `json:"totalAmount"`
	Currency           string        `json:"currency"`
	GuestName          string        `json:"guestName"`
	GuestEmail         string        `json:"guestEmail"`
	GuestPhone         string        `json:"guestPhone"`
	SpecialRequests    string        `json:"specialRequests,omitempty"`
	Status             BookingStatus `json:"status"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	PaymentIntentID    string        `json:"paymentIntentId,omitempty"`
	RefundRequired     bool          `json:"refundRequired"`
	RefundAmount       Money         `json:"refundAmount"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

func (b Booking) Range() DateRange {
	return DateRange{Start: b.CheckIn, End: b.CheckOut}
}

func (b Booking) Nights() int {
	return b.Range().Nights()
}

// StatusChange is a compare-and-swap on the joint (status, payment_status) of one booking.
// Empty To* fields leave the column untouched.
type StatusChange struct {
	BookingID   int64
	PropertyID  int64
	Range       DateRange
	FromStatus  BookingStatus
	FromPayment PaymentStatus

	ToStatus           BookingStatus
	ToPayment          PaymentStatus
	RefundRequired     *bool
	RefundAmount       *Money
	CancellationReason string
	PaymentIntentID    string

	// RecheckAvailability re-runs the overlap check under the property lock before writing.
	RecheckAvailability bool
}

// Conflict is an occupied range that clashes with a requested one.
type Conflict struct {
	Type  string `json:"type"`
	ID    int64  `json:"-"`
	Start Date   `json:"start"`
	End   Date   `json:"end"`
}

const (
	ConflictBooking = "booking"
	ConflictBlocked = "blocked"
)

// BookingFilter drives the host, guest and admin listings.
type BookingFilter struct {
	PropertyID int64
	GuestID    int64
	HostID     int64
	Status     BookingStatus
	From       Date
	To         Date
	// Page and Limit are as requested. The service clamps them into a domain.Pagination.
	Page  int
	Limit int
}

// BookingPage is one page of bookings plus per-status counts over the whole filtered set.
type BookingPage struct {
	Bookings []Booking
	Total    int
	Counts   map[BookingStatus]int
}
