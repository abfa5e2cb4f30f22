package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/metrics"
	"staybackend/internal/utils"
)

const (
	maxStayNights         = 30
	maxTransitionAttempts = 3

	defaultPageLimit = 20
	maxPageLimit     = 100
)

// BookingService owns the booking lifecycle. Every transition is a conditional
// update on the joint (status, payment_status); side effects ride in the outbox.
type BookingService struct {
	Bookings        BookingStore
	Properties      PropertyStore
	Availability    AvailabilityService
	Metrics         *metrics.Metrics
	DefaultCurrency string
	Now             func() time.Time
}

func (s BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return utils.NowUTC()
}

func (s BookingService) today() models.Date {
	return models.DateOf(s.now())
}

type GuestContact struct {
	Name  string `json:"name" validate:"required,min=2,max=120"`
	Email string `json:"email" validate:"required,email,max=190"`
	Phone string `json:"phone" validate:"required,min=5,max=32"`
}

type CreateBookingInput struct {
	PropertyID      int64        `json:"propertyId" validate:"required,gt=0"`
	CheckIn         models.Date  `json:"checkIn"`
	CheckOut        models.Date  `json:"checkOut"`
	GuestsCount     int          `json:"guestsCount" validate:"required,gte=1,lte=16"`
	TotalAmount     models.Money `json:"totalAmount" validate:"gt=0"`
	Currency        string       `json:"currency" validate:"omitempty,len=3"`
	GuestContact    GuestContact `json:"guestContact"`
	SpecialRequests string       `json:"specialRequests" validate:"max=1000"`
}

// Create writes a (pending, pending) booking after the availability fast path;
// the repository repeats the check under the property lock.
func (s BookingService) Create(ctx context.Context, actor domain.Actor, in CreateBookingInput) (models.Booking, error) {
	if !actor.Authenticated() || actor.System {
		return models.Booking{}, domain.AuthenticationError{Msg: "authentication required"}
	}
	in.GuestContact.Name = utils.NormalizeSpace(in.GuestContact.Name)
	in.GuestContact.Email = strings.ToLower(strings.TrimSpace(in.GuestContact.Email))
	in.GuestContact.Phone = strings.TrimSpace(in.GuestContact.Phone)
	in.SpecialRequests = strings.TrimSpace(in.SpecialRequests)
	if err := validateStruct(in); err != nil {
		return models.Booking{}, err
	}

	rng := models.DateRange{Start: in.CheckIn, End: in.CheckOut}
	switch {
	case in.CheckIn.IsZero():
		return models.Booking{}, domain.ValidationError{Field: "checkIn", Msg: "is required"}
	case in.CheckOut.IsZero():
		return models.Booking{}, domain.ValidationError{Field: "checkOut", Msg: "is required"}
	case in.CheckIn.Less(s.today()):
		return models.Booking{}, domain.ValidationError{Field: "checkIn", Msg: "check-in date cannot be in the past"}
	case !rng.Valid():
		return models.Booking{}, domain.ValidationError{Field: "checkOut", Msg: "check-out must be after check-in"}
	case rng.Nights() > maxStayNights:
		return models.Booking{}, domain.ValidationError{Field: "checkOut", Msg: fmt.Sprintf("stays are limited to %d nights", maxStayNights)}
	}

	prop, err := s.Properties.GetProperty(ctx, in.PropertyID)
	if err != nil {
		return models.Booking{}, err
	}
	if !prop.IsActive {
		return models.Booking{}, domain.ValidationError{Field: "propertyId", Msg: "property is not available for booking"}
	}
	if prop.HostID == actor.UserID {
		return models.Booking{}, domain.ValidationError{Field: "propertyId", Msg: "hosts cannot book their own property"}
	}
	if prop.MaxGuests > 0 && in.GuestsCount > prop.MaxGuests {
		return models.Booking{}, domain.ValidationError{Field: "guestsCount", Msg: fmt.Sprintf("property accepts at most %d guests", prop.MaxGuests)}
	}

	conflicts, err := s.Availability.FindConflicts(ctx, prop.ID, rng, 0)
	if err != nil {
		return models.Booking{}, err
	}
	if !conflicts.Empty() {
		return models.Booking{}, domain.ConflictError{
			Resource: "booking",
			Msg:      "Property is not available for the selected dates",
			Details:  conflicts.Ranges(),
		}
	}

	now := s.now()
	currency := strings.ToLower(utils.Fallback(in.Currency, s.DefaultCurrency))
	b := models.Booking{
		PropertyID:      prop.ID,
		GuestID:         actor.UserID,
		HostID:          prop.HostID,
		CheckIn:         in.CheckIn,
		CheckOut:        in.CheckOut,
		GuestsCount:     in.GuestsCount,
		TotalAmount:     in.TotalAmount,
		Currency:        utils.Fallback(currency, "cad"),
		GuestName:       in.GuestContact.Name,
		GuestEmail:      in.GuestContact.Email,
		GuestPhone:      in.GuestContact.Phone,
		SpecialRequests: in.SpecialRequests,
		Status:          models.BookingPending,
		PaymentStatus:   models.PaymentPending,
		CreatedAt:       now.Truncate(time.Second),
		UpdatedAt:       now.Truncate(time.Second),
	}

	created, err := s.Bookings.CreateBooking(ctx, b, func(saved models.Booking) ([]models.OutboxEvent, error) {
		ev := newBatch(now)
		ev.notifyOnce(saved, saved.HostID, NotifyBookingRequest, "New booking request",
			fmt.Sprintf("%s requested %s for %d guest(s).", saved.GuestName, stayLabel(saved), saved.GuestsCount))
		ev.activity(actor, "create_booking", saved.ID, map[string]any{
			"property_id":  saved.PropertyID,
			"check_in":     saved.CheckIn.String(),
			"check_out":    saved.CheckOut.String(),
			"total_amount": saved.TotalAmount.String(),
		})
		return ev.done()
	})
	if err != nil {
		return models.Booking{}, err
	}
	s.Metrics.BookingTransition(string(models.BookingPending))
	utils.LogEvent(utils.RequestID(ctx), "booking", "create", fmt.Sprintf("booking %d created for property %d", created.ID, created.PropertyID))
	return created, nil
}

// decideFunc inspects the freshly read booking and returns the change to apply.
// A nil change means there is nothing to do.
type decideFunc func(b models.Booking) (*models.StatusChange, []models.OutboxEvent, error)

// transition reads, decides and applies a conditional update, re-deciding when
// another writer got there first.
func (s BookingService) transition(ctx context.Context, id int64, decide decideFunc) (models.Booking, bool, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		b, err := s.Bookings.GetBooking(ctx, id)
		if err != nil {
			return models.Booking{}, false, err
		}
		ch, events, err := decide(b)
		if err != nil {
			return b, false, err
		}
		if ch == nil {
			return b, false, nil
		}
		ch.BookingID = b.ID
		ch.PropertyID = b.PropertyID
		ch.Range = b.Range()
		ch.FromStatus = b.Status
		ch.FromPayment = b.PaymentStatus

		err = s.Bookings.ApplyChange(ctx, *ch, events)
		if errors.Is(err, domain.ErrStaleState) {
			continue
		}
		if err != nil {
			return b, false, err
		}
		applyLocal(&b, *ch, s.now())
		if ch.ToStatus != "" && ch.ToStatus != ch.FromStatus {
			s.Metrics.BookingTransition(string(ch.ToStatus))
		}
		return b, true, nil
	}
	return models.Booking{}, false, domain.ConflictError{
		Resource: "booking",
		Msg:      "booking was modified concurrently, please retry",
		Err:      domain.ErrStaleState,
	}
}

func applyLocal(b *models.Booking, ch models.StatusChange, now time.Time) {
	if ch.ToStatus != "" {
		b.Status = ch.ToStatus
	}
	if ch.ToPayment != "" {
		b.PaymentStatus = ch.ToPayment
	}
	if ch.RefundRequired != nil {
		b.RefundRequired = *ch.RefundRequired
	}
	if ch.RefundAmount != nil {
		b.RefundAmount = *ch.RefundAmount
	}
	if ch.CancellationReason != "" {
		b.CancellationReason = ch.CancellationReason
	}
	if ch.PaymentIntentID != "" {
		b.PaymentIntentID = ch.PaymentIntentID
	}
	b.UpdatedAt = now.Truncate(time.Second)
}

func requireHost(actor domain.Actor, b models.Booking, verb string) error {
	if !actor.Authenticated() {
		return domain.AuthenticationError{Msg: "authentication required"}
	}
	if actor.UserID != b.HostID {
		return domain.AuthorizationError{Msg: fmt.Sprintf("only the property host can %s this booking", verb)}
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }

func moneyPtr(m models.Money) *models.Money { return &m }

// Accept confirms a pending booking after re-validating availability under the property lock.
func (s BookingService) Accept(ctx context.Context, actor domain.Actor, id int64) (models.Booking, error) {
	b, _, err := s.transition(ctx, id, func(b models.Booking) (*models.StatusChange, []models.OutboxEvent, error) {
		if err := requireHost(actor, b, "accept"); err != nil {
			return nil, nil, err
		}
		if b.Status != models.BookingPending {
			return nil, nil, domain.StateError{
				Current: string(b.Status),
				Msg:     fmt.Sprintf("Cannot accept booking with status: %s. Only pending bookings can be accepted.", b.Status),
			}
		}
		ev := newBatch(s.now())
		ev.notifyOnce(b, b.GuestID, NotifyBookingAccepted, "Booking accepted",
			fmt.Sprintf("Your stay %s was accepted by the host.", stayLabel(b)))
		ev.activity(actor, "accept_booking", b.ID, map[string]any{"previous_status": b.Status})
		events, err := ev.done()
		return &models.StatusChange{ToStatus: models.BookingConfirmed, RecheckAvailability: true}, events, err
	})
	if err != nil {
		return models.Booking{}, err
	}
	utils.LogEvent(utils.RequestID(ctx), "booking", "accept", fmt.Sprintf("booking %d confirmed by host %d", b.ID, actor.UserID))
	return b, nil
}

// Reject cancels a pending booking. A paid booking is flagged for refund; the refund
// itself is executed later through PaymentService.ExecuteRefund.
func (s BookingService) Reject(ctx context.Context, actor domain.Actor, id int64, reason string) (models.Booking, error) {
	reason = utils.Fallback(utils.NormalizeSpace(reason), "Rejected by host")
	b, _, err := s.transition(ctx, id, func(b models.Booking) (*models.StatusChange, []models.OutboxEvent, error) {
		if err := requireHost(actor, b, "reject"); err != nil {
			return nil, nil, err
		}
		if b.Status != models.BookingPending {
			return nil, nil, domain.StateError{
				Current: string(b.Status),
				Msg:     fmt.Sprintf("Cannot reject booking with status: %s. Only pending bookings can be rejected.", b.Status),
			}
		}
		ch := &models.StatusChange{ToStatus: models.BookingCancelled, CancellationReason: reason}
		ev := newBatch(s.now())
		if b.PaymentStatus == models.PaymentPaid {
			ch.RefundRequired = boolPtr(true)
			ch.RefundAmount = moneyPtr(b.TotalAmount)
			ev.activity(actor, "refund_required", b.ID, map[string]any{
				"amount": b.TotalAmount.String(),
				"reason": "booking rejected after payment",
			})
			ev.refundRequested(b, b.TotalAmount, "booking rejected by host")
		}
		ev.notifyOnce(b, b.GuestID, NotifyBookingRejected, "Booking declined",
			fmt.Sprintf("Your request for %s was declined: %s", stayLabel(b), reason))
		ev.activity(actor, "reject_booking", b.ID, map[string]any{
			"reason":          reason,
			"refund_required": b.PaymentStatus == models.PaymentPaid,
		})
		events, err := ev.done()
		return ch, events, err
	})
	if err != nil {
		return models.Booking{}, err
	}
	utils.LogEvent(utils.RequestID(ctx), "booking", "reject", fmt.Sprintf("booking %d rejected by host %d", b.ID, actor.UserID))
	return b, nil
}

// RefundPercent is the cancellation policy: more than 7 days before check-in
// refunds everything, 3 to 7 days refunds half, later refunds nothing.
func RefundPercent(today, checkIn models.Date) int {
	days := today.DaysUntil(checkIn)
	switch {
	case days > 7:
		return 100
	case days >= 3:
		return 50
	default:
		return 0
	}
}

type CancelResult struct {
	Booking       models.Booking `json:"booking"`
	RefundPercent int            `json:"refundPercent"`
	RefundAmount  models.Money   `json:"refundAmount"`
}

// Cancel lets the guest, the host or an admin cancel a pending or confirmed booking.
func (s BookingService) Cancel(ctx context.Context, actor domain.Actor, id int64, reason string) (CancelResult, error) {
	var res CancelResult
	reason = utils.NormalizeSpace(reason)
	b, _, err := s.transition(ctx, id, func(b models.Booking) (*models.StatusChange, []models.OutboxEvent, error) {
		if !actor.Authenticated() {
			return nil, nil, domain.AuthenticationError{Msg: "authentication required"}
		}
		isGuest, isHost := actor.UserID == b.GuestID, actor.UserID == b.HostID
		if !isGuest && !isHost && !actor.IsAdmin() {
			return nil, nil, domain.AuthorizationError{Msg: "not allowed to cancel this booking"}
		}
		if !b.Status.CanTransitionTo(models.BookingCancelled) || b.Status == models.BookingCancelled {
			return nil, nil, domain.StateError{
				Current: string(b.Status),
				Msg:     fmt.Sprintf("Cannot cancel booking with status: %s", b.Status),
			}
		}

		pct := RefundPercent(s.today(), b.CheckIn)
		refund := models.Money(0)
		ch := &models.StatusChange{
			ToStatus:           models.BookingCancelled,
			CancellationReason: utils.Fallback(reason, "Cancelled by "+cancelledBy(isGuest, isHost)),
		}
		ev := newBatch(s.now())
		if b.PaymentStatus == models.PaymentPaid && pct > 0 {
			refund = b.TotalAmount.Percent(pct)
			ch.RefundRequired = boolPtr(true)
			ch.RefundAmount = moneyPtr(refund)
			ev.refundRequested(b, refund, fmt.Sprintf("cancellation with %d%% refund", pct))
		}
		res.RefundPercent, res.RefundAmount = pct, refund

		msg := fmt.Sprintf("The stay %s was cancelled.", stayLabel(b))
		if !isGuest {
			ev.notifyOnce(b, b.GuestID, NotifyBookingCancelled, "Booking cancelled", msg)
		}
		if !isHost {
			ev.notifyOnce(b, b.HostID, NotifyBookingCancelled, "Booking cancelled", msg)
		}
		ev.activity(actor, "cancel_booking", b.ID, map[string]any{
			"previous_status": b.Status,
			"refund_percent":  pct,
			"refund_amount":   refund.String(),
			"paid":            b.PaymentStatus == models.PaymentPaid,
		})
		events, err := ev.done()
		return ch, events, err
	})
	if err != nil {
		return res, err
	}
	res.Booking = b
	utils.LogEvent(utils.RequestID(ctx), "booking", "cancel", fmt.Sprintf("booking %d cancelled by user %d", b.ID, actor.UserID))
	return res, nil
}

func cancelledBy(isGuest, isHost bool) string {
	switch {
	case isGuest:
		return "guest"
	case isHost:
		return "host"
	default:
		return "admin"
	}
}

// Complete closes a paid, confirmed stay once its check-out date is reached.
func (s BookingService) Complete(ctx context.Context, actor domain.Actor, id int64) (models.Booking, error) {
	b, _, err := s.transition(ctx, id, func(b models.Booking) (*models.StatusChange, []models.OutboxEvent, error) {
		if !actor.Authenticated() {
			return nil, nil, domain.AuthenticationError{Msg: "authentication required"}
		}
		if actor.UserID != b.HostID && !actor.IsAdmin() {
			return nil, nil, domain.AuthorizationError{Msg: "only the property host can complete this booking"}
		}
		if b.Status != models.BookingConfirmed || b.PaymentStatus != models.PaymentPaid {
			return nil, nil, domain.StateError{
				Current: string(b.Status),
				Msg:     fmt.Sprintf("Cannot complete booking with status: %s/%s. Only confirmed, paid bookings can be completed.", b.Status, b.PaymentStatus),
			}
		}
		if s.today().Less(b.CheckOut) {
			return nil, nil, domain.StateError{Current: string(b.Status), Msg: "Cannot complete a booking before its check-out date"}
		}
		ev := newBatch(s.now())
		ev.notifyOnce(b, b.GuestID, NotifyBookingCompleted, "Stay completed", "Thanks for staying with us.")
		ev.activity(actor, "complete_booking", b.ID, nil)
		events, err := ev.done()
		return &models.StatusChange{ToStatus: models.BookingCompleted}, events, err
	})
	if err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

// ReconcileInput is one observation of the processor-side intent status.
type ReconcileInput struct {
	BookingID int64
	IntentID  string
	Status    models.ExternalStatus
	// Source is "webhook" or "poll"; EventID is the processor event id when known.
	Source  string
	EventID string
}

type ReconcileResult struct {
	Booking models.Booking
	Applied bool
	Outcome models.PaymentOutcome
}

// Reconcile applies an external payment status to a booking. Repeating an
// observation is a no-op, statuses never regress, and a payment that succeeds
// for dates taken meanwhile cancels the booking and flags a refund.
func (s BookingService) Reconcile(ctx context.Context, in ReconcileInput) (ReconcileResult, error) {
	outcome, ok := models.MapExternalStatus(in.Status)
	if !ok {
		s.Metrics.Reconciled("ignored")
		b, err := s.Bookings.GetBooking(ctx, in.BookingID)
		return ReconcileResult{Booking: b}, err
	}

	decide := s.reconcileDecision(in, outcome)
	b, applied, err := s.transition(ctx, in.BookingID, decide)
	if err != nil && domain.IsConflict(err) && !errors.Is(err, domain.ErrStaleState) {
		utils.LogEvent(utils.RequestID(ctx), "booking", "reconcile",
			fmt.Sprintf("booking %d paid but dates are taken, cancelling for refund", in.BookingID))
		s.Metrics.Reconciled("unavailable")
		b, applied, err = s.transition(ctx, in.BookingID, s.unavailableDecision(in, decide))
	}
	if err != nil {
		s.Metrics.Reconciled("error")
		return ReconcileResult{}, err
	}

	result := "noop"
	if applied {
		result = "applied"
		utils.LogEvent(utils.RequestID(ctx), "booking", "reconcile",
			fmt.Sprintf("booking %d now %s/%s via %s", b.ID, b.Status, b.PaymentStatus, utils.Fallback(in.Source, "poll")))
	}
	s.Metrics.Reconciled(result)
	return ReconcileResult{Booking: b, Applied: applied, Outcome: outcome}, nil
}

func (s BookingService) reconcileDecision(in ReconcileInput, outcome models.PaymentOutcome) decideFunc {
	system := domain.SystemActor()
	return func(b models.Booking) (*models.StatusChange, []models.OutboxEvent, error) {
		switch {
		case in.IntentID != "" && b.PaymentIntentID != "" && b.PaymentIntentID != in.IntentID && outcome.Payment != models.PaymentPaid:
			return nil, nil, nil
		case b.PaymentStatus == outcome.Payment:
			return nil, nil, nil
		case b.PaymentStatus == models.PaymentRefunded:
			return nil, nil, nil
		case b.PaymentStatus == models.PaymentPaid && outcome.Payment != models.PaymentRefunded:
			return nil, nil, nil
		}

		ch := &models.StatusChange{ToPayment: outcome.Payment}
		if in.IntentID != "" && b.PaymentIntentID == "" {
			ch.PaymentIntentID = in.IntentID
		}
		ev := newBatch(s.now())
		meta := map[string]any{
			"payment_intent_id": utils.Fallback(in.IntentID, b.PaymentIntentID),
			"external_status":   in.Status,
			"source":            utils.Fallback(in.Source, "poll"),
			"previous_payment":  b.PaymentStatus,
		}

		if outcome.Payment == models.PaymentRefunded {
			if !b.Status.IsTerminal() {
				ch.ToStatus = models.BookingCancelled
				ch.CancellationReason = "Payment refunded"
			}
			ch.RefundRequired = boolPtr(false)
			ev.notifyOnce(b, b.GuestID, NotifyRefundIssued, "Refund issued",
				fmt.Sprintf("Your payment for %s was refunded.", stayLabel(b)))
			ev.activity(system, "payment_refunded", b.ID, meta)
			events, err := ev.done()
			return ch, events, err
		}

		if b.Status.IsTerminal() {
			if outcome.Payment == models.PaymentPaid {
				ch.RefundRequired = boolPtr(true)
				ch.RefundAmount = moneyPtr(b.TotalAmount)
				ev.refundRequested(b, b.TotalAmount, fmt.Sprintf("payment succeeded on %s booking", b.Status))
				ev.activity(system, "refund_required", b.ID, meta)
			}
			ev.activity(system, "payment_status_updated", b.ID, meta)
			events, err := ev.done()
			return ch, events, err
		}

		switch outcome.Payment {
		case models.PaymentPaid:
			if b.Status == models.BookingPending {
				ch.ToStatus = models.BookingConfirmed
				ch.RecheckAvailability = true
			}
			ev.notifyOnce(b, b.GuestID, NotifyPaymentSuccessful, "Payment received",
				fmt.Sprintf("We received %s for your stay %s.", amountLabel(b, b.TotalAmount), stayLabel(b)))
			ev.notifyOnce(b, b.HostID, NotifyBookingPaid, "Booking paid",
				fmt.Sprintf("%s paid for %s.", b.GuestName, stayLabel(b)))
			ev.activity(system, "payment_succeeded", b.ID, meta)
		case models.PaymentCancelled:
			ch.ToStatus = models.BookingCancelled
			ch.CancellationReason = "Payment canceled"
			ev.notifyOnce(b, b.GuestID, NotifyPaymentCancelled, "Payment cancelled",
				fmt.Sprintf("The payment for %s was cancelled.", stayLabel(b)))
			ev.activity(system, "payment_cancelled", b.ID, meta)
		case models.PaymentFailed:
			ev.notify(b, b.GuestID, NotifyPaymentFailed, "Payment failed",
				"Your payment could not be processed. Please try another payment method.", dedupeFor(NotifyPaymentFailed, b, in.EventID))
			ev.activity(system, "payment_failed", b.ID, meta)
		case models.PaymentRequiresAuthentication:
			ev.notify(b, b.GuestID, NotifyPaymentAction, "Action required",
				"Your bank needs you to confirm this payment.", dedupeFor(NotifyPaymentAction, b, in.EventID))
			ev.activity(system, "payment_requires_action", b.ID, meta)
		default:
			ev.activity(system, "payment_"+string(outcome.Payment), b.ID, meta)
		}
		events, err := ev.done()
		return ch, events, err
	}
}

// unavailableDecision cancels a still-pending booking whose payment succeeded
// after its dates were taken. Anything else falls back to the normal decision.
func (s BookingService) unavailableDecision(in ReconcileInput, fallback decideFunc) decideFunc {
	system := domain.SystemActor()
	return func(b models.Booking) (*models.StatusChange, []models.OutboxEvent, error) {
		if b.Status != models.BookingPending || b.PaymentStatus == models.PaymentPaid {
			return fallback(b)
		}
		ch := &models.StatusChange{
			ToStatus:           models.BookingCancelled,
			ToPayment:          models.PaymentPaid,
			RefundRequired:     boolPtr(true),
			RefundAmount:       moneyPtr(b.TotalAmount),
			CancellationReason: "Dates no longer available",
		}
		if in.IntentID != "" && b.PaymentIntentID == "" {
			ch.PaymentIntentID = in.IntentID
		}
		ev := newBatch(s.now())
		ev.notifyOnce(b, b.GuestID, NotifyBookingUnavailable, "Dates no longer available",
			fmt.Sprintf("Your stay %s could not be confirmed. A full refund of %s is on its way.", stayLabel(b), amountLabel(b, b.TotalAmount)))
		ev.refundRequested(b, b.TotalAmount, "paid booking lost availability")
		ev.activity(system, "refund_required", b.ID, map[string]any{
			"payment_intent_id": utils.Fallback(in.IntentID, b.PaymentIntentID),
			"reason":            "availability conflict at payment confirmation",
		})
		events, err := ev.done()
		return ch, events, err
	}
}

func dedupeFor(typ string, b models.Booking, eventID string) string {
	if eventID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%s", typ, b.ID, eventID)
}

// Get returns a booking visible to its guest, its host or an admin.
func (s BookingService) Get(ctx context.Context, actor domain.Actor, id int64) (models.Booking, error) {
	b, err := s.Bookings.GetBooking(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	if err := canView(actor, b); err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

func canView(actor domain.Actor, b models.Booking) error {
	if !actor.Authenticated() {
		return domain.AuthenticationError{Msg: "authentication required"}
	}
	if actor.UserID != b.GuestID && actor.UserID != b.HostID && !actor.IsAdmin() {
		return domain.AuthorizationError{Msg: "not allowed to view this booking"}
	}
	return nil
}

// BookingList is a page of bookings with per-status counts over the whole filtered set.
type BookingList struct {
	Bookings   []models.Booking             `json:"bookings"`
	Summary    map[models.BookingStatus]int `json:"summary"`
	Pagination domain.Pagination            `json:"pagination"`
}

func (s BookingService) list(ctx context.Context, f models.BookingFilter) (BookingList, error) {
	if f.Status != "" && !f.Status.Valid() {
		return BookingList{}, domain.ValidationError{Field: "status", Msg: "unknown booking status"}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Less(f.To) {
		return BookingList{}, domain.ValidationError{Field: "end_date", Msg: "end_date must be after start_date"}
	}
	p := domain.NewPagination(f.Page, f.Limit, 0, defaultPageLimit, maxPageLimit)

	page, err := s.Bookings.ListBookings(ctx, f, p)
	if err != nil {
		return BookingList{}, err
	}
	summary := map[models.BookingStatus]int{
		models.BookingPending:   0,
		models.BookingConfirmed: 0,
		models.BookingCancelled: 0,
		models.BookingCompleted: 0,
		models.BookingFailed:    0,
	}
	for st, n := range page.Counts {
		summary[st] = n
	}
	bookings := page.Bookings
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return BookingList{
		Bookings:   bookings,
		Summary:    summary,
		Pagination: domain.NewPagination(p.Page, p.Limit, page.Total, defaultPageLimit, maxPageLimit),
	}, nil
}

// ListForProperty is the host view of one property's bookings.
func (s BookingService) ListForProperty(ctx context.Context, actor domain.Actor, propertyID int64, f models.BookingFilter) (BookingList, error) {
	if !actor.Authenticated() {
		return BookingList{}, domain.AuthenticationError{Msg: "authentication required"}
	}
	prop, err := s.Properties.GetProperty(ctx, propertyID)
	if err != nil {
		return BookingList{}, err
	}
	if prop.HostID != actor.UserID && !actor.IsAdmin() {
		return BookingList{}, domain.AuthorizationError{Msg: "only the property host can list its bookings"}
	}
	f.PropertyID = prop.ID
	f.GuestID, f.HostID = 0, 0
	return s.list(ctx, f)
}

// ListMine is the guest view of their own bookings.
func (s BookingService) ListMine(ctx context.Context, actor domain.Actor, f models.BookingFilter) (BookingList, error) {
	if !actor.Authenticated() || actor.UserID == 0 {
		return BookingList{}, domain.AuthenticationError{Msg: "authentication required"}
	}
	f.GuestID = actor.UserID
	f.HostID = 0
	return s.list(ctx, f)
}

// ListAll is the admin console listing.
func (s BookingService) ListAll(ctx context.Context, actor domain.Actor, f models.BookingFilter) (BookingList, error) {
	if !actor.IsAdmin() {
		return BookingList{}, domain.AuthorizationError{Msg: "admin access required"}
	}
	return s.list(ctx, f)
}
