package services

import (
	"testing"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEndBookingScenario(t *testing.T) {
	f := newFixture(t)

	b := f.create(guest, "2025-10-01", "2025-10-04")
	require.Equal(t, models.BookingPending, b.Status)
	require.Equal(t, models.PaymentPending, b.PaymentStatus)
	require.Equal(t, models.Money(30000), b.TotalAmount)

	b, err := f.bookings.Accept(f.ctx, host, b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingConfirmed, b.Status)
	require.Equal(t, models.PaymentPending, b.PaymentStatus)

	intent, err := f.payments.CreateIntent(f.ctx, guest, CreateIntentInput{BookingID: b.ID, Amount: 30000, Currency: "cad"})
	require.NoError(t, err)
	require.NotEmpty(t, intent.ClientSecret)
	require.Equal(t, intent.ID, f.store.Booking(b.ID).PaymentIntentID)

	f.gateway.SetStatus(intent.ID, models.ExternalSucceeded)
	res, err := f.payments.HandlePaymentResponse(f.ctx, guest, intent.ID)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, models.BookingConfirmed, res.Booking.Status)
	require.Equal(t, models.PaymentPaid, res.Booking.PaymentStatus)

	_, err = f.bookings.Create(f.ctx, otherGuest, f.input("2025-10-02", "2025-10-03"))
	require.Error(t, err)
	require.True(t, domain.IsConflict(err))
	ranges, ok := domain.ConflictDetails(err).([]models.Conflict)
	require.True(t, ok)
	require.Len(t, ranges, 1)
	assert.Equal(t, "2025-10-01", ranges[0].Start.String())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]func(in *CreateBookingInput){
		"past check-in":        func(in *CreateBookingInput) { in.CheckIn, in.CheckOut = day("2025-09-01"), day("2025-09-03") },
		"checkout before":      func(in *CreateBookingInput) { in.CheckIn, in.CheckOut = day("2025-10-05"), day("2025-10-05") },
		"too long":             func(in *CreateBookingInput) { in.CheckIn, in.CheckOut = day("2025-10-01"), day("2025-11-15") },
		"too many guests":      func(in *CreateBookingInput) { in.GuestsCount = 5 },
		"zero guests":          func(in *CreateBookingInput) { in.GuestsCount = 0 },
		"bad email":            func(in *CreateBookingInput) { in.GuestContact.Email = "nope" },
		"short name":           func(in *CreateBookingInput) { in.GuestContact.Name = "A" },
		"missing total amount": func(in *CreateBookingInput) { in.TotalAmount = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := f.input("2025-10-01", "2025-10-04")
			mutate(&in)
			_, err := f.bookings.Create(f.ctx, guest, in)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}

	_, err := f.bookings.Create(f.ctx, host, f.input("2025-10-01", "2025-10-04"))
	assert.True(t, domain.IsValidation(err), "host booking own property")

	_, err = f.bookings.Create(f.ctx, domain.Actor{}, f.input("2025-10-01", "2025-10-04"))
	assert.True(t, domain.IsAuthentication(err))

	in := f.input("2025-10-01", "2025-10-04")
	in.PropertyID = 4040
	_, err = f.bookings.Create(f.ctx, guest, in)
	assert.True(t, domain.IsNotFound(err))
}

func TestCreateBackToBackIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.now = f.now.AddDate(0, -1, 0)
	f.create(guest, "2025-09-01", "2025-09-05")

	f.create(otherGuest, "2025-09-05", "2025-09-10")
	_, err := f.bookings.Create(f.ctx, otherGuest, f.input("2025-09-04", "2025-09-08"))
	assert.True(t, domain.IsConflict(err))
}

func TestAcceptTwiceIsRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")

	_, err := f.bookings.Accept(f.ctx, host, b.ID)
	require.NoError(t, err)
	queued := len(f.store.OutboxKinds())
	before := f.store.Booking(b.ID)

	_, err = f.bookings.Accept(f.ctx, host, b.ID)
	require.Error(t, err)
	require.True(t, domain.IsState(err))
	assert.Contains(t, err.Error(), "status: confirmed")
	assert.Equal(t, before, f.store.Booking(b.ID))
	assert.Len(t, f.store.OutboxKinds(), queued)
}

func TestAcceptAuthorization(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")

	_, err := f.bookings.Accept(f.ctx, guest, b.ID)
	assert.True(t, domain.IsAuthorization(err))
	_, err = f.bookings.Accept(f.ctx, admin, b.ID)
	assert.True(t, domain.IsAuthorization(err))
	_, err = f.bookings.Accept(f.ctx, domain.Actor{}, b.ID)
	assert.True(t, domain.IsAuthentication(err))
	_, err = f.bookings.Accept(f.ctx, host, 999999)
	assert.True(t, domain.IsNotFound(err))

	assert.Equal(t, models.BookingPending, f.store.Booking(b.ID).Status)
}

func TestAcceptRechecksAvailability(t *testing.T) {
	f := newFixture(t)
	first := f.seed(models.BookingPending, models.PaymentPending, "2025-10-01", "2025-10-04")
	second := f.seed(models.BookingPending, models.PaymentPending, "2025-10-03", "2025-10-06")

	_, err := f.bookings.Accept(f.ctx, host, first.ID)
	require.Error(t, err)
	require.True(t, domain.IsConflict(err), "pending overlap blocks confirmation")

	_, err = f.bookings.Reject(f.ctx, host, second.ID, "")
	require.NoError(t, err)
	got, err := f.bookings.Accept(f.ctx, host, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, got.Status)
}

func TestAcceptLosesRaceToConcurrentReject(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")

	f.store.BeforeApply = func(s *testutil.Store, ch models.StatusChange) {
		cur := s.Bookings[ch.BookingID]
		cur.Status = models.BookingCancelled
		s.Bookings[cur.ID] = cur
	}
	_, err := f.bookings.Accept(f.ctx, host, b.ID)
	require.Error(t, err)
	assert.True(t, domain.IsState(err))
	assert.Equal(t, models.BookingCancelled, f.store.Booking(b.ID).Status)
}

func TestRejectPaidBookingFlagsRefund(t *testing.T) {
	f := newFixture(t)
	b := f.seed(models.BookingPending, models.PaymentPaid, "2025-10-01", "2025-10-04")

	got, err := f.bookings.Reject(f.ctx, host, b.ID, "  Dates no longer work ")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, got.Status)
	assert.True(t, got.RefundRequired)
	assert.Equal(t, b.TotalAmount, got.RefundAmount)
	assert.Equal(t, "Dates no longer work", got.CancellationReason)
	assert.Contains(t, f.store.OutboxKinds(), models.OutboxKindRefundRequested)

	f.drain()
	refundLogs, err := f.store.ListActivity(f.ctx, models.ActivityFilter{Action: "refund_required"})
	require.NoError(t, err)
	assert.Len(t, refundLogs, 1)
	assert.Equal(t, 1, f.store.NotificationsOfType(guestID, NotifyBookingRejected))
}

func TestRejectUnpaidHasNoRefund(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")

	got, err := f.bookings.Reject(f.ctx, host, b.ID, "")
	require.NoError(t, err)
	assert.False(t, got.RefundRequired)
	assert.Equal(t, "Rejected by host", got.CancellationReason)
	assert.NotContains(t, f.store.OutboxKinds(), models.OutboxKindRefundRequested)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")
	in := ReconcileInput{BookingID: b.ID, IntentID: "pi_1", Status: models.ExternalSucceeded, Source: "webhook", EventID: "evt_1"}

	first, err := f.bookings.Reconcile(f.ctx, in)
	require.NoError(t, err)
	require.True(t, first.Applied)
	assert.Equal(t, models.BookingConfirmed, first.Booking.Status)
	assert.Equal(t, models.PaymentPaid, first.Booking.PaymentStatus)
	assert.Equal(t, "pi_1", first.Booking.PaymentIntentID)

	in.EventID = "evt_2"
	second, err := f.bookings.Reconcile(f.ctx, in)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, first.Booking.Status, second.Booking.Status)
	assert.Equal(t, first.Booking.PaymentStatus, second.Booking.PaymentStatus)

	f.drain()
	assert.Equal(t, 1, f.store.NotificationsOfType(guestID, NotifyPaymentSuccessful))
	assert.Equal(t, 1, f.store.NotificationsOfType(hostID, NotifyBookingPaid))
}

func TestReconcileNeverRegressesFromPaid(t *testing.T) {
	f := newFixture(t)
	b := f.seed(models.BookingConfirmed, models.PaymentPaid, "2025-10-01", "2025-10-04")

	for _, st := range []models.ExternalStatus{models.ExternalRequiresPaymentMethod, models.ExternalProcessing, models.ExternalCanceled, "requires_capture"} {
		res, err := f.bookings.Reconcile(f.ctx, ReconcileInput{BookingID: b.ID, Status: st})
		require.NoError(t, err)
		assert.False(t, res.Applied, string(st))
	}
	got := f.store.Booking(b.ID)
	assert.Equal(t, models.BookingConfirmed, got.Status)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
}

func TestReconcileFailureKeepsBookingPending(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")

	res, err := f.bookings.Reconcile(f.ctx, ReconcileInput{BookingID: b.ID, Status: models.ExternalRequiresPaymentMethod, EventID: "evt_9"})
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.Equal(t, models.BookingPending, res.Booking.Status)
	assert.Equal(t, models.PaymentFailed, res.Booking.PaymentStatus)

	res, err = f.bookings.Reconcile(f.ctx, ReconcileInput{BookingID: b.ID, Status: models.ExternalCanceled})
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, res.Booking.Status)
	assert.Equal(t, models.PaymentCancelled, res.Booking.PaymentStatus)
}

func TestReconcilePaymentAfterDatesTakenCancelsForRefund(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")
	rival := f.seed(models.BookingConfirmed, models.PaymentPaid, "2025-10-03", "2025-10-05")
	rival.GuestID = otherGuestID
	f.store.PutBooking(rival)

	res, err := f.bookings.Reconcile(f.ctx, ReconcileInput{BookingID: b.ID, IntentID: "pi_7", Status: models.ExternalSucceeded})
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.Equal(t, models.BookingCancelled, res.Booking.Status)
	assert.Equal(t, models.PaymentPaid, res.Booking.PaymentStatus)
	assert.True(t, res.Booking.RefundRequired)
	assert.Contains(t, f.store.OutboxKinds(), models.OutboxKindRefundRequested)
}

func TestReconcilePaidOnCancelledBookingFlagsRefund(t *testing.T) {
	f := newFixture(t)
	b := f.seed(models.BookingCancelled, models.PaymentPending, "2025-10-01", "2025-10-04")

	res, err := f.bookings.Reconcile(f.ctx, ReconcileInput{BookingID: b.ID, Status: models.ExternalSucceeded})
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, res.Booking.Status)
	assert.Equal(t, models.PaymentPaid, res.Booking.PaymentStatus)
	assert.True(t, res.Booking.RefundRequired)
}

func TestReconcileRefundClearsFlag(t *testing.T) {
	f := newFixture(t)
	b := f.seed(models.BookingCancelled, models.PaymentPaid, "2025-10-01", "2025-10-04")
	b.RefundRequired = true
	f.store.PutBooking(b)

	res, err := f.bookings.Reconcile(f.ctx, ReconcileInput{BookingID: b.ID, Status: models.ExternalRefunded})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, res.Booking.PaymentStatus)
	assert.False(t, res.Booking.RefundRequired)

	res, err = f.bookings.Reconcile(f.ctx, ReconcileInput{BookingID: b.ID, Status: models.ExternalSucceeded})
	require.NoError(t, err)
	assert.False(t, res.Applied, "refunded is final")
}

func TestReconcileIgnoresSupersededIntent(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")
	require.NoError(t, f.store.AttachPaymentIntent(f.ctx, b.ID, "pi_new"))

	res, err := f.bookings.Reconcile(f.ctx, ReconcileInput{BookingID: b.ID, IntentID: "pi_old", Status: models.ExternalCanceled})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, models.BookingPending, f.store.Booking(b.ID).Status)
}

func TestRefundPercent(t *testing.T) {
	today := day("2025-09-20")
	cases := []struct {
		checkIn string
		want    int
	}{
		{"2025-10-01", 100},
		{"2025-09-28", 100},
		{"2025-09-27", 50},
		{"2025-09-23", 50},
		{"2025-09-22", 0},
		{"2025-09-20", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RefundPercent(today, day(tc.checkIn)), tc.checkIn)
	}
}

func TestCancelPaidBookingComputesRefund(t *testing.T) {
	f := newFixture(t)
	b := f.seed(models.BookingConfirmed, models.PaymentPaid, "2025-09-25", "2025-09-28")

	res, err := f.bookings.Cancel(f.ctx, guest, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 50, res.RefundPercent)
	assert.Equal(t, models.Money(15000), res.RefundAmount)
	assert.Equal(t, models.BookingCancelled, res.Booking.Status)
	assert.True(t, res.Booking.RefundRequired)
	assert.Equal(t, "Cancelled by guest", res.Booking.CancellationReason)

	_, err = f.bookings.Cancel(f.ctx, guest, b.ID, "")
	assert.True(t, domain.IsState(err))

	other := f.seed(models.BookingPending, models.PaymentPending, "2025-10-10", "2025-10-12")
	_, err = f.bookings.Cancel(f.ctx, otherGuest, other.ID, "")
	assert.True(t, domain.IsAuthorization(err))
}

func TestCompleteAfterCheckout(t *testing.T) {
	f := newFixture(t)
	b := f.seed(models.BookingConfirmed, models.PaymentPaid, "2025-10-01", "2025-10-04")

	_, err := f.bookings.Complete(f.ctx, host, b.ID)
	require.True(t, domain.IsState(err), "before check-out")

	f.now = f.now.AddDate(0, 0, 14)
	got, err := f.bookings.Complete(f.ctx, host, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, got.Status)

	_, err = f.bookings.Cancel(f.ctx, host, b.ID, "")
	assert.True(t, domain.IsState(err), "completed is terminal")
}

func TestListForPropertySummary(t *testing.T) {
	f := newFixture(t)
	first := f.seed(models.BookingPending, models.PaymentPending, "2025-10-01", "2025-10-04")
	f.seed(models.BookingConfirmed, models.PaymentPaid, "2025-10-05", "2025-10-07")
	f.seed(models.BookingCancelled, models.PaymentCancelled, "2025-10-05", "2025-10-07")

	list, err := f.bookings.ListForProperty(f.ctx, host, f.prop.ID, models.BookingFilter{Status: models.BookingConfirmed, Limit: 500})
	require.NoError(t, err)
	assert.Len(t, list.Bookings, 1)
	assert.Equal(t, 1, list.Summary[models.BookingPending])
	assert.Equal(t, 1, list.Summary[models.BookingConfirmed])
	assert.Equal(t, 1, list.Summary[models.BookingCancelled])
	assert.Equal(t, 0, list.Summary[models.BookingCompleted])
	assert.Equal(t, 100, list.Pagination.Limit)
	assert.Equal(t, 1, list.Pagination.Total)

	list, err = f.bookings.ListForProperty(f.ctx, host, f.prop.ID, models.BookingFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, first.ID, list.Bookings[0].ID, "newest first, so the oldest lands on page 2")
	assert.Equal(t, 3, list.Pagination.Total)
	assert.Equal(t, 2, list.Pagination.TotalPages)

	_, err = f.bookings.ListForProperty(f.ctx, guest, f.prop.ID, models.BookingFilter{})
	assert.True(t, domain.IsAuthorization(err))
	_, err = f.bookings.ListForProperty(f.ctx, host, f.prop.ID, models.BookingFilter{Status: "weird"})
	assert.True(t, domain.IsValidation(err))
}
