package services

import (
	"context"
	"io"
	"testing"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/testutil"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	adminID      int64 = 1
	guestID      int64 = 7
	otherGuestID int64 = 8
	hostID       int64 = 9
	webhookSig         = "t=1,v1=ok"
)

var (
	guest      = domain.Actor{UserID: guestID, Role: domain.RoleUser}
	otherGuest = domain.Actor{UserID: otherGuestID, Role: domain.RoleUser}
	host       = domain.Actor{UserID: hostID, Role: domain.RoleHost}
	admin      = domain.Actor{UserID: adminID, Role: domain.RoleAdmin}
)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	now        time.Time
	store      *testutil.Store
	gateway    *testutil.Gateway
	claimer    *testutil.Claimer
	prop       models.Property
	bookings   BookingService
	payments   PaymentService
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		now:     time.Date(2025, 9, 20, 10, 0, 0, 0, time.UTC),
		store:   testutil.NewStore(),
		gateway: testutil.NewGateway(),
		claimer: testutil.NewClaimer(),
	}
	clock := func() time.Time { return f.now }
	f.prop = f.store.AddProperty(models.Property{HostID: hostID, Title: "Lake cabin", City: "Banff", MaxGuests: 4, IsActive: true})

	f.bookings = BookingService{
		Bookings:        f.store,
		Properties:      f.store,
		Availability:    AvailabilityService{Bookings: f.store, Blocked: f.store},
		DefaultCurrency: "cad",
		Now:             clock,
	}
	f.payments = PaymentService{
		Bookings: f.store,
		Booking:  f.bookings,
		Gateway:  f.gateway,
		Verifier: testutil.Verifier{Signature: webhookSig},
		Claimer:  f.claimer,
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	f.dispatcher = &Dispatcher{
		Log:           quiet,
		Outbox:        f.store,
		Notifications: f.store,
		Activity:      f.store,
	}
	return f
}

func day(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) input(checkIn, checkOut string) CreateBookingInput {
	return CreateBookingInput{
		PropertyID:  f.prop.ID,
		CheckIn:     day(checkIn),
		CheckOut:    day(checkOut),
		GuestsCount: 2,
		TotalAmount: 30000,
		GuestContact: GuestContact{
			Name:  gofakeit.FirstName() + " " + gofakeit.LastName(),
			Email: "guest" + gofakeit.DigitN(6) + "@example.com",
			Phone: gofakeit.Phone(),
		},
	}
}

func (f *fixture) create(actor domain.Actor, checkIn, checkOut string) models.Booking {
	f.t.Helper()
	b, err := f.bookings.Create(f.ctx, actor, f.input(checkIn, checkOut))
	require.NoError(f.t, err)
	return b
}

// seed stores a booking directly, skipping lifecycle checks.
func (f *fixture) seed(status models.BookingStatus, payment models.PaymentStatus, checkIn, checkOut string) models.Booking {
	return f.store.PutBooking(models.Booking{
		PropertyID:    f.prop.ID,
		GuestID:       guestID,
		HostID:        hostID,
		CheckIn:       day(checkIn),
		CheckOut:      day(checkOut),
		GuestsCount:   2,
		TotalAmount:   30000,
		Currency:      "cad",
		GuestName:     "Ada Guest",
		GuestEmail:    "ada@example.com",
		Status:        status,
		PaymentStatus: payment,
		CreatedAt:     f.now.Add(-time.Hour),
	})
}

func (f *fixture) drain() {
	f.t.Helper()
	for i := 0; i < 5; i++ {
		n, err := f.dispatcher.DispatchOnce(f.ctx)
		require.NoError(f.t, err)
		if n == 0 {
			return
		}
	}
}
