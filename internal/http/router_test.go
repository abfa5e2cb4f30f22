package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	h "staybackend/internal/http/handlers"
	"staybackend/internal/services"
	"staybackend/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "router-test-secret-router-test-secret"
	cronSecret = "cron-secret"
	webhookSig = "ok"

	adminID int64 = 1
	guestID int64 = 7
	hostID  int64 = 9
)

type harness struct {
	t       *testing.T
	store   *testutil.Store
	gateway *testutil.Gateway
	engine  *gin.Engine
	prop    models.Property
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.NewStore()
	gateway := testutil.NewGateway()
	prop := store.AddProperty(models.Property{HostID: hostID, Title: "Harbour loft", City: "Halifax", MaxGuests: 4, IsActive: true})
	for id, role := range map[int64]string{adminID: domain.RoleAdmin, guestID: domain.RoleUser, 8: domain.RoleUser, hostID: domain.RoleHost} {
		store.Profiles[id] = models.Profile{ID: id, Email: fmt.Sprintf("user%d@example.com", id), FullName: "Test User", Role: role}
	}

	availability := services.AvailabilityService{Bookings: store, Blocked: store}
	bookings := services.BookingService{
		Bookings:        store,
		Properties:      store,
		Availability:    availability,
		DefaultCurrency: "cad",
	}
	a := &h.API{
		Bookings:     bookings,
		Availability: availability,
		Payments: services.PaymentService{
			Bookings: store,
			Booking:  bookings,
			Gateway:  gateway,
			Verifier: testutil.Verifier{Signature: webhookSig},
			Claimer:  testutil.NewClaimer(),
		},
		BlockedDates:     services.BlockedDateService{Properties: store, Blocked: store},
		Calendar:         services.CalendarService{Properties: store, Bookings: store, Blocked: store, UIDDomain: "stays.test"},
		Docs:             services.DocsService{Bookings: store, Properties: store},
		Auth:             services.AuthService{Profiles: store, Secret: []byte(testSecret), TTL: time.Hour},
		Notifications:    services.NotificationService{Notifications: store},
		Activity:         services.ActivityService{Activity: store},
		Cleanup:          services.CleanupService{Bookings: store, Outbox: store},
		AbandonThreshold: time.Hour,
	}

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return &harness{
		t:       t,
		store:   store,
		gateway: gateway,
		engine:  NewRouter(a, Options{Log: quiet, CronSecret: cronSecret}),
		prop:    prop,
	}
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (x *harness) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	x.t.Helper()
	var r io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(v)
	case []byte:
		r = bytes.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(x.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	x.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func stay(offsetDays, nights int) (string, string) {
	start := time.Now().UTC().AddDate(0, 0, offsetDays)
	return start.Format(models.DateLayout), start.AddDate(0, 0, nights).Format(models.DateLayout)
}

func (x *harness) bookingBody(checkIn, checkOut string) gin.H {
	return gin.H{
		"propertyId":  x.prop.ID,
		"checkIn":     checkIn,
		"checkOut":    checkOut,
		"guestsCount": 2,
		"totalAmount": 300,
		"currency":    "cad",
		"guestContact": gin.H{
			"name":  "Ada Guest",
			"email": "ada@example.com",
			"phone": "+1 555 0100",
		},
	}
}

func (x *harness) createBooking(checkIn, checkOut string) int64 {
	x.t.Helper()
	w := x.do(http.MethodPost, "/api/bookings", token(x.t, guestID, domain.RoleUser), x.bookingBody(checkIn, checkOut))
	require.Equal(x.t, http.StatusCreated, w.Code, w.Body.String())
	b := decode(x.t, w)["booking"].(map[string]any)
	return int64(b["id"].(float64))
}

func TestCreateBookingRequiresAuth(t *testing.T) {
	x := newHarness(t)
	in, out := stay(10, 3)

	w := x.do(http.MethodPost, "/api/bookings", "", x.bookingBody(in, out))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = x.do(http.MethodPost, "/api/bookings", "not-a-jwt", x.bookingBody(in, out))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, "unauthorized", body["code"])
	assert.NotEmpty(t, body["request_id"])
}

func TestCreateBookingConflictAndAccept(t *testing.T) {
	x := newHarness(t)
	in, out := stay(10, 3)
	id := x.createBooking(in, out)

	overlapIn, overlapOut := stay(11, 3)
	w := x.do(http.MethodPost, "/api/bookings", token(t, 8, domain.RoleUser), x.bookingBody(overlapIn, overlapOut))
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "conflict", body["code"])
	details := body["details"].(map[string]any)
	assert.Len(t, details["conflicts"], 1)

	backIn, backOut := stay(13, 2)
	x.createBooking(backIn, backOut)

	accept := fmt.Sprintf("/api/bookings/%d/accept", id)
	w = x.do(http.MethodPost, accept, token(t, guestID, domain.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = x.do(http.MethodPost, accept, token(t, hostID, domain.RoleHost), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.BookingConfirmed, x.store.Booking(id).Status)

	w = x.do(http.MethodPost, accept, token(t, hostID, domain.RoleHost), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_state", decode(t, w)["code"])
}

func TestCreateBookingRejectsBadPayload(t *testing.T) {
	x := newHarness(t)
	w := x.do(http.MethodPost, "/api/bookings", token(t, guestID, domain.RoleUser), "{not json")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode(t, w)["code"])

	in, out := stay(10, 3)
	body := x.bookingBody(in, out)
	body["guestsCount"] = 0
	w = x.do(http.MethodPost, "/api/bookings", token(t, guestID, domain.RoleUser), body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	details := decode(t, w)["details"].(map[string]any)
	assert.Equal(t, "guestsCount", details["field"])
}

func TestPropertyBookingsListing(t *testing.T) {
	x := newHarness(t)
	in, out := stay(10, 3)
	x.createBooking(in, out)

	path := fmt.Sprintf("/api/properties/%d/bookings?limit=500", x.prop.ID)
	w := x.do(http.MethodGet, path, token(t, guestID, domain.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = x.do(http.MethodGet, path, token(t, hostID, domain.RoleHost), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Len(t, body["bookings"], 1)
	assert.EqualValues(t, 1, body["summary"].(map[string]any)["pending"])
	assert.EqualValues(t, 100, body["pagination"].(map[string]any)["limit"])

	w = x.do(http.MethodGet, path+"&status=bogus", token(t, hostID, domain.RoleHost), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentFlowOverHTTP(t *testing.T) {
	x := newHarness(t)
	in, out := stay(10, 3)
	id := x.createBooking(in, out)
	guestToken := token(t, guestID, domain.RoleUser)

	w := x.do(http.MethodPost, "/api/payments/create-payment-intent", guestToken, gin.H{"bookingId": id, "amount": 300, "currency": "cad"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	intentID := decode(t, w)["paymentIntentId"].(string)
	require.NotEmpty(t, intentID)

	event := gin.H{"id": "evt_1", "type": "payment_intent.succeeded", "intentId": intentID, "bookingId": id, "status": "succeeded"}
	raw, _ := json.Marshal(event)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(raw))
	req.Header.Set("Stripe-Signature", "forged")
	w = httptest.NewRecorder()
	x.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i, want := range []string{"applied", "duplicate"} {
		req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(raw))
		req.Header.Set("Stripe-Signature", webhookSig)
		w = httptest.NewRecorder()
		x.engine.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "delivery %d: %s", i, w.Body.String())
		assert.Equal(t, want, decode(t, w)["result"])
	}

	b := x.store.Booking(id)
	assert.Equal(t, models.BookingConfirmed, b.Status)
	assert.Equal(t, models.PaymentPaid, b.PaymentStatus)

	w = x.do(http.MethodGet, fmt.Sprintf("/api/payments/%d/status", id), guestToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", decode(t, w)["paymentStatus"])

	w = x.do(http.MethodGet, fmt.Sprintf("/api/bookings/%d/receipt", id), guestToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestCronCleanupAuth(t *testing.T) {
	x := newHarness(t)
	path := "/api/cron/cleanup-abandoned-bookings"

	w := x.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = x.do(http.MethodGet, path, token(t, adminID, domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "GET only accepts the cron secret")

	w = x.do(http.MethodGet, path, cronSecret, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 0, decode(t, w)["deletedCount"])

	w = x.do(http.MethodPost, path, token(t, guestID, domain.RoleUser), gin.H{"dryRun": true})
	assert.Equal(t, http.StatusForbidden, w.Code)

	old := x.store.PutBooking(models.Booking{
		PropertyID: x.prop.ID, GuestID: guestID, HostID: hostID,
		Status: models.BookingPending, PaymentStatus: models.PaymentPending,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	})
	w = x.do(http.MethodPost, path, token(t, adminID, domain.RoleAdmin), gin.H{"dryRun": true, "maxAge": 60})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["dryRun"])
	assert.EqualValues(t, 1, body["wouldDelete"])

	w = x.do(http.MethodPost, path, cronSecret, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["deletedCount"])
	_, err := x.store.GetBooking(context.Background(), old.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	x := newHarness(t)
	w := x.do(http.MethodGet, "/api/admin/bookings", token(t, hostID, domain.RoleHost), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = x.do(http.MethodGet, "/api/admin/bookings", token(t, adminID, domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	demoted := x.store.Profiles[adminID]
	demoted.Role = domain.RoleUser
	x.store.Profiles[adminID] = demoted
	w = x.do(http.MethodGet, "/api/admin/bookings", token(t, adminID, domain.RoleAdmin), nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "a demoted admin's token stops working on admin routes")

	delete(x.store.Profiles, guestID)
	in, out := stay(10, 3)
	w = x.do(http.MethodPost, "/api/bookings", token(t, guestID, domain.RoleUser), x.bookingBody(in, out))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCalendarExportIsPublic(t *testing.T) {
	x := newHarness(t)
	in, out := stay(10, 3)
	x.createBooking(in, out)

	w := x.do(http.MethodGet, fmt.Sprintf("/api/calendar/export?property_id=%d", x.prop.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "BEGIN:VEVENT")
	assert.NotContains(t, w.Body.String(), "Ada Guest")

	w = x.do(http.MethodGet, "/api/calendar/export", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityEndpoint(t *testing.T) {
	x := newHarness(t)
	in, out := stay(10, 3)
	x.createBooking(in, out)

	w := x.do(http.MethodGet, fmt.Sprintf("/api/properties/%d/availability?check_in=%s&check_out=%s", x.prop.ID, in, out), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["available"])

	_, free := stay(13, 1)
	w = x.do(http.MethodGet, fmt.Sprintf("/api/properties/%d/availability?check_in=%s&check_out=%s", x.prop.ID, out, free), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["available"])
}

func TestUnknownRoute(t *testing.T) {
	x := newHarness(t)
	w := x.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
