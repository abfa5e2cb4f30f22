// Package testutil holds in-memory stand-ins for the MySQL repositories and the
// external adapters. They keep the same conditional-write semantics.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
)

// Store implements every repository port over maps guarded by one mutex, which
// plays the role of the property row lock.
type Store struct {
	mu sync.Mutex

	Bookings      map[int64]models.Booking
	Properties    map[int64]models.Property
	Profiles      map[int64]models.Profile
	Blocked       map[int64]models.BlockedDate
	Notifications []models.Notification
	Activity      []models.ActivityLog
	Outbox        []models.OutboxEvent

	// BeforeApply runs inside ApplyChange before the compare-and-swap, letting a
	// test sneak in a concurrent writer. It must not call back into the Store.
	BeforeApply func(s *Store, ch models.StatusChange)
	// FailReads makes every read return this error.
	FailReads error

	nextID int64
}

func NewStore() *Store {
	return &Store{
		Bookings:   map[int64]models.Booking{},
		Properties: map[int64]models.Property{},
		Profiles:   map[int64]models.Profile{},
		Blocked:    map[int64]models.BlockedDate{},
		nextID:     100,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) AddProperty(p models.Property) models.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.Properties[p.ID] = p
	return p
}

// PutBooking stores b as is, bypassing every check.
func (s *Store) PutBooking(b models.Booking) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.id()
	}
	s.Bookings[b.ID] = b
	return b
}

func (s *Store) Booking(id int64) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Bookings[id]
}

// OutboxKinds lists the kinds of queued events in insertion order.
func (s *Store) OutboxKinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Outbox))
	for _, e := range s.Outbox {
		out = append(out, e.Kind)
	}
	return out
}

func (s *Store) GetBooking(_ context.Context, id int64) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return models.Booking{}, s.FailReads
	}
	b, ok := s.Bookings[id]
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return b, nil
}

func (s *Store) FindBookingByIntent(_ context.Context, intentID string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.Bookings {
		if intentID != "" && b.PaymentIntentID == intentID {
			return b, nil
		}
	}
	return models.Booking{}, domain.NotFoundError{Resource: "booking"}
}

func (s *Store) conflicts(propertyID int64, rng models.DateRange, excludeID int64, withBlocked bool) []models.Conflict {
	var out []models.Conflict
	for _, b := range s.Bookings {
		if b.PropertyID == propertyID && b.ID != excludeID && b.Status.Blocking() && b.Range().Overlaps(rng) {
			out = append(out, models.Conflict{Type: models.ConflictBooking, ID: b.ID, Start: b.CheckIn, End: b.CheckOut})
		}
	}
	if withBlocked {
		for _, bd := range s.Blocked {
			if bd.PropertyID == propertyID && bd.Range().Overlaps(rng) {
				out = append(out, models.Conflict{Type: models.ConflictBlocked, ID: bd.ID, Start: bd.StartDate, End: bd.EndDate})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Less(out[j].Start) })
	return out
}

func (s *Store) CreateBooking(_ context.Context, b models.Booking, buildEvents func(models.Booking) ([]models.OutboxEvent, error)) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Properties[b.PropertyID]; !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "property"}
	}
	if c := s.conflicts(b.PropertyID, b.Range(), 0, true); len(c) > 0 {
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "Property is no longer available for these dates", Details: c}
	}
	b.ID = s.id()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.UpdatedAt = b.CreatedAt
	if buildEvents != nil {
		events, err := buildEvents(b)
		if err != nil {
			return models.Booking{}, err
		}
		s.Outbox = append(s.Outbox, events...)
	}
	s.Bookings[b.ID] = b
	return b, nil
}

func (s *Store) ApplyChange(_ context.Context, ch models.StatusChange, events []models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BeforeApply != nil {
		hook := s.BeforeApply
		s.BeforeApply = nil
		hook(s, ch)
	}
	if ch.RecheckAvailability {
		if c := s.conflicts(ch.PropertyID, ch.Range, ch.BookingID, true); len(c) > 0 {
			return domain.ConflictError{Resource: "booking", Msg: "Property is no longer available for these dates", Details: c}
		}
	}
	b, ok := s.Bookings[ch.BookingID]
	if !ok || b.Status != ch.FromStatus || b.PaymentStatus != ch.FromPayment {
		return domain.ErrStaleState
	}
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
	b.UpdatedAt = time.Now().UTC()
	s.Bookings[b.ID] = b
	s.Outbox = append(s.Outbox, events...)
	return nil
}

func (s *Store) AttachPaymentIntent(_ context.Context, bookingID int64, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.Bookings {
		if other.ID != bookingID && other.PaymentIntentID == intentID {
			return domain.ConflictError{Resource: "payment intent", Msg: "intent already attached to another booking"}
		}
	}
	b, ok := s.Bookings[bookingID]
	if !ok || !b.Status.Blocking() || b.PaymentStatus == models.PaymentPaid {
		return domain.ErrStaleState
	}
	b.PaymentIntentID = intentID
	s.Bookings[bookingID] = b
	return nil
}

func (s *Store) ActiveBookingsInRange(_ context.Context, propertyID int64, rng models.DateRange, excludeID int64) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	var out []models.Booking
	for _, b := range s.Bookings {
		if b.PropertyID == propertyID && b.ID != excludeID && b.Status.Blocking() && b.Range().Overlaps(rng) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Less(out[j].CheckIn) })
	return out, nil
}

func (s *Store) ListBookings(_ context.Context, f models.BookingFilter, p domain.Pagination) (models.BookingPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := models.BookingPage{Counts: map[models.BookingStatus]int{}}
	var matched []models.Booking
	for _, b := range s.Bookings {
		switch {
		case f.PropertyID > 0 && b.PropertyID != f.PropertyID,
			f.GuestID > 0 && b.GuestID != f.GuestID,
			f.HostID > 0 && b.HostID != f.HostID,
			!f.From.IsZero() && !f.From.Less(b.CheckOut),
			!f.To.IsZero() && !b.CheckIn.Less(f.To):
			continue
		}
		page.Counts[b.Status]++
		if f.Status == "" || f.Status == b.Status {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	page.Total = len(matched)
	start := p.Offset()
	if start < len(matched) {
		end := start + p.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Bookings = matched[start:end]
	}
	return page, nil
}

func (s *Store) SweepAbandoned(_ context.Context, cutoff time.Time, dryRun bool) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, b := range s.Bookings {
		if b.Status == models.BookingPending && b.PaymentStatus == models.PaymentPending && b.CreatedAt.Before(cutoff) {
			ids = append(ids, b.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if !dryRun {
		for _, id := range ids {
			delete(s.Bookings, id)
		}
	}
	return ids, nil
}

func (s *Store) ListBlockedDates(_ context.Context, propertyID int64) ([]models.BlockedDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BlockedDate
	for _, bd := range s.Blocked {
		if bd.PropertyID == propertyID {
			out = append(out, bd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Less(out[j].StartDate) })
	return out, nil
}

func (s *Store) BlockedInRange(_ context.Context, propertyID int64, rng models.DateRange) ([]models.BlockedDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	var out []models.BlockedDate
	for _, bd := range s.Blocked {
		if bd.PropertyID == propertyID && bd.Range().Overlaps(rng) {
			out = append(out, bd)
		}
	}
	return out, nil
}

func (s *Store) GetBlockedDate(_ context.Context, id int64) (models.BlockedDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bd, ok := s.Blocked[id]
	if !ok {
		return models.BlockedDate{}, domain.NotFoundError{Resource: "blocked date"}
	}
	return bd, nil
}

func (s *Store) CreateBlockedDate(_ context.Context, bd models.BlockedDate) (models.BlockedDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Properties[bd.PropertyID]; !ok {
		return models.BlockedDate{}, domain.NotFoundError{Resource: "property"}
	}
	if c := s.conflicts(bd.PropertyID, bd.Range(), 0, false); len(c) > 0 {
		return models.BlockedDate{}, domain.ConflictError{Resource: "blocked date", Msg: "Dates overlap existing bookings", Details: c}
	}
	bd.ID = s.id()
	s.Blocked[bd.ID] = bd
	return bd, nil
}

func (s *Store) DeleteBlockedDate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Blocked[id]; !ok {
		return domain.NotFoundError{Resource: "blocked date"}
	}
	delete(s.Blocked, id)
	return nil
}

func (s *Store) GetProperty(_ context.Context, id int64) (models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Properties[id]
	if !ok {
		return models.Property{}, domain.NotFoundError{Resource: "property"}
	}
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, id int64) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Profiles[id]
	if !ok {
		return models.Profile{}, domain.NotFoundError{Resource: "profile"}
	}
	return p, nil
}

func (s *Store) GetProfileByEmail(_ context.Context, email string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.Profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return models.Profile{}, domain.NotFoundError{Resource: "profile"}
}

func (s *Store) CreateProfile(_ context.Context, p models.Profile) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.Profiles {
		if strings.EqualFold(existing.Email, p.Email) {
			return models.Profile{}, domain.ConflictError{Resource: "profile", Msg: "email already registered"}
		}
	}
	p.ID = s.id()
	s.Profiles[p.ID] = p
	return p, nil
}

func (s *Store) InsertNotification(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.DedupeKey != "" {
		for _, existing := range s.Notifications {
			if existing.DedupeKey == n.DedupeKey {
				return nil
			}
		}
	}
	n.ID = s.id()
	s.Notifications = append(s.Notifications, n)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for i := len(s.Notifications) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		n := s.Notifications[i]
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Notifications {
		if s.Notifications[i].ID == id && s.Notifications[i].UserID == userID {
			s.Notifications[i].IsRead = true
			return nil
		}
	}
	return domain.NotFoundError{Resource: "notification"}
}

// NotificationsOfType counts delivered notifications of one type for one user.
func (s *Store) NotificationsOfType(userID int64, typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.Notifications {
		if x.UserID == userID && x.Type == typ {
			n++
		}
	}
	return n
}

func (s *Store) InsertActivity(_ context.Context, a models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.SourceEventID != "" {
		for _, existing := range s.Activity {
			if existing.SourceEventID == a.SourceEventID {
				return nil
			}
		}
	}
	a.ID = s.id()
	s.Activity = append(s.Activity, a)
	return nil
}

func (s *Store) ListActivity(_ context.Context, f models.ActivityFilter) ([]models.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ActivityLog
	for i := len(s.Activity) - 1; i >= 0; i-- {
		a := s.Activity[i]
		if (f.Action != "" && a.Action != f.Action) || (f.EntityType != "" && a.EntityType != f.EntityType) || (f.EntityID > 0 && a.EntityID != f.EntityID) {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) EnqueueOutbox(_ context.Context, events ...models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Outbox = append(s.Outbox, events...)
	return nil
}

func (s *Store) ReserveOutbox(_ context.Context, limit int, lease time.Duration) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var out []models.OutboxEvent
	for i := range s.Outbox {
		e := &s.Outbox[i]
		if e.Status != models.OutboxPending || (e.ReservedUntil != nil && e.ReservedUntil.After(now)) {
			continue
		}
		until := now.Add(lease)
		e.ReservedUntil = &until
		e.Attempts++
		out = append(out, *e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkOutboxDone(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Outbox {
		if s.Outbox[i].ID == id {
			s.Outbox[i].Status = models.OutboxDone
			s.Outbox[i].ReservedUntil = nil
			return nil
		}
	}
	return domain.NotFoundError{Resource: "outbox event"}
}

func (s *Store) MarkOutboxFailed(_ context.Context, id, lastErr string, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Outbox {
		if s.Outbox[i].ID == id {
			s.Outbox[i].LastError = lastErr
			s.Outbox[i].ReservedUntil = &retryAt
			return nil
		}
	}
	return domain.NotFoundError{Resource: "outbox event"}
}

func (s *Store) MarkOutboxDead(_ context.Context, id, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Outbox {
		if s.Outbox[i].ID == id {
			s.Outbox[i].Status = models.OutboxDead
			s.Outbox[i].LastError = lastErr
			s.Outbox[i].ReservedUntil = nil
			return nil
		}
	}
	return domain.NotFoundError{Resource: "outbox event"}
}

func (s *Store) PurgeOutbox(_ context.Context, before time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.Outbox[:0]
	var n int64
	for _, e := range s.Outbox {
		if e.Status == models.OutboxDone && e.CreatedAt.Before(before) && (limit <= 0 || n < int64(limit)) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.Outbox = kept
	return n, nil
}

// PendingOutbox counts events not yet delivered.
func (s *Store) PendingOutbox() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.Outbox {
		if e.Status == models.OutboxPending {
			n++
		}
	}
	return n
}
