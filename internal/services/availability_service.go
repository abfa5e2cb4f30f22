package services

import (
	"context"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
)

// AvailabilityService answers "is this range free" for a property. It never writes.
type AvailabilityService struct {
	Bookings BookingStore
	Blocked  BlockedDateStore
}

// Conflicts holds what occupies a requested range.
type Conflicts struct {
	Bookings []models.Booking
	Blocked  []models.BlockedDate
}

func (c Conflicts) Empty() bool {
	return len(c.Bookings) == 0 && len(c.Blocked) == 0
}

// Ranges is the client-safe view: occupied ranges without guest data.
func (c Conflicts) Ranges() []models.Conflict {
	out := make([]models.Conflict, 0, len(c.Bookings)+len(c.Blocked))
	for _, b := range c.Bookings {
		out = append(out, models.Conflict{Type: models.ConflictBooking, ID: b.ID, Start: b.CheckIn, End: b.CheckOut})
	}
	for _, bd := range c.Blocked {
		out = append(out, models.Conflict{Type: models.ConflictBlocked, ID: bd.ID, Start: bd.StartDate, End: bd.EndDate})
	}
	return out
}

// FindConflicts returns pending/confirmed bookings and blocked windows overlapping rng.
// excludeID skips the booking being re-validated.
func (s AvailabilityService) FindConflicts(ctx context.Context, propertyID int64, rng models.DateRange, excludeID int64) (Conflicts, error) {
	var out Conflicts
	if !rng.Valid() {
		return out, domain.ValidationError{Field: "checkOut", Msg: "check-out must be after check-in"}
	}

	bookings, err := s.Bookings.ActiveBookingsInRange(ctx, propertyID, rng, excludeID)
	if err != nil {
		return out, domain.ExternalServiceError{Service: "database", Err: err}
	}
	for _, b := range bookings {
		if b.Status.Blocking() && b.Range().Overlaps(rng) {
			out.Bookings = append(out.Bookings, b)
		}
	}

	blocked, err := s.Blocked.BlockedInRange(ctx, propertyID, rng)
	if err != nil {
		return out, domain.ExternalServiceError{Service: "database", Err: err}
	}
	for _, bd := range blocked {
		if bd.Range().Overlaps(rng) {
			out.Blocked = append(out.Blocked, bd)
		}
	}
	return out, nil
}

// IsAvailable fails closed: any read error reports false together with the error.
func (s AvailabilityService) IsAvailable(ctx context.Context, propertyID int64, rng models.DateRange) (bool, error) {
	c, err := s.FindConflicts(ctx, propertyID, rng, 0)
	if err != nil {
		return false, err
	}
	return c.Empty(), nil
}
