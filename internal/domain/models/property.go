package models

import "time"

// Property is reference data owned by the listings side.
type Property struct {
	ID        int64  `json:"id"`
	HostID    int64  `json:"hostId"`
	Title     string `json:"title"`
	Address   string `json:"address"`
	City      string `json:"city"`
	MaxGuests int    `json:"maxGuests"`
	IsActive  bool   `json:"isActive"`
}

type Profile struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BlockedDate is a host-declared half-open unavailability window.
type BlockedDate struct {
	ID            int64     `json:"id"`
	PropertyID    int64     `json:"propertyId"`
	StartDate     Date      `json:"startDate"`
	EndDate       Date      `json:"endDate"`
	Reason        string    `json:"reason,omitempty"`
	PriceOverride *Money    `json:"priceOverride,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (b BlockedDate) Range() DateRange {
	return DateRange{Start: b.StartDate, End: b.EndDate}
}
