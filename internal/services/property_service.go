package services

import (
	"context"
	"fmt"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/utils"
)

// BlockedDateService manages host-declared unavailability windows.
type BlockedDateService struct {
	Properties PropertyStore
	Blocked    BlockedDateStore
	Now        func() time.Time
}

type CreateBlockedDateInput struct {
	PropertyID    int64         `json:"propertyId" validate:"required,gt=0"`
	StartDate     models.Date   `json:"startDate"`
	EndDate       models.Date   `json:"endDate"`
	Reason        string        `json:"reason" validate:"max=255"`
	PriceOverride *models.Money `json:"priceOverride"`
}

func (s BlockedDateService) ownProperty(ctx context.Context, actor domain.Actor, propertyID int64) (models.Property, error) {
	if !actor.Authenticated() {
		return models.Property{}, domain.AuthenticationError{Msg: "authentication required"}
	}
	p, err := s.Properties.GetProperty(ctx, propertyID)
	if err != nil {
		return models.Property{}, err
	}
	if p.HostID != actor.UserID && !actor.IsAdmin() {
		return models.Property{}, domain.AuthorizationError{Msg: "only the property host can manage blocked dates"}
	}
	return p, nil
}

func (s BlockedDateService) List(ctx context.Context, actor domain.Actor, propertyID int64) ([]models.BlockedDate, error) {
	if _, err := s.ownProperty(ctx, actor, propertyID); err != nil {
		return nil, err
	}
	out, err := s.Blocked.ListBlockedDates(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.BlockedDate{}
	}
	return out, nil
}

// Create refuses windows that overlap a pending or confirmed booking.
func (s BlockedDateService) Create(ctx context.Context, actor domain.Actor, in CreateBlockedDateInput) (models.BlockedDate, error) {
	if err := validateStruct(in); err != nil {
		return models.BlockedDate{}, err
	}
	rng := models.DateRange{Start: in.StartDate, End: in.EndDate}
	switch {
	case in.StartDate.IsZero():
		return models.BlockedDate{}, domain.ValidationError{Field: "startDate", Msg: "is required"}
	case in.EndDate.IsZero():
		return models.BlockedDate{}, domain.ValidationError{Field: "endDate", Msg: "is required"}
	case !rng.Valid():
		return models.BlockedDate{}, domain.ValidationError{Field: "endDate", Msg: "end date must be after start date"}
	case in.PriceOverride != nil && *in.PriceOverride < 0:
		return models.BlockedDate{}, domain.ValidationError{Field: "priceOverride", Msg: "must not be negative"}
	}
	p, err := s.ownProperty(ctx, actor, in.PropertyID)
	if err != nil {
		return models.BlockedDate{}, err
	}
	now := utils.NowUTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	bd, err := s.Blocked.CreateBlockedDate(ctx, models.BlockedDate{
		PropertyID:    p.ID,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		Reason:        utils.NormalizeSpace(in.Reason),
		PriceOverride: in.PriceOverride,
		CreatedAt:     now.Truncate(time.Second),
	})
	if err != nil {
		return models.BlockedDate{}, err
	}
	utils.LogEvent(utils.RequestID(ctx), "blocked_dates", "create", fmt.Sprintf("property %d blocked %s", p.ID, rng))
	return bd, nil
}

func (s BlockedDateService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	bd, err := s.Blocked.GetBlockedDate(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.ownProperty(ctx, actor, bd.PropertyID); err != nil {
		return err
	}
	if err := s.Blocked.DeleteBlockedDate(ctx, id); err != nil {
		return err
	}
	utils.LogEvent(utils.RequestID(ctx), "blocked_dates", "delete", fmt.Sprintf("blocked date %d removed from property %d", id, bd.PropertyID))
	return nil
}

// NotificationService exposes a user's inbox. Marking read is the only update.
type NotificationService struct {
	Notifications NotificationStore
}

func (s NotificationService) List(ctx context.Context, actor domain.Actor, unreadOnly bool, limit int) ([]models.Notification, error) {
	if !actor.Authenticated() || actor.UserID == 0 {
		return nil, domain.AuthenticationError{Msg: "authentication required"}
	}
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	out, err := s.Notifications.ListNotifications(ctx, actor.UserID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Notification{}
	}
	return out, nil
}

func (s NotificationService) MarkRead(ctx context.Context, actor domain.Actor, id int64) error {
	if !actor.Authenticated() || actor.UserID == 0 {
		return domain.AuthenticationError{Msg: "authentication required"}
	}
	return s.Notifications.MarkNotificationRead(ctx, actor.UserID, id)
}

// ActivityService backs the admin audit view.
type ActivityService struct {
	Activity ActivityStore
}

func (s ActivityService) List(ctx context.Context, actor domain.Actor, f models.ActivityFilter) ([]models.ActivityLog, error) {
	if !actor.IsAdmin() {
		return nil, domain.AuthorizationError{Msg: "admin access required"}
	}
	if f.Limit <= 0 || f.Limit > maxPageLimit {
		f.Limit = 50
	}
	out, err := s.Activity.ListActivity(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.ActivityLog{}
	}
	return out, nil
}
