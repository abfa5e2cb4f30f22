package models

import (
	"encoding/json"
	"time"
)

type Notification struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	IsRead    bool            `json:"isRead"`
	DedupeKey string          `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
}

type ActivityLog struct {
	ID            int64           `json:"id"`
	ActorType     string          `json:"actorType"`
	UserID        int64           `json:"userId,omitempty"`
	Action        string          `json:"action"`
	EntityType    string          `json:"entityType"`
	EntityID      int64           `json:"entityId"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	SourceEventID string          `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type ActivityFilter struct {
	Action     string
	EntityType string
	EntityID   int64
	Limit      int
}

const (
	OutboxKindNotification    = "notification"
	OutboxKindActivity        = "activity"
	OutboxKindRefundRequested = "refund.requested"

	OutboxPending = "pending"
	OutboxDone    = "done"
	// OutboxDead events ran out of attempts. They stay for inspection and are never purged.
	OutboxDead = "dead"
)

// OutboxEvent is a side effect committed together with the state change that caused it.
type OutboxEvent struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	AggregateID   int64           `json:"aggregateId"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"lastError,omitempty"`
	ReservedUntil *time.Time      `json:"reservedUntil,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NotificationPayload is the body of a notification outbox event.
type NotificationPayload struct {
	UserID    int64          `json:"userId"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	DedupeKey string         `json:"dedupeKey"`
	Email     string         `json:"email,omitempty"`
}

type ActivityPayload struct {
	ActorType  string         `json:"actorType"`
	UserID     int64          `json:"userId,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   int64          `json:"entityId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type RefundRequestedPayload struct {
	BookingID       int64  `json:"bookingId"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	Amount          Money  `json:"amount"`
	Reason          string `json:"reason"`
}
