package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventType enum constants
const (
	EventDecisionRecorded       = "decision_recorded"
	EventClarificationRequested = "clarification_requested"
	EventClarificationResponded = "clarification_responded"
	EventReadyForPayment        = "ready_for_payment"
	EventReceiptReminder        = "receipt_reminder"
)

// OutboxStatus enum constants
const (
	OutboxPending   = "pending"
	OutboxDelivered = "delivered"
	OutboxFailed    = "failed"
)

// Recipient roles for outbox events
const (
	RecipientCreator  = "creator"
	RecipientFinance  = "finance"
	RecipientApprover = "approver"
)

// OutboxEvent is a notification appended in the same transaction as the transition that caused it.
// The outbox worker delivers it afterwards, at least once.
type OutboxEvent struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	EventType     string            `gorm:"type:varchar(40);not null;index" json:"event_type"`
	RequestID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"request_id"`
	RecipientRole string            `gorm:"type:varchar(20);not null" json:"recipient_role"`
	RecipientID   *uuid.UUID        `gorm:"type:uuid" json:"recipient_id,omitempty"`
	Payload       datatypes.JSONMap `gorm:"type:jsonb" json:"payload"`
	Status        string            `gorm:"type:varchar(20);not null;default:'pending';index:idx_outbox_due,priority:1" json:"status"`
	Attempts      int               `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time         `gorm:"not null;index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LastError     string            `gorm:"type:text" json:"last_error,omitempty"`
	DeliveredAt   *time.Time        `json:"delivered_at,omitempty"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
}

// NewOutboxEvent builds a pending event due immediately.
func NewOutboxEvent(eventType string, requestID uuid.UUID, recipientRole string, recipientID *uuid.UUID, payload map[string]interface{}, now time.Time) *OutboxEvent {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["request_id"] = requestID.String()
	return &OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		RequestID:     requestID,
		RecipientRole: recipientRole,
		RecipientID:   recipientID,
		Payload:       datatypes.JSONMap(payload),
		Status:        OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}
