package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionCreateRequest          = "CREATE_REQUEST"
	ActionUpdateRequest          = "UPDATE_REQUEST"
	ActionDeleteRequest          = "DELETE_REQUEST"
	ActionApproveRequest         = "APPROVE_REQUEST"
	ActionRejectRequest          = "REJECT_REQUEST"
	ActionCreatePurchaseOrder    = "CREATE_PURCHASE_ORDER"
	ActionRequestClarification   = "REQUEST_CLARIFICATION"
	ActionRespondToClarification = "RESPOND_TO_CLARIFICATION"
	ActionUpdatePaymentStatus    = "UPDATE_PAYMENT_STATUS"
	ActionUploadReceipt          = "UPLOAD_RECEIPT"
	ActionUploadProforma         = "UPLOAD_PROFORMA"
)

// AuditLog tracks Who, What, and When for every committed workflow transition
type AuditLog struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID        `gorm:"type:uuid;index" json:"user_id"` // Nil for automated workers
	UserName   string            `gorm:"type:varchar(255)" json:"user_name,omitempty"`
	Action     string            `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string            `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string            `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSONMap `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

// NewAuditLog builds an entry attributed to actor.
func NewAuditLog(actor Principal, action, entityID, entityName string, details map[string]interface{}, now time.Time) *AuditLog {
	var userID *uuid.UUID
	if actor.ID != uuid.Nil {
		id := actor.ID
		userID = &id
	}
	return &AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		UserName:   actor.Name,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    datatypes.JSONMap(details),
		CreatedAt:  now,
	}
}
