package model

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalAction enum constants
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// Approval is the immutable audit record of one decision at one level.
// (request_id, level) is unique: a level is decided at most once.
type Approval struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_approval_request_level" json:"request_id"`
	Level        int       `gorm:"not null;uniqueIndex:idx_approval_request_level" json:"level"`
	ApproverID   uuid.UUID `gorm:"type:uuid;not null;index" json:"approver_id"`
	ApproverName string    `gorm:"type:varchar(255)" json:"approver_name"`
	Action       string    `gorm:"type:varchar(20);not null" json:"action"`
	Comment      string    `gorm:"type:text" json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewApproval records a decision by approver at level.
func NewApproval(requestID uuid.UUID, approver Principal, level int, action, comment string, now time.Time) *Approval {
	return &Approval{
		ID:           uuid.New(),
		RequestID:    requestID,
		Level:        level,
		ApproverID:   approver.ID,
		ApproverName: approver.Name,
		Action:       action,
		Comment:      comment,
		CreatedAt:    now,
	}
}
