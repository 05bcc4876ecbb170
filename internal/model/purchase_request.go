package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestStatus enum constants
const (
	RequestPending  = "pending"
	RequestNeedInfo = "need_info"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// PaymentStatus enum constants
const (
	PaymentPending       = "pending"
	PaymentPaid          = "paid"
	PaymentPartiallyPaid = "partially_paid"
	PaymentOnHold        = "on_hold"
)

// PurchaseRequest is the aggregate root of the procure-to-pay workflow.
// Status, level and version are only changed by the workflow service.
type PurchaseRequest struct {
	ID                     uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Title                  string          `gorm:"type:varchar(200);not null" json:"title"`
	Description            string          `gorm:"type:text" json:"description"`
	TotalAmount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status                 string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CurrentApprovalLevel   int             `gorm:"not null;default:1;index" json:"current_approval_level"`
	PaymentStatus          string          `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	PaymentProofRef        string          `gorm:"type:varchar(255)" json:"payment_proof_ref,omitempty"`
	ReceiptRequired        bool            `gorm:"not null;default:true" json:"receipt_required"`
	ReceiptSubmitted       bool            `gorm:"not null;default:false" json:"receipt_submitted"`
	ClarificationRequested bool            `gorm:"not null;default:false" json:"clarification_requested"`
	ClarificationMessage   string          `gorm:"type:text" json:"clarification_message,omitempty"`
	ClarificationResponse  string          `gorm:"type:text" json:"clarification_response,omitempty"`
	Version                int             `gorm:"not null;default:1" json:"version"` // Optimistic locking
	CreatedBy              uuid.UUID       `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedByName          string          `gorm:"type:varchar(255)" json:"created_by_name"`
	Items                  []RequestItem   `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// NewPurchaseRequest builds a pending request at level 1 owned by creator.
func NewPurchaseRequest(creator Principal, title, description string, total decimal.Decimal, items []RequestItem, now time.Time) *PurchaseRequest {
	req := &PurchaseRequest{
		ID:                   uuid.New(),
		Title:                title,
		Description:          description,
		TotalAmount:          total,
		Status:               RequestPending,
		CurrentApprovalLevel: 1,
		PaymentStatus:        PaymentPending,
		ReceiptRequired:      true,
		Version:              1,
		CreatedBy:            creator.ID,
		CreatedByName:        creator.Name,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	req.SetItems(items)
	return req
}

// SetItems replaces the item list, re-parenting and re-numbering each item.
func (r *PurchaseRequest) SetItems(items []RequestItem) {
	r.Items = make([]RequestItem, 0, len(items))
	for i, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.RequestID = r.ID
		item.Position = i
		item.recompute()
		r.Items = append(r.Items, item)
	}
}

// Touch advances the version counter and the update timestamp.
func (r *PurchaseRequest) Touch(now time.Time) {
	r.Version++
	r.UpdatedAt = now
}

// RequestItem is one line of a purchase request. TotalPrice always equals Quantity * UnitPrice.
type RequestItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	Position    int             `gorm:"not null;default:0" json:"position"`
	Description string          `gorm:"type:varchar(200);not null" json:"description"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
}

// NewRequestItem builds an item with its derived total.
func NewRequestItem(description string, quantity int, unitPrice decimal.Decimal) RequestItem {
	item := RequestItem{
		ID:          uuid.New(),
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}
	item.recompute()
	return item
}

func (i *RequestItem) SetQuantity(quantity int) {
	i.Quantity = quantity
	i.recompute()
}

func (i *RequestItem) SetUnitPrice(price decimal.Decimal) {
	i.UnitPrice = price
	i.recompute()
}

func (i *RequestItem) recompute() {
	i.TotalPrice = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
