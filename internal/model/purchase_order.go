package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// POItem is a snapshot of a request item at the moment the order was issued.
type POItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// PurchaseOrder is generated exactly once, when a request becomes fully approved.
type PurchaseOrder struct {
	ID          uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID   uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex" json:"request_id"`
	PONumber    string                       `gorm:"column:po_number;type:varchar(30);not null;uniqueIndex" json:"po_number"`
	VendorName  string                       `gorm:"type:varchar(200)" json:"vendor_name"`
	TotalAmount decimal.Decimal              `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Items       datatypes.JSONType[[]POItem] `gorm:"type:jsonb" json:"items"`
	CreatedAt   time.Time                    `json:"created_at"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// NewPurchaseOrder snapshots the request items so later item edits cannot alter the order.
func NewPurchaseOrder(req *PurchaseRequest, poNumber, vendorName string, now time.Time) *PurchaseOrder {
	items := make([]POItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, POItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return &PurchaseOrder{
		ID:          uuid.New(),
		RequestID:   req.ID,
		PONumber:    poNumber,
		VendorName:  vendorName,
		TotalAmount: req.TotalAmount,
		Items:       datatypes.NewJSONType(items),
		CreatedAt:   now,
	}
}

// POSequence holds the last issued order counter of a year.
type POSequence struct {
	Year      int       `gorm:"primaryKey;autoIncrement:false" json:"year"`
	LastValue int       `gorm:"not null;default:0" json:"last_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (POSequence) TableName() string {
	return "po_sequences"
}
