package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ExtractionStatus enum constants
const (
	ExtractionPending = "pending"
	ExtractionSuccess = "success"
	ExtractionPartial = "partial"
	ExtractionFailed  = "failed"
)

// ReceiptValidationStatus enum constants
const (
	ReceiptPending     = "pending"
	ReceiptValid       = "valid"
	ReceiptDiscrepancy = "discrepancy"
	ReceiptFailed      = "failed"
)

// ExtractedItem is a line item read from a document.
type ExtractedItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Discrepancy is one material difference between a receipt and its purchase order.
type Discrepancy struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// ProformaMetadata holds the fields extracted from the vendor proforma of a request.
type ProformaMetadata struct {
	ID               uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID        uuid.UUID                           `gorm:"type:uuid;not null;uniqueIndex" json:"request_id"`
	DocumentName     string                              `gorm:"type:varchar(255)" json:"document_name"`
	ExtractionStatus string                              `gorm:"type:varchar(20);not null;default:'pending'" json:"extraction_status"`
	Confidence       float64                             `gorm:"not null;default:0" json:"confidence"`
	VendorName       string                              `gorm:"type:varchar(200)" json:"vendor_name"`
	VendorAddress    string                              `gorm:"type:text" json:"vendor_address"`
	TotalAmount      decimal.NullDecimal                 `gorm:"type:decimal(12,2)" json:"total_amount"`
	Currency         string                              `gorm:"type:varchar(10)" json:"currency"`
	PaymentTerms     string                              `gorm:"type:text" json:"payment_terms"`
	Items            datatypes.JSONType[[]ExtractedItem] `gorm:"type:jsonb" json:"items"`
	ErrorMessage     string                              `gorm:"type:text" json:"error_message,omitempty"`
	Attempts         int                                 `gorm:"not null;default:0" json:"attempts"`
	CreatedAt        time.Time                           `json:"created_at"`
	UpdatedAt        time.Time                           `json:"updated_at"`
}

func (ProformaMetadata) TableName() string {
	return "proforma_metadata"
}

// UsableVendor reports the extracted vendor name when extraction produced a trustworthy one.
func (m *ProformaMetadata) UsableVendor() (string, bool) {
	if m == nil || m.VendorName == "" {
		return "", false
	}
	if m.ExtractionStatus != ExtractionSuccess && m.ExtractionStatus != ExtractionPartial {
		return "", false
	}
	return m.VendorName, true
}

// ReceiptMetadata holds the receipt extraction and its comparison against the purchase order.
type ReceiptMetadata struct {
	ID               uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID        uuid.UUID                           `gorm:"type:uuid;not null;uniqueIndex" json:"request_id"`
	DocumentName     string                              `gorm:"type:varchar(255)" json:"document_name"`
	ValidationStatus string                              `gorm:"type:varchar(20);not null;default:'pending'" json:"validation_status"`
	Confidence       float64                             `gorm:"not null;default:0" json:"confidence"`
	VendorName       string                              `gorm:"type:varchar(200)" json:"vendor_name"`
	TotalAmount      decimal.NullDecimal                 `gorm:"type:decimal(12,2)" json:"total_amount"`
	Currency         string                              `gorm:"type:varchar(10)" json:"currency"`
	Items            datatypes.JSONType[[]ExtractedItem] `gorm:"type:jsonb" json:"items"`
	Discrepancies    datatypes.JSONType[[]Discrepancy]   `gorm:"type:jsonb" json:"discrepancies"`
	ErrorMessage     string                              `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time                           `json:"created_at"`
	UpdatedAt        time.Time                           `json:"updated_at"`
}

func (ReceiptMetadata) TableName() string {
	return "receipt_metadata"
}

// NewProformaMetadata starts a pending extraction record for a freshly uploaded proforma.
func NewProformaMetadata(requestID uuid.UUID, documentName string, now time.Time) *ProformaMetadata {
	return &ProformaMetadata{
		ID:               uuid.New(),
		RequestID:        requestID,
		DocumentName:     documentName,
		ExtractionStatus: ExtractionPending,
		Items:            datatypes.NewJSONType([]ExtractedItem{}),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewReceiptMetadata starts a pending validation record for a freshly uploaded receipt.
func NewReceiptMetadata(requestID uuid.UUID, documentName string, now time.Time) *ReceiptMetadata {
	return &ReceiptMetadata{
		ID:               uuid.New(),
		RequestID:        requestID,
		DocumentName:     documentName,
		ValidationStatus: ReceiptPending,
		Items:            datatypes.NewJSONType([]ExtractedItem{}),
		Discrepancies:    datatypes.NewJSONType([]Discrepancy{}),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
