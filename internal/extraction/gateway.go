// Package extraction turns proforma and receipt documents into structured fields.
package extraction

import (
	"context"
	"errors"

	"procurement/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the document type a job extracts.
type Kind string

const (
	KindProforma Kind = "proforma"
	KindReceipt  Kind = "receipt"
)

// Document is an uploaded file held in memory until its job finishes.
type Document struct {
	RequestID   uuid.UUID
	Kind        Kind
	Name        string
	ContentType string
	Data        []byte
}

// Fields are the values a document can yield. Empty strings and a null total mean "not found".
type Fields struct {
	VendorName    string                `json:"vendor_name"`
	VendorAddress string                `json:"vendor_address"`
	TotalAmount   decimal.NullDecimal   `json:"total_amount"`
	Currency      string                `json:"currency"`
	PaymentTerms  string                `json:"payment_terms"`
	Items         []model.ExtractedItem `json:"items"`
}

const completenessFields = 6

// Completeness is the share of the six fields that were found.
func (f Fields) Completeness() float64 {
	filled := 0
	for _, ok := range []bool{
		f.VendorName != "",
		f.VendorAddress != "",
		f.TotalAmount.Valid,
		f.Currency != "",
		f.PaymentTerms != "",
		len(f.Items) > 0,
	} {
		if ok {
			filled++
		}
	}
	return float64(filled) / completenessFields
}

// Result is a successful extraction.
type Result struct {
	Fields
	Confidence float64
}

// Gateway extracts fields from one document. Implementations must honour ctx.
type Gateway interface {
	Extract(ctx context.Context, doc Document) (*Result, error)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// ErrUnsupportedContent is returned for documents the gateway cannot read.
var ErrUnsupportedContent = errors.New("unsupported document content type")
