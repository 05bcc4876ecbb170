package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository stores the extracted metadata of proformas and receipts, one of each per request.
type DocumentRepository interface {
	SaveProforma(ctx context.Context, meta *model.ProformaMetadata) error
	FindProforma(ctx context.Context, requestID uuid.UUID) (*model.ProformaMetadata, error)
	SaveReceipt(ctx context.Context, meta *model.ReceiptMetadata) error
	FindReceipt(ctx context.Context, requestID uuid.UUID) (*model.ReceiptMetadata, error)
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// SaveProforma upserts on request_id; a re-upload replaces the previous extraction.
func (r *documentRepository) SaveProforma(ctx context.Context, meta *model.ProformaMetadata) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"document_name", "extraction_status", "confidence", "vendor_name", "vendor_address",
			"total_amount", "currency", "payment_terms", "items", "error_message", "attempts", "updated_at",
		}),
	}).Create(meta).Error
}

func (r *documentRepository) FindProforma(ctx context.Context, requestID uuid.UUID) (*model.ProformaMetadata, error) {
	var meta model.ProformaMetadata
	if err := GetDB(ctx, r.db).First(&meta, "request_id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &meta, nil
}

func (r *documentRepository) SaveReceipt(ctx context.Context, meta *model.ReceiptMetadata) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"document_name", "validation_status", "confidence", "vendor_name", "total_amount",
			"currency", "items", "discrepancies", "error_message", "updated_at",
		}),
	}).Create(meta).Error
}

func (r *documentRepository) FindReceipt(ctx context.Context, requestID uuid.UUID) (*model.ReceiptMetadata, error) {
	var meta model.ReceiptMetadata
	if err := GetDB(ctx, r.db).First(&meta, "request_id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &meta, nil
}
