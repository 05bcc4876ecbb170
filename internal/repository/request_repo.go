package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestFilter narrows a request listing. Zero values do not filter.
type RequestFilter struct {
	CreatedBy *uuid.UUID
	Status    string
	Level     int
}

type RequestRepository interface {
	Create(ctx context.Context, req *model.PurchaseRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	UpdateWithVersion(ctx context.Context, req *model.PurchaseRequest, expectedVersion int) error
	ReplaceItems(ctx context.Context, req *model.PurchaseRequest) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter RequestFilter, page, limit int) ([]model.PurchaseRequest, int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByIDForUpdate locks the request row for the rest of the surrounding transaction.
// Items are loaded after the lock is held.
func (r *requestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	db := GetDB(ctx, r.db)
	var req model.PurchaseRequest
	if err := forUpdate(db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := db.Where("request_id = ?", id).Order("position ASC").Find(&req.Items).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateWithVersion writes the mutable request columns only if the stored version still equals
// expectedVersion. req.Version must already hold the new value.
func (r *requestRepository) UpdateWithVersion(ctx context.Context, req *model.PurchaseRequest, expectedVersion int) error {
	res := GetDB(ctx, r.db).Model(&model.PurchaseRequest{}).
		Where("id = ? AND version = ?", req.ID, expectedVersion).
		Updates(map[string]interface{}{
			"title":                   req.Title,
			"description":             req.Description,
			"total_amount":            req.TotalAmount,
			"status":                  req.Status,
			"current_approval_level":  req.CurrentApprovalLevel,
			"payment_status":          req.PaymentStatus,
			"payment_proof_ref":       req.PaymentProofRef,
			"receipt_required":        req.ReceiptRequired,
			"receipt_submitted":       req.ReceiptSubmitted,
			"clarification_requested": req.ClarificationRequested,
			"clarification_message":   req.ClarificationMessage,
			"clarification_response":  req.ClarificationResponse,
			"version":                 req.Version,
			"updated_at":              req.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

// ReplaceItems deletes the stored items of req and inserts req.Items.
func (r *requestRepository) ReplaceItems(ctx context.Context, req *model.PurchaseRequest) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("request_id = ?", req.ID).Delete(&model.RequestItem{}).Error; err != nil {
		return err
	}
	if len(req.Items) == 0 {
		return nil
	}
	return db.Create(&req.Items).Error
}

// Delete removes the request with its items and proforma metadata.
func (r *requestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("request_id = ?", id).Delete(&model.RequestItem{}).Error; err != nil {
		return err
	}
	if err := db.Where("request_id = ?", id).Delete(&model.ProformaMetadata{}).Error; err != nil {
		return err
	}
	return db.Delete(&model.PurchaseRequest{}, "id = ?", id).Error
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter, page, limit int) ([]model.PurchaseRequest, int64, error) {
	var requests []model.PurchaseRequest
	var total int64

	db := GetDB(ctx, r.db)
	scoped := func(q *gorm.DB) *gorm.DB {
		if filter.CreatedBy != nil {
			q = q.Where("created_by = ?", *filter.CreatedBy)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Level > 0 {
			q = q.Where("current_approval_level = ?", filter.Level)
		}
		return q
	}

	if err := scoped(db.Model(&model.PurchaseRequest{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := scoped(db.Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") })).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
