package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApprovalRepository interface {
	Create(ctx context.Context, approval *model.Approval) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Approval, error)
	ExistsForApprover(ctx context.Context, requestID, approverID uuid.UUID, level int) (bool, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

// Create inserts a decision. A second decision on the same level violates idx_approval_request_level.
func (r *approvalRepository) Create(ctx context.Context, approval *model.Approval) error {
	return GetDB(ctx, r.db).Create(approval).Error
}

func (r *approvalRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Approval, error) {
	var approvals []model.Approval
	err := GetDB(ctx, r.db).Where("request_id = ?", requestID).Order("level ASC, created_at ASC").Find(&approvals).Error
	return approvals, err
}

func (r *approvalRepository) ExistsForApprover(ctx context.Context, requestID, approverID uuid.UUID, level int) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Approval{}).
		Where("request_id = ? AND approver_id = ? AND level = ?", requestID, approverID, level).
		Count(&count).Error
	return count > 0, err
}
