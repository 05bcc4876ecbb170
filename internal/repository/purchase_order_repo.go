package repository

import (
	"context"
	"time"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *model.PurchaseOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	FindByRequestID(ctx context.Context, requestID uuid.UUID) (*model.PurchaseOrder, error)
	LockSequence(ctx context.Context, year int, now time.Time) (*model.POSequence, error)
	SaveSequence(ctx context.Context, seq *model.POSequence) error
	NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

type purchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

func (r *purchaseOrderRepository) Create(ctx context.Context, po *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Create(po).Error
}

func (r *purchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := GetDB(ctx, r.db).First(&po, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) FindByRequestID(ctx context.Context, requestID uuid.UUID) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := GetDB(ctx, r.db).First(&po, "request_id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

// LockSequence ensures the counter row of year exists, seeded at now, and locks it until the
// transaction ends. Concurrent issuers for the same year queue on this row.
func (r *purchaseOrderRepository) LockSequence(ctx context.Context, year int, now time.Time) (*model.POSequence, error) {
	db := GetDB(ctx, r.db)
	seed := model.POSequence{Year: year, UpdatedAt: now}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}
	var seq model.POSequence
	if err := forUpdate(db).First(&seq, "year = ?", year).Error; err != nil {
		return nil, err
	}
	return &seq, nil
}

func (r *purchaseOrderRepository) SaveSequence(ctx context.Context, seq *model.POSequence) error {
	return GetDB(ctx, r.db).Model(&model.POSequence{}).
		Where("year = ?", seq.Year).
		Updates(map[string]interface{}{"last_value": seq.LastValue, "updated_at": seq.UpdatedAt}).Error
}

// NumbersWithPrefix lists issued order numbers starting with prefix.
func (r *purchaseOrderRepository) NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var numbers []string
	err := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).
		Where("po_number LIKE ?", prefix+"%").
		Pluck("po_number", &numbers).Error
	return numbers, err
}
