package repository

import (
	"context"
	"time"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxRepository interface {
	Append(ctx context.Context, events ...*model.OutboxEvent) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.OutboxEvent, error)
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Append(ctx context.Context, events ...*model.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(events).Error
}

// ClaimDue locks up to limit pending events whose next attempt is due.
// Rows held by another worker are skipped. Call inside a transaction.
func (r *outboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
		Where("status = ? AND next_attempt_at <= ?", model.OutboxPending, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *outboxRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.OutboxDelivered,
			"delivered_at": at,
			"last_error":   "",
		}).Error
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error {
	return GetDB(ctx, r.db).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"next_attempt_at": next,
			"last_error":      lastErr,
		}).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return GetDB(ctx, r.db).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.OutboxFailed,
			"attempts":   attempts,
			"last_error": lastErr,
		}).Error
}

func (r *outboxRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := GetDB(ctx, r.db).Where("request_id = ?", requestID).Order("created_at ASC").Find(&events).Error
	return events, err
}
