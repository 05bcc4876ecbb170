package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"procurement/internal/database/dbtest"
	"procurement/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func seedRequest(t *testing.T, db *gorm.DB) *model.PurchaseRequest {
	t.Helper()
	creator := model.Requester(uuid.New(), "Alice")
	items := []model.RequestItem{
		model.NewRequestItem("Laptop", 2, decimal.RequireFromString("1200.00")),
		model.NewRequestItem("Dock", 2, decimal.RequireFromString("150.50")),
	}
	req := model.NewPurchaseRequest(creator, "Laptops", "New hires", decimal.RequireFromString("2701.00"), items, testNow)
	require.NoError(t, NewRequestRepository(db).Create(context.Background(), req))
	return req
}

func TestRequestRepository_FindByIDLoadsOrderedItems(t *testing.T) {
	db := dbtest.Open(t)
	req := seedRequest(t, db)

	got, err := NewRequestRepository(db).FindByIDForUpdate(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Laptop", got.Items[0].Description)
	assert.True(t, decimal.RequireFromString("2400").Equal(got.Items[0].TotalPrice))
	assert.Equal(t, 1, got.Version)

	_, err = NewRequestRepository(db).FindByID(context.Background(), uuid.New())
	assert.True(t, IsNotFound(err))
}

func TestRequestRepository_UpdateWithVersion(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRequestRepository(db)
	req := seedRequest(t, db)
	ctx := context.Background()

	req.Status = model.RequestNeedInfo
	req.Touch(testNow.Add(time.Minute))
	require.NoError(t, repo.UpdateWithVersion(ctx, req, 1))

	stale := *req
	stale.Status = model.RequestRejected
	stale.Touch(testNow.Add(2 * time.Minute))
	err := repo.UpdateWithVersion(ctx, &stale, 1)
	assert.True(t, errors.Is(err, ErrStaleVersion))

	got, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestNeedInfo, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestRequestRepository_ReplaceItemsAndDelete(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRequestRepository(db)
	req := seedRequest(t, db)
	ctx := context.Background()

	req.SetItems([]model.RequestItem{model.NewRequestItem("Monitor", 3, decimal.RequireFromString("200"))})
	require.NoError(t, repo.ReplaceItems(ctx, req))

	got, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Monitor", got.Items[0].Description)

	require.NoError(t, repo.Delete(ctx, req.ID))
	_, err = repo.FindByID(ctx, req.ID)
	assert.True(t, IsNotFound(err))

	var itemCount int64
	require.NoError(t, db.Model(&model.RequestItem{}).Count(&itemCount).Error)
	assert.Zero(t, itemCount)
}

func TestRequestRepository_ListFilters(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	first := seedRequest(t, db)
	second := seedRequest(t, db)
	second.Status = model.RequestApproved
	second.Touch(testNow)
	require.NoError(t, repo.UpdateWithVersion(ctx, second, 1))

	list, total, err := repo.List(ctx, RequestFilter{Status: model.RequestPending}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	own := first.CreatedBy
	list, total, err = repo.List(ctx, RequestFilter{CreatedBy: &own}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list[0].Items, 2)
}

func TestApprovalRepository_UniquePerLevel(t *testing.T) {
	db := dbtest.Open(t)
	req := seedRequest(t, db)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	approver := model.ApproverAtLevel(uuid.New(), "Bob", 1)
	require.NoError(t, repo.Create(ctx, model.NewApproval(req.ID, approver, 1, model.ActionApproved, "", testNow)))

	other := model.ApproverAtLevel(uuid.New(), "Carol", 1)
	err := repo.Create(ctx, model.NewApproval(req.ID, other, 1, model.ActionRejected, "", testNow))
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	exists, err := repo.ExistsForApprover(ctx, req.ID, approver.ID, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	approvals, err := repo.ListByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, approvals, 1)
}

func TestPurchaseOrderRepository_Sequence(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewPurchaseOrderRepository(db)
	tx := NewTransactionManager(db)
	req := seedRequest(t, db)
	ctx := context.Background()

	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		seq, err := repo.LockSequence(txCtx, 2025, testNow)
		if err != nil {
			return err
		}
		assert.Equal(t, 0, seq.LastValue)
		seq.LastValue = 1
		seq.UpdatedAt = testNow
		if err := repo.SaveSequence(txCtx, seq); err != nil {
			return err
		}
		return repo.Create(txCtx, model.NewPurchaseOrder(req, "PO-2025-000001", "TBD", testNow))
	})
	require.NoError(t, err)

	seq, err := repo.LockSequence(ctx, 2025, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, seq.LastValue)

	fresh, err := repo.LockSequence(ctx, 2026, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.LastValue)
	assert.True(t, testNow.Add(time.Hour).Equal(fresh.UpdatedAt), "seeded at %v", fresh.UpdatedAt)

	numbers, err := repo.NumbersWithPrefix(ctx, "PO-2025-")
	require.NoError(t, err)
	assert.Equal(t, []string{"PO-2025-000001"}, numbers)

	po, err := repo.FindByRequestID(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, po.Items.Data(), 2)
	assert.Equal(t, "Laptop", po.Items.Data()[0].Description)

	dup := model.NewPurchaseOrder(req, "PO-2025-000002", "TBD", testNow)
	assert.True(t, IsDuplicate(repo.Create(ctx, dup)))
}

func TestTransactionManager_RollbackOnError(t *testing.T) {
	db := dbtest.Open(t)
	tx := NewTransactionManager(db)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	creator := model.Requester(uuid.New(), "Alice")
	req := model.NewPurchaseRequest(creator, "Chairs", "", decimal.NewFromInt(100), nil, testNow)
	boom := errors.New("boom")

	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, req); err != nil {
			return err
		}
		return tx.RunInTx(txCtx, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.FindByID(ctx, req.ID)
	assert.True(t, IsNotFound(err))
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()
	requestID := uuid.New()

	due := model.NewOutboxEvent(model.EventReadyForPayment, requestID, model.RecipientFinance, nil, nil, testNow)
	later := model.NewOutboxEvent(model.EventReceiptReminder, requestID, model.RecipientCreator, nil, nil, testNow.Add(time.Hour))
	require.NoError(t, repo.Append(ctx, due, later))

	claimed, err := repo.ClaimDue(ctx, testNow, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, requestID.String(), claimed[0].Payload["request_id"])

	require.NoError(t, repo.MarkRetry(ctx, due.ID, 1, testNow.Add(time.Minute), "nats down"))
	claimed, err = repo.ClaimDue(ctx, testNow, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	require.NoError(t, repo.MarkDelivered(ctx, due.ID, testNow.Add(2*time.Minute)))
	require.NoError(t, repo.MarkFailed(ctx, later.ID, 5, "gave up"))

	events, err := repo.ListByRequest(ctx, requestID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.OutboxDelivered, events[0].Status)
	assert.Equal(t, model.OutboxFailed, events[1].Status)
	assert.Equal(t, 5, events[1].Attempts)
}

func TestDocumentRepository_UpsertByRequest(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	requestID := uuid.New()

	first := &model.ProformaMetadata{ID: uuid.New(), RequestID: requestID, DocumentName: "a.txt", ExtractionStatus: model.ExtractionPending, CreatedAt: testNow, UpdatedAt: testNow}
	require.NoError(t, repo.SaveProforma(ctx, first))

	second := &model.ProformaMetadata{ID: uuid.New(), RequestID: requestID, DocumentName: "b.txt", ExtractionStatus: model.ExtractionSuccess, VendorName: "Acme", CreatedAt: testNow, UpdatedAt: testNow}
	require.NoError(t, repo.SaveProforma(ctx, second))

	got, err := repo.FindProforma(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "b.txt", got.DocumentName)
	vendor, ok := got.UsableVendor()
	assert.True(t, ok)
	assert.Equal(t, "Acme", vendor)

	_, err = repo.FindReceipt(ctx, requestID)
	assert.True(t, IsNotFound(err))
}
