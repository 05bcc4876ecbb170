package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"procurement/internal/extraction"
	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stores groups the repositories every workflow operation writes through.
type Stores struct {
	Tx        repository.TransactionManager
	Requests  repository.RequestRepository
	Approvals repository.ApprovalRepository
	Orders    repository.PurchaseOrderRepository
	Documents repository.DocumentRepository
	Outbox    repository.OutboxRepository
	Audit     repository.AuditRepository
}

func NewStores(db *gorm.DB) Stores {
	return Stores{
		Tx:        repository.NewTransactionManager(db),
		Requests:  repository.NewRequestRepository(db),
		Approvals: repository.NewApprovalRepository(db),
		Orders:    repository.NewPurchaseOrderRepository(db),
		Documents: repository.NewDocumentRepository(db),
		Outbox:    repository.NewOutboxRepository(db),
		Audit:     repository.NewAuditRepository(db),
	}
}

// Options are the workflow settings shared by the services.
type Options struct {
	Levels            workflow.Levels
	PlaceholderVendor string
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if len(o.Levels.Required()) == 0 {
		o.Levels = workflow.MustLevels(workflow.DefaultRequiredLevels)
	}
	if o.PlaceholderVendor == "" {
		o.PlaceholderVendor = "TBD"
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// OutboxTrigger wakes the outbox worker after a commit.
type OutboxTrigger interface {
	Notify()
}

// DocumentSubmitter queues a document for extraction.
type DocumentSubmitter interface {
	Submit(doc extraction.Document) error
}

type noopTrigger struct{}

func (noopTrigger) Notify() {}

// core holds the transaction discipline shared by the services.
type core struct {
	stores  Stores
	opts    Options
	outbox  OutboxTrigger
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func newCore(stores Stores, opts Options, outbox OutboxTrigger, m *metrics.Metrics, logger *zap.Logger) core {
	if outbox == nil {
		outbox = noopTrigger{}
	}
	return core{stores: stores, opts: opts.withDefaults(), outbox: outbox, metrics: m, logger: logger}
}

// txEffects collects what a transition wants written alongside the request.
type txEffects struct {
	events []*model.OutboxEvent
	audits []*model.AuditLog
}

func (e *txEffects) emit(ev *model.OutboxEvent) { e.events = append(e.events, ev) }

func (e *txEffects) audit(a *model.AuditLog) { e.audits = append(e.audits, a) }

// mutate locks the request, lets fn validate and change it, then persists the request with its version
// advanced by one plus everything fn queued on effects, all in one transaction.
// The outbox worker is woken after commit when events were written.
func (c *core) mutate(ctx context.Context, op string, id uuid.UUID, fn func(txCtx context.Context, req *model.PurchaseRequest, fx *txEffects) error) (*model.PurchaseRequest, error) {
	var (
		updated *model.PurchaseRequest
		fx      txEffects
	)
	err := c.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		fx = txEffects{}
		req, err := c.stores.Requests.FindByIDForUpdate(txCtx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return workflow.NotFound(op, "purchase request %s not found", id)
			}
			return err
		}

		expected := req.Version
		if err := fn(txCtx, req, &fx); err != nil {
			return err
		}

		req.Touch(c.opts.Now())
		if err := c.stores.Requests.UpdateWithVersion(txCtx, req, expected); err != nil {
			return err
		}
		if err := c.stores.Outbox.Append(txCtx, fx.events...); err != nil {
			return err
		}
		for _, a := range fx.audits {
			if err := c.stores.Audit.Log(txCtx, a); err != nil {
				return err
			}
		}
		updated = req
		return nil
	})
	if err != nil {
		err = c.classify(op, err)
		c.metrics.Operation(op, workflow.KindOf(err).String())
		return nil, err
	}

	c.metrics.Operation(op, "ok")
	if len(fx.events) > 0 {
		c.outbox.Notify()
	}
	return updated, nil
}

// classify turns storage errors into workflow errors. Typed errors pass through.
func (c *core) classify(op string, err error) error {
	var we *workflow.Error
	switch {
	case errors.As(err, &we):
		return err
	case errors.Is(err, repository.ErrStaleVersion):
		return workflow.Conflict(op, "request was modified concurrently")
	case repository.IsDuplicate(err):
		return workflow.Conflict(op, "duplicate record")
	case repository.IsNotFound(err):
		return workflow.NotFound(op, "record not found")
	default:
		c.logger.Error("Storage failure", zap.String("operation", op), zap.Error(err))
		return workflow.Unavailable(op, err)
	}
}

// issuePurchaseOrder derives the next order number of the year under the sequence row lock and
// stores the order. Vendor comes from the proforma extraction when it is usable.
func (c *core) issuePurchaseOrder(txCtx context.Context, req *model.PurchaseRequest, now time.Time) (*model.PurchaseOrder, error) {
	year := now.Year()
	seq, err := c.stores.Orders.LockSequence(txCtx, year, now)
	if err != nil {
		return nil, err
	}
	existing, err := c.stores.Orders.NumbersWithPrefix(txCtx, workflow.POYearPrefix(year))
	if err != nil {
		return nil, err
	}
	next, err := workflow.NextPOSequence(year, existing, seq.LastValue)
	if err != nil {
		return nil, workflow.InvalidState("issue purchase order", "%v", err)
	}
	seq.LastValue = next
	seq.UpdatedAt = now
	if err := c.stores.Orders.SaveSequence(txCtx, seq); err != nil {
		return nil, err
	}

	vendor := c.opts.PlaceholderVendor
	meta, err := c.stores.Documents.FindProforma(txCtx, req.ID)
	switch {
	case err == nil:
		if v, ok := meta.UsableVendor(); ok {
			vendor = v
		}
	case !repository.IsNotFound(err):
		return nil, err
	}

	po := model.NewPurchaseOrder(req, workflow.FormatPONumber(year, next), vendor, now)
	if err := c.stores.Orders.Create(txCtx, po); err != nil {
		return nil, err
	}
	return po, nil
}

func creatorID(req *model.PurchaseRequest) *uuid.UUID {
	id := req.CreatedBy
	return &id
}

func levelString(level int) string {
	return strconv.Itoa(level)
}
