package service

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"procurement/internal/export"
	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxTitleLength = 200

// --- DTOs ---

type RequestItemDTO struct {
	Description string          `json:"description" binding:"required"`
	Quantity    int             `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateRequestDTO creates a request. TotalAmount defaults to the sum of the item totals.
type CreateRequestDTO struct {
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	Items       []RequestItemDTO `json:"items" binding:"required"`
}

// UpdateRequestDTO changes only the fields that are set. Items, when present, replace all items.
type UpdateRequestDTO struct {
	Title           *string          `json:"title"`
	Description     *string          `json:"description"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
	Items           []RequestItemDTO `json:"items"`
	ExpectedVersion *int             `json:"expected_version"`
}

// RequestDetail is a request together with everything recorded against it.
type RequestDetail struct {
	*model.PurchaseRequest
	Approvals         []model.Approval        `json:"approvals"`
	PurchaseOrder     *model.PurchaseOrder    `json:"purchase_order,omitempty"`
	Proforma          *model.ProformaMetadata `json:"proforma,omitempty"`
	Receipt           *model.ReceiptMetadata  `json:"receipt,omitempty"`
	NextApprovalLevel *int                    `json:"next_approval_level,omitempty"`
}

// --- Interface ---

type RequestService interface {
	CreateRequest(ctx context.Context, principal model.Principal, dto CreateRequestDTO) (*model.PurchaseRequest, error)
	UpdateRequest(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto UpdateRequestDTO) (*model.PurchaseRequest, error)
	DeleteRequest(ctx context.Context, requestID uuid.UUID, principal model.Principal) error
	GetRequest(ctx context.Context, requestID uuid.UUID, principal model.Principal) (*RequestDetail, error)
	ListRequests(ctx context.Context, principal model.Principal, page, limit int) ([]model.PurchaseRequest, int64, error)
	GetPurchaseOrder(ctx context.Context, requestID uuid.UUID, principal model.Principal) (*model.PurchaseOrder, error)
	ExportPurchaseOrder(ctx context.Context, requestID uuid.UUID, principal model.Principal, w io.Writer) (*model.PurchaseOrder, error)
}

type requestService struct {
	core
}

func NewRequestService(stores Stores, opts Options, m *metrics.Metrics, logger *zap.Logger) RequestService {
	return &requestService{core: newCore(stores, opts, nil, m, logger)}
}

// --- Implementation ---

func (s *requestService) CreateRequest(ctx context.Context, principal model.Principal, dto CreateRequestDTO) (*model.PurchaseRequest, error) {
	const op = "create request"

	if !principal.IsRequester() {
		return nil, workflow.Forbidden(op, "only requesters can create purchase requests")
	}
	title, err := validateTitle(op, dto.Title)
	if err != nil {
		return nil, err
	}
	if len(dto.Items) == 0 {
		return nil, workflow.Validation(op, "at least one item is required")
	}
	items, err := buildItems(op, dto.Items)
	if err != nil {
		return nil, err
	}
	total, err := resolveTotal(op, dto.TotalAmount, items)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	req := model.NewPurchaseRequest(principal, title, strings.TrimSpace(dto.Description), total, items, now)
	req.CurrentApprovalLevel = s.opts.Levels.First()

	err = s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.stores.Requests.Create(txCtx, req); err != nil {
			return err
		}
		return s.stores.Audit.Log(txCtx, model.NewAuditLog(principal, model.ActionCreateRequest, req.ID.String(), req.Title,
			map[string]interface{}{"total_amount": req.TotalAmount.StringFixed(2), "items": len(req.Items)}, now))
	})
	if err != nil {
		err = s.classify(op, err)
		s.metrics.Operation(op, workflow.KindOf(err).String())
		return nil, err
	}

	s.metrics.Operation(op, "ok")
	s.logger.Info("Purchase request created",
		zap.String("request_id", req.ID.String()),
		zap.String("created_by", principal.ID.String()))
	return req, nil
}

func (s *requestService) UpdateRequest(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto UpdateRequestDTO) (*model.PurchaseRequest, error) {
	const op = "update request"

	return s.mutate(ctx, op, requestID, func(txCtx context.Context, req *model.PurchaseRequest, fx *txEffects) error {
		if principal.ID != req.CreatedBy {
			return workflow.Forbidden(op, "only the creator can edit a request")
		}
		if workflow.IsLocked(req.Status) {
			return workflow.Conflict(op, "request already %s", req.Status)
		}
		if dto.ExpectedVersion != nil && *dto.ExpectedVersion != req.Version {
			return workflow.Conflict(op, "stale version %d, current is %d", *dto.ExpectedVersion, req.Version)
		}

		changed := []string{}
		if dto.Title != nil {
			title, err := validateTitle(op, *dto.Title)
			if err != nil {
				return err
			}
			req.Title = title
			changed = append(changed, "title")
		}
		if dto.Description != nil {
			req.Description = strings.TrimSpace(*dto.Description)
			changed = append(changed, "description")
		}

		itemsReplaced := dto.Items != nil
		if itemsReplaced {
			if len(dto.Items) == 0 {
				return workflow.Validation(op, "at least one item is required")
			}
			items, err := buildItems(op, dto.Items)
			if err != nil {
				return err
			}
			req.SetItems(items)
			changed = append(changed, "items")
		}
		if dto.TotalAmount != nil || itemsReplaced {
			total, err := resolveTotal(op, dto.TotalAmount, req.Items)
			if err != nil {
				return err
			}
			req.TotalAmount = total
			changed = append(changed, "total_amount")
		}

		if itemsReplaced {
			if err := s.stores.Requests.ReplaceItems(txCtx, req); err != nil {
				return err
			}
		}
		fx.audit(model.NewAuditLog(principal, model.ActionUpdateRequest, req.ID.String(), req.Title,
			map[string]interface{}{"fields": changed}, s.opts.Now()))
		return nil
	})
}

// DeleteRequest is allowed while the request is pending and nobody has decided on it yet.
func (s *requestService) DeleteRequest(ctx context.Context, requestID uuid.UUID, principal model.Principal) error {
	const op = "delete request"

	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.stores.Requests.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if repository.IsNotFound(err) {
				return workflow.NotFound(op, "purchase request %s not found", requestID)
			}
			return err
		}
		if principal.ID != req.CreatedBy {
			return workflow.Forbidden(op, "only the creator can delete a request")
		}
		if req.Status != model.RequestPending {
			return workflow.InvalidState(op, "request is %s, only pending requests can be deleted", req.Status)
		}
		approvals, err := s.stores.Approvals.ListByRequest(txCtx, req.ID)
		if err != nil {
			return err
		}
		if len(approvals) > 0 {
			return workflow.InvalidState(op, "request already has %d decision(s)", len(approvals))
		}

		if err := s.stores.Requests.Delete(txCtx, req.ID); err != nil {
			return err
		}
		return s.stores.Audit.Log(txCtx, model.NewAuditLog(principal, model.ActionDeleteRequest, req.ID.String(), req.Title, nil, s.opts.Now()))
	})
	if err != nil {
		err = s.classify(op, err)
		s.metrics.Operation(op, workflow.KindOf(err).String())
		return err
	}
	s.metrics.Operation(op, "ok")
	return nil
}

func (s *requestService) GetRequest(ctx context.Context, requestID uuid.UUID, principal model.Principal) (*RequestDetail, error) {
	const op = "get request"

	req, err := s.load(ctx, op, requestID, principal)
	if err != nil {
		return nil, err
	}

	approvals, err := s.stores.Approvals.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, s.classify(op, err)
	}
	detail := &RequestDetail{PurchaseRequest: req, Approvals: approvals}
	if !workflow.IsLocked(req.Status) {
		if next, ok := s.opts.Levels.NextApprovalLevel(approvals); ok {
			detail.NextApprovalLevel = &next
		}
	}

	if po, err := s.stores.Orders.FindByRequestID(ctx, req.ID); err == nil {
		detail.PurchaseOrder = po
	} else if !repository.IsNotFound(err) {
		return nil, s.classify(op, err)
	}
	if meta, err := s.stores.Documents.FindProforma(ctx, req.ID); err == nil {
		detail.Proforma = meta
	} else if !repository.IsNotFound(err) {
		return nil, s.classify(op, err)
	}
	if meta, err := s.stores.Documents.FindReceipt(ctx, req.ID); err == nil {
		detail.Receipt = meta
	} else if !repository.IsNotFound(err) {
		return nil, s.classify(op, err)
	}
	return detail, nil
}

// ListRequests returns what the principal works on: own requests for requesters,
// pending requests at their level for approvers, approved requests for finance.
func (s *requestService) ListRequests(ctx context.Context, principal model.Principal, page, limit int) ([]model.PurchaseRequest, int64, error) {
	const op = "list requests"

	var filter repository.RequestFilter
	switch principal.Role {
	case model.RoleRequester:
		id := principal.ID
		filter.CreatedBy = &id
	case model.RoleApprover:
		level, ok := principal.ApprovalLevel()
		if !ok {
			return nil, 0, workflow.Forbidden(op, "approver has no level")
		}
		filter.Status = model.RequestPending
		filter.Level = level
	case model.RoleFinance:
		filter.Status = model.RequestApproved
	default:
		return nil, 0, workflow.Forbidden(op, "unknown role")
	}

	requests, total, err := s.stores.Requests.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, s.classify(op, err)
	}
	return requests, total, nil
}

func (s *requestService) GetPurchaseOrder(ctx context.Context, requestID uuid.UUID, principal model.Principal) (*model.PurchaseOrder, error) {
	const op = "get purchase order"

	if _, err := s.load(ctx, op, requestID, principal); err != nil {
		return nil, err
	}
	po, err := s.stores.Orders.FindByRequestID(ctx, requestID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, workflow.NotFound(op, "no purchase order for request %s", requestID)
		}
		return nil, s.classify(op, err)
	}
	return po, nil
}

// ExportPurchaseOrder writes the order of the request to w as an xlsx workbook.
func (s *requestService) ExportPurchaseOrder(ctx context.Context, requestID uuid.UUID, principal model.Principal, w io.Writer) (*model.PurchaseOrder, error) {
	const op = "export purchase order"

	req, err := s.load(ctx, op, requestID, principal)
	if err != nil {
		return nil, err
	}
	po, err := s.stores.Orders.FindByRequestID(ctx, requestID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, workflow.NotFound(op, "no purchase order for request %s", requestID)
		}
		return nil, s.classify(op, err)
	}
	if err := export.WritePurchaseOrder(w, po, req.Title); err != nil {
		s.logger.Error("Failed to export purchase order", zap.String("po_number", po.PONumber), zap.Error(err))
		return nil, workflow.Unavailable(op, err)
	}
	return po, nil
}

// load reads a request the principal may see. Requesters only see their own.
func (s *requestService) load(ctx context.Context, op string, requestID uuid.UUID, principal model.Principal) (*model.PurchaseRequest, error) {
	req, err := s.stores.Requests.FindByID(ctx, requestID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, workflow.NotFound(op, "purchase request %s not found", requestID)
		}
		return nil, s.classify(op, err)
	}
	if principal.IsRequester() && req.CreatedBy != principal.ID {
		return nil, workflow.Forbidden(op, "request belongs to another requester")
	}
	return req, nil
}

func validateTitle(op, raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", workflow.Validation(op, "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", workflow.Validation(op, "title exceeds %d characters", maxTitleLength)
	}
	return title, nil
}

func buildItems(op string, dtos []RequestItemDTO) ([]model.RequestItem, error) {
	items := make([]model.RequestItem, 0, len(dtos))
	for i, d := range dtos {
		desc := strings.TrimSpace(d.Description)
		if desc == "" {
			return nil, workflow.Validation(op, "item %d: description is required", i+1)
		}
		if utf8.RuneCountInString(desc) > maxTitleLength {
			return nil, workflow.Validation(op, "item %d: description exceeds %d characters", i+1, maxTitleLength)
		}
		if d.Quantity <= 0 {
			return nil, workflow.Validation(op, "item %d: quantity must be positive", i+1)
		}
		if d.UnitPrice.IsNegative() {
			return nil, workflow.Validation(op, "item %d: unit price must not be negative", i+1)
		}
		items = append(items, model.NewRequestItem(desc, d.Quantity, d.UnitPrice))
	}
	return items, nil
}

func resolveTotal(op string, given *decimal.Decimal, items []model.RequestItem) (decimal.Decimal, error) {
	total := decimal.Zero
	if given != nil {
		total = *given
	} else {
		for _, it := range items {
			total = total.Add(it.TotalPrice)
		}
	}
	if !total.IsPositive() {
		return decimal.Zero, workflow.Validation(op, "total amount must be positive")
	}
	return total, nil
}
