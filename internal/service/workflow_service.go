package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type DecisionDTO struct {
	Action          string `json:"action" binding:"required"`
	Comment         string `json:"comment"`
	ExpectedVersion *int   `json:"expected_version"`
}

type DecisionResult struct {
	RequestID    uuid.UUID `json:"request_id"`
	Status       string    `json:"status"`
	CurrentLevel int       `json:"current_level"`
	ApprovalID   uuid.UUID `json:"approval_id"`
	Version      int       `json:"version"`
	PONumber     string    `json:"po_number,omitempty"`
}

type ClarificationDTO struct {
	Message string `json:"message"`
}

type ClarificationResponseDTO struct {
	Response string `json:"response"`
}

type PaymentStatusDTO struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
	ProofRef      string `json:"proof_ref"`
}

// --- Interface ---

// WorkflowService owns every state transition of a purchase request after submission.
type WorkflowService interface {
	SubmitDecision(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto DecisionDTO) (*DecisionResult, error)
	RequestClarification(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto ClarificationDTO) (*model.PurchaseRequest, error)
	RespondToClarification(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto ClarificationResponseDTO) (*model.PurchaseRequest, error)
	UpdatePaymentStatus(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto PaymentStatusDTO) (*model.PurchaseRequest, error)
}

type workflowService struct {
	core
}

func NewWorkflowService(stores Stores, opts Options, outbox OutboxTrigger, m *metrics.Metrics, logger *zap.Logger) WorkflowService {
	return &workflowService{core: newCore(stores, opts, outbox, m, logger)}
}

// --- Implementation ---

// SubmitDecision records an approval or rejection at the principal's level.
// Checks run in this order: request exists, not locked, expected version,
// not already decided by this principal at their level, level matches, payload valid.
func (s *workflowService) SubmitDecision(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto DecisionDTO) (*DecisionResult, error) {
	const op = "submit decision"

	level, ok := principal.ApprovalLevel()
	if !ok {
		return nil, workflow.Forbidden(op, "only approvers can decide on requests")
	}

	var (
		approval *model.Approval
		po       *model.PurchaseOrder
	)
	req, err := s.mutate(ctx, op, requestID, func(txCtx context.Context, req *model.PurchaseRequest, fx *txEffects) error {
		if workflow.IsLocked(req.Status) {
			return workflow.Conflict(op, "request already %s", req.Status)
		}
		if dto.ExpectedVersion != nil && *dto.ExpectedVersion != req.Version {
			return workflow.Conflict(op, "stale version %d, current is %d", *dto.ExpectedVersion, req.Version)
		}
		processed, err := s.stores.Approvals.ExistsForApprover(txCtx, req.ID, principal.ID, level)
		if err != nil {
			return err
		}
		if processed {
			return workflow.Conflict(op, "already processed at level %d", level)
		}
		if level != req.CurrentApprovalLevel {
			return workflow.InvalidState(op, "wrong level: request awaits level %d, approver is level %d", req.CurrentApprovalLevel, level)
		}
		if !workflow.IsDecisionAction(dto.Action) {
			return workflow.Validation(op, "action must be %q or %q", model.ActionApproved, model.ActionRejected)
		}
		if utf8.RuneCountInString(dto.Comment) > workflow.MaxCommentLength {
			return workflow.Validation(op, "comment exceeds %d characters", workflow.MaxCommentLength)
		}

		now := s.opts.Now()
		approval = model.NewApproval(req.ID, principal, level, dto.Action, dto.Comment, now)
		if err := s.stores.Approvals.Create(txCtx, approval); err != nil {
			return err
		}

		auditAction := model.ActionRejectRequest
		switch dto.Action {
		case model.ActionRejected:
			req.Status = model.RequestRejected
		case model.ActionApproved:
			auditAction = model.ActionApproveRequest
			approvals, err := s.stores.Approvals.ListByRequest(txCtx, req.ID)
			if err != nil {
				return err
			}
			if next, pending := s.opts.Levels.NextApprovalLevel(approvals); pending {
				req.CurrentApprovalLevel = next
				break
			}

			req.Status = model.RequestApproved
			po, err = s.issuePurchaseOrder(txCtx, req, now)
			if err != nil {
				return err
			}
			fx.emit(model.NewOutboxEvent(model.EventReadyForPayment, req.ID, model.RecipientFinance, nil,
				map[string]interface{}{"title": req.Title, "po_number": po.PONumber, "total_amount": po.TotalAmount.StringFixed(2)}, now))
			fx.audit(model.NewAuditLog(principal, model.ActionCreatePurchaseOrder, po.ID.String(), po.PONumber,
				map[string]interface{}{"request_id": req.ID.String(), "vendor_name": po.VendorName}, now))
		}

		fx.emit(model.NewOutboxEvent(model.EventDecisionRecorded, req.ID, model.RecipientCreator, creatorID(req),
			map[string]interface{}{"title": req.Title, "action": dto.Action, "actor_name": principal.DisplayName(), "level": level}, now))
		fx.audit(model.NewAuditLog(principal, auditAction, req.ID.String(), req.Title,
			map[string]interface{}{"level": level, "comment": dto.Comment, "status": req.Status}, now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Decision(levelString(level), dto.Action)
	result := &DecisionResult{
		RequestID:    req.ID,
		Status:       req.Status,
		CurrentLevel: req.CurrentApprovalLevel,
		ApprovalID:   approval.ID,
		Version:      req.Version,
	}
	if po != nil {
		s.metrics.PurchaseOrderIssued()
		result.PONumber = po.PONumber
		s.logger.Info("Purchase order issued",
			zap.String("request_id", req.ID.String()),
			zap.String("po_number", po.PONumber),
			zap.String("vendor_name", po.VendorName))
	}
	return result, nil
}

func (s *workflowService) RequestClarification(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto ClarificationDTO) (*model.PurchaseRequest, error) {
	const op = "request clarification"

	level, ok := principal.ApprovalLevel()
	if !ok {
		return nil, workflow.Forbidden(op, "only approvers can request clarification")
	}

	return s.mutate(ctx, op, requestID, func(txCtx context.Context, req *model.PurchaseRequest, fx *txEffects) error {
		if workflow.IsLocked(req.Status) {
			return workflow.Conflict(op, "request already %s", req.Status)
		}
		message := strings.TrimSpace(dto.Message)
		if message == "" {
			return workflow.Validation(op, "message is required")
		}

		now := s.opts.Now()
		req.Status = model.RequestNeedInfo
		req.ClarificationRequested = true
		req.ClarificationMessage = message
		req.ClarificationResponse = ""

		fx.emit(model.NewOutboxEvent(model.EventClarificationRequested, req.ID, model.RecipientCreator, creatorID(req),
			map[string]interface{}{"title": req.Title, "message": message, "actor_name": principal.DisplayName()}, now))
		fx.audit(model.NewAuditLog(principal, model.ActionRequestClarification, req.ID.String(), req.Title,
			map[string]interface{}{"level": level, "message": message}, now))
		return nil
	})
}

// RespondToClarification returns the request to pending at its current level.
func (s *workflowService) RespondToClarification(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto ClarificationResponseDTO) (*model.PurchaseRequest, error) {
	const op = "respond to clarification"

	return s.mutate(ctx, op, requestID, func(txCtx context.Context, req *model.PurchaseRequest, fx *txEffects) error {
		if principal.ID != req.CreatedBy {
			return workflow.Forbidden(op, "only the creator can respond")
		}
		if !req.ClarificationRequested {
			return workflow.InvalidState(op, "no clarification was requested")
		}
		if workflow.IsLocked(req.Status) {
			return workflow.Conflict(op, "request already %s", req.Status)
		}
		response := strings.TrimSpace(dto.Response)
		if response == "" {
			return workflow.Validation(op, "response is required")
		}

		now := s.opts.Now()
		req.ClarificationRequested = false
		req.ClarificationResponse = response
		req.Status = model.RequestPending

		fx.emit(model.NewOutboxEvent(model.EventClarificationResponded, req.ID, model.RecipientApprover, nil,
			map[string]interface{}{"title": req.Title, "level": req.CurrentApprovalLevel, "response": response}, now))
		fx.audit(model.NewAuditLog(principal, model.ActionRespondToClarification, req.ID.String(), req.Title,
			map[string]interface{}{"response": response}, now))
		return nil
	})
}

// UpdatePaymentStatus is only valid once the request is approved.
func (s *workflowService) UpdatePaymentStatus(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto PaymentStatusDTO) (*model.PurchaseRequest, error) {
	const op = "update payment status"

	if !principal.IsFinance() {
		return nil, workflow.Forbidden(op, "finance capability required")
	}
	if !workflow.IsPaymentStatus(dto.PaymentStatus) {
		return nil, workflow.Validation(op, "unknown payment status %q", dto.PaymentStatus)
	}

	return s.mutate(ctx, op, requestID, func(txCtx context.Context, req *model.PurchaseRequest, fx *txEffects) error {
		if req.Status != model.RequestApproved {
			return workflow.InvalidState(op, "request is %s, payment requires approval", req.Status)
		}

		now := s.opts.Now()
		previous := req.PaymentStatus
		req.PaymentStatus = dto.PaymentStatus
		if proof := strings.TrimSpace(dto.ProofRef); proof != "" {
			req.PaymentProofRef = proof
		}

		if dto.PaymentStatus == model.PaymentPaid && previous != model.PaymentPaid && req.ReceiptRequired && !req.ReceiptSubmitted {
			fx.emit(model.NewOutboxEvent(model.EventReceiptReminder, req.ID, model.RecipientCreator, creatorID(req),
				map[string]interface{}{"title": req.Title}, now))
		}
		fx.audit(model.NewAuditLog(principal, model.ActionUpdatePaymentStatus, req.ID.String(), req.Title,
			map[string]interface{}{"from": previous, "to": dto.PaymentStatus, "proof_ref": req.PaymentProofRef}, now))
		return nil
	})
}
