package service

import (
	"context"
	"fmt"
	"strings"

	"procurement/internal/extraction"
	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// --- DTOs ---

// UploadDTO is an uploaded document read fully into memory by the handler.
type UploadDTO struct {
	FileName    string
	ContentType string
	Data        []byte
}

// UploadResult reports the request after the upload committed. Degraded means the
// extraction job could not be queued; the upload itself is kept.
type UploadResult struct {
	Request  *model.PurchaseRequest `json:"request"`
	Degraded bool                   `json:"degraded"`
	Warning  string                 `json:"warning,omitempty"`
}

type DocumentsView struct {
	Proforma *model.ProformaMetadata `json:"proforma,omitempty"`
	Receipt  *model.ReceiptMetadata  `json:"receipt,omitempty"`
}

// --- Interface ---

type DocumentService interface {
	UploadProforma(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto UploadDTO) (*UploadResult, error)
	UploadReceipt(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto UploadDTO) (*UploadResult, error)
	GetDocuments(ctx context.Context, requestID uuid.UUID, principal model.Principal) (*DocumentsView, error)
	extraction.ResultHandler
}

type documentService struct {
	core
	submitter DocumentSubmitter
}

func NewDocumentService(stores Stores, opts Options, outbox OutboxTrigger, submitter DocumentSubmitter, m *metrics.Metrics, logger *zap.Logger) DocumentService {
	return &documentService{core: newCore(stores, opts, outbox, m, logger), submitter: submitter}
}

// --- Implementation ---

// UploadProforma stores a pending proforma record and queues extraction after commit.
func (s *documentService) UploadProforma(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto UploadDTO) (*UploadResult, error) {
	const op = "upload proforma"

	name := documentName(dto, "proforma")
	req, err := s.mutate(ctx, op, requestID, func(txCtx context.Context, req *model.PurchaseRequest, fx *txEffects) error {
		if principal.ID != req.CreatedBy {
			return workflow.Forbidden(op, "only the creator can upload a proforma")
		}
		if workflow.IsLocked(req.Status) {
			return workflow.Conflict(op, "request already %s", req.Status)
		}
		if len(dto.Data) == 0 {
			return workflow.Validation(op, "document is empty")
		}

		now := s.opts.Now()
		if err := s.stores.Documents.SaveProforma(txCtx, model.NewProformaMetadata(req.ID, name, now)); err != nil {
			return err
		}
		fx.audit(model.NewAuditLog(principal, model.ActionUploadProforma, req.ID.String(), req.Title,
			map[string]interface{}{"document_name": name, "size": len(dto.Data)}, now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &UploadResult{Request: req}
	if err := s.submit(extraction.KindProforma, req.ID, name, dto); err != nil {
		result.Degraded, result.Warning = true, "proforma stored, extraction unavailable"
		s.failProforma(ctx, req.ID, name, err)
	}
	return result, nil
}

// UploadReceipt accepts the receipt of a paid request and queues its validation after commit.
func (s *documentService) UploadReceipt(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto UploadDTO) (*UploadResult, error) {
	const op = "upload receipt"

	name := documentName(dto, "receipt")
	req, err := s.mutate(ctx, op, requestID, func(txCtx context.Context, req *model.PurchaseRequest, fx *txEffects) error {
		if principal.ID != req.CreatedBy {
			return workflow.Forbidden(op, "only the creator can upload a receipt")
		}
		if req.PaymentStatus != model.PaymentPaid {
			return workflow.InvalidState(op, "payment status is %s, receipt requires paid", req.PaymentStatus)
		}
		if _, err := s.stores.Orders.FindByRequestID(txCtx, req.ID); err != nil {
			if repository.IsNotFound(err) {
				return workflow.InvalidState(op, "request has no purchase order")
			}
			return err
		}
		if len(dto.Data) == 0 {
			return workflow.Validation(op, "document is empty")
		}

		now := s.opts.Now()
		req.ReceiptSubmitted = true
		if err := s.stores.Documents.SaveReceipt(txCtx, model.NewReceiptMetadata(req.ID, name, now)); err != nil {
			return err
		}
		fx.audit(model.NewAuditLog(principal, model.ActionUploadReceipt, req.ID.String(), req.Title,
			map[string]interface{}{"document_name": name, "size": len(dto.Data)}, now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &UploadResult{Request: req}
	if err := s.submit(extraction.KindReceipt, req.ID, name, dto); err != nil {
		result.Degraded, result.Warning = true, "receipt stored, validation unavailable"
		s.failReceipt(ctx, req.ID, name, err)
	}
	return result, nil
}

func (s *documentService) GetDocuments(ctx context.Context, requestID uuid.UUID, principal model.Principal) (*DocumentsView, error) {
	const op = "get documents"

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

	view := &DocumentsView{}
	if meta, err := s.stores.Documents.FindProforma(ctx, requestID); err == nil {
		view.Proforma = meta
	} else if !repository.IsNotFound(err) {
		return nil, s.classify(op, err)
	}
	if meta, err := s.stores.Documents.FindReceipt(ctx, requestID); err == nil {
		view.Receipt = meta
	} else if !repository.IsNotFound(err) {
		return nil, s.classify(op, err)
	}
	return view, nil
}

// HandleExtraction stores the final outcome of an extraction job.
func (s *documentService) HandleExtraction(ctx context.Context, outcome extraction.Outcome) error {
	switch outcome.Kind {
	case extraction.KindProforma:
		return s.ApplyProformaExtraction(ctx, outcome)
	case extraction.KindReceipt:
		return s.ApplyReceiptExtraction(ctx, outcome)
	default:
		return fmt.Errorf("unknown extraction kind %q", outcome.Kind)
	}
}

// ApplyProformaExtraction records extracted proforma fields. The status follows the confidence score.
func (s *documentService) ApplyProformaExtraction(ctx context.Context, outcome extraction.Outcome) error {
	const op = "apply proforma extraction"

	return s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		meta, err := s.stores.Documents.FindProforma(txCtx, outcome.RequestID)
		if err != nil {
			if repository.IsNotFound(err) {
				s.logger.Info("Proforma record gone, dropping extraction", zap.String("request_id", outcome.RequestID.String()))
				return nil
			}
			return s.classify(op, err)
		}

		meta.Attempts = outcome.Attempts
		meta.UpdatedAt = s.opts.Now()
		if outcome.Err != nil {
			meta.ExtractionStatus = model.ExtractionFailed
			meta.ErrorMessage = outcome.Err.Error()
			return s.stores.Documents.SaveProforma(txCtx, meta)
		}

		res := outcome.Result
		meta.Confidence = res.Confidence
		meta.VendorName = strings.TrimSpace(res.VendorName)
		meta.VendorAddress = strings.TrimSpace(res.VendorAddress)
		meta.TotalAmount = res.TotalAmount
		meta.Currency = res.Currency
		meta.PaymentTerms = res.PaymentTerms
		meta.Items = datatypes.NewJSONType(nonNilItems(res.Items))
		meta.ExtractionStatus = workflow.ExtractionStatusFor(res.Confidence)
		meta.ErrorMessage = ""
		if meta.ExtractionStatus == model.ExtractionFailed {
			meta.ErrorMessage = fmt.Sprintf("low confidence %.2f", res.Confidence)
		}
		return s.stores.Documents.SaveProforma(txCtx, meta)
	})
}

// ApplyReceiptExtraction validates an extracted receipt against the purchase order snapshot.
func (s *documentService) ApplyReceiptExtraction(ctx context.Context, outcome extraction.Outcome) error {
	const op = "apply receipt extraction"

	return s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		meta, err := s.stores.Documents.FindReceipt(txCtx, outcome.RequestID)
		if err != nil {
			if repository.IsNotFound(err) {
				s.logger.Info("Receipt record gone, dropping extraction", zap.String("request_id", outcome.RequestID.String()))
				return nil
			}
			return s.classify(op, err)
		}
		meta.UpdatedAt = s.opts.Now()
		if outcome.Err != nil {
			meta.ValidationStatus = model.ReceiptFailed
			meta.ErrorMessage = outcome.Err.Error()
			return s.stores.Documents.SaveReceipt(txCtx, meta)
		}

		po, err := s.stores.Orders.FindByRequestID(txCtx, outcome.RequestID)
		if err != nil {
			return s.classify(op, err)
		}

		res := outcome.Result
		status, found := workflow.CompareReceipt(po, workflow.ReceiptData{
			VendorName:  res.VendorName,
			TotalAmount: res.TotalAmount,
			Items:       res.Items,
		}, s.opts.PlaceholderVendor)

		meta.ValidationStatus = status
		meta.Confidence = res.Confidence
		meta.VendorName = strings.TrimSpace(res.VendorName)
		meta.TotalAmount = res.TotalAmount
		meta.Currency = res.Currency
		meta.Items = datatypes.NewJSONType(nonNilItems(res.Items))
		if found == nil {
			found = []model.Discrepancy{}
		}
		meta.Discrepancies = datatypes.NewJSONType(found)
		meta.ErrorMessage = ""

		if status == model.ReceiptDiscrepancy {
			s.logger.Warn("Receipt does not match purchase order",
				zap.String("request_id", outcome.RequestID.String()),
				zap.String("po_number", po.PONumber),
				zap.Int("discrepancies", len(found)))
		}
		return s.stores.Documents.SaveReceipt(txCtx, meta)
	})
}

func (s *documentService) submit(kind extraction.Kind, requestID uuid.UUID, name string, dto UploadDTO) error {
	if s.submitter == nil {
		return workflow.DependencyFailure("submit extraction", extraction.ErrNotRunning)
	}
	err := s.submitter.Submit(extraction.Document{
		RequestID:   requestID,
		Kind:        kind,
		Name:        name,
		ContentType: dto.ContentType,
		Data:        dto.Data,
	})
	if err != nil {
		err = workflow.DependencyFailure("submit extraction", err)
		s.logger.Error("Failed to queue extraction",
			zap.String("request_id", requestID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err))
		s.metrics.ExtractionJob(string(kind), "rejected")
	}
	return err
}

func (s *documentService) failProforma(ctx context.Context, requestID uuid.UUID, name string, cause error) {
	meta := model.NewProformaMetadata(requestID, name, s.opts.Now())
	meta.ExtractionStatus = model.ExtractionFailed
	meta.ErrorMessage = cause.Error()
	if err := s.stores.Documents.SaveProforma(ctx, meta); err != nil {
		s.logger.Error("Failed to mark proforma extraction failed", zap.String("request_id", requestID.String()), zap.Error(err))
	}
}

func (s *documentService) failReceipt(ctx context.Context, requestID uuid.UUID, name string, cause error) {
	meta := model.NewReceiptMetadata(requestID, name, s.opts.Now())
	meta.ValidationStatus = model.ReceiptFailed
	meta.ErrorMessage = cause.Error()
	if err := s.stores.Documents.SaveReceipt(ctx, meta); err != nil {
		s.logger.Error("Failed to mark receipt validation failed", zap.String("request_id", requestID.String()), zap.Error(err))
	}
}

func documentName(dto UploadDTO, fallback string) string {
	if name := strings.TrimSpace(dto.FileName); name != "" {
		return name
	}
	return fallback
}

func nonNilItems(items []model.ExtractedItem) []model.ExtractedItem {
	if items == nil {
		return []model.ExtractedItem{}
	}
	return items
}
