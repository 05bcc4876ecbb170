package workflow

import "procurement/internal/model"

// Confidence thresholds for proforma extraction.
const (
	ConfidenceSuccess = 0.7
	ConfidencePartial = 0.3
)

// ExtractionStatusFor maps a confidence score onto an extraction status.
func ExtractionStatusFor(confidence float64) string {
	switch {
	case confidence >= ConfidenceSuccess:
		return model.ExtractionSuccess
	case confidence >= ConfidencePartial:
		return model.ExtractionPartial
	default:
		return model.ExtractionFailed
	}
}
