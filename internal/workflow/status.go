package workflow

import "procurement/internal/model"

// IsLocked reports a terminal request status. Locked requests accept no further decisions or edits.
func IsLocked(status string) bool {
	return status == model.RequestApproved || status == model.RequestRejected
}

// IsDecisionAction reports whether action is a valid decision.
func IsDecisionAction(action string) bool {
	return action == model.ActionApproved || action == model.ActionRejected
}

// IsPaymentStatus reports whether s is a defined payment state.
func IsPaymentStatus(s string) bool {
	switch s {
	case model.PaymentPending, model.PaymentPaid, model.PaymentPartiallyPaid, model.PaymentOnHold:
		return true
	}
	return false
}

// MaxCommentLength bounds free-text decision comments.
const MaxCommentLength = 2000
