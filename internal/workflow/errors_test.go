package workflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := Conflict("SubmitDecision", "request already decided")
	wrapped := fmt.Errorf("handler: %w", err)

	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, "SubmitDecision: request already decided", err.Error())
}

func TestAsWorkflowError(t *testing.T) {
	assert.Nil(t, AsWorkflowError("op", nil))

	typed := NotFound("op", "missing")
	assert.Same(t, typed, AsWorkflowError("op", typed))

	raw := errors.New("connection refused")
	got := AsWorkflowError("op", raw)
	assert.True(t, errors.Is(got, ErrUnavailable))
	assert.True(t, errors.Is(got, raw))

	var we *Error
	assert.True(t, errors.As(got, &we))
	assert.True(t, we.Retryable())
}
