package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesCode(t *testing.T) {
	err := ErrDeliveryFailed.WithCause(fmt.Errorf("dial tcp: refused")).WithDetail("status", 503)

	assert.True(t, Is(err, ErrDeliveryFailed))
	assert.False(t, Is(err, ErrTimeout))
	assert.Contains(t, err.Error(), "DELIVERY_FAILED")
	assert.Contains(t, err.Error(), "refused")
}

func TestError_WithDetailDoesNotShareMap(t *testing.T) {
	a := ErrValidation.WithDetail("field", "a")
	b := a.WithDetail("field", "b")

	assert.Equal(t, "a", a.Details["field"])
	assert.Equal(t, "b", b.Details["field"])
	assert.Empty(t, ErrValidation.Details)
}

func TestError_Retryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"delivery failure", ErrDeliveryFailed, true},
		{"timeout", ErrTimeout, true},
		{"validation", ErrValidation, false},
		{"forced fatal", ErrDeliveryFailed.AsFatal(), false},
		{"forced retryable", ErrValidation.AsRetryable(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, !tt.retryable, tt.err.IsFatal())
		})
	}
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrValidation.WithDetail("field", "events"))
	assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode)
	assert.Equal(t, "events", resp.Details["field"])

	plain := ToErrorResponse(fmt.Errorf("boom"))
	assert.Equal(t, "INTERNAL_ERROR", plain.ErrorCode)

	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(fmt.Errorf("x")))
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("nil map write")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil map write")
	assert.NotEmpty(t, StackTrace(err))

	var appErr *Error
	require.True(t, As(err, &appErr))
	assert.True(t, appErr.IsFatal())
}
