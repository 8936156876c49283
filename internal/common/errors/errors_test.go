package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewUserNotFoundError("a@b.c"))

	assert.True(t, stderrors.Is(err, ErrUserNotFound))
	assert.False(t, stderrors.Is(err, ErrUserLookupFailed))
}

func TestStandardError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewUserLookupFailedError(cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name            string
		err             *StandardError
		expectedRetries int
	}{
		{"not found never retried", NewUserNotFoundError("x@y.z"), 0},
		{"lookup failure retried", NewUserLookupFailedError(stderrors.New("boom")), 3},
		{"timeout partially retried", NewPushTimeoutError("fcm", 0), 2},
		{"auth configuration never retried", NewPushAuthConfigurationError("fcm", 4), 0},
		{"invalid input never retried", NewInvalidInputError("email missing"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.expectedRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ToErrorVariables()["originalErrorCode"])
		})
	}
}

func TestNormalize(t *testing.T) {
	std := Normalize(fmt.Errorf("wrapped: %w", NewInvalidTokenError("sentinel")))
	assert.Equal(t, ErrCodeInvalidToken, std.Code)

	plain := Normalize(stderrors.New("surprise"))
	require.NotNil(t, plain)
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.False(t, plain.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeUserNotFound))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeDeviceQueryFailed))
	assert.Equal(t, "PUSH", GetErrorCategory(ErrCodePushAuthConfiguration))
	assert.Equal(t, "PUSH", GetErrorCategory(ErrCodeInvalidToken))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}
