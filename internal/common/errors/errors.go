// Package errors provides the standardized error taxonomy shared by the
// access workers and converts it to BPMN errors for the workflow engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Lookup errors
	ErrCodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
	ErrCodeAmbiguousUser     ErrorCode = "AMBIGUOUS_USER"
	ErrCodeUserLookupFailed  ErrorCode = "USER_LOOKUP_FAILED"
	ErrCodeDeviceQueryFailed ErrorCode = "DEVICE_QUERY_FAILED"

	// Push delivery errors
	ErrCodeInvalidToken          ErrorCode = "INVALID_TOKEN"
	ErrCodePushAuthConfiguration ErrorCode = "PUSH_AUTH_CONFIGURATION"
	ErrCodePushTimeout           ErrorCode = "PUSH_TIMEOUT"
	ErrCodePushDeliveryFailed    ErrorCode = "PUSH_DELIVERY_FAILED"

	// Job input errors
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another *StandardError by code so that errors.Is works against
// the exported sentinels below.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrUserNotFound      = &StandardError{Code: ErrCodeUserNotFound}
	ErrAmbiguousUser     = &StandardError{Code: ErrCodeAmbiguousUser}
	ErrUserLookupFailed  = &StandardError{Code: ErrCodeUserLookupFailed}
	ErrDeviceQueryFailed = &StandardError{Code: ErrCodeDeviceQueryFailed}
	ErrInvalidInput      = &StandardError{Code: ErrCodeInvalidInput}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewUserNotFoundError creates a non-retryable lookup error.
func NewUserNotFoundError(email string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserNotFound,
		Message:   "No active user matches the given identity",
		Details:   fmt.Sprintf("email: %s", email),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAmbiguousUserError is returned when more than one active user shares an email.
func NewAmbiguousUserError(email string, matches int) *StandardError {
	return &StandardError{
		Code:      ErrCodeAmbiguousUser,
		Message:   "More than one active user matches the given identity",
		Details:   fmt.Sprintf("email: %s, matches: %d", email, matches),
		Retryable: false,
		Metadata:  map[string]interface{}{"matches": matches},
		Timestamp: time.Now().UTC(),
	}
}

// NewUserLookupFailedError creates a retryable database error.
func NewUserLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserLookupFailed,
		Message:   "Database error during user lookup",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDeviceQueryFailedError creates a retryable database error.
func NewDeviceQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeviceQueryFailed,
		Message:   "Database error while listing active devices",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidTokenError marks a token that is never sent.
func NewInvalidTokenError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidToken,
		Message:   "Device token is invalid or a test placeholder",
		Details:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPushAuthConfigurationError reports a provider credential problem. It is
// aggregated per batch, so affected carries the number of devices hit.
func NewPushAuthConfigurationError(provider string, affected int) *StandardError {
	return &StandardError{
		Code:      ErrCodePushAuthConfiguration,
		Message:   fmt.Sprintf("Push provider '%s' rejected our credentials", provider),
		Details:   fmt.Sprintf("affectedDevices: %d", affected),
		Retryable: false,
		Metadata:  map[string]interface{}{"provider": provider, "affectedDevices": affected},
		Timestamp: time.Now().UTC(),
	}
}

// NewPushTimeoutError creates a retryable delivery timeout error.
func NewPushTimeoutError(provider string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodePushTimeout,
		Message:   fmt.Sprintf("Push provider '%s' timeout", provider),
		Details:   fmt.Sprintf("attempt exceeded %s", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPushDeliveryFailedError wraps any other provider failure.
func NewPushDeliveryFailedError(provider string, err error, retryable bool) *StandardError {
	return &StandardError{
		Code:      ErrCodePushDeliveryFailed,
		Message:   fmt.Sprintf("Push provider '%s' delivery failed", provider),
		Details:   err.Error(),
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidInputError creates a non-retryable job input error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Job variables failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeUserLookupFailed,
		ErrCodeDeviceQueryFailed,
		"EXTERNAL_SERVICE_ERROR":
		return 3

	case ErrCodePushTimeout,
		"TIMEOUT_ERROR":
		return 2

	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err into a *StandardError when possible.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "USER") || strings.Contains(codeStr, "DEVICE"):
		return "LOOKUP"
	case strings.Contains(codeStr, "PUSH") || strings.Contains(codeStr, "TOKEN"):
		return "PUSH"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
