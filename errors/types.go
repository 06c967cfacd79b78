package errors

import (
	"fmt"
)

// ErrorCode categorizes failures so callers can route them: queue and retry,
// surface to the user, or abort.
type ErrorCode string

const (
	// ErrCodeValidation indicates input validation errors (malformed tags,
	// bad lookup keys) caught before any network call.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNetwork indicates transient network or gateway errors.
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeStorage indicates local database errors.
	ErrCodeStorage ErrorCode = "STORAGE"

	// ErrCodePayment indicates funding and balance failures.
	ErrCodePayment ErrorCode = "PAYMENT"

	// ErrCodeCrypto indicates encryption or authentication failures on a
	// single record.
	ErrCodeCrypto ErrorCode = "CRYPTO"

	// ErrCodeGateway indicates a content gateway returned a hard failure.
	ErrCodeGateway ErrorCode = "GATEWAY"

	// ErrCodeTimeout indicates a policy timeout elapsed.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeInternal indicates internal engine errors.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// SyncError is the engine's typed error. It carries a code for routing, a
// severity for logging, and optional structured context.
type SyncError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewSyncError creates a new SyncError with the default severity for code.
func NewSyncError(code ErrorCode, message string, cause error) *SyncError {
	return &SyncError{
		Code:     code,
		Message:  message,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity overrides the default severity.
func (e *SyncError) WithSeverity(severity Severity) *SyncError {
	e.Severity = severity
	return e
}

// IsRetryable returns true if the failure class is worth retrying. Payment
// failures are not retryable here; the funding policy owns their cadence.
func (e *SyncError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeGateway, ErrCodeTimeout:
		return true
	case ErrCodeStorage:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal, ErrCodeStorage:
		return SeverityCritical
	case ErrCodePayment:
		return SeverityHigh
	case ErrCodeCrypto:
		return SeverityMedium
	case ErrCodeNetwork, ErrCodeGateway, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeValidation:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Common error constructors.

// NewValidationError creates a validation error.
func NewValidationError(message string) *SyncError {
	return NewSyncError(ErrCodeValidation, message, nil)
}

// NewNetworkError creates a network error.
func NewNetworkError(message string, cause error) *SyncError {
	return NewSyncError(ErrCodeNetwork, message, cause)
}

// NewStorageError creates a storage error.
func NewStorageError(message string, cause error) *SyncError {
	return NewSyncError(ErrCodeStorage, message, cause)
}

// NewPaymentError creates a payment error.
func NewPaymentError(message string, cause error) *SyncError {
	return NewSyncError(ErrCodePayment, message, cause)
}

// NewCryptoError creates a crypto error.
func NewCryptoError(message string, cause error) *SyncError {
	return NewSyncError(ErrCodeCrypto, message, cause)
}

// NewGatewayError creates a gateway error.
func NewGatewayError(message string, cause error) *SyncError {
	return NewSyncError(ErrCodeGateway, message, cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string) *SyncError {
	return NewSyncError(ErrCodeTimeout, message, nil)
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *SyncError {
	return NewSyncError(ErrCodeInternal, message, cause)
}
