package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsSyncError checks if an error is a SyncError with the given code.
func IsSyncError(err error, code ErrorCode) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code == code
	}
	return false
}

// IsRetryable checks if an error should be retried by the caller's queue.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.IsRetryable()
	}
	return false
}

// GetSeverity returns the severity of an error, defaulting to HIGH for
// untyped errors so they are not silently downgraded.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Severity
	}
	return SeverityHigh
}
