package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncError(t *testing.T) {
	t.Run("error string carries code and severity", func(t *testing.T) {
		err := NewNetworkError("ledger submit failed", nil)
		assert.Contains(t, err.Error(), "NETWORK")
		assert.Contains(t, err.Error(), "MEDIUM")
		assert.Contains(t, err.Error(), "ledger submit failed")
	})

	t.Run("unwrap exposes the cause", func(t *testing.T) {
		cause := stderrors.New("connection refused")
		err := NewNetworkError("ledger submit failed", cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("default severities per code", func(t *testing.T) {
		assert.Equal(t, SeverityCritical, NewInternalError("x", nil).Severity)
		assert.Equal(t, SeverityCritical, NewStorageError("x", nil).Severity)
		assert.Equal(t, SeverityHigh, NewPaymentError("x", nil).Severity)
		assert.Equal(t, SeverityMedium, NewCryptoError("x", nil).Severity)
		assert.Equal(t, SeverityLow, NewValidationError("x").Severity)
	})

	t.Run("with context and severity override", func(t *testing.T) {
		err := NewGatewayError("fetch failed", nil).
			WithContext("txid", "tx1").
			WithSeverity(SeverityHigh)
		assert.Equal(t, "tx1", err.Context["txid"])
		assert.Equal(t, SeverityHigh, err.Severity)
	})
}

func TestRetryability(t *testing.T) {
	cases := []struct {
		name string
		err  *SyncError
		want bool
	}{
		{"network retries", NewNetworkError("x", nil), true},
		{"gateway retries", NewGatewayError("x", nil), true},
		{"timeout retries", NewTimeoutError("x"), true},
		{"payment does not retry", NewPaymentError("x", nil), false},
		{"validation does not retry", NewValidationError("x"), false},
		{"crypto does not retry", NewCryptoError("x", nil), false},
		{"critical storage does not retry", NewStorageError("x", nil), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.IsRetryable())
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}

	t.Run("storage retries below critical severity", func(t *testing.T) {
		err := NewStorageError("x", nil).WithSeverity(SeverityMedium)
		assert.True(t, err.IsRetryable())
	})

	t.Run("untyped errors do not retry", func(t *testing.T) {
		assert.False(t, IsRetryable(stderrors.New("whatever")))
		assert.False(t, IsRetryable(nil))
	})
}

func TestHelpers(t *testing.T) {
	t.Run("wrap preserves the chain", func(t *testing.T) {
		inner := NewNetworkError("submit failed", nil)
		wrapped := Wrap(inner, "cycle aborted")
		require.Error(t, wrapped)
		assert.True(t, IsSyncError(wrapped, ErrCodeNetwork))
		assert.False(t, IsSyncError(wrapped, ErrCodePayment))
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "x"))
		assert.NoError(t, Wrapf(nil, "x %d", 1))
	})

	t.Run("severity of untyped errors defaults high", func(t *testing.T) {
		assert.Equal(t, SeverityHigh, GetSeverity(stderrors.New("x")))
		assert.Equal(t, SeverityInfo, GetSeverity(nil))
	})
}
