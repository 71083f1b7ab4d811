package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New(KindInsufficientFunds, "FUND_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[FUND_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap(KindInternal, "SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(KindInternal, "SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New(KindValidation, "VAL_000", "test", http.StatusBadRequest).Unwrap())
}

func TestIsKind(t *testing.T) {
	wrapped := fmt.Errorf("settle: %w", ErrContradictoryTransition("success", "failed"))

	assert.True(t, IsKind(wrapped, KindConsistency))
	assert.False(t, IsKind(wrapped, KindValidation))
	assert.False(t, IsKind(errors.New("plain"), KindConsistency))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "CONS_001", appErr.Code)
}

func TestTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		kind       Kind
		httpStatus int
	}{
		{"TopupBelowMinimum", ErrTopupBelowMinimum(500000), "VAL_001", KindValidation, 400},
		{"PayoutBelowMinimum", ErrPayoutBelowMinimum(100000), "VAL_002", KindValidation, 400},
		{"AmountAboveMaximum", ErrAmountAboveMaximum(100000000), "VAL_003", KindValidation, 400},
		{"InvalidAmount", ErrInvalidAmount(), "VAL_004", KindValidation, 400},
		{"BankAccountRequired", ErrBankAccountRequired(), "VAL_005", KindValidation, 400},
		{"InvalidBookingState", ErrInvalidBookingState("completed"), "VAL_006", KindValidation, 400},
		{"InvalidCallbackToken", ErrInvalidCallbackToken(), "AUTH_001", KindAuthentication, 401},
		{"InvalidSignature", ErrInvalidSignature(), "AUTH_002", KindAuthentication, 401},
		{"Forbidden", ErrForbidden(), "AUTH_004", KindAuthorization, 403},
		{"InsufficientFunds", ErrInsufficientFunds(), "FUND_001", KindInsufficientFunds, 402},
		{"NotFound", ErrNotFound("Wallet"), "NF_001", KindNotFound, 404},
		{"Contradictory", ErrContradictoryTransition("success", "failed"), "CONS_001", KindConsistency, 409},
		{"AmountMismatch", ErrAmountMismatch(10, 11), "CONS_002", KindConsistency, 409},
		{"LedgerMismatch", ErrLedgerMismatch("w-1"), "CONS_003", KindConsistency, 500},
		{"ExternalTimeout", ErrExternalTimeout(nil), "EXT_001", KindExternalTimeout, 504},
		{"ExternalFailure", ErrExternalFailure(nil), "EXT_002", KindExternal, 502},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", KindRateLimited, 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	encErr := ErrEncryptionFailure(inner)
	assert.Equal(t, "SYS_003", encErr.Code)
	assert.Equal(t, 500, encErr.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Booking")
	assert.Contains(t, err.Message, "Booking")
}
