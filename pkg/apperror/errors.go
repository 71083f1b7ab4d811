package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError so callers can branch without matching codes.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthentication    Kind = "authentication"
	KindAuthorization     Kind = "authorization"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindConsistency       Kind = "consistency"
	KindExternalTimeout   Kind = "external_timeout"
	KindExternal          Kind = "external"
	KindRateLimited       Kind = "rate_limited"
	KindInternal          Kind = "internal"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Kind       Kind   `json:"-"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// As extracts the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// ---- Validation (VAL) ----

func ErrTopupBelowMinimum(min int64) *AppError {
	return New(KindValidation, "VAL_001", fmt.Sprintf("Top-up amount must be at least %d", min), http.StatusBadRequest)
}

func ErrPayoutBelowMinimum(min int64) *AppError {
	return New(KindValidation, "VAL_002", fmt.Sprintf("Payout amount must be at least %d", min), http.StatusBadRequest)
}

func ErrAmountAboveMaximum(max int64) *AppError {
	return New(KindValidation, "VAL_003", fmt.Sprintf("Amount must not exceed %d", max), http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New(KindValidation, "VAL_004", "Amount must be positive", http.StatusBadRequest)
}

func ErrBankAccountRequired() *AppError {
	return New(KindValidation, "VAL_005", "A default bank account is required for payouts", http.StatusBadRequest)
}

func ErrInvalidBookingState(status string) *AppError {
	return New(KindValidation, "VAL_006", fmt.Sprintf("Booking is %s, expected in_progress", status), http.StatusBadRequest)
}

func ErrInvalidPayoutState(status string) *AppError {
	return New(KindValidation, "VAL_007", fmt.Sprintf("Payout is %s and cannot be changed", status), http.StatusBadRequest)
}

func ErrWalletInactive() *AppError {
	return New(KindValidation, "VAL_008", "Wallet is inactive", http.StatusBadRequest)
}

// Validation returns a generic validation error.
func Validation(message string) *AppError {
	return New(KindValidation, "VAL_000", message, http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCallbackToken() *AppError {
	return New(KindAuthentication, "AUTH_001", "Invalid callback token", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New(KindAuthentication, "AUTH_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(KindAuthentication, "AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(KindAuthorization, "AUTH_004", "Not allowed to access this resource", http.StatusForbidden)
}

// ---- Funds (FUND) ----

func ErrInsufficientFunds() *AppError {
	return New(KindInsufficientFunds, "FUND_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

// ---- Lookup (NF) ----

func ErrNotFound(entity string) *AppError {
	return New(KindNotFound, "NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Consistency (CONS) ----

// ErrContradictoryTransition is raised when a terminal record receives a different terminal status.
func ErrContradictoryTransition(current, target string) *AppError {
	return New(KindConsistency, "CONS_001",
		fmt.Sprintf("Contradictory transition from %s to %s", current, target), http.StatusConflict)
}

func ErrAmountMismatch(expected, got int64) *AppError {
	return New(KindConsistency, "CONS_002",
		fmt.Sprintf("Callback amount %d does not match recorded amount %d", got, expected), http.StatusConflict)
}

func ErrLedgerMismatch(walletID string) *AppError {
	return New(KindConsistency, "CONS_003",
		fmt.Sprintf("Wallet %s balance does not match its transaction log", walletID), http.StatusInternalServerError)
}

func ErrNegativeBalance() *AppError {
	return New(KindConsistency, "CONS_004", "Balance change would make the wallet negative", http.StatusConflict)
}

// ---- External (EXT) ----

func ErrExternalTimeout(err error) *AppError {
	return Wrap(KindExternalTimeout, "EXT_001", "Payment gateway timed out, retry with the same request id", http.StatusGatewayTimeout, err)
}

func ErrExternalFailure(err error) *AppError {
	return Wrap(KindExternal, "EXT_002", "Payment gateway request failed", http.StatusBadGateway, err)
}

// ---- Conflict ----

func ErrDuplicateRequest() *AppError {
	return New(KindConflict, "REQ_001", "Request is already being processed", http.StatusConflict)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimited, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(KindInternal, "SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap(KindInternal, "SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
