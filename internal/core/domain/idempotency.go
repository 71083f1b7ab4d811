package domain

import (
	"github.com/google/uuid"
)

// Idempotency scopes for client-supplied request ids.
const (
	IdempotencyScopePayout   = "payout"
	IdempotencyScopeCheckout = "checkout"
	IdempotencyScopeCallback = "callback"
)

// BuildIdempotencyKey constructs the standard key format "scope:owner:request".
func BuildIdempotencyKey(scope string, ownerID uuid.UUID, requestID string) string {
	return scope + ":" + ownerID.String() + ":" + requestID
}

// BuildCallbackKey keys a processed gateway callback by external id and mapped status.
func BuildCallbackKey(externalID string, status TransactionStatus) string {
	return IdempotencyScopeCallback + ":" + externalID + ":" + string(status)
}
