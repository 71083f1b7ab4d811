package domain

import "strings"

// GatewayStatus is the payment gateway's status vocabulary.
type GatewayStatus string

const (
	GatewayStatusPending   GatewayStatus = "PENDING"
	GatewayStatusCompleted GatewayStatus = "COMPLETED"
	GatewayStatusSucceeded GatewayStatus = "SUCCEEDED"
	GatewayStatusFailed    GatewayStatus = "FAILED"
	GatewayStatusExpired   GatewayStatus = "EXPIRED"
)

// gatewayStatusTable is exhaustive over the known vocabulary. Anything not
// listed maps to pending and is ignored by the reconciler.
var gatewayStatusTable = map[GatewayStatus]TransactionStatus{
	GatewayStatusPending:   TransactionStatusPending,
	GatewayStatusCompleted: TransactionStatusSuccess,
	GatewayStatusSucceeded: TransactionStatusSuccess,
	GatewayStatusFailed:    TransactionStatusFailed,
	GatewayStatusExpired:   TransactionStatusExpired,
}

// MapGatewayStatus translates a raw gateway status. The bool is false for
// unrecognized values, which always map to pending.
func MapGatewayStatus(raw string) (TransactionStatus, bool) {
	status, ok := gatewayStatusTable[GatewayStatus(strings.ToUpper(strings.TrimSpace(raw)))]
	if !ok {
		return TransactionStatusPending, false
	}
	return status, true
}
