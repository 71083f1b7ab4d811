package handler

import (
	"net/http"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CallbackHandler receives payment gateway notifications.
type CallbackHandler struct {
	reconciler ports.WebhookReconciler
	log        zerolog.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(reconciler ports.WebhookReconciler, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{reconciler: reconciler, log: log}
}

// HandlePayment handles POST /webhooks/payment. The request has already
// passed CallbackAuth. Replays get the same 200 body as the first delivery.
func (h *CallbackHandler) HandlePayment(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.reconciler.Reconcile(c.Request.Context(), ports.GatewayCallback{
		ExternalID:  req.ExternalID,
		ProviderID:  req.ID,
		Status:      req.Status,
		Amount:      req.Amount,
		CompletedAt: req.CompletedAt,
		SourceIP:    c.ClientIP(),
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindConsistency) {
			h.log.Error().Err(err).Str("external_id", req.ExternalID).Bool("alert", true).Msg("callback rejected as inconsistent")
		}
		response.Error(c, err)
		return
	}

	// The gateway expects the bare result, not the API envelope.
	c.JSON(http.StatusOK, result)
}
