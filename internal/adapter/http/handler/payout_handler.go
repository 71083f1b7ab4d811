package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PayoutHandler handles worker withdrawals.
type PayoutHandler struct {
	payoutSvc ports.PayoutService
	log       zerolog.Logger
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payoutSvc ports.PayoutService, log zerolog.Logger) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc, log: log}
}

// RequestPayout handles POST /api/v1/payouts. The debit is committed first,
// then the payout is submitted. If the gateway is unreachable the request
// stays pending and 202 is returned; the resubmission job or an explicit
// submit retries it under the same external id.
func (h *PayoutHandler) RequestPayout(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	payout, err := h.payoutSvc.RequestPayout(c.Request.Context(), ports.PayoutInput{
		WorkerID:  claims.Subject,
		Amount:    req.Amount,
		RequestID: req.RequestID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if payout.Status.IsTerminal() || payout.Attempts > 0 {
		// replay of an earlier request
		response.OK(c, payout)
		return
	}

	submitted, err := h.payoutSvc.Submit(c.Request.Context(), payout.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("payout_id", payout.ID.String()).Msg("payout accepted, submission deferred")
		response.Accepted(c, payout)
		return
	}
	response.Created(c, submitted)
}

// GetPayout handles GET /api/v1/payouts/:id.
func (h *PayoutHandler) GetPayout(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	payout, err := h.payoutSvc.Get(c.Request.Context(), id, claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

// Submit handles POST /api/v1/payouts/:id/submit.
func (h *PayoutHandler) Submit(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if _, err := h.payoutSvc.Get(c.Request.Context(), id, claims.Subject); err != nil {
		response.Error(c, err)
		return
	}
	payout, err := h.payoutSvc.Submit(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

// Cancel handles POST /api/v1/payouts/:id/cancel.
func (h *PayoutHandler) Cancel(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	payout, err := h.payoutSvc.Cancel(c.Request.Context(), id, claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}
