package handler

import (
	"errors"
	"io"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler handles booking checkout and earnings release.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Checkout handles POST /api/v1/bookings/:id/checkout. The body is optional;
// a retry key may also come in the Idempotency-Key header.
func (h *SettlementHandler) Checkout(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	settlement, err := h.settlementSvc.Checkout(c.Request.Context(), ports.CheckoutRequest{
		BookingID: bookingID,
		ActorID:   claims.Subject,
		RequestID: requestID(c, req.RequestID),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, settlement)
}

// Release handles POST /api/v1/bookings/:id/release: the business confirms
// the work and the earning is released before the hold window ends.
func (h *SettlementHandler) Release(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	settlement, err := h.settlementSvc.ReleaseNow(c.Request.Context(), bookingID, claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settlement)
}

// GetSettlement handles GET /api/v1/bookings/:id/settlement for either party
// to the booking; admins see every booking.
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	actorID := claims.Subject
	if claims.Role == ports.RoleAdmin {
		actorID = uuid.Nil
	}
	settlement, err := h.settlementSvc.GetSettlement(c.Request.Context(), bookingID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settlement)
}
