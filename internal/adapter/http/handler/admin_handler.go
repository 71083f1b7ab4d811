package handler

import (
	"strconv"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves ledger audits and the manual-review queue.
type AdminHandler struct {
	walletSvc ports.WalletService
	incidents ports.IncidentRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(walletSvc ports.WalletService, incidents ports.IncidentRepository) *AdminHandler {
	return &AdminHandler{walletSvc: walletSvc, incidents: incidents}
}

// ReconcileWallet handles GET /api/v1/admin/wallets/:id/reconcile. A drifted
// wallet is reported as an incident and returned with consistent=false.
func (h *AdminHandler) ReconcileWallet(c *gin.Context) {
	walletID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	audit, err := h.walletSvc.Reconcile(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, audit)
}

// ListIncidents handles GET /api/v1/admin/incidents.
func (h *AdminHandler) ListIncidents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		response.Error(c, apperror.Validation("limit must be between 1 and 500"))
		return
	}

	incidents, err := h.incidents.ListOpen(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if incidents == nil {
		incidents = []domain.ConsistencyIncident{}
	}
	response.OK(c, incidents)
}
