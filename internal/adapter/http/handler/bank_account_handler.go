package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// BankAccountHandler manages worker payout destinations.
type BankAccountHandler struct {
	bankAccountSvc ports.BankAccountService
}

// NewBankAccountHandler creates a new BankAccountHandler.
func NewBankAccountHandler(bankAccountSvc ports.BankAccountService) *BankAccountHandler {
	return &BankAccountHandler{bankAccountSvc: bankAccountSvc}
}

// Register handles POST /api/v1/bank-accounts. The new account becomes the default.
func (h *BankAccountHandler) Register(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.BankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	account, err := h.bankAccountSvc.Register(c.Request.Context(), ports.RegisterBankAccountInput{
		WorkerID:      claims.Subject,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountHolder: req.AccountHolder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, account)
}

// GetDefault handles GET /api/v1/bank-accounts/default.
func (h *BankAccountHandler) GetDefault(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.bankAccountSvc.GetDefault(c.Request.Context(), claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, account)
}
