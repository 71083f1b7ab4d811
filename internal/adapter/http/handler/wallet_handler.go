package handler

import (
	"math"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletHandler handles wallet reads and top-ups.
type WalletHandler struct {
	walletSvc ports.WalletService
	topupSvc  ports.TopupService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, topupSvc ports.TopupService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, topupSvc: topupSvc}
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	owner, err := callerOwner(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// GetSummary handles GET /api/v1/wallet/summary.
func (h *WalletHandler) GetSummary(c *gin.Context) {
	owner, err := callerOwner(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.walletSvc.GetSummary(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	owner, err := callerOwner(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > maxPageSize {
		q.PageSize = defaultPageSize
	}

	params := ports.TransactionListParams{
		Owner:    owner,
		From:     q.From,
		To:       q.To,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Status != "" {
		status := domain.TransactionStatus(q.Status)
		params.Status = &status
	}
	if q.Type != "" {
		txType := domain.TransactionType(q.Type)
		params.Type = &txType
	}

	txns, total, err := h.walletSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PageSize))),
	})
}

// Topup handles POST /api/v1/topups.
func (h *WalletHandler) Topup(c *gin.Context) {
	claims, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	topup, err := h.topupSvc.Initiate(c.Request.Context(), ports.TopupInput{
		BusinessID: claims.Subject,
		Amount:     req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTopupResponse(topup))
}

func toTopupResponse(p *domain.PaymentTransaction) dto.TopupResponse {
	return dto.TopupResponse{
		ID:           p.ID.String(),
		ExternalID:   p.ExternalID,
		Amount:       p.Amount,
		FeeAmount:    p.FeeAmount,
		TotalCharged: p.TotalCharged(),
		Status:       string(p.Status),
		PaymentURL:   p.PaymentURL,
		ExpiresAt:    formatTimePtr(p.ExpiresAt),
	}
}

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:          tx.ID.String(),
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		FeeAmount:   tx.FeeAmount,
		Status:      string(tx.Status),
		RelatedType: tx.RelatedType,
		Description: tx.Description,
		CreatedAt:   formatTime(tx.CreatedAt),
		CompletedAt: formatTimePtr(tx.CompletedAt),
	}
	if tx.RelatedID != nil {
		s := tx.RelatedID.String()
		resp.RelatedID = &s
	}
	return resp
}
