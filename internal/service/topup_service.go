package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultInvoiceTTL = 24 * time.Hour

// TopupServiceImpl implements ports.TopupService.
type TopupServiceImpl struct {
	transactor ports.Transactor
	ledger     *Ledger
	fees       *FeeCalculator
	topups     ports.PaymentTransactionRepository
	gateway    ports.PaymentGateway
	audit      ports.AuditService
	provider   string
	invoiceTTL time.Duration
	log        zerolog.Logger
}

// NewTopupService creates a new TopupServiceImpl.
func NewTopupService(
	transactor ports.Transactor,
	ledger *Ledger,
	fees *FeeCalculator,
	topups ports.PaymentTransactionRepository,
	gateway ports.PaymentGateway,
	audit ports.AuditService,
	provider string,
	invoiceTTL time.Duration,
	log zerolog.Logger,
) *TopupServiceImpl {
	if invoiceTTL <= 0 {
		invoiceTTL = defaultInvoiceTTL
	}
	return &TopupServiceImpl{
		transactor: transactor,
		ledger:     ledger,
		fees:       fees,
		topups:     topups,
		gateway:    gateway,
		audit:      audit,
		provider:   provider,
		invoiceTTL: invoiceTTL,
		log:        log,
	}
}

// Initiate records a pending top-up and asks the gateway for a payment page.
// The wallet is only credited when the gateway's callback reports success.
func (s *TopupServiceImpl) Initiate(ctx context.Context, in ports.TopupInput) (*domain.PaymentTransaction, error) {
	if in.BusinessID == uuid.Nil {
		return nil, apperror.Validation("business is required")
	}
	quote, err := s.fees.TopupFee(in.Amount)
	if err != nil {
		return nil, err
	}

	var topup *domain.PaymentTransaction
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		wallet, err := s.ledger.Wallet(ctx, domain.Owner{Type: domain.OwnerTypeBusiness, ID: in.BusinessID})
		if err != nil {
			return err
		}
		if !wallet.IsActive {
			return apperror.ErrWalletInactive()
		}

		topupID := uuid.New()
		credit := (&domain.Transaction{
			WalletID:    wallet.ID,
			Type:        domain.TransactionTypeCredit,
			Amount:      quote.Amount,
			FeeAmount:   quote.Fee,
			Status:      domain.TransactionStatusPending,
			Description: "wallet top-up",
		}).RelatedTo(domain.RelatedTopup, topupID)
		if err := s.ledger.Append(ctx, credit); err != nil {
			return err
		}

		now := time.Now().UTC()
		topup = &domain.PaymentTransaction{
			ID:            topupID,
			BusinessID:    in.BusinessID,
			WalletID:      wallet.ID,
			TransactionID: credit.ID,
			ExternalID:    "topup-" + topupID.String(),
			Amount:        quote.Amount,
			FeeAmount:     quote.Fee,
			Provider:      s.provider,
			Status:        domain.TransactionStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.topups.Create(ctx, topup); err != nil {
			return apperror.InternalError(fmt.Errorf("create topup: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	invoice, err := s.gateway.CreateInvoice(ctx, ports.InvoiceRequest{
		ExternalID:   topup.ExternalID,
		Amount:       topup.Amount,
		TotalCharged: topup.TotalCharged(),
		Currency:     domain.DefaultCurrency,
		Description:  "Wallet top-up",
		ExpiresIn:    s.invoiceTTL,
	})
	gatewayCallDuration.WithLabelValues("create_invoice").Observe(time.Since(start).Seconds())
	if err != nil {
		// The pending top-up stays; without a payment page it simply expires.
		s.log.Warn().Err(err).Str("external_id", topup.ExternalID).Msg("invoice creation failed")
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.ErrExternalFailure(err)
	}

	if err := s.topups.SetInvoice(ctx, topup.ID, invoice.ProviderPaymentID, invoice.PaymentURL, invoice.ExpiresAt); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("store invoice: %w", err))
	}
	topup.ProviderPaymentID = &invoice.ProviderPaymentID
	topup.PaymentURL = &invoice.PaymentURL
	topup.ExpiresAt = &invoice.ExpiresAt

	if s.audit != nil {
		actor := in.BusinessID
		s.audit.Log(ctx, &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      &actor,
			Action:       domain.AuditActionTopup,
			ResourceType: "topup",
			ResourceID:   topup.ID.String(),
			CreatedAt:    time.Now().UTC(),
		})
	}

	s.log.Info().
		Str("topup_id", topup.ID.String()).
		Str("external_id", topup.ExternalID).
		Int64("amount", topup.Amount).
		Int64("fee", topup.FeeAmount).
		Msg("top-up initiated")

	return topup, nil
}
