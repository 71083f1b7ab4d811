package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	payoutIdempotencyTTL = 24 * time.Hour
	payoutLockTTL        = 30 * time.Second
)

// PayoutServiceImpl implements ports.PayoutService.
type PayoutServiceImpl struct {
	transactor   ports.Transactor
	ledger       *Ledger
	fees         *FeeCalculator
	payouts      ports.PayoutRepository
	bankAccounts ports.BankAccountRepository
	encSvc       ports.EncryptionService
	gateway      ports.PaymentGateway
	idempCache   ports.IdempotencyCache
	lock         ports.RequestLock
	audit        ports.AuditService
	idempTTL     time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

// NewPayoutService creates a new PayoutServiceImpl. idempCache and lock may be
// nil; the unique client request id in storage still rejects duplicates.
func NewPayoutService(
	transactor ports.Transactor,
	ledger *Ledger,
	fees *FeeCalculator,
	payouts ports.PayoutRepository,
	bankAccounts ports.BankAccountRepository,
	encSvc ports.EncryptionService,
	gateway ports.PaymentGateway,
	idempCache ports.IdempotencyCache,
	lock ports.RequestLock,
	audit ports.AuditService,
	idempTTL time.Duration,
	log zerolog.Logger,
) *PayoutServiceImpl {
	if idempTTL <= 0 {
		idempTTL = payoutIdempotencyTTL
	}
	return &PayoutServiceImpl{
		transactor:   transactor,
		ledger:       ledger,
		fees:         fees,
		payouts:      payouts,
		bankAccounts: bankAccounts,
		encSvc:       encSvc,
		gateway:      gateway,
		idempCache:   idempCache,
		lock:         lock,
		audit:        audit,
		idempTTL:     idempTTL,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// RequestPayout debits the worker's available balance by the full amount and
// records a pending payout request, both in one unit of work. A repeated
// request id returns the original request.
func (s *PayoutServiceImpl) RequestPayout(ctx context.Context, in ports.PayoutInput) (*domain.PayoutRequest, error) {
	if in.WorkerID == uuid.Nil {
		return nil, apperror.Validation("worker is required")
	}
	quote, err := s.fees.PayoutFee(in.Amount)
	if err != nil {
		return nil, err
	}
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}

	idempKey := domain.BuildIdempotencyKey(domain.IdempotencyScopePayout, in.WorkerID, in.RequestID)

	// Layer 1: Redis replay cache
	if cached := s.cachedPayout(ctx, idempKey); cached != nil {
		return cached, nil
	}

	// Layer 2: in-flight lock so concurrent duplicates do not race to the DB
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, "lock:"+idempKey, payoutLockTTL)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("request lock unavailable, relying on DB uniqueness")
		} else if !acquired {
			return nil, apperror.ErrDuplicateRequest()
		} else {
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), "lock:"+idempKey); err != nil {
					s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to release request lock")
				}
			}()
		}
	}

	// Layer 3: DB client request id
	existing, err := s.payouts.GetByClientRequestID(ctx, in.WorkerID, in.RequestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	account, err := s.bankAccounts.GetDefault(ctx, in.WorkerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get bank account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrBankAccountRequired()
	}

	var payout *domain.PayoutRequest
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		wallet, err := s.ledger.Wallet(ctx, domain.Owner{Type: domain.OwnerTypeWorker, ID: in.WorkerID})
		if err != nil {
			return err
		}
		locked, err := s.ledger.Lock(ctx, wallet.ID)
		if err != nil {
			return err
		}
		wallet = locked[wallet.ID]
		if !wallet.IsActive {
			return apperror.ErrWalletInactive()
		}
		if !wallet.CanDebit(quote.Amount) {
			return apperror.ErrInsufficientFunds()
		}

		now := s.now()
		payoutID := uuid.New()
		debit := (&domain.Transaction{
			WalletID:    wallet.ID,
			Type:        domain.TransactionTypePayout,
			Amount:      quote.Amount,
			FeeAmount:   quote.Fee,
			Description: "withdrawal to bank account",
		}).RelatedTo(domain.RelatedPayout, payoutID)
		if _, err := s.ledger.Post(ctx, debit); err != nil {
			return err
		}

		payout = &domain.PayoutRequest{
			ID:              payoutID,
			WorkerID:        in.WorkerID,
			WalletID:        wallet.ID,
			TransactionID:   debit.ID,
			BankAccountID:   account.ID,
			ClientRequestID: in.RequestID,
			ExternalID:      "payout-" + payoutID.String(),
			Amount:          quote.Amount,
			FeeAmount:       quote.Fee,
			NetAmount:       quote.Net,
			Status:          domain.PayoutStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.payouts.Create(ctx, payout); err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				return apperror.ErrDuplicateRequest()
			}
			return apperror.InternalError(fmt.Errorf("create payout: %w", err))
		}
		return nil
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindConflict) {
			if existing, _ := s.payouts.GetByClientRequestID(ctx, in.WorkerID, in.RequestID); existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	payoutTransitionsTotal.WithLabelValues(string(domain.PayoutStatusPending)).Inc()
	s.cachePayout(ctx, idempKey, payout)
	s.auditPayout(ctx, domain.AuditActionPayoutRequest, payout)

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("worker_id", payout.WorkerID.String()).
		Int64("amount", payout.Amount).
		Int64("fee", payout.FeeAmount).
		Int64("net", payout.NetAmount).
		Msg("payout requested")

	return payout, nil
}

// Submit sends a pending payout to the gateway. No lock is held during the
// call. On acceptance the request moves to processing; on a timeout it stays
// pending with its debit in place and may be resubmitted under the same
// external id.
func (s *PayoutServiceImpl) Submit(ctx context.Context, payoutID uuid.UUID) (*domain.PayoutRequest, error) {
	payout, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payout: %w", err))
	}
	if payout == nil {
		return nil, apperror.ErrNotFound("payout")
	}
	switch payout.Status {
	case domain.PayoutStatusPending:
	case domain.PayoutStatusProcessing:
		return payout, nil
	default:
		return nil, apperror.ErrInvalidPayoutState(string(payout.Status))
	}

	account, err := s.bankAccounts.GetByID(ctx, payout.BankAccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get bank account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrBankAccountRequired()
	}
	accountNumber, err := s.encSvc.Decrypt(account.AccountNumberEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt account number: %w", err))
	}

	recorded, err := s.payouts.RecordAttempt(ctx, payout.ID, s.now())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record attempt: %w", err))
	}
	if !recorded {
		// Cancelled or settled since it was read; nothing may reach the gateway.
		current, err := s.payouts.GetByID(ctx, payout.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get payout: %w", err))
		}
		if current != nil && current.Status == domain.PayoutStatusProcessing {
			return current, nil
		}
		status := "unknown"
		if current != nil {
			status = string(current.Status)
		}
		return nil, apperror.ErrInvalidPayoutState(status)
	}

	start := time.Now()
	receipt, err := s.gateway.CreatePayout(ctx, ports.PayoutOrder{
		ExternalID:    payout.ExternalID,
		NetAmount:     payout.NetAmount,
		Currency:      domain.DefaultCurrency,
		BankCode:      account.BankCode,
		AccountNumber: accountNumber,
		AccountHolder: account.AccountHolder,
	})
	gatewayCallDuration.WithLabelValues("create_payout").Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Warn().Err(err).
			Str("payout_id", payout.ID.String()).
			Str("external_id", payout.ExternalID).
			Msg("payout submission failed, request stays pending")
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.ErrExternalFailure(err)
	}

	var updated *domain.PayoutRequest
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.payouts.GetByIDForUpdate(ctx, payout.ID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get payout: %w", err))
		}
		updated = current

		outcome, err := domain.ResolvePayoutTransition(current.Status, domain.PayoutStatusProcessing)
		if err != nil || outcome != domain.TransitionApply {
			// A callback already moved it on; the acknowledgement is stale.
			return nil
		}

		now := s.now()
		next := *current
		next.Status = domain.PayoutStatusProcessing
		next.ProcessingAt = &now
		next.UpdatedAt = now
		if receipt.ProviderPayoutID != "" {
			next.ProviderPayoutID = &receipt.ProviderPayoutID
		}
		ok, err := s.payouts.UpdateStatus(ctx, &next, current.Status)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("update payout: %w", err))
		}
		if ok {
			updated = &next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == domain.PayoutStatusProcessing {
		payoutTransitionsTotal.WithLabelValues(string(domain.PayoutStatusProcessing)).Inc()
	}
	s.auditPayout(ctx, domain.AuditActionPayoutSubmit, updated)

	s.log.Info().
		Str("payout_id", updated.ID.String()).
		Str("status", string(updated.Status)).
		Msg("payout submitted to gateway")

	return updated, nil
}

// Cancel withdraws a pending payout that was never sent to the gateway and
// returns the funds with a compensating refund entry.
func (s *PayoutServiceImpl) Cancel(ctx context.Context, payoutID, workerID uuid.UUID) (*domain.PayoutRequest, error) {
	var payout *domain.PayoutRequest
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.payouts.GetByIDForUpdate(ctx, payoutID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get payout: %w", err))
		}
		if current == nil || current.WorkerID != workerID {
			return apperror.ErrNotFound("payout")
		}

		outcome, err := domain.ResolvePayoutTransition(current.Status, domain.PayoutStatusCancelled)
		if err != nil {
			return apperror.ErrInvalidPayoutState(string(current.Status))
		}
		if outcome != domain.TransitionApply {
			payout = current
			return nil
		}
		// The gateway may have accepted a submission that timed out.
		if current.Attempts > 0 {
			return apperror.ErrInvalidPayoutState("submitted")
		}

		refund, err := postRefund(ctx, s.ledger, current, "payout cancelled, funds returned")
		if err != nil {
			return err
		}

		now := s.now()
		next := *current
		next.Status = domain.PayoutStatusCancelled
		next.RefundTxID = &refund.ID
		next.CancelledAt = &now
		next.UpdatedAt = now
		ok, err := s.payouts.UpdateStatus(ctx, &next, current.Status)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("update payout: %w", err))
		}
		if !ok {
			return apperror.ErrInvalidPayoutState(string(current.Status))
		}
		payout = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	payoutTransitionsTotal.WithLabelValues(string(payout.Status)).Inc()
	s.auditPayout(ctx, domain.AuditActionPayoutCancel, payout)
	return payout, nil
}

// Get returns one of the worker's payout requests.
func (s *PayoutServiceImpl) Get(ctx context.Context, payoutID, workerID uuid.UUID) (*domain.PayoutRequest, error) {
	payout, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payout: %w", err))
	}
	if payout == nil || (workerID != uuid.Nil && payout.WorkerID != workerID) {
		return nil, apperror.ErrNotFound("payout")
	}
	return payout, nil
}

// ResubmitStale resubmits pending payouts whose last attempt is older than
// olderThan. The external id is reused, so the gateway deduplicates.
func (s *PayoutServiceImpl) ResubmitStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.payouts.ListStalePending(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list stale payouts: %w", err))
	}

	submitted := 0
	for _, p := range stale {
		if _, err := s.Submit(ctx, p.ID); err != nil {
			s.log.Warn().Err(err).Str("payout_id", p.ID.String()).Msg("stale payout resubmission failed")
			continue
		}
		submitted++
	}
	if len(stale) > 0 {
		s.log.Info().Int("stale", len(stale)).Int("submitted", submitted).Msg("stale payout resubmission completed")
	}
	return submitted, nil
}

func (s *PayoutServiceImpl) cachedPayout(ctx context.Context, key string) *domain.PayoutRequest {
	if s.idempCache == nil {
		return nil
	}
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	var payout domain.PayoutRequest
	if err := json.Unmarshal(cached, &payout); err != nil {
		return nil
	}
	return &payout
}

func (s *PayoutServiceImpl) cachePayout(ctx context.Context, key string, payout *domain.PayoutRequest) {
	if s.idempCache == nil {
		return
	}
	data, err := json.Marshal(payout)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, data, s.idempTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache payout")
	}
}

func (s *PayoutServiceImpl) auditPayout(ctx context.Context, action domain.AuditAction, payout *domain.PayoutRequest) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]interface{}{
		"amount": payout.Amount,
		"fee":    payout.FeeAmount,
		"status": payout.Status,
	})
	actor := payout.WorkerID
	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		Action:       action,
		ResourceType: "payout",
		ResourceID:   payout.ID.String(),
		Details:      string(details),
		CreatedAt:    s.now(),
	})
}
