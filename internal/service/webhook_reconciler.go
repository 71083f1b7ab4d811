package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const callbackReplayTTL = 24 * time.Hour

// WebhookReconcilerImpl implements ports.WebhookReconciler. Callbacks arrive
// already authenticated; this type maps the gateway status and drives the
// top-up or payout state machine exactly once per logical event.
type WebhookReconcilerImpl struct {
	transactor ports.Transactor
	ledger     *Ledger
	topups     ports.PaymentTransactionRepository
	payouts    ports.PayoutRepository
	cache      ports.IdempotencyCache
	audit      ports.AuditService
	notifier   ports.Notifier
	incidents  ports.IncidentReporter
	log        zerolog.Logger
}

// NewWebhookReconciler creates a new WebhookReconcilerImpl. cache may be nil.
func NewWebhookReconciler(
	transactor ports.Transactor,
	ledger *Ledger,
	topups ports.PaymentTransactionRepository,
	payouts ports.PayoutRepository,
	cache ports.IdempotencyCache,
	audit ports.AuditService,
	notifier ports.Notifier,
	incidents ports.IncidentReporter,
	log zerolog.Logger,
) *WebhookReconcilerImpl {
	return &WebhookReconcilerImpl{
		transactor: transactor,
		ledger:     ledger,
		topups:     topups,
		payouts:    payouts,
		cache:      cache,
		audit:      audit,
		notifier:   notifier,
		incidents:  incidents,
		log:        log,
	}
}

// reconciliation is what one callback did inside its unit of work.
type reconciliation struct {
	kind         string // topup or payout
	result       *ports.CallbackResult
	outcome      domain.TransitionOutcome
	notification *domain.Notification
	amounts      []int64 // accepted callback amounts, the charged or net one last
}

// cachedCallback is the replay cache entry for a terminal callback.
type cachedCallback struct {
	Result  ports.CallbackResult `json:"result"`
	Amounts []int64              `json:"amounts"`
}

// amountMismatch reports whether a callback amount contradicts the accepted ones.
func amountMismatch(amount int64, accepted []int64) error {
	if amount == 0 || len(accepted) == 0 {
		return nil
	}
	for _, a := range accepted {
		if a == amount {
			return nil
		}
	}
	return apperror.ErrAmountMismatch(accepted[len(accepted)-1], amount)
}

// Reconcile applies an authenticated gateway callback.
func (s *WebhookReconcilerImpl) Reconcile(ctx context.Context, cb ports.GatewayCallback) (*ports.CallbackResult, error) {
	if cb.ExternalID == "" {
		return nil, apperror.Validation("external_id is required")
	}

	target, known := domain.MapGatewayStatus(cb.Status)
	if !known {
		s.log.Warn().
			Str("external_id", cb.ExternalID).
			Str("gateway_status", cb.Status).
			Msg("unrecognized gateway status, ignoring")
	}

	replayKey := domain.BuildCallbackKey(cb.ExternalID, target)
	if target.IsTerminal() {
		if entry := s.cachedResult(ctx, replayKey); entry != nil {
			if err := amountMismatch(cb.Amount, entry.Amounts); err != nil {
				s.rejectCallback(ctx, cb, err)
				return nil, err
			}
			webhookEventsTotal.WithLabelValues("cached", "replay").Inc()
			s.auditCallback(ctx, cb, domain.AuditActionCallbackReplay, entry.Result.TransactionID)
			return &entry.Result, nil
		}
	}

	var rec *reconciliation
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		topup, err := s.topups.GetByExternalIDForUpdate(ctx, cb.ExternalID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get topup: %w", err))
		}
		if topup != nil {
			rec, err = s.reconcileTopup(ctx, topup, cb, target)
			return err
		}

		payout, err := s.payouts.GetByExternalIDForUpdate(ctx, cb.ExternalID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get payout: %w", err))
		}
		if payout != nil {
			rec, err = s.reconcilePayout(ctx, payout, cb, target)
			return err
		}

		return apperror.ErrNotFound("transaction")
	})
	if err != nil {
		s.rejectCallback(ctx, cb, err)
		return nil, err
	}

	webhookEventsTotal.WithLabelValues(rec.kind, rec.outcome.String()).Inc()

	action := domain.AuditActionCallbackAccepted
	switch rec.outcome {
	case domain.TransitionReplay:
		action = domain.AuditActionCallbackReplay
	case domain.TransitionIgnore:
		action = domain.AuditActionCallbackIgnored
	}
	s.auditCallback(ctx, cb, action, rec.result.TransactionID)

	if rec.outcome != domain.TransitionIgnore && target.IsTerminal() {
		s.cacheResult(ctx, replayKey, rec)
	}

	if rec.notification != nil && s.notifier != nil {
		s.notifier.Notify(ctx, *rec.notification)
	}

	s.log.Info().
		Str("external_id", cb.ExternalID).
		Str("kind", rec.kind).
		Str("outcome", rec.outcome.String()).
		Str("status", rec.result.Status).
		Msg("gateway callback reconciled")

	return rec.result, nil
}

func (s *WebhookReconcilerImpl) reconcileTopup(ctx context.Context, p *domain.PaymentTransaction, cb ports.GatewayCallback, target domain.TransactionStatus) (*reconciliation, error) {
	amounts := []int64{p.Amount, p.TotalCharged()}
	if err := amountMismatch(cb.Amount, amounts); err != nil {
		return nil, err
	}

	tx, outcome, err := s.ledger.Settle(ctx, p.TransactionID, target)
	if err != nil {
		return nil, err
	}

	rec := &reconciliation{
		kind:    "topup",
		outcome: outcome,
		amounts: amounts,
		result: &ports.CallbackResult{
			Success:       true,
			TransactionID: tx.ID.String(),
			Status:        string(tx.Status),
		},
	}
	if outcome != domain.TransitionApply {
		return rec, nil
	}

	var providerID *string
	if cb.ProviderID != "" {
		providerID = &cb.ProviderID
	}
	applied, err := s.topups.CompleteIfPending(ctx, p.ID, target, providerID, *tx.CompletedAt)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete topup: %w", err))
	}
	if !applied {
		// The ledger entry was pending but the top-up row was not.
		return nil, apperror.ErrContradictoryTransition(string(p.Status), string(target))
	}

	kind := domain.NotificationTopupSettled
	if target != domain.TransactionStatusSuccess {
		kind = domain.NotificationTopupFailed
	}
	rec.notification = &domain.Notification{
		ID:         uuid.New(),
		Kind:       kind,
		Owner:      domain.Owner{Type: domain.OwnerTypeBusiness, ID: p.BusinessID},
		WalletID:   p.WalletID,
		Amount:     p.Amount,
		ResourceID: p.ID.String(),
		OccurredAt: *tx.CompletedAt,
	}
	return rec, nil
}

func (s *WebhookReconcilerImpl) reconcilePayout(ctx context.Context, p *domain.PayoutRequest, cb ports.GatewayCallback, target domain.TransactionStatus) (*reconciliation, error) {
	amounts := []int64{p.Amount, p.NetAmount}
	if err := amountMismatch(cb.Amount, amounts); err != nil {
		return nil, err
	}

	rec := &reconciliation{
		kind:    "payout",
		outcome: domain.TransitionIgnore,
		amounts: amounts,
		result: &ports.CallbackResult{
			Success:       true,
			TransactionID: p.TransactionID.String(),
			Status:        string(p.Status),
		},
	}

	next, ok := domain.PayoutStatusFor(target)
	if !ok {
		return rec, nil
	}
	outcome, err := domain.ResolvePayoutTransition(p.Status, next)
	if err != nil {
		return nil, apperror.ErrContradictoryTransition(string(p.Status), string(next))
	}
	rec.outcome = outcome
	if outcome != domain.TransitionApply {
		return rec, nil
	}

	from := p.Status
	now := time.Now().UTC()
	if cb.CompletedAt != nil {
		now = cb.CompletedAt.UTC()
	}
	updated := *p
	updated.Status = next
	updated.UpdatedAt = now
	if cb.ProviderID != "" {
		updated.ProviderPayoutID = &cb.ProviderID
	}

	kind := domain.NotificationPayoutCompleted
	switch next {
	case domain.PayoutStatusCompleted:
		updated.CompletedAt = &now
	case domain.PayoutStatusFailed:
		kind = domain.NotificationPayoutFailed
		refund, err := s.refundPayout(ctx, p)
		if err != nil {
			return nil, err
		}
		reason := "gateway reported " + cb.Status
		updated.RefundTxID = &refund.ID
		updated.FailureReason = &reason
		updated.FailedAt = &now
	}

	applied, err := s.payouts.UpdateStatus(ctx, &updated, from)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}
	if !applied {
		return nil, apperror.ErrContradictoryTransition(string(from), string(next))
	}

	payoutTransitionsTotal.WithLabelValues(string(next)).Inc()
	rec.result.Status = string(next)
	rec.notification = &domain.Notification{
		ID:         uuid.New(),
		Kind:       kind,
		Owner:      domain.Owner{Type: domain.OwnerTypeWorker, ID: p.WorkerID},
		WalletID:   p.WalletID,
		Amount:     p.Amount,
		ResourceID: p.ID.String(),
		OccurredAt: now,
	}
	return rec, nil
}

// refundPayout appends the compensating credit for a payout that will not be
// paid out. The original payout entry is left untouched.
func (s *WebhookReconcilerImpl) refundPayout(ctx context.Context, p *domain.PayoutRequest) (*domain.Transaction, error) {
	return postRefund(ctx, s.ledger, p, "payout failed, funds returned")
}

func postRefund(ctx context.Context, ledger *Ledger, p *domain.PayoutRequest, description string) (*domain.Transaction, error) {
	if _, err := ledger.Lock(ctx, p.WalletID); err != nil {
		return nil, err
	}
	refund := (&domain.Transaction{
		WalletID:    p.WalletID,
		Type:        domain.TransactionTypeRefund,
		Amount:      p.Amount,
		Description: description,
	}).RelatedTo(domain.RelatedPayout, p.ID)
	if _, err := ledger.Post(ctx, refund); err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *WebhookReconcilerImpl) rejectCallback(ctx context.Context, cb ports.GatewayCallback, err error) {
	webhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
	s.auditCallback(ctx, cb, domain.AuditActionCallbackRejected, "")

	if apperror.IsKind(err, apperror.KindConsistency) {
		s.incidents.Report(ctx, "webhook", "callback", cb.ExternalID, err)
		return
	}
	s.log.Warn().
		Err(err).
		Str("external_id", cb.ExternalID).
		Str("gateway_status", cb.Status).
		Msg("gateway callback rejected")
}

func (s *WebhookReconcilerImpl) cachedResult(ctx context.Context, key string) *cachedCallback {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis replay check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	var entry cachedCallback
	if err := json.Unmarshal(cached, &entry); err != nil || entry.Result.TransactionID == "" {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached callback result")
		return nil
	}
	return &entry
}

func (s *WebhookReconcilerImpl) cacheResult(ctx context.Context, key string, rec *reconciliation) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(cachedCallback{Result: *rec.result, Amounts: rec.amounts})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, callbackReplayTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache callback result")
	}
}

func (s *WebhookReconcilerImpl) auditCallback(ctx context.Context, cb ports.GatewayCallback, action domain.AuditAction, txID string) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]string{
		"gateway_status": cb.Status,
		"provider_id":    cb.ProviderID,
		"transaction_id": txID,
	})
	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: "callback",
		ResourceID:   cb.ExternalID,
		Details:      string(details),
		IPAddress:    cb.SourceIP,
		CreatedAt:    time.Now().UTC(),
	})
}
