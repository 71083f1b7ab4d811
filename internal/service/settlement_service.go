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

// DefaultHoldWindow is how long a worker's earning stays pending after checkout.
const DefaultHoldWindow = 24 * time.Hour

const checkoutReplayTTL = 24 * time.Hour

// SettlementServiceImpl implements ports.SettlementService. A booking checkout
// moves the price from the business's available balance into the worker's
// pending balance; a release later moves it to the worker's available balance.
type SettlementServiceImpl struct {
	transactor  ports.Transactor
	ledger      *Ledger
	bookings    ports.BookingRepository
	settlements ports.SettlementRepository
	scheduler   ports.ReleaseScheduler
	cache       ports.IdempotencyCache
	audit       ports.AuditService
	notifier    ports.Notifier
	holdWindow  time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl. scheduler and
// cache may be nil; the recovery sweep releases whatever was never scheduled.
func NewSettlementService(
	transactor ports.Transactor,
	ledger *Ledger,
	bookings ports.BookingRepository,
	settlements ports.SettlementRepository,
	scheduler ports.ReleaseScheduler,
	cache ports.IdempotencyCache,
	audit ports.AuditService,
	notifier ports.Notifier,
	holdWindow time.Duration,
	log zerolog.Logger,
) *SettlementServiceImpl {
	if holdWindow <= 0 {
		holdWindow = DefaultHoldWindow
	}
	return &SettlementServiceImpl{
		transactor:  transactor,
		ledger:      ledger,
		bookings:    bookings,
		settlements: settlements,
		scheduler:   scheduler,
		cache:       cache,
		audit:       audit,
		notifier:    notifier,
		holdWindow:  holdWindow,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// Checkout completes an in-progress booking and places its price on hold.
func (s *SettlementServiceImpl) Checkout(ctx context.Context, req ports.CheckoutRequest) (*domain.Settlement, error) {
	var replayKey string
	if req.RequestID != "" {
		replayKey = domain.BuildIdempotencyKey(domain.IdempotencyScopeCheckout, req.ActorID, req.RequestID)
		if settlement := s.cachedSettlement(ctx, replayKey); settlement != nil && settlement.BookingID == req.BookingID {
			return settlement, nil
		}
	}

	var (
		settlement *domain.Settlement
		booking    *domain.Booking
		replayed   bool
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.bookings.GetByIDForUpdate(ctx, req.BookingID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get booking: %w", err))
		}
		if booking == nil {
			return apperror.ErrNotFound("booking")
		}
		if !booking.Involves(req.ActorID) {
			return apperror.ErrForbidden()
		}
		if booking.Status != domain.BookingStatusInProgress {
			// A retry whose cached response was lost still gets the original.
			if req.RequestID != "" {
				existing, err := s.settlements.GetByBookingID(ctx, booking.ID)
				if err != nil {
					return apperror.InternalError(fmt.Errorf("get settlement: %w", err))
				}
				if existing != nil && existing.ClientRequestID == req.RequestID {
					settlement, replayed = existing, true
					return nil
				}
			}
			return apperror.ErrInvalidBookingState(string(booking.Status))
		}
		if booking.FinalPrice <= 0 {
			return apperror.ErrInvalidAmount()
		}

		business, err := s.ledger.Wallet(ctx, domain.Owner{Type: domain.OwnerTypeBusiness, ID: booking.BusinessID})
		if err != nil {
			return err
		}
		worker, err := s.ledger.Wallet(ctx, domain.Owner{Type: domain.OwnerTypeWorker, ID: booking.WorkerID})
		if err != nil {
			return err
		}
		locked, err := s.ledger.Lock(ctx, business.ID, worker.ID)
		if err != nil {
			return err
		}
		if !locked[business.ID].IsActive || !locked[worker.ID].IsActive {
			return apperror.ErrWalletInactive()
		}
		if !locked[business.ID].CanDebit(booking.FinalPrice) {
			return apperror.ErrInsufficientFunds()
		}

		hold := (&domain.Transaction{
			WalletID:    business.ID,
			Type:        domain.TransactionTypeHold,
			Amount:      booking.FinalPrice,
			Description: "booking payment held for worker",
		}).RelatedTo(domain.RelatedBooking, booking.ID)
		if _, err := s.ledger.Post(ctx, hold); err != nil {
			return err
		}

		earn := (&domain.Transaction{
			WalletID:    worker.ID,
			Type:        domain.TransactionTypeEarn,
			Amount:      booking.FinalPrice,
			Status:      domain.TransactionStatusPending,
			Description: "booking earning on hold",
		}).RelatedTo(domain.RelatedBooking, booking.ID)
		if err := s.ledger.Append(ctx, earn); err != nil {
			return err
		}

		now := s.now()
		settlement = &domain.Settlement{
			ID:               uuid.New(),
			BookingID:        booking.ID,
			ClientRequestID:  req.RequestID,
			BusinessWalletID: business.ID,
			WorkerWalletID:   worker.ID,
			HoldTxID:         hold.ID,
			EarnTxID:         earn.ID,
			Amount:           booking.FinalPrice,
			Status:           domain.SettlementStatusHeld,
			ReleaseAt:        now.Add(s.holdWindow),
			CreatedAt:        now,
		}
		if err := s.settlements.Create(ctx, settlement); err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				return apperror.ErrDuplicateRequest()
			}
			return apperror.InternalError(fmt.Errorf("create settlement: %w", err))
		}

		ok, err := s.bookings.UpdateStatusIf(ctx, booking.ID, domain.BookingStatusInProgress, domain.BookingStatusCompleted)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("complete booking: %w", err))
		}
		if !ok {
			return apperror.ErrInvalidBookingState(string(booking.Status))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		s.cacheSettlement(ctx, replayKey, settlement)
		return settlement, nil
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleRelease(ctx, settlement.BookingID, settlement.ReleaseAt); err != nil {
			s.log.Warn().Err(err).
				Str("booking_id", settlement.BookingID.String()).
				Msg("failed to schedule release, recovery sweep will pick it up")
		}
	}
	if replayKey != "" {
		s.cacheSettlement(ctx, replayKey, settlement)
	}
	s.auditSettlement(ctx, req.ActorID, domain.AuditActionCheckout, settlement)
	s.notify(ctx, domain.NotificationEarningHeld, booking.WorkerID, settlement)

	s.log.Info().
		Str("booking_id", settlement.BookingID.String()).
		Int64("amount", settlement.Amount).
		Time("release_at", settlement.ReleaseAt).
		Msg("booking checked out, earning on hold")

	return settlement, nil
}

// ReleaseNow releases a held earning on the business's confirmation,
// regardless of the hold window.
func (s *SettlementServiceImpl) ReleaseNow(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Settlement, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get booking: %w", err))
	}
	if booking == nil {
		return nil, apperror.ErrNotFound("booking")
	}
	if booking.BusinessID != actorID {
		return nil, apperror.ErrForbidden()
	}

	settlement, _, err := s.release(ctx, bookingID, domain.ReleaseTriggerConfirmation, false)
	if err != nil {
		return nil, err
	}
	s.auditSettlement(ctx, actorID, domain.AuditActionRelease, settlement)
	return settlement, nil
}

// ReleaseDue is the scheduled-timer entry point. Before the settlement's
// release time it does nothing and returns the held settlement.
func (s *SettlementServiceImpl) ReleaseDue(ctx context.Context, bookingID uuid.UUID) (*domain.Settlement, error) {
	settlement, _, err := s.release(ctx, bookingID, domain.ReleaseTriggerSchedule, true)
	return settlement, err
}

// SweepDueReleases releases every held settlement whose release time has
// passed. It recovers releases whose scheduled task was lost.
func (s *SettlementServiceImpl) SweepDueReleases(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.settlements.ListDue(ctx, now, limit)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list due settlements: %w", err))
	}

	released := 0
	for _, d := range due {
		_, ok, err := s.release(ctx, d.BookingID, domain.ReleaseTriggerSweep, true)
		if err != nil {
			s.log.Error().Err(err).Str("booking_id", d.BookingID.String()).Msg("sweep release failed")
			continue
		}
		if ok {
			released++
		}
	}

	if released > 0 {
		s.log.Info().Int("released", released).Int("due", len(due)).Msg("release sweep completed")
	}
	return released, nil
}

// GetSettlement returns a booking's settlement to either party.
func (s *SettlementServiceImpl) GetSettlement(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Settlement, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get booking: %w", err))
	}
	if booking == nil {
		return nil, apperror.ErrNotFound("booking")
	}
	if actorID != uuid.Nil && !booking.Involves(actorID) {
		return nil, apperror.ErrForbidden()
	}

	settlement, err := s.settlements.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get settlement: %w", err))
	}
	if settlement == nil {
		return nil, apperror.ErrNotFound("settlement")
	}
	return settlement, nil
}

// release settles the earning and posts the release in one unit of work. A
// settlement that is already released is returned unchanged with false.
func (s *SettlementServiceImpl) release(ctx context.Context, bookingID uuid.UUID, trigger domain.ReleaseTrigger, onlyIfDue bool) (*domain.Settlement, bool, error) {
	var (
		settlement *domain.Settlement
		released   bool
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		settlement, err = s.settlements.GetByBookingIDForUpdate(ctx, bookingID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get settlement: %w", err))
		}
		if settlement == nil {
			return apperror.ErrNotFound("settlement")
		}
		if settlement.Status == domain.SettlementStatusReleased {
			return nil
		}
		now := s.now()
		if onlyIfDue && !settlement.IsDue(now) {
			return nil
		}

		if _, err := s.ledger.Lock(ctx, settlement.WorkerWalletID); err != nil {
			return err
		}
		_, outcome, err := s.ledger.Settle(ctx, settlement.EarnTxID, domain.TransactionStatusSuccess)
		if err != nil {
			return err
		}
		if outcome != domain.TransitionApply {
			// Earning already settled while the settlement row says held.
			return apperror.ErrContradictoryTransition(string(domain.SettlementStatusHeld), string(domain.SettlementStatusReleased))
		}

		releaseTx := (&domain.Transaction{
			WalletID:    settlement.WorkerWalletID,
			Type:        domain.TransactionTypeRelease,
			Amount:      settlement.Amount,
			Description: "booking earning released",
		}).RelatedTo(domain.RelatedBooking, bookingID)
		if _, err := s.ledger.Post(ctx, releaseTx); err != nil {
			return err
		}

		settlement.Status = domain.SettlementStatusReleased
		settlement.ReleaseTxID = &releaseTx.ID
		settlement.ReleasedAt = &now
		settlement.ReleaseTrigger = &trigger
		ok, err := s.settlements.MarkReleased(ctx, settlement)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("mark settlement released: %w", err))
		}
		if !ok {
			return apperror.ErrContradictoryTransition(string(domain.SettlementStatusReleased), string(domain.SettlementStatusReleased))
		}
		released = true
		return nil
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindConsistency) && s.ledger.incidents != nil {
			s.ledger.incidents.Report(ctx, "release", "booking", bookingID.String(), err)
		}
		return nil, false, err
	}

	if released {
		settlementReleasesTotal.WithLabelValues(string(trigger)).Inc()
		if wallet, err := s.ledger.WalletByID(ctx, settlement.WorkerWalletID); err == nil {
			s.notify(ctx, domain.NotificationEarningReleased, wallet.OwnerID, settlement)
		}
		s.log.Info().
			Str("booking_id", bookingID.String()).
			Str("trigger", string(trigger)).
			Int64("amount", settlement.Amount).
			Msg("earning released")
	}
	return settlement, released, nil
}

func (s *SettlementServiceImpl) notify(ctx context.Context, kind domain.NotificationKind, workerID uuid.UUID, settlement *domain.Settlement) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, domain.Notification{
		ID:         uuid.New(),
		Kind:       kind,
		Owner:      domain.Owner{Type: domain.OwnerTypeWorker, ID: workerID},
		WalletID:   settlement.WorkerWalletID,
		Amount:     settlement.Amount,
		ResourceID: settlement.BookingID.String(),
		OccurredAt: s.now(),
	})
}

func (s *SettlementServiceImpl) auditSettlement(ctx context.Context, actorID uuid.UUID, action domain.AuditAction, settlement *domain.Settlement) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]interface{}{
		"amount": settlement.Amount,
		"status": settlement.Status,
	})
	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actorID,
		Action:       action,
		ResourceType: "booking",
		ResourceID:   settlement.BookingID.String(),
		Details:      string(details),
		CreatedAt:    s.now(),
	})
}

func (s *SettlementServiceImpl) cachedSettlement(ctx context.Context, key string) *domain.Settlement {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	var settlement domain.Settlement
	if err := json.Unmarshal(cached, &settlement); err != nil {
		return nil
	}
	return &settlement
}

func (s *SettlementServiceImpl) cacheSettlement(ctx context.Context, key string, settlement *domain.Settlement) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(settlement)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, checkoutReplayTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache checkout result")
	}
}
